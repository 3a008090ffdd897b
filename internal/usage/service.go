// Package usage tracks text-generation calls made during a command.
package usage

import (
	"context"
	"sort"
	"sync"
	"time"

	"llmusic/ports"
)

// ModelUsage aggregates the calls made to one model.
type ModelUsage struct {
	Model       string
	Calls       int
	Failures    int
	PromptChars int
	ReplyChars  int
	Latency     time.Duration
}

// MeanLatency is the average call duration, failures included.
func (u ModelUsage) MeanLatency() time.Duration {
	if u.Calls == 0 {
		return 0
	}
	return u.Latency / time.Duration(u.Calls)
}

// Tracker wraps a Generator and records every call. It is safe for
// concurrent use.
type Tracker struct {
	next ports.Generator
	now  func() time.Time

	mu     sync.Mutex
	models map[string]*ModelUsage
}

// NewTracker wraps gen.
func NewTracker(gen ports.Generator) *Tracker {
	return &Tracker{next: gen, now: time.Now, models: make(map[string]*ModelUsage)}
}

// Generate forwards the request and records its outcome.
func (t *Tracker) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	start := t.now()
	reply, err := t.next.Generate(ctx, req)
	elapsed := t.now().Sub(start)

	t.mu.Lock()
	defer t.mu.Unlock()
	u, ok := t.models[req.Model]
	if !ok {
		u = &ModelUsage{Model: req.Model}
		t.models[req.Model] = u
	}
	u.Calls++
	u.Latency += elapsed
	u.PromptChars += len([]rune(req.Prompt))
	if err != nil {
		u.Failures++
	} else {
		u.ReplyChars += len([]rune(reply))
	}
	return reply, err
}

// Summary returns the usage per model, sorted by model name.
func (t *Tracker) Summary() []ModelUsage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ModelUsage, 0, len(t.models))
	for _, u := range t.models {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}
