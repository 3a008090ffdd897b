package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"llmusic/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	replies map[string]string
}

func (f *fakeGenerator) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	reply, ok := f.replies[req.Prompt]
	if !ok {
		return "", errors.New("connection refused")
	}
	return reply, nil
}

func TestTrackerRecordsCalls(t *testing.T) {
	gen := &fakeGenerator{replies: map[string]string{"ola": "5", "tema": "amor"}}
	tracker := NewTracker(gen)
	tick := time.Unix(0, 0)
	tracker.now = func() time.Time {
		tick = tick.Add(10 * time.Millisecond)
		return tick
	}

	ctx := context.Background()
	reply, err := tracker.Generate(ctx, ports.GenerateRequest{Model: "llama3", Prompt: "ola"})
	require.NoError(t, err)
	assert.Equal(t, "5", reply)
	_, err = tracker.Generate(ctx, ports.GenerateRequest{Model: "llama3", Prompt: "falha"})
	assert.Error(t, err)
	_, err = tracker.Generate(ctx, ports.GenerateRequest{Model: "gemma", Prompt: "tema"})
	require.NoError(t, err)

	summary := tracker.Summary()
	require.Len(t, summary, 2)
	assert.Equal(t, "gemma", summary[0].Model)

	llama := summary[1]
	assert.Equal(t, 2, llama.Calls)
	assert.Equal(t, 1, llama.Failures)
	assert.Equal(t, 8, llama.PromptChars)
	assert.Equal(t, 1, llama.ReplyChars)
	assert.Equal(t, 20*time.Millisecond, llama.Latency)
	assert.Equal(t, 10*time.Millisecond, llama.MeanLatency())
}

func TestMeanLatencyWithoutCalls(t *testing.T) {
	assert.Zero(t, ModelUsage{}.MeanLatency())
}
