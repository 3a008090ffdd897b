// Package classify runs the self-consistency topic classifier: every
// excerpt is scored against every topic several times at varying
// temperatures and the samples are reduced to one consensus per pair.
package classify

import (
	"context"
	"fmt"
	"strings"

	"llmusic/ports"
)

// BuildScorePrompt renders the fixed relevance prompt for one pair. The
// model is asked for a single digit on a 1..5 ordinal scale.
func BuildScorePrompt(text, topic string) string {
	var b strings.Builder
	b.WriteString("Avaliacao da Relacao Semantica.\n")
	fmt.Fprintf(&b, "Topico: %s\n", topic)
	fmt.Fprintf(&b, "Trecho: \"%s\"\n\n", text)
	b.WriteString("Classifique a relacao entre o trecho e o topico na escala:\n")
	b.WriteString("1: Nenhuma relacao.\n")
	b.WriteString("2: Relacao fraca.\n")
	b.WriteString("3: Relacao moderada.\n")
	b.WriteString("4: Relacao forte.\n")
	b.WriteString("5: Relacao muito forte.\n\n")
	b.WriteString("Responda EXCLUSIVAMENTE com um unico numero (1, 2, 3, 4 ou 5).")
	return b.String()
}

// ParseScore returns the first digit in 1..5 found in reply.
func ParseScore(reply string) (int, bool) {
	i := strings.IndexAny(reply, "12345")
	if i < 0 {
		return 0, false
	}
	return int(reply[i] - '0'), true
}

// Sampler obtains one relevance judgement per call.
type Sampler struct {
	gen        ports.Generator
	model      string
	numPredict int
}

// NewSampler creates a sampler bound to a generator and model.
func NewSampler(gen ports.Generator, model string, numPredict int) *Sampler {
	return &Sampler{gen: gen, model: model, numPredict: numPredict}
}

// Sample asks the model once. A transport or endpoint failure is returned
// as an error; a reply without a usable digit yields ok == false. There are
// no retries.
func (s *Sampler) Sample(ctx context.Context, text, topic string, temperature float64) (score int, ok bool, err error) {
	reply, err := s.gen.Generate(ctx, ports.GenerateRequest{
		Model:       s.model,
		Prompt:      BuildScorePrompt(text, topic),
		Temperature: temperature,
		NumPredict:  s.numPredict,
	})
	if err != nil {
		return 0, false, err
	}
	score, ok = ParseScore(strings.TrimSpace(reply))
	return score, ok, nil
}
