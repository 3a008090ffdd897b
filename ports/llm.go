package ports

import "context"

// GenerateRequest is one text-generation call.
type GenerateRequest struct {
	Model       string
	Prompt      string
	Temperature float64
	// NumPredict caps the number of output tokens; zero leaves the
	// endpoint default.
	NumPredict int
}

// Generator is a text-generation endpoint (local Ollama server or an
// OpenAI-compatible chat API).
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
