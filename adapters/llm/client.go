package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"llmusic/internal/config"
	"llmusic/ports"
)

// NewGenerator creates the text-generation client selected by config
func NewGenerator(cfg config.LLMConfig) (ports.Generator, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	switch cfg.Provider {
	case config.ProviderOllama, "":
		return &OllamaClient{
			BaseURL:    baseURL,
			HTTPClient: &http.Client{Timeout: cfg.Timeout},
		}, nil
	case config.ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("missing API key for chat completions provider")
		}
		return &ChatClient{
			APIKey:     cfg.APIKey,
			BaseURL:    baseURL,
			HTTPClient: &http.Client{Timeout: cfg.Timeout},
		}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// OllamaClient calls the /api/generate endpoint of a local Ollama server.
type OllamaClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

func (c *OllamaClient) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	if strings.TrimSpace(req.Model) == "" {
		return "", fmt.Errorf("missing model")
	}
	body := ollamaRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.NumPredict,
		},
	}

	respRaw, err := postJSON(ctx, httpClient(c.HTTPClient), strings.TrimRight(c.BaseURL, "/")+"/api/generate", body, nil)
	if err != nil {
		return "", fmt.Errorf("ollama %w", err)
	}

	var decoded ollamaResponse
	if err := json.Unmarshal(respRaw, &decoded); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("ollama error: %s", decoded.Error)
	}
	return decoded.Response, nil
}

// ChatClient implements Generator for OpenAI-compatible chat completion APIs
// such as MariTalk.
type ChatClient struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func (c *ChatClient) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	if strings.TrimSpace(req.Model) == "" {
		return "", fmt.Errorf("missing model")
	}

	// Chat Completions API (kept minimal: one system + one user message)
	type msg struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	type reqBody struct {
		Model       string  `json:"model"`
		Messages    []msg   `json:"messages"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens,omitempty"`
	}
	body := reqBody{
		Model: req.Model,
		Messages: []msg{
			{Role: "system", Content: "You are a careful assistant. Output exactly what the user asks for."},
			{Role: "user", Content: req.Prompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.NumPredict,
	}

	headers := map[string]string{"Authorization": "Bearer " + c.APIKey}
	respRaw, err := postJSON(ctx, httpClient(c.HTTPClient), strings.TrimRight(c.BaseURL, "/")+"/chat/completions", body, headers)
	if err != nil {
		return "", fmt.Errorf("chat %w", err)
	}

	type choice struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	}
	type respBody struct {
		Choices []choice `json:"choices"`
		Error   *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	var decoded respBody
	if err := json.Unmarshal(respRaw, &decoded); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("chat error: %s", decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("chat response missing choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

// postJSON sends body and returns the raw response; any non-2xx status is an
// error carrying the start of the response body.
func postJSON(ctx context.Context, client *http.Client, url string, body interface{}, headers map[string]string) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respRaw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(string(respRaw), 200))
	}
	return respRaw, nil
}

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: 60 * time.Second}
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
