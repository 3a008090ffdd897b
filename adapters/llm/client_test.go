package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"llmusic/internal/config"
	"llmusic/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTrip func(*http.Request) (*http.Response, error)

func (rt roundTrip) RoundTrip(req *http.Request) (*http.Response, error) {
	return rt(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}
}

func TestOllamaGeneratePayload(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"response":" 4\n","done":true}`))
	}))
	defer srv.Close()

	client := &OllamaClient{BaseURL: srv.URL + "/"}
	out, err := client.Generate(context.Background(), ports.GenerateRequest{
		Model:       "llama3:8b",
		Prompt:      "rate it",
		Temperature: 0.7,
		NumPredict:  5,
	})
	require.NoError(t, err)
	assert.Equal(t, " 4\n", out)

	assert.Equal(t, "llama3:8b", got["model"])
	assert.Equal(t, "rate it", got["prompt"])
	assert.Equal(t, false, got["stream"])
	opts := got["options"].(map[string]interface{})
	assert.Equal(t, 0.7, opts["temperature"])
	assert.Equal(t, float64(5), opts["num_predict"])
}

func TestOllamaGenerateErrors(t *testing.T) {
	cases := map[string]roundTrip{
		"non-2xx": func(*http.Request) (*http.Response, error) {
			return jsonResponse(500, "model not loaded"), nil
		},
		"error field": func(*http.Request) (*http.Response, error) {
			return jsonResponse(200, `{"error":"model 'x' not found"}`), nil
		},
		"bad json": func(*http.Request) (*http.Response, error) {
			return jsonResponse(200, `not json`), nil
		},
		"connection refused": func(*http.Request) (*http.Response, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}
	for name, rt := range cases {
		t.Run(name, func(t *testing.T) {
			client := &OllamaClient{BaseURL: "http://ollama.test", HTTPClient: &http.Client{Transport: rt}}
			_, err := client.Generate(context.Background(), ports.GenerateRequest{Model: "m", Prompt: "p"})
			assert.Error(t, err)
		})
	}
}

func TestOllamaErrorBodyTruncatedOnRuneBoundary(t *testing.T) {
	rt := roundTrip(func(*http.Request) (*http.Response, error) {
		return jsonResponse(500, strings.Repeat("ç", 300)), nil
	})
	client := &OllamaClient{BaseURL: "http://ollama.test", HTTPClient: &http.Client{Transport: rt}}
	_, err := client.Generate(context.Background(), ports.GenerateRequest{Model: "m", Prompt: "p"})
	require.Error(t, err)
	assert.True(t, utf8.ValidString(err.Error()))
	assert.Contains(t, err.Error(), strings.Repeat("ç", 200))
	assert.NotContains(t, err.Error(), strings.Repeat("ç", 201))

	assert.Equal(t, "can", truncate("canção", 3))
	assert.Equal(t, "canç", truncate("canção", 4))
	assert.Equal(t, "é", truncate("é", 1))
}

func TestGenerateRequiresModel(t *testing.T) {
	_, err := (&OllamaClient{BaseURL: "http://unused"}).Generate(context.Background(), ports.GenerateRequest{Prompt: "p"})
	assert.Error(t, err)
	_, err = (&ChatClient{BaseURL: "http://unused"}).Generate(context.Background(), ports.GenerateRequest{Prompt: "p"})
	assert.Error(t, err)
}

func TestChatGenerate(t *testing.T) {
	client := &ChatClient{
		APIKey:  "key",
		BaseURL: "https://chat.test/api",
		HTTPClient: &http.Client{Transport: roundTrip(func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "https://chat.test/api/chat/completions", req.URL.String())
			assert.Equal(t, "Bearer key", req.Header.Get("Authorization"))
			body, _ := io.ReadAll(req.Body)
			assert.Contains(t, string(body), `"max_tokens":5`)
			assert.Contains(t, string(body), `"temperature":0.4`)
			return jsonResponse(200, `{"choices":[{"message":{"role":"assistant","content":"5"}}]}`), nil
		})},
	}
	out, err := client.Generate(context.Background(), ports.GenerateRequest{Model: "sabia-3", Prompt: "p", Temperature: 0.4, NumPredict: 5})
	require.NoError(t, err)
	assert.Equal(t, "5", out)
}

func TestChatGenerateErrorPayload(t *testing.T) {
	client := &ChatClient{
		BaseURL: "https://chat.test/api",
		HTTPClient: &http.Client{Transport: roundTrip(func(*http.Request) (*http.Response, error) {
			return jsonResponse(200, `{"error":{"message":"quota"}}`), nil
		})},
	}
	_, err := client.Generate(context.Background(), ports.GenerateRequest{Model: "m", Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota")
}

func TestNewGenerator(t *testing.T) {
	g, err := NewGenerator(config.LLMConfig{Provider: config.ProviderOllama, BaseURL: "http://x"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaClient{}, g)

	g, err = NewGenerator(config.LLMConfig{Provider: config.ProviderOpenAI, BaseURL: "http://x", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &ChatClient{}, g)

	_, err = NewGenerator(config.LLMConfig{Provider: config.ProviderOpenAI})
	assert.Error(t, err)
	_, err = NewGenerator(config.LLMConfig{Provider: "bard"})
	assert.Error(t, err)
}
