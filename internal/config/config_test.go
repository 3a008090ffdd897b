package config

import (
	"testing"
	"time"

	"llmusic/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"LLMUSIC_PROVIDER", "LLMUSIC_MODEL", "LLMUSIC_BASE_URL", "LLMUSIC_API_KEY",
		"LLMUSIC_INFERENCIAS", "LLMUSIC_TEMPERATURAS", "LLMUSIC_NUM_PREDICT",
		"LLMUSIC_REQUEST_DELAY", "LLMUSIC_WORKERS", "DATABASE_URL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, "llama3:8b", cfg.LLM.Model)
	assert.Equal(t, "http://localhost:11434", cfg.LLM.BaseURL)
	assert.Equal(t, 5, cfg.Sampling.Samples)
	assert.Equal(t, []float64{0.1, 0.4, 0.7, 0.9, 1.0}, cfg.Sampling.Temperatures)
	assert.Equal(t, 5, cfg.Sampling.NumPredict)
	assert.Equal(t, 100*time.Millisecond, cfg.Sampling.RequestDelay)
	assert.Equal(t, 1, cfg.Sampling.Workers)
	assert.Empty(t, cfg.Database.URL)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("LLMUSIC_PROVIDER", "openai")
	t.Setenv("LLMUSIC_API_KEY", "secret")
	t.Setenv("LLMUSIC_MODEL", "sabia-3")
	t.Setenv("LLMUSIC_INFERENCIAS", "7")
	t.Setenv("LLMUSIC_TEMPERATURAS", " 0.2 , 0.8 ")
	t.Setenv("LLMUSIC_REQUEST_DELAY", "0s")
	t.Setenv("LLMUSIC_WORKERS", "4")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "https://chat.maritaca.ai/api", cfg.LLM.BaseURL)
	assert.Equal(t, 7, cfg.Sampling.Samples)
	assert.Equal(t, []float64{0.2, 0.8}, cfg.Sampling.Temperatures)
	assert.Zero(t, cfg.Sampling.RequestDelay)
	assert.Equal(t, 4, cfg.Sampling.Workers)
}

func TestFromEnvRejectsBadInput(t *testing.T) {
	cases := map[string]map[string]string{
		"bad temperature":  {"LLMUSIC_TEMPERATURAS": "0.1,hot"},
		"missing api key":  {"LLMUSIC_PROVIDER": "openai", "LLMUSIC_API_KEY": ""},
		"unknown provider": {"LLMUSIC_PROVIDER": "bard"},
		"zero samples":     {"LLMUSIC_INFERENCIAS": "0"},
		"zero workers":     {"LLMUSIC_WORKERS": "0"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("LLMUSIC_PROVIDER", "")
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			require.Error(t, err)
			assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
		})
	}
}
