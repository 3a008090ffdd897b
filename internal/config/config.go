package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"llmusic/internal/errors"

	"github.com/joho/godotenv"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	defaultOllamaURL = "http://localhost:11434"
	defaultChatURL   = "https://chat.maritaca.ai/api"
)

// Config represents the complete application configuration
type Config struct {
	LLM      LLMConfig
	Sampling SamplingConfig
	Themes   ThemesConfig
	Database DatabaseConfig
	LogLevel string
}

// LLMConfig selects and addresses the text-generation endpoint
type LLMConfig struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

// SamplingConfig drives the self-consistency classifier
type SamplingConfig struct {
	Samples      int
	Temperatures []float64
	NumPredict   int
	RequestDelay time.Duration
	Workers      int
}

// ThemesConfig drives theme classification and generation
type ThemesConfig struct {
	Iterations       int
	ExcerptsPerBatch int
	ThemesPerBatch   int
}

// DatabaseConfig holds the optional result store location
type DatabaseConfig struct {
	URL string
}

// Load reads an optional .env file, then builds and validates the
// configuration from environment variables.
func Load() (*Config, error) {
	// A missing .env is the normal case.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() (*Config, error) {
	temps, err := parseTemperatures(getEnvOrDefault("LLMUSIC_TEMPERATURAS", "0.1,0.4,0.7,0.9,1.0"))
	if err != nil {
		return nil, err
	}

	provider := strings.ToLower(getEnvOrDefault("LLMUSIC_PROVIDER", ProviderOllama))
	baseURL := defaultOllamaURL
	if provider == ProviderOpenAI {
		baseURL = defaultChatURL
	}

	cfg := &Config{
		LLM: LLMConfig{
			Provider: provider,
			Model:    getEnvOrDefault("LLMUSIC_MODEL", "llama3:8b"),
			BaseURL:  getEnvOrDefault("LLMUSIC_BASE_URL", baseURL),
			APIKey:   os.Getenv("LLMUSIC_API_KEY"),
			Timeout:  getEnvDurationOrDefault("LLMUSIC_TIMEOUT", 60*time.Second),
		},
		Sampling: SamplingConfig{
			Samples:      getEnvIntOrDefault("LLMUSIC_INFERENCIAS", 5),
			Temperatures: temps,
			NumPredict:   getEnvIntOrDefault("LLMUSIC_NUM_PREDICT", 5), // replies are a single digit
			RequestDelay: getEnvDurationOrDefault("LLMUSIC_REQUEST_DELAY", 100*time.Millisecond),
			Workers:      getEnvIntOrDefault("LLMUSIC_WORKERS", 1),
		},
		Themes: ThemesConfig{
			Iterations:       getEnvIntOrDefault("LLMUSIC_ITERACOES", 3),
			ExcerptsPerBatch: getEnvIntOrDefault("LLMUSIC_TRECHOS_LOTE", 5),
			ThemesPerBatch:   getEnvIntOrDefault("LLMUSIC_TEMAS_POR_LOTE", 3),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return cfg, nil
}

// Validate checks the invariants the commands rely on
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderOllama:
	case ProviderOpenAI:
		if c.LLM.APIKey == "" {
			return errors.ConfigInvalid("LLMUSIC_API_KEY is required for the openai provider")
		}
	default:
		return errors.ConfigInvalid("unknown LLMUSIC_PROVIDER " + c.LLM.Provider)
	}
	if strings.TrimSpace(c.LLM.Model) == "" {
		return errors.ConfigInvalid("LLMUSIC_MODEL is required")
	}
	if c.Sampling.Samples < 1 {
		return errors.ConfigInvalid("LLMUSIC_INFERENCIAS must be at least 1")
	}
	if c.Sampling.Workers < 1 {
		return errors.ConfigInvalid("LLMUSIC_WORKERS must be at least 1")
	}
	if c.Sampling.NumPredict < 1 {
		return errors.ConfigInvalid("LLMUSIC_NUM_PREDICT must be at least 1")
	}
	if c.Themes.Iterations < 1 || c.Themes.ExcerptsPerBatch < 1 || c.Themes.ThemesPerBatch < 1 {
		return errors.ConfigInvalid("theme iteration and batch sizes must be at least 1")
	}
	return nil
}

// parseTemperatures reads a comma separated list; an empty list is allowed
// and makes every sample use temperature 0.
func parseTemperatures(raw string) ([]float64, error) {
	var temps []float64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, errors.ConfigInvalid("invalid temperature in LLMUSIC_TEMPERATURAS: " + part)
		}
		temps = append(temps, t)
	}
	return temps, nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
