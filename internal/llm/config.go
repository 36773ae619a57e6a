package llm

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all LLM provider configuration.
type Config struct {
	// Provider selects which LLM provider to use.
	// Values: "anthropic", "openai", "gemini", "openrouter", "ollama", "mock"
	Provider string `yaml:"provider"`

	Anthropic  AnthropicConfig  `yaml:"anthropic"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Ollama     OllamaConfig     `yaml:"ollama"`
	Retry      RetryConfig      `yaml:"retry"`

	// Timeout is the maximum duration for a single LLM request
	// (including retries). Default: 30s.
	Timeout time.Duration `yaml:"timeout"`
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"` // Default: "claude-haiku"
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`    // Default: "gpt-4o-mini"
	BaseURL string `yaml:"base_url"` // Optional. Override for compatible APIs.
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`    // Default: "gemini-flash"
	BaseURL string `yaml:"base_url"` // Optional. Proxy or test endpoint.
}

// OpenRouterConfig holds OpenRouter-specific configuration.
type OpenRouterConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`    // Default: "google/gemini-2.0-flash-exp"
	BaseURL string `yaml:"base_url"` // Default: "https://openrouter.ai/api/v1"
}

// OllamaConfig holds configuration for a local Ollama server. The host is
// read by the Ollama client from OLLAMA_HOST.
type OllamaConfig struct {
	Model string `yaml:"model"` // Default: "llama3.1"
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
	Multiplier  float64       `yaml:"multiplier"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Retries default to a single attempt: the interview controller falls back
// to the scripted question on any failure, and a participant waiting on a
// retried call is worse than a slightly less adaptive turn.
func DefaultConfig() Config {
	return Config{
		Provider: "anthropic",
		Anthropic: AnthropicConfig{
			Model: "claude-haiku",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Gemini: GeminiConfig{
			Model: "gemini-flash",
		},
		OpenRouter: OpenRouterConfig{
			Model: "google/gemini-2.0-flash-exp",
		},
		Ollama: OllamaConfig{
			Model: "llama3.1",
		},
		Retry: RetryConfig{
			MaxAttempts: 1,
			InitialWait: 1 * time.Second,
			MaxWait:     10 * time.Second,
			Multiplier:  2.0,
		},
		Timeout: 30 * time.Second,
	}
}

// ConfigFromEnv builds a Config from environment variables, falling back
// to defaults for unset values.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.ApplyEnv()
	return cfg
}

// ApplyEnv overlays PARLEY_* environment variables onto c.
func (c *Config) ApplyEnv() {
	if p := os.Getenv("PARLEY_LLM_PROVIDER"); p != "" {
		c.Provider = p
	}

	if k := os.Getenv("PARLEY_ANTHROPIC_API_KEY"); k != "" {
		c.Anthropic.APIKey = k
	}
	if m := os.Getenv("PARLEY_ANTHROPIC_MODEL"); m != "" {
		c.Anthropic.Model = m
	}

	if k := os.Getenv("PARLEY_OPENAI_API_KEY"); k != "" {
		c.OpenAI.APIKey = k
	}
	if m := os.Getenv("PARLEY_OPENAI_MODEL"); m != "" {
		c.OpenAI.Model = m
	}
	if u := os.Getenv("PARLEY_OPENAI_BASE_URL"); u != "" {
		c.OpenAI.BaseURL = u
	}

	if k := os.Getenv("PARLEY_GEMINI_API_KEY"); k != "" {
		c.Gemini.APIKey = k
	}
	if m := os.Getenv("PARLEY_GEMINI_MODEL"); m != "" {
		c.Gemini.Model = m
	}
	if u := os.Getenv("PARLEY_GEMINI_BASE_URL"); u != "" {
		c.Gemini.BaseURL = u
	}

	if k := os.Getenv("PARLEY_OPENROUTER_API_KEY"); k != "" {
		c.OpenRouter.APIKey = k
	}
	if m := os.Getenv("PARLEY_OPENROUTER_MODEL"); m != "" {
		c.OpenRouter.Model = m
	}

	if m := os.Getenv("PARLEY_OLLAMA_MODEL"); m != "" {
		c.Ollama.Model = m
	}

	if v := os.Getenv("PARLEY_LLM_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Retry.MaxAttempts = n
		}
	}
	if v := os.Getenv("PARLEY_LLM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Timeout = d
		}
	}
}

// DiscoverConfig checks standard API key env vars in priority order
// (Anthropic → OpenAI → Gemini → OpenRouter) and returns a Config for the
// first provider whose key is found. Returns (Config{}, false) if none found.
func DiscoverConfig() (Config, bool) {
	cfg := DefaultConfig()

	if k := os.Getenv("ANTHROPIC_API_KEY"); k != "" {
		cfg.Provider = "anthropic"
		cfg.Anthropic.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("OPENAI_API_KEY"); k != "" {
		cfg.Provider = "openai"
		cfg.OpenAI.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		cfg.Provider = "gemini"
		cfg.Gemini.APIKey = k
		return cfg, true
	}
	if k := os.Getenv("OPENROUTER_API_KEY"); k != "" {
		cfg.Provider = "openrouter"
		cfg.OpenRouter.APIKey = k
		return cfg, true
	}
	if os.Getenv("OLLAMA_HOST") != "" {
		cfg.Provider = "ollama"
		return cfg, true
	}

	return Config{}, false
}

// Validate checks that the selected provider has its required API key set.
func (c Config) Validate() error {
	switch c.Provider {
	case "anthropic":
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("PARLEY_ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("PARLEY_OPENAI_API_KEY is required for the openai provider")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("PARLEY_GEMINI_API_KEY is required for the gemini provider")
		}
	case "openrouter":
		if c.OpenRouter.APIKey == "" {
			return fmt.Errorf("PARLEY_OPENROUTER_API_KEY is required for the openrouter provider")
		}
	case "ollama":
		if c.Ollama.Model == "" {
			return fmt.Errorf("PARLEY_OLLAMA_MODEL is required for the ollama provider")
		}
	case "mock":
		// No API key needed.
	default:
		return fmt.Errorf("unknown LLM provider: %q", c.Provider)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	return nil
}
