package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// NewProvider creates a Provider from configuration.
// It returns the provider wrapped with timeout, retry and logging middleware.
func NewProvider(ctx context.Context, cfg Config, eventRepo EventRecorder, logger *zap.Logger) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "ollama":
		base, err = NewOllamaProvider(cfg.Ollama)
	case "mock":
		base = NewMockProvider()
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	return Wrap(base, cfg, eventRepo, logger), nil
}

// Wrap applies the standard middleware stack to base:
// caller → timeout → retry → logging → base.
// Each attempt is logged; the timeout bounds all attempts together.
func Wrap(base Provider, cfg Config, eventRepo EventRecorder, logger *zap.Logger) Provider {
	logged := WithLogging(base, cfg.Provider, eventRepo, logger)
	retried := WithRetry(logged, cfg.Retry)
	return WithTimeout(retried, cfg.Timeout)
}
