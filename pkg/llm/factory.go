package llm

import (
	"context"
	"fmt"
	"time"
)

// ProviderConfig is the connection data for one backend.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type Config struct {
	// Provider is one of openai, deepseek, anthropic, gemini or mock.
	Provider string
	ProviderConfig
	Retry RetryConfig
}

// NewProvider builds the configured backend wrapped as
// caller -> retry -> logging -> backend.
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	var (
		base Provider
		err  error
	)

	switch cfg.Provider {
	case "openai":
		base, err = NewOpenAIProvider(cfg.ProviderConfig)
	case "deepseek":
		pc := cfg.ProviderConfig
		if pc.BaseURL == "" {
			pc.BaseURL = "https://api.deepseek.com/v1"
		}
		if pc.Model == "" {
			pc.Model = "deepseek-chat"
		}
		base, err = NewOpenAIProvider(pc)
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.ProviderConfig)
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.ProviderConfig)
	case "mock":
		base = NewMockProvider()
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = DefaultRetryConfig()
	}
	return WithRetry(WithLogging(base), retry), nil
}

// RetryConfigFrom builds the single-retry policy used by the engine.
func RetryConfigFrom(attemptTimeout, wait time.Duration) RetryConfig {
	cfg := DefaultRetryConfig()
	if attemptTimeout > 0 {
		cfg.AttemptTimeout = attemptTimeout
	}
	if wait > 0 {
		cfg.Wait = wait
	}
	return cfg
}
