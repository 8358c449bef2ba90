// Package llm adapts hosted language model APIs to a single completion call.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/codebuildervaibhav/video-summarizer/internal/types"
)

// Request is one system+user completion
type Request struct {
	System      string
	User        string
	MaxTokens   int64
	Temperature float64
}

// Client completes a prompt and returns the model's text. An empty string with
// a nil error means the model produced no content.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Config selects and configures a provider
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

// New creates the client for cfg.Provider. It fails with types.ErrConfiguration
// when no API key is set.
func New(ctx context.Context, cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", cfg.Provider, types.ErrConfiguration)
	}

	switch cfg.Provider {
	case "", "openai":
		return NewOpenAI(cfg), nil
	case "anthropic":
		return NewAnthropic(cfg), nil
	case "gemini":
		return NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
