package generator

import (
	"context"

	"pdf-translator/internal/config"
	"pdf-translator/internal/types"
)

// Request is one translation call
type Request struct {
	Model           string
	SystemPrompt    string
	PDFPath         string
	PDF             []byte
	Listing         string // auxiliary text input, ListingPrefix included
	MaxOutputTokens int
	Temperature     float64
}

// Provider streams a model response chunk by chunk
type Provider interface {
	Name() string
	// Stream blocks until the response is complete, calling onChunk for every
	// piece of text in arrival order.
	Stream(ctx context.Context, req *Request, onChunk func(chunk string)) error
}

// NewProvider creates the provider selected by cfg.Provider
func NewProvider(ctx context.Context, cfg config.GenerationConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, types.NewAppError(types.ErrConfig, "missing API key (set API_KEY, generation.api_key or --api_key)", nil)
	}

	switch cfg.Provider {
	case "", "gemini":
		return NewGeminiProvider(ctx, cfg.APIKey, cfg.BaseURL)
	case "claude":
		return NewClaudeProvider(cfg.APIKey, cfg.BaseURL), nil
	case "openai":
		return NewOpenAIProvider(ctx, cfg)
	default:
		return nil, types.NewAppErrorWithDetails(types.ErrConfig, "unknown AI provider", cfg.Provider, nil)
	}
}
