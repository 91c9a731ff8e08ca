package generator

import (
	"context"

	"google.golang.org/genai"

	"pdf-translator/internal/types"
)

// GeminiProvider sends the PDF natively to the Gemini API
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a Gemini API client
func NewGeminiProvider(ctx context.Context, apiKey, baseURL string) (*GeminiProvider, error) {
	clientConfig := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, types.NewAppError(types.ErrConfig, "failed to create Gemini client", err)
	}
	return &GeminiProvider{client: client}, nil
}

// Name implements Provider
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Stream implements Provider
func (p *GeminiProvider) Stream(ctx context.Context, req *Request, onChunk func(string)) error {
	genConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemPrompt, genai.RoleUser),
		MaxOutputTokens:   int32(req.MaxOutputTokens),
		Temperature:       genai.Ptr(float32(req.Temperature)),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(req.PDF, "application/pdf"),
			genai.NewPartFromText(req.Listing),
		}, genai.RoleUser),
	}

	for resp, err := range p.client.Models.GenerateContentStream(ctx, req.Model, contents, genConfig) {
		if err != nil {
			return err
		}
		if text := resp.Text(); text != "" {
			onChunk(text)
		}
	}
	return ctx.Err()
}
