package generator

import (
	"context"
	"encoding/base64"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// ClaudeProvider sends the PDF as a base64 document block to the Anthropic API
type ClaudeProvider struct {
	client anthropic.Client
}

// NewClaudeProvider creates an Anthropic API client
func NewClaudeProvider(apiKey, baseURL string) *ClaudeProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &ClaudeProvider{client: anthropic.NewClient(opts...)}
}

// Name implements Provider
func (p *ClaudeProvider) Name() string {
	return "claude"
}

// Stream implements Provider
func (p *ClaudeProvider) Stream(ctx context.Context, req *Request, onChunk func(string)) error {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(req.Model),
		MaxTokens:   int64(req.MaxOutputTokens),
		Temperature: anthropic.Float(req.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: req.SystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{
					Data: base64.StdEncoding.EncodeToString(req.PDF),
				}),
				anthropic.NewTextBlock(req.Listing),
			),
		},
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		event := stream.Current()
		delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		if text, ok := delta.Delta.AsAny().(anthropic.TextDelta); ok && text.Text != "" {
			onChunk(text.Text)
		}
	}
	return stream.Err()
}
