package generator

import (
	"context"
	"errors"
	"io"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"

	"pdf-translator/internal/config"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/types"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint.
// Chat completions take no PDF bytes, so the document text is extracted locally.
type OpenAIProvider struct {
	chatModel *openai.ChatModel
}

// NewOpenAIProvider creates an eino OpenAI chat model
func NewOpenAIProvider(ctx context.Context, cfg config.GenerationConfig) (*OpenAIProvider, error) {
	maxTokens := cfg.ResolvedMaxOutputTokens()
	temperature := float32(cfg.Temperature)
	chatModelConfig := &openai.ChatModelConfig{
		Model:       cfg.ResolvedModel(),
		APIKey:      cfg.APIKey,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	}
	if cfg.BaseURL != "" {
		chatModelConfig.BaseURL = cfg.BaseURL
	}

	chatModel, err := openai.NewChatModel(ctx, chatModelConfig)
	if err != nil {
		return nil, types.NewAppError(types.ErrConfig, "failed to create chat model", err)
	}
	return &OpenAIProvider{chatModel: chatModel}, nil
}

// Name implements Provider
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Stream implements Provider
func (p *OpenAIProvider) Stream(ctx context.Context, req *Request, onChunk func(string)) error {
	text, err := pdf.ExtractText(req.PDFPath)
	if err != nil {
		return err
	}

	sr, err := p.chatModel.Stream(ctx, []*schema.Message{
		schema.SystemMessage(req.SystemPrompt),
		schema.UserMessage(text + "\n\n" + req.Listing),
	})
	if err != nil {
		return err
	}
	defer sr.Close()

	for {
		msg, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if msg.Content != "" {
			onChunk(msg.Content)
		}
	}
}
