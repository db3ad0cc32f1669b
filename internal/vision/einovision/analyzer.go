// Package einovision implements vision.Analyzer on an OpenAI compatible
// multimodal chat endpoint, such as Qwen2.5-VL served by ModelScope.
package einovision

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"pdf-translator/internal/llm"
	"pdf-translator/internal/vision"
)

// Analyzer sends page images to a vision language model
type Analyzer struct {
	client *llm.Client
}

// New creates an Analyzer from an endpoint configuration
func New(ctx context.Context, cfg llm.Config) (*Analyzer, error) {
	client, err := llm.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Analyzer{client: client}, nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *llm.Client) *Analyzer {
	return &Analyzer{client: client}
}

// Analyze implements vision.Analyzer. The image part precedes the prompt, as
// Qwen-VL expects.
func (a *Analyzer) Analyze(ctx context.Context, req vision.AnalyzeRequest) (string, error) {
	msgs := []*schema.Message{
		schema.SystemMessage(req.SystemPrompt),
		{
			Role: schema.User,
			MultiContent: []schema.ChatMessagePart{
				{
					Type:     schema.ChatMessagePartTypeImageURL,
					ImageURL: &schema.ChatMessageImageURL{URL: req.ImageURL},
				},
				{
					Type: schema.ChatMessagePartTypeText,
					Text: req.Prompt,
				},
			},
		},
	}
	return a.client.Generate(ctx, msgs)
}
