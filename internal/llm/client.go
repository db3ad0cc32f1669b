// Package llm wraps an OpenAI compatible chat endpoint (ModelScope, OpenAI,
// local servers) behind the eino ChatModel interface.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// Config describes one chat model endpoint
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
	// Temperature is left to the server when nil
	Temperature *float32
	MaxTokens   int
}

// Client sends chat messages and returns the reply text
type Client struct {
	chat        model.BaseChatModel
	model       string
	temperature *float32
	maxTokens   int
}

// New creates a Client backed by eino's OpenAI chat model.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, types.NewAppError(types.ErrConfig, "model name is required", nil)
	}

	chatModelConfig := &openai.ChatModelConfig{
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		Timeout: cfg.Timeout,
	}
	if cfg.BaseURL != "" {
		chatModelConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	chatModel, err := openai.NewChatModel(ctx, chatModelConfig)
	if err != nil {
		return nil, types.NewAppError(types.ErrConfig, "failed to create chat model", err)
	}

	logger.Debug("chat model created",
		logger.String("model", cfg.Model),
		logger.String("baseURL", cfg.BaseURL))
	return NewWithModel(chatModel, cfg), nil
}

// NewWithModel wraps an existing eino chat model.
func NewWithModel(chat model.BaseChatModel, cfg Config) *Client {
	return &Client{
		chat:        chat,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Model returns the model name requests are sent to
func (c *Client) Model() string {
	return c.model
}

// Generate sends msgs and returns the trimmed reply. An empty reply is an
// ErrAPICall error.
func (c *Client) Generate(ctx context.Context, msgs []*schema.Message) (string, error) {
	var opts []model.Option
	if c.temperature != nil {
		opts = append(opts, model.WithTemperature(*c.temperature))
	}
	if c.maxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(c.maxTokens))
	}

	resp, err := c.chat.Generate(ctx, msgs, opts...)
	if err != nil {
		return "", Classify(err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", types.NewAppError(types.ErrAPICall, "empty model response", nil)
	}
	return strings.TrimSpace(resp.Content), nil
}

// Classify wraps an endpoint error into an AppError. Rate limits become
// ErrAPIRateLimit, everything else ErrAPICall. Context errors stay
// reachable through errors.Is.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return err
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") {
		return types.NewAppErrorWithDetails(types.ErrAPIRateLimit, "API rate limit exceeded", "rate limit", err)
	}
	return types.NewAppError(types.ErrAPICall, "API call failed", err)
}

// IsRetryable reports whether a failed call may succeed when repeated.
// Retryable: rate limits, server errors (5xx), timeouts and network errors.
// Not retryable: authentication failures, invalid requests, cancellation.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if types.HasCode(err, types.ErrAPIRateLimit) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"401", "403", "unauthorized", "invalid api key", "authentication", "forbidden", "quota"} {
		if strings.Contains(msg, s) {
			return false
		}
	}
	for _, s := range []string{"status code: 400", "status 400", "bad request", "invalid request"} {
		if strings.Contains(msg, s) {
			return false
		}
	}
	for _, s := range []string{"status code: 5", "status 5", "server error", "bad gateway", "service unavailable",
		"connection", "timeout", "network", "eof", "reset by peer"} {
		if strings.Contains(msg, s) {
			return true
		}
	}

	// Default to retryable for API failures unless explicitly non-retryable
	return types.HasCode(err, types.ErrAPICall)
}
