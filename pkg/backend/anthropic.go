package backend

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/harun/shellagent/pkg/conversation"
)

const defaultAnthropicMaxTokens = 1024

type AnthropicBackend struct {
	cfg    Config
	client anthropic.Client
}

func NewAnthropicBackend(cfg Config) *AnthropicBackend {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &AnthropicBackend{cfg: cfg, client: anthropic.NewClient(opts...)}
}

func (b *AnthropicBackend) Name() string {
	return b.cfg.Name
}

func (b *AnthropicBackend) Call(ctx context.Context, req Request) (*Response, error) {
	messages := []anthropic.MessageParam{}
	for _, msg := range mergeTurns(req.Turns()) {
		if msg.Role == conversation.RoleUser {
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		} else {
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}

	maxTokens := firstPositive(req.MaxTokens, b.cfg.MaxTokens, defaultAnthropicMaxTokens)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.cfg.Model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if system := req.SystemPrompt(); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if temp := firstPositiveFloat(req.Temperature, b.cfg.Temperature); temp > 0 {
		params.Temperature = anthropic.Float(temp)
	}

	response, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return nil, b.classify(ctx, err)
	}

	var content strings.Builder
	for _, block := range response.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			content.WriteString(text.Text)
		}
	}
	if strings.TrimSpace(content.String()) == "" {
		return nil, emptyFailure(b.cfg.Name)
	}

	return &Response{
		Content: content.String(),
		Usage: &Usage{
			InputTokens:  int(response.Usage.InputTokens),
			OutputTokens: int(response.Usage.OutputTokens),
		},
	}, nil
}

func (b *AnthropicBackend) classify(ctx context.Context, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return newFailure(b.cfg.Name, classifyStatus(apiErr.StatusCode, apiErr.Error()), apiErr.StatusCode, err)
	}
	return newFailure(b.cfg.Name, classifyTransport(ctx, err), 0, err)
}
