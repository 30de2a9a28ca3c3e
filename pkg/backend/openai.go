package backend

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIBackend talks to any OpenAI compatible chat completions endpoint:
// OpenAI itself, OpenRouter or a local Ollama server.
type OpenAIBackend struct {
	cfg    Config
	client openai.Client
}

func NewOpenAIBackend(cfg Config) *OpenAIBackend {
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
	for k, v := range cfg.Headers {
		opts = append(opts, option.WithHeader(k, v))
	}
	return &OpenAIBackend{cfg: cfg, client: openai.NewClient(opts...)}
}

func (b *OpenAIBackend) Name() string {
	return b.cfg.Name
}

func (b *OpenAIBackend) Call(ctx context.Context, req Request) (*Response, error) {
	messages := []openai.ChatCompletionMessageParamUnion{}
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			messages = append(messages, openai.SystemMessage(msg.Content))
		case "user":
			messages = append(messages, openai.UserMessage(msg.Content))
		case "assistant":
			messages = append(messages, openai.AssistantMessage(msg.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(b.cfg.Model),
		Messages: messages,
	}
	if maxTokens := firstPositive(req.MaxTokens, b.cfg.MaxTokens); maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}
	if temp := firstPositiveFloat(req.Temperature, b.cfg.Temperature); temp > 0 {
		params.Temperature = openai.Float(temp)
	}

	response, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, b.classify(ctx, err)
	}
	if len(response.Choices) == 0 {
		return nil, emptyFailure(b.cfg.Name)
	}

	content := response.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return nil, emptyFailure(b.cfg.Name)
	}

	return &Response{
		Content: content,
		Usage: &Usage{
			InputTokens:  int(response.Usage.PromptTokens),
			OutputTokens: int(response.Usage.CompletionTokens),
		},
	}, nil
}

func (b *OpenAIBackend) classify(ctx context.Context, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return newFailure(b.cfg.Name, classifyStatus(apiErr.StatusCode, apiErr.Message), apiErr.StatusCode, err)
	}
	return newFailure(b.cfg.Name, classifyTransport(ctx, err), 0, err)
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstPositiveFloat(values ...float64) float64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
