package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/harun/shellagent/pkg/conversation"
	"google.golang.org/genai"
)

type GeminiBackend struct {
	cfg    Config
	client *genai.Client
}

func NewGeminiBackend(ctx context.Context, cfg Config) (*GeminiBackend, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiBackend{cfg: cfg, client: client}, nil
}

func (b *GeminiBackend) Name() string {
	return b.cfg.Name
}

func (b *GeminiBackend) Call(ctx context.Context, req Request) (*Response, error) {
	contents := []*genai.Content{}
	for _, msg := range mergeTurns(req.Turns()) {
		var role genai.Role = genai.RoleUser
		if msg.Role == conversation.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	config := &genai.GenerateContentConfig{}
	if system := req.SystemPrompt(); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if maxTokens := firstPositive(req.MaxTokens, b.cfg.MaxTokens); maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens)
	}
	if temp := firstPositiveFloat(req.Temperature, b.cfg.Temperature); temp > 0 {
		config.Temperature = genai.Ptr(float32(temp))
	}

	response, err := b.client.Models.GenerateContent(ctx, b.cfg.Model, contents, config)
	if err != nil {
		return nil, b.classify(ctx, err)
	}

	content := response.Text()
	if strings.TrimSpace(content) == "" {
		return nil, emptyFailure(b.cfg.Name)
	}

	resp := &Response{Content: content}
	if u := response.UsageMetadata; u != nil {
		resp.Usage = &Usage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
		}
	}
	return resp, nil
}

func (b *GeminiBackend) classify(ctx context.Context, err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return newFailure(b.cfg.Name, classifyStatus(apiErr.Code, apiErr.Message), apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return newFailure(b.cfg.Name, classifyStatus(apiErrPtr.Code, apiErrPtr.Message), apiErrPtr.Code, err)
	}
	return newFailure(b.cfg.Name, classifyTransport(ctx, err), 0, err)
}
