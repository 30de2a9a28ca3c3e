// Package backend hides model providers behind a single call contract and
// recovers from their failures by retrying or moving to the next provider.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/harun/shellagent/pkg/conversation"
)

// Backend produces a reply for a conversation view or a *Failure.
type Backend interface {
	Call(ctx context.Context, req Request) (*Response, error)
	// Name identifies the configured backend in logs and metrics.
	Name() string
}

// Request is the bounded conversation view sent to a backend. Messages[0]
// is the system entry.
type Request struct {
	Messages    []conversation.Entry
	MaxTokens   int
	Temperature float64
}

// SystemPrompt returns the content of the leading system entry, if any.
func (r Request) SystemPrompt() string {
	if len(r.Messages) > 0 && r.Messages[0].Role == conversation.RoleSystem {
		return r.Messages[0].Content
	}
	return ""
}

// Turns returns the non-system messages.
func (r Request) Turns() []conversation.Entry {
	out := make([]conversation.Entry, 0, len(r.Messages))
	for _, m := range r.Messages {
		if m.Role != conversation.RoleSystem {
			out = append(out, m)
		}
	}
	return out
}

type Response struct {
	Content string
	Usage   *Usage
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Config describes one backend.
type Config struct {
	Name        string
	Kind        string
	Model       string
	APIKey      string
	BaseURL     string
	Command     string
	Headers     map[string]string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

const (
	KindOpenAI    = "openai"
	KindAnthropic = "anthropic"
	KindGemini    = "gemini"
	KindCommand   = "command"
)

// New builds the backend described by cfg.
func New(ctx context.Context, cfg Config) (Backend, error) {
	if cfg.Name == "" {
		cfg.Name = cfg.Kind
	}
	switch cfg.Kind {
	case KindOpenAI:
		return NewOpenAIBackend(cfg), nil
	case KindAnthropic:
		return NewAnthropicBackend(cfg), nil
	case KindGemini:
		return NewGeminiBackend(ctx, cfg)
	case KindCommand:
		return NewCommandBackend(cfg)
	default:
		return nil, fmt.Errorf("unsupported backend kind: %s", cfg.Kind)
	}
}

// mergeTurns drops leading assistant turns and merges consecutive turns of
// the same role, for providers that require strictly alternating turns
// starting with the user.
func mergeTurns(turns []conversation.Entry) []conversation.Entry {
	out := make([]conversation.Entry, 0, len(turns))
	for _, t := range turns {
		if len(out) == 0 && t.Role != conversation.RoleUser {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == t.Role {
			out[n-1].Content += "\n\n" + t.Content
			continue
		}
		out = append(out, t)
	}
	return out
}
