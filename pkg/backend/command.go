package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/harun/shellagent/pkg/conversation"
	"github.com/mattn/go-shellwords"
)

// CommandBackend runs a local model process (for example "ollama run
// codellama") with the rendered conversation on stdin and reads the reply
// from stdout.
type CommandBackend struct {
	cfg  Config
	argv []string
}

func NewCommandBackend(cfg Config) (*CommandBackend, error) {
	argv, err := shellwords.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("invalid backend command %q: %w", cfg.Command, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("backend %s: command is required", cfg.Name)
	}
	return &CommandBackend{cfg: cfg, argv: argv}, nil
}

func (b *CommandBackend) Name() string {
	return b.cfg.Name
}

func (b *CommandBackend) Call(ctx context.Context, req Request) (*Response, error) {
	callCtx := ctx
	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(callCtx, b.argv[0], b.argv[1:]...)
	cmd.Stdin = strings.NewReader(conversation.Render(req.Messages) + "\n")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, b.classify(ctx, callCtx, err, stderr.String())
	}

	content := strings.TrimSpace(stdout.String())
	if content == "" {
		return nil, emptyFailure(b.cfg.Name)
	}
	return &Response{Content: content}, nil
}

func (b *CommandBackend) classify(ctx, callCtx context.Context, err error, stderr string) error {
	if errors.Is(err, exec.ErrNotFound) {
		return newFailure(b.cfg.Name, InvalidModel, 0, err)
	}
	if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return newFailure(b.cfg.Name, Timeout, 0, err)
	}
	if msg := strings.TrimSpace(stderr); msg != "" {
		err = fmt.Errorf("%w: %s", err, msg)
		if kind := classifyStatus(0, msg); kind != NetworkError {
			return newFailure(b.cfg.Name, kind, 0, err)
		}
	}
	return newFailure(b.cfg.Name, ServerError, 0, err)
}
