// Package executor runs shell commands proposed by the agent, streaming their
// combined output while accumulating it for the transcript.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/harun/shellagent/internal/observability"
	"github.com/harun/shellagent/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

// Config configures an Executor.
type Config struct {
	// Shell runs every command as "Shell -c command". Empty selects bash, or
	// /bin/sh when bash is not installed.
	Shell string
	Dir   string
	Env   []string
	// Timeout kills the command after the given duration. Zero disables it.
	Timeout time.Duration
	// WaitDelay bounds how long Run waits for output after the process is
	// gone, for children that detach and keep the pipe open.
	WaitDelay time.Duration
	PingCount int
	// Hosts, when set, rewrites host names to addresses before running.
	Hosts  *HostRewriter
	Output io.Writer
	Logger zerolog.Logger
}

// Result is the outcome of a single command.
type Result struct {
	Command  string
	Lines    []string
	TimedOut bool
	ExitCode int
	Duration time.Duration
}

// Text returns the trimmed transcript.
func (r *Result) Text() string {
	return strings.TrimSpace(strings.Join(r.Lines, "\n"))
}

type Executor struct {
	cfg Config
}

func New(cfg Config) *Executor {
	if cfg.Shell == "" {
		cfg.Shell = defaultShell()
	}
	if cfg.PingCount <= 0 {
		cfg.PingCount = DefaultPingCount
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = 2 * time.Second
	}
	if cfg.Output == nil {
		cfg.Output = io.Discard
	}
	return &Executor{cfg: cfg}
}

// Prepare applies the ping bound and host rewrites to command.
func (e *Executor) Prepare(ctx context.Context, command string) string {
	prepared := BoundPings(command, e.cfg.PingCount)
	if e.cfg.Hosts != nil {
		prepared = e.cfg.Hosts.Rewrite(ctx, prepared)
	}
	if prepared != command {
		e.cfg.Logger.Debug().Str("original", command).Str("prepared", prepared).Msg("Command rewritten")
	}
	return prepared
}

// Run prepares and executes command, blocking until the process has been
// reaped. A timeout is reported in the Result, not as an error. Context
// cancellation kills the process group and returns the partial Result with
// the context error.
func (e *Executor) Run(ctx context.Context, command string) (*Result, error) {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, ErrEmptyCommand
	}

	prepared := e.Prepare(ctx, command)
	ctx, span := tracing.StartSpan(ctx, "command.run", attribute.String("command", prepared))
	logger := tracing.LoggerFromContext(ctx, e.cfg.Logger)

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if e.cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
	}
	defer cancel()

	out := newLineCollector(e.cfg.Output)
	cmd := exec.CommandContext(runCtx, e.cfg.Shell, shellArgs(prepared)...)
	configureCommandProcess(cmd)
	cmd.Cancel = func() error { return terminateCommandProcess(cmd) }
	cmd.WaitDelay = e.cfg.WaitDelay
	cmd.Dir = e.cfg.Dir
	if len(e.cfg.Env) > 0 {
		cmd.Env = e.cfg.Env
	}
	cmd.Stdout = out
	cmd.Stderr = out

	start := time.Now()
	runErr := cmd.Run()
	out.flush()

	result := &Result{
		Command:  prepared,
		Lines:    out.lines(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		result.ExitCode = -1
	}

	var err error
	switch {
	case ctx.Err() != nil:
		err = ctx.Err()
	case e.cfg.Timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded):
		result.TimedOut = true
		result.Lines = append(result.Lines, TimeoutMarker)
		fmt.Fprintln(e.cfg.Output, TimeoutMarker)
	case runErr != nil && exitErr == nil && cmd.ProcessState == nil:
		// The shell never started; report it in the transcript.
		line := fmt.Sprintf("failed to start command: %v", runErr)
		result.Lines = append(result.Lines, line)
		fmt.Fprintln(e.cfg.Output, line)
	}

	observability.RecordCommand(result.Duration, result.ExitCode, result.TimedOut, err)
	span.SetAttributes(
		attribute.Int("exit_code", result.ExitCode),
		attribute.Bool("timed_out", result.TimedOut),
	)
	tracing.EndSpan(span, err)

	logger.Debug().
		Str("command", prepared).
		Int("exit_code", result.ExitCode).
		Bool("timed_out", result.TimedOut).
		Dur("duration", result.Duration).
		Msg("Command executed")

	return result, err
}

// lineCollector splits the combined output stream into lines, echoing each
// complete line to the display as soon as it arrives.
type lineCollector struct {
	mu      sync.Mutex
	display io.Writer
	partial bytes.Buffer
	done    []string
}

func newLineCollector(display io.Writer) *lineCollector {
	return &lineCollector{display: display}
}

func (c *lineCollector) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.partial.Write(p)
	for {
		data := c.partial.Bytes()
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		c.emit(string(data[:i]))
		c.partial.Next(i + 1)
	}
	return len(p), nil
}

func (c *lineCollector) emit(line string) {
	line = strings.TrimRight(line, "\r")
	c.done = append(c.done, line)
	fmt.Fprintln(c.display, line)
}

func (c *lineCollector) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.partial.Len() > 0 {
		c.emit(c.partial.String())
		c.partial.Reset()
	}
}

func (c *lineCollector) lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.done))
	copy(out, c.done)
	return out
}
