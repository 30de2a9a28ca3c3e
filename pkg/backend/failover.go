package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/harun/shellagent/internal/observability"
	"github.com/harun/shellagent/internal/tracing"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 5 * time.Second
)

// FailoverConfig configures a Failover.
type FailoverConfig struct {
	// MaxAttempts bounds calls to one backend for retryable failures.
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      zerolog.Logger
	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Failover calls backends in priority order. A backend that is rate limited,
// rejects the model, or keeps failing after MaxAttempts is skipped for the
// rest of the run.
type Failover struct {
	mu       sync.Mutex
	backends []Backend
	current  int
	cfg      FailoverConfig
}

func NewFailover(backends []Backend, cfg FailoverConfig) *Failover {
	observability.EnsureRegistered()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	f := &Failover{backends: backends, cfg: cfg}
	if len(backends) > 0 {
		observability.SetActiveBackend(backends[0].Name())
	}
	return f
}

// Name returns the name of the backend currently in use.
func (f *Failover) Name() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current >= len(f.backends) {
		return "none"
	}
	return f.backends[f.current].Name()
}

// Remaining returns how many backends are still usable.
func (f *Failover) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.backends) - f.current
}

// Call returns the first successful reply. It returns the context error when
// ctx ends and an error wrapping ErrBackendsExhausted once no backend is left.
func (f *Failover) Call(ctx context.Context, req Request) (*Response, error) {
	var lastErr error

	for {
		b, ok := f.active()
		if !ok {
			if lastErr == nil {
				return nil, ErrBackendsExhausted
			}
			return nil, fmt.Errorf("%w: %w", ErrBackendsExhausted, lastErr)
		}

		logger := f.cfg.Logger.With().Str("backend", b.Name()).Logger()

		for attempt := 1; ; attempt++ {
			resp, err := f.attempt(ctx, b, req, attempt)
			if err == nil {
				return resp, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err

			var failure *Failure
			errors.As(err, &failure)

			if failure.Permanent() || attempt >= f.cfg.MaxAttempts {
				logger.Warn().
					Err(err).
					Str("kind", string(failure.Kind)).
					Int("attempt", attempt).
					Msg("Backend failed, switching to next backend")
				f.advance(b, failure.Kind)
				break
			}

			logger.Info().
				Str("kind", string(failure.Kind)).
				Int("attempt", attempt).
				Dur("delay", f.cfg.RetryDelay).
				Msg("Retrying backend after error")

			if err := f.cfg.Sleep(ctx, f.cfg.RetryDelay); err != nil {
				return nil, err
			}
		}
	}
}

func (f *Failover) attempt(ctx context.Context, b Backend, req Request, attempt int) (*Response, error) {
	ctx = tracing.WithBackend(ctx, b.Name())
	ctx, span := tracing.StartSpan(ctx, "backend.call",
		attribute.String("backend", b.Name()),
		attribute.Int("attempt", attempt),
		attribute.Int("messages", len(req.Messages)),
	)
	start := time.Now()

	resp, err := b.Call(ctx, req)
	if err == nil && (resp == nil || strings.TrimSpace(resp.Content) == "") {
		err = emptyFailure(b.Name())
	}
	if err != nil {
		var failure *Failure
		if !errors.As(err, &failure) {
			err = newFailure(b.Name(), classifyTransport(ctx, err), 0, err)
		}
	}

	outcome := "ok"
	if err != nil {
		outcome = string(KindOf(err))
	}
	observability.RecordBackendCall(b.Name(), time.Since(start), outcome)
	tracing.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (f *Failover) active() (Backend, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current >= len(f.backends) {
		return nil, false
	}
	return f.backends[f.current], true
}

func (f *Failover) advance(from Backend, reason FailureKind) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current < len(f.backends) && f.backends[f.current] == from {
		f.current++
	}
	observability.RecordFailover(from.Name(), string(reason))
	if f.current < len(f.backends) {
		observability.SetActiveBackend(f.backends[f.current].Name())
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
