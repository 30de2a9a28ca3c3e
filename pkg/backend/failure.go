package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// FailureKind classifies why a backend call did not produce a reply.
type FailureKind string

const (
	NetworkError  FailureKind = "network_error"
	RateLimited   FailureKind = "rate_limited"
	InvalidModel  FailureKind = "invalid_model"
	EmptyResponse FailureKind = "empty_response"
	Timeout       FailureKind = "timeout"
	ServerError   FailureKind = "server_error"
)

// ErrBackendsExhausted is returned once every configured backend has been
// given up on for the run.
var ErrBackendsExhausted = errors.New("all backends failed")

// Failure is a classified backend error.
type Failure struct {
	Kind    FailureKind
	Backend string
	Status  int
	Err     error
}

func (f *Failure) Error() string {
	if f.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", f.Backend, f.Kind, f.Status, f.Err)
	}
	return fmt.Sprintf("%s: %s: %v", f.Backend, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Permanent reports whether the backend should not be used again this run.
func (f *Failure) Permanent() bool {
	return f.Kind == RateLimited || f.Kind == InvalidModel
}

// KindOf returns the failure kind carried by err, or "" when err is not a
// *Failure.
func KindOf(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return ""
}

func newFailure(backend string, kind FailureKind, status int, err error) *Failure {
	return &Failure{Kind: kind, Backend: backend, Status: status, Err: err}
}

func emptyFailure(backend string) *Failure {
	return newFailure(backend, EmptyResponse, 0, errors.New("blank reply"))
}

// classifyStatus maps an HTTP status and error message to a failure kind.
func classifyStatus(status int, message string) FailureKind {
	switch {
	case status == http.StatusTooManyRequests:
		return RateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return Timeout
	case status >= 500:
		return ServerError
	case status >= 400:
		return InvalidModel
	}
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "quota"):
		return RateLimited
	case strings.Contains(lower, "not a valid model") || strings.Contains(lower, "model not found"):
		return InvalidModel
	}
	return NetworkError
}

// classifyTransport maps an error that carries no HTTP status.
func classifyTransport(ctx context.Context, err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return Timeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout
	}
	return classifyStatus(0, err.Error())
}
