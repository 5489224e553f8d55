package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation 表示输入不合法，不会触发上游调用。
	ErrValidation = errors.New("invalid message")
	// ErrUpstreamUnavailable 表示重试耗尽后上游仍不可用。
	ErrUpstreamUnavailable = errors.New("upstream classifier unavailable")
)

// ValidationError describes a rejected inbound message.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// UpstreamUnavailableError is returned only when the pipeline is configured to
// surface upstream failures instead of degrading.
type UpstreamUnavailableError struct {
	Attempts int
	Err      error
}

func (e *UpstreamUnavailableError) Error() string {
	return fmt.Sprintf("upstream classifier unavailable after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error {
	return e.Err
}

func (e *UpstreamUnavailableError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}
