package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrRateLimit is returned when the backend answers 429.
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrInvalidResponse means the backend answered with content that is not
// the requested JSON.
type ErrInvalidResponse struct {
	Content json.RawMessage
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid LLM response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrProviderUnavailable means the backend is down or unreachable.
type ErrProviderUnavailable struct {
	Err error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("LLM provider unavailable: %v", e.Err)
	}
	return "LLM provider unavailable"
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrMaxTokensExceeded means the response was cut off at MaxTokens.
type ErrMaxTokensExceeded struct {
	Content json.RawMessage
}

func (e *ErrMaxTokensExceeded) Error() string {
	return "LLM response truncated: max tokens exceeded"
}

// ErrAttemptTimeout means a single attempt ran out of time while the
// caller was still waiting.
type ErrAttemptTimeout struct {
	After time.Duration
}

func (e *ErrAttemptTimeout) Error() string {
	return fmt.Sprintf("LLM attempt timed out after %s", e.After)
}

func (e *ErrAttemptTimeout) Unwrap() error { return context.DeadlineExceeded }

// IsTransient reports whether err is worth one more attempt.
func IsTransient(err error) bool {
	var (
		rl      *ErrRateLimit
		unavail *ErrProviderUnavailable
		timeout *ErrAttemptTimeout
	)
	return errors.As(err, &rl) || errors.As(err, &unavail) || errors.As(err, &timeout)
}
