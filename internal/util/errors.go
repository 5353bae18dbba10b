package util

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("resource not found")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrConcurrentUpdate      = errors.New("item was modified concurrently, reload and retry")
	ErrGenerationEmptyResult = errors.New("generation produced no usable content")
	ErrNoSkillAvailable      = errors.New("no skill available for selection")
)

// ValidationError carries a reason that is safe to show to the user.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// TransitionError is returned when a content item cannot move to the
// requested status, or when Action is not allowed in its current status.
type TransitionError struct {
	Kind   string
	From   string
	To     string
	Action string
}

func (e *TransitionError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("cannot %s a %s that is %s", e.Action, e.Kind, e.From)
	}
	return fmt.Sprintf("%s cannot move from %s to %s", e.Kind, e.From, e.To)
}

// GenerationError wraps a failure of the content generation backend.
type GenerationError struct {
	Retryable bool
	Err       error
}

func (e *GenerationError) Error() string {
	if e.Retryable {
		return "content generation temporarily unavailable: " + e.Err.Error()
	}
	return "content generation failed: " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsTransition(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}
