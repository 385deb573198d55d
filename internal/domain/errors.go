package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors that can occur during verification.
var (
	// ErrEmptyInput indicates that the text to verify is empty or only
	// whitespace.
	ErrEmptyInput = errors.New("input text is empty")

	// ErrInvalidClaimStatus indicates a claim status outside the closed set.
	ErrInvalidClaimStatus = errors.New("invalid claim status")

	// ErrMissingField indicates that a required response field is absent.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidConfiguration indicates that configuration is invalid or
	// incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// DefaultErrorMessage is shown when a verification failure carries no
// message of its own.
const DefaultErrorMessage = "An unexpected error occurred during verification."

// VerificationError is the single error kind surfaced by the verification
// adapter. Transport failures, service failures, malformed bodies and
// missing fields all collapse into it; callers only rely on Message.
type VerificationError struct {
	// Message is the human-readable description shown to the user.
	Message string

	// Err is the underlying cause, kept for logging and errors.Is/As.
	Err error
}

// Error implements the error interface for VerificationError.
func (e *VerificationError) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *VerificationError) Unwrap() error { return e.Err }

// NewVerificationError creates a VerificationError. When message is empty
// the cause's text is used instead.
func NewVerificationError(message string, err error) *VerificationError {
	if message == "" && err != nil {
		message = err.Error()
	}
	return &VerificationError{Message: message, Err: err}
}

// ErrorMessage extracts the user-facing message from err, falling back to
// DefaultErrorMessage when err is nil or carries no text.
func ErrorMessage(err error) string {
	if err == nil {
		return DefaultErrorMessage
	}
	var verr *VerificationError
	if errors.As(err, &verr) {
		if msg := verr.Error(); msg != "" {
			return msg
		}
		return DefaultErrorMessage
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return DefaultErrorMessage
}

// ValidationError lists every defect found in one entity, such as a
// verification response missing several required fields.
type ValidationError struct {
	Entity string
	Errors []string
}

// Error implements the error interface for ValidationError. It names the
// entity and joins every recorded defect.
func (e *ValidationError) Error() string {
	noun := "errors"
	if len(e.Errors) == 1 {
		noun = "error"
	}
	return fmt.Sprintf("validation %s in %s: %s", noun, e.Entity, strings.Join(e.Errors, "; "))
}

// AddError records one defect.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors reports whether any defect was recorded.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates an empty ValidationError for entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{Entity: entity}
}
