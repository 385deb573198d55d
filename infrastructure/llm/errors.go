package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ahrav/go-veriai/internal/ports"
)

var (
	ErrEmptyAPIKey = errors.New("API key cannot be empty")

	// ErrEmptyResponse and ErrNoResponseChoice both match
	// ports.ErrInvalidResponse: a reply with nothing to parse is as useless
	// to verification as a malformed one.
	ErrEmptyResponse    = fmt.Errorf("%w: empty response from API", ports.ErrInvalidResponse)
	ErrNoResponseChoice = fmt.Errorf("%w: no response choices returned", ports.ErrInvalidResponse)
)

// ErrorType classifies a provider failure. Retry and circuit breaking key
// off it.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeAuthentication
	ErrorTypeRateLimit
	ErrorTypeBadRequest
	ErrorTypeNotFound
	ErrorTypeServerError
	// ErrorTypeContentPolicy means the provider refused to answer, for
	// example a Gemini safety block.
	ErrorTypeContentPolicy
	// ErrorTypeNetwork covers transport failures and canceled requests.
	ErrorTypeNetwork
	ErrorTypeTimeout
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeAuthentication: "authentication",
	ErrorTypeRateLimit:      "rate_limit",
	ErrorTypeBadRequest:     "bad_request",
	ErrorTypeNotFound:       "not_found",
	ErrorTypeServerError:    "server_error",
	ErrorTypeContentPolicy:  "content_policy",
	ErrorTypeNetwork:        "network",
	ErrorTypeTimeout:        "timeout",
}

// String returns the snake_case name used in error text and metric labels.
// ErrorTypeUnknown has no name.
func (t ErrorType) String() string { return errorTypeNames[t] }

// Retryable reports whether a failure of this type may succeed on a later
// attempt.
func (t ErrorType) Retryable() bool {
	switch t {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// ProviderError is a provider failure normalized across SDKs.
type ProviderError struct {
	Type     ErrorType
	Provider string
	// StatusCode is the HTTP status, or zero when no response arrived.
	StatusCode int
	// Message is shown to the user as the verification failure text.
	Message      string
	WrappedError error
}

// Error formats as "<provider> error (HTTP <code>) [<type>]: <message>: <cause>",
// omitting the parts that are empty.
func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Provider)
	b.WriteString(" error")
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if name := e.Type.String(); name != "" {
		fmt.Fprintf(&b, " [%s]", name)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.WrappedError != nil {
		fmt.Fprintf(&b, ": %v", e.WrappedError)
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error { return e.WrappedError }

// Is lets callers test a ProviderError against the ports sentinels.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ports.ErrRateLimited:
		return e.Type == ErrorTypeRateLimit
	case ports.ErrServiceUnavailable:
		return e.Type == ErrorTypeServerError
	case ports.ErrTimeout:
		return e.Type == ErrorTypeTimeout
	default:
		return false
	}
}

// IsRetryable reports whether the request that produced e may be retried.
func (e *ProviderError) IsRetryable() bool { return e.Type.Retryable() }

func NewProviderError(provider string, errType ErrorType, statusCode int, message string, wrapped error) *ProviderError {
	return &ProviderError{
		Type:         errType,
		Provider:     provider,
		StatusCode:   statusCode,
		Message:      message,
		WrappedError: wrapped,
	}
}

// IsRetryableError reports whether err is worth retrying. A ProviderError
// decides for itself. Cancellation and an open circuit never retry. Any
// other error is treated as transient.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.IsRetryable()
	}
	return true
}

var statusErrorTypes = map[int]ErrorType{
	http.StatusBadRequest:          ErrorTypeBadRequest,
	http.StatusUnauthorized:        ErrorTypeAuthentication,
	http.StatusForbidden:           ErrorTypeAuthentication,
	http.StatusNotFound:            ErrorTypeNotFound,
	http.StatusRequestTimeout:      ErrorTypeTimeout,
	http.StatusTooManyRequests:     ErrorTypeRateLimit,
	http.StatusInternalServerError: ErrorTypeServerError,
	http.StatusBadGateway:          ErrorTypeServerError,
	http.StatusServiceUnavailable:  ErrorTypeServerError,
	http.StatusGatewayTimeout:      ErrorTypeServerError,
}

// ErrorClassifier turns SDK failures for one provider into ProviderErrors.
type ErrorClassifier struct {
	Provider string
}

// ClassifyHTTPError types an error by HTTP status. Statuses without an
// explicit mapping fall back to their class: other 4xx are bad requests and
// other 5xx server errors.
func (ec *ErrorClassifier) ClassifyHTTPError(statusCode int, message string, err error) *ProviderError {
	errType, ok := statusErrorTypes[statusCode]
	if !ok {
		switch {
		case statusCode >= 500:
			errType = ErrorTypeServerError
		case statusCode >= 400:
			errType = ErrorTypeBadRequest
		default:
			errType = ErrorTypeUnknown
		}
	}

	switch errType {
	case ErrorTypeAuthentication:
		message = ec.Provider + " authentication failed"
	case ErrorTypeRateLimit:
		message = ec.Provider + " rate limit exceeded"
	}
	return NewProviderError(ec.Provider, errType, statusCode, message, err)
}

// ClassifyContextError types a context error. A deadline is a timeout; a
// cancellation is reported as a network failure so it is never mistaken for
// a slow provider.
func (ec *ErrorClassifier) ClassifyContextError(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(ec.Provider, ErrorTypeTimeout, 0, "request timed out", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(ec.Provider, ErrorTypeNetwork, 0, "request canceled", err)
	default:
		return NewProviderError(ec.Provider, ErrorTypeUnknown, 0, "", err)
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
