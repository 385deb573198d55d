package ports

import (
	"errors"
	"fmt"
)

// Sentinels shared by every adapter. Provider and middleware errors match
// them through errors.Is, so callers never depend on an SDK error type.
var (
	ErrRateLimited        = errors.New("rate limited")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timed out")
	// ErrInvalidResponse covers replies that cannot be used at all: empty,
	// not JSON, or of the wrong shape.
	ErrInvalidResponse = errors.New("invalid response")
	ErrSessionNotFound = errors.New("session not found")
	ErrConfigNotFound  = errors.New("configuration not found")
)

// ConfigError ties a configuration failure to the dotted key that caused
// it, for example "llm.api_key".
type ConfigError struct {
	ConfigKey string
	Err       error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.ConfigKey, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func NewConfigError(key string, err error) *ConfigError {
	return &ConfigError{ConfigKey: key, Err: err}
}
