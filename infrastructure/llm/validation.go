package llm

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"time"
)

// Accepted ranges for request options and client settings.
const (
	MinTemperature = 0.0
	// MaxTemperature is 2.0 so Gemini's wider range is not clipped.
	MaxTemperature = 2.0
	MinTopP        = 0.0
	MaxTopP        = 1.0
	MinTimeout     = 1 * time.Second
	MaxTimeout     = 10 * time.Minute
)

// ErrInvalidBaseURL is wrapped by every ValidateBaseURL failure.
var ErrInvalidBaseURL = errors.New("invalid base URL")

// IsValidTemperature reports whether val lies in [MinTemperature, MaxTemperature].
func IsValidTemperature(val float64) bool {
	return val >= MinTemperature && val <= MaxTemperature
}

// IsValidTopP reports whether val lies in [MinTopP, MaxTopP].
func IsValidTopP(val float64) bool {
	return val >= MinTopP && val <= MaxTopP
}

func IsPositiveInt(val int) bool { return val > 0 }

func IsNonEmptyString(val string) bool { return val != "" }

// optionOr reads key from opts and converts it with convert. def is returned
// when the key is absent, the value has the wrong type, or valid rejects it.
// A nil valid accepts any converted value.
func optionOr[T any](opts map[string]any, key string, def T, convert func(any) (T, bool), valid func(T) bool) T {
	raw, ok := opts[key]
	if !ok {
		return def
	}
	v, ok := convert(raw)
	if !ok || (valid != nil && !valid(v)) {
		return def
	}
	return v
}

// ExtractOptionalString reads a string option.
func ExtractOptionalString(opts map[string]any, key, def string, valid func(string) bool) string {
	return optionOr(opts, key, def, asString, valid)
}

// ExtractOptionalInt reads an integer option. Numbers decoded from JSON
// arrive as float64 and are accepted.
func ExtractOptionalInt(opts map[string]any, key string, def int, valid func(int) bool) int {
	return optionOr(opts, key, def, SafeInt, valid)
}

// ExtractOptionalFloat64 reads a floating-point option. NaN is rejected.
func ExtractOptionalFloat64(opts map[string]any, key string, def float64, valid func(float64) bool) float64 {
	return optionOr(opts, key, def, asFloat64, valid)
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asFloat64(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, false
	}
	return f, !math.IsNaN(f)
}

// SafeInt converts a numeric option to int. Values that are NaN or do not
// fit in an int are rejected.
func SafeInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		if int64(int(v)) != v {
			return 0, false
		}
		return int(v), true
	case float32:
		return SafeInt(float64(v))
	case float64:
		if math.IsNaN(v) || v > math.MaxInt || v < math.MinInt {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}

// ValidateBaseURL checks that baseURL is an absolute http(s) URL and returns
// it normalized. An empty baseURL selects the provider's endpoint and is
// returned unchanged.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}
	switch {
	case u.Scheme == "":
		return "", fmt.Errorf("%w: %q has no scheme", ErrInvalidBaseURL, baseURL)
	case u.Scheme != "http" && u.Scheme != "https":
		return "", fmt.Errorf("%w: scheme %q is not http or https", ErrInvalidBaseURL, u.Scheme)
	case u.Host == "":
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidBaseURL, baseURL)
	}
	return u.String(), nil
}

// ValidateTimeout clamps timeout into [MinTimeout, MaxTimeout]. A
// non-positive timeout returns zero, leaving the provider's default.
func ValidateTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 0
	}
	return min(max(timeout, MinTimeout), MaxTimeout)
}
