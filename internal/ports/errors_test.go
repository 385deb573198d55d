package ports

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigError(t *testing.T) {
	err := NewConfigError("llm.api_key", ErrConfigNotFound)

	assert.Equal(t, "config llm.api_key: configuration not found", err.Error())
	assert.Equal(t, "llm.api_key", err.ConfigKey)
	assert.True(t, errors.Is(err, ErrConfigNotFound))

	var target *ConfigError
	assert.True(t, errors.As(fmtWrap(err), &target))
}

func fmtWrap(err error) error { return errors.Join(errors.New("loading"), err) }
