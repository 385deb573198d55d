// Package application wires the verification core into sessions and exposes
// the state controller that display surfaces drive.
package application

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/ahrav/go-veriai/infrastructure/llm"
	"github.com/ahrav/go-veriai/infrastructure/verification"
	"github.com/ahrav/go-veriai/internal/ports"
)

// EnvPrefix is prepended to every environment override, e.g.
// VERIAI_LLM_API_KEY for llm.api_key.
const EnvPrefix = "VERIAI"

// AppConfig is the complete service configuration. Values come from, in
// increasing priority: defaults, an optional YAML file and VERIAI_*
// environment variables.
type AppConfig struct {
	Server       ServerConfig        `mapstructure:"server" yaml:"server"`
	LLM          LLMConfig           `mapstructure:"llm" yaml:"llm"`
	Verification verification.Config `mapstructure:"verification" yaml:"verification"`
	Sessions     SessionConfig       `mapstructure:"sessions" yaml:"sessions"`
	Log          LogConfig           `mapstructure:"log" yaml:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	// Addr is the listen address in host:port form; the host may be empty.
	Addr string `mapstructure:"addr" yaml:"addr" validate:"required,hostname_port"`
	// CORSOrigins lists browser origins allowed to call the API. Empty
	// allows none; "*" allows all.
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	// MaxInputBytes caps the size of text accepted for verification.
	MaxInputBytes int `mapstructure:"max_input_bytes" yaml:"max_input_bytes" validate:"min=1"`
	// ReadHeaderTimeout bounds how long a client may take to send headers.
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout" validate:"min=0"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"min=0"`
}

// LLMConfig selects the provider and the resilience chain around it.
type LLMConfig struct {
	// Provider is a catalog name from llm.KnownProviders.
	Provider string `mapstructure:"provider" yaml:"provider" validate:"required,llmprovider"`
	// Model overrides the provider default.
	Model string `mapstructure:"model" yaml:"model"`
	// APIKey is the provider credential. It is never written back out.
	APIKey  string `mapstructure:"api_key" yaml:"-"`
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`

	// Timeout bounds a single provider call. Zero disables the timeout.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"min=0"`

	// MaxRetries is the number of extra attempts after a retryable failure.
	// The default of zero keeps verification to exactly one call.
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries" validate:"min=0,max=10"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" yaml:"retry_base_delay" validate:"min=0"`
	RetryMaxDelay  time.Duration `mapstructure:"retry_max_delay" yaml:"retry_max_delay" validate:"min=0"`

	// RateLimit is the sustained request rate per second. Zero disables
	// rate limiting.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit" validate:"min=0"`
	RateBurst int     `mapstructure:"rate_burst" yaml:"rate_burst" validate:"min=0"`

	// BreakerMaxFailures opens the circuit after this many consecutive
	// failures. Zero disables the circuit breaker.
	BreakerMaxFailures int           `mapstructure:"breaker_max_failures" yaml:"breaker_max_failures" validate:"min=0"`
	BreakerCooldown    time.Duration `mapstructure:"breaker_cooldown" yaml:"breaker_cooldown" validate:"min=0"`
}

// SessionConfig controls interactive session lifetime.
type SessionConfig struct {
	// TTL is how long an untouched session survives.
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl" validate:"gt=0"`
	// CleanupInterval is how often expired sessions are swept.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval" validate:"min=0"`
	// MaxSessions caps live sessions. Zero means unlimited.
	MaxSessions int `mapstructure:"max_sessions" yaml:"max_sessions" validate:"min=0"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=json console"`
}

// SetDefaults registers every configuration key with its default value.
// Registering keys also lets AutomaticEnv resolve them during Unmarshal. The
// env prefix must be set first.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.max_input_bytes", 64*1024)
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("llm.provider", "google")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_retries", 0)
	v.SetDefault("llm.retry_base_delay", 500*time.Millisecond)
	v.SetDefault("llm.retry_max_delay", 10*time.Second)
	v.SetDefault("llm.rate_limit", 2.0)
	v.SetDefault("llm.rate_burst", 4)
	v.SetDefault("llm.breaker_max_failures", 5)
	v.SetDefault("llm.breaker_cooldown", 30*time.Second)

	def := verification.DefaultConfig()
	v.SetDefault("verification.prompt_template", def.PromptTemplate)
	v.SetDefault("verification.max_tokens", def.MaxTokens)
	v.SetDefault("verification.web_search", def.WebSearch)
	v.SetDefault("verification.top_k", def.TopK)
	// Sampling pointers have no default; binding the keys lets the env set them.
	_ = v.BindEnv("verification.temperature")
	_ = v.BindEnv("verification.top_p")
	_ = v.BindEnv("verification.seed")

	v.SetDefault("sessions.ttl", 30*time.Minute)
	v.SetDefault("sessions.cleanup_interval", time.Minute)
	v.SetDefault("sessions.max_sessions", 10000)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// LoadConfig reads configuration into v and returns the validated result.
// path may be empty, in which case only defaults and environment apply.
func LoadConfig(v *viper.Viper, path string) (*AppConfig, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
				return nil, ports.NewConfigError("config_file", fmt.Errorf("%w: %s", ports.ErrConfigNotFound, path))
			}
			return nil, ports.NewConfigError("config_file", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, ports.NewConfigError("", fmt.Errorf("failed to decode configuration: %w", err))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section. The first failing field is reported as a
// ports.ConfigError keyed by its dotted configuration path.
func (c *AppConfig) Validate() error {
	v, err := newConfigValidator()
	if err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return ports.NewConfigError(configKey(fe.Namespace()),
				fmt.Errorf("failed %q validation (value %v)", fe.Tag(), redact(fe)))
		}
		return ports.NewConfigError("", err)
	}

	if c.LLM.RetryMaxDelay > 0 && c.LLM.RetryBaseDelay > c.LLM.RetryMaxDelay {
		return ports.NewConfigError("llm.retry_base_delay",
			fmt.Errorf("must not exceed llm.retry_max_delay (%s)", c.LLM.RetryMaxDelay))
	}
	return nil
}

// ProviderConfig returns the catalog entry for the configured provider.
func (c *AppConfig) ProviderConfig() (llm.ProviderConfig, error) {
	return llm.LookupProvider(c.LLM.Provider)
}

func newConfigValidator() (*validator.Validate, error) {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		return name
	})
	if err := v.RegisterValidation("llmprovider", validateProvider); err != nil {
		return nil, fmt.Errorf("failed to register provider validator: %w", err)
	}
	return v, nil
}

func validateProvider(fl validator.FieldLevel) bool {
	_, err := llm.LookupProvider(fl.Field().String())
	return err == nil
}

// configKey turns "AppConfig.llm.provider" into "llm.provider".
func configKey(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

func redact(fe validator.FieldError) any {
	if fe.Field() == "api_key" {
		return "<redacted>"
	}
	return fe.Value()
}
