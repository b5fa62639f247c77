// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Platform   PlatformConfig   `yaml:"platform"`
	Binding    BindingConfig    `yaml:"binding"`
	Pagination PaginationConfig `yaml:"pagination"`
	Retry      RetryConfig      `yaml:"retry"`
	Schemas    SchemasConfig    `yaml:"schemas"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Mock       MockConfig       `yaml:"mock"`
}

// PlatformConfig configures the remote REST platform.
type PlatformConfig struct {
	BaseURL     string            `yaml:"base_url" validate:"omitempty,url"`
	AccessToken string            `yaml:"access_token,omitempty"`
	Timeout     time.Duration     `yaml:"timeout" validate:"gte=0"`
	Headers     map[string]string `yaml:"headers,omitempty"`
}

// BindingConfig selects strict or permissive argument binding.
type BindingConfig struct {
	StrictBody  bool `yaml:"strict_body"`  // reject undeclared create/update fields
	StrictQuery bool `yaml:"strict_query"` // reject undeclared query parameters
}

// PaginationConfig configures list decoding.
type PaginationConfig struct {
	ItemsKey string `yaml:"items_key" validate:"required"`
	PageSize int    `yaml:"page_size" validate:"gte=0,lte=100"` // 0 leaves max to the platform
}

// RetryConfig configures retries of failed exchanges.
type RetryConfig struct {
	Enabled         bool          `yaml:"enabled"`
	MaxAttempts     int           `yaml:"max_attempts" validate:"gte=1"`
	InitialInterval time.Duration `yaml:"initial_interval" validate:"gt=0"`
	MaxInterval     time.Duration `yaml:"max_interval" validate:"gtefield=InitialInterval"`
}

// SchemasConfig points at extra schema definitions.
type SchemasConfig struct {
	Dir string `yaml:"dir,omitempty"` // YAML files loaded next to the built-in schemas
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json console"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path" validate:"startswith=/"`
}

// MockConfig configures the mock platform server.
type MockConfig struct {
	Listen string `yaml:"listen" validate:"required"`
	DSN    string `yaml:"dsn,omitempty"` // SQLite path; empty keeps records in memory
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	var cfg Config
	cfg.Binding.StrictBody = true
	cfg.Retry.Enabled = true
	cfg.Metrics.Enabled = true
	setDefaults(&cfg)
	return cfg
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	RESTSCHEMA_BASE_URL          - Platform base URL
//	RESTSCHEMA_ACCESS_TOKEN      - Bearer token sent with every request
//	RESTSCHEMA_TIMEOUT           - Per-request timeout (default: 30s)
//	RESTSCHEMA_STRICT_BODY       - Reject unknown create/update fields (default: true)
//	RESTSCHEMA_STRICT_QUERY      - Reject unknown query parameters (default: false)
//	RESTSCHEMA_ITEMS_KEY         - List envelope member (default: items)
//	RESTSCHEMA_PAGE_SIZE         - max sent with list requests (default: unset)
//	RESTSCHEMA_RETRY_ENABLED     - Retry throttled and unavailable responses (default: true)
//	RESTSCHEMA_RETRY_MAX_ATTEMPTS - Attempts per request including the first (default: 4)
//	RESTSCHEMA_SCHEMAS_DIR       - Directory of extra schema files
//	RESTSCHEMA_LOG_LEVEL         - Log level: debug, info, warn, error (default: info)
//	RESTSCHEMA_LOG_FORMAT        - Log format: json or console (default: console)
//	RESTSCHEMA_METRICS_ENABLED   - Enable /metrics on the mock server (default: true)
//	RESTSCHEMA_METRICS_PATH      - Metrics path (default: /metrics)
//	RESTSCHEMA_MOCK_LISTEN       - Mock server address (default: 127.0.0.1:8090)
//	RESTSCHEMA_MOCK_DSN          - Mock server SQLite path (default: in memory)
func LoadFromEnv() (*Config, error) {
	cfg := Defaults()

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback loads path when it exists, and the environment otherwise.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// applyEnvOverrides applies RESTSCHEMA_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Platform configuration
	if v := os.Getenv("RESTSCHEMA_BASE_URL"); v != "" {
		cfg.Platform.BaseURL = v
	}
	if v := os.Getenv("RESTSCHEMA_ACCESS_TOKEN"); v != "" {
		cfg.Platform.AccessToken = v
	}
	if v := os.Getenv("RESTSCHEMA_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Platform.Timeout = d
		}
	}

	// Binding configuration
	if v := os.Getenv("RESTSCHEMA_STRICT_BODY"); v != "" {
		cfg.Binding.StrictBody = parseBool(v)
	}
	if v := os.Getenv("RESTSCHEMA_STRICT_QUERY"); v != "" {
		cfg.Binding.StrictQuery = parseBool(v)
	}

	// Pagination configuration
	if v := os.Getenv("RESTSCHEMA_ITEMS_KEY"); v != "" {
		cfg.Pagination.ItemsKey = v
	}
	if v := os.Getenv("RESTSCHEMA_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Pagination.PageSize = n
		}
	}

	// Retry configuration
	if v := os.Getenv("RESTSCHEMA_RETRY_ENABLED"); v != "" {
		cfg.Retry.Enabled = parseBool(v)
	}
	if v := os.Getenv("RESTSCHEMA_RETRY_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Retry.MaxAttempts = n
		}
	}

	if v := os.Getenv("RESTSCHEMA_SCHEMAS_DIR"); v != "" {
		cfg.Schemas.Dir = v
	}

	// Logging configuration
	if v := os.Getenv("RESTSCHEMA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RESTSCHEMA_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("RESTSCHEMA_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("RESTSCHEMA_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}

	// Mock configuration
	if v := os.Getenv("RESTSCHEMA_MOCK_LISTEN"); v != "" {
		cfg.Mock.Listen = v
	}
	if v := os.Getenv("RESTSCHEMA_MOCK_DSN"); v != "" {
		cfg.Mock.DSN = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Platform.Timeout == 0 {
		cfg.Platform.Timeout = 30 * time.Second
	}

	if cfg.Pagination.ItemsKey == "" {
		cfg.Pagination.ItemsKey = "items"
	}

	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 4
	}
	if cfg.Retry.InitialInterval == 0 {
		cfg.Retry.InitialInterval = 500 * time.Millisecond
	}
	if cfg.Retry.MaxInterval == 0 {
		cfg.Retry.MaxInterval = 30 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Mock.Listen == "" {
		cfg.Mock.Listen = "127.0.0.1:8090"
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report yaml keys so messages match the file.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks cfg and reports every invalid key, e.g.
// "logging.level: must be one of: debug info warn error".
func Validate(cfg *Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return err
	}
	messages := make([]string, 0, len(valErrs))
	for _, ve := range valErrs {
		// Drop the root type name.
		_, key, _ := strings.Cut(ve.Namespace(), ".")
		messages = append(messages, key+": "+formatValidationError(ve))
	}
	return errors.New(strings.Join(messages, "; "))
}

func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "required"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", ve.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", ve.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", ve.Param())
	case "gtefield":
		return "must not be less than initial_interval"
	case "startswith":
		return fmt.Sprintf("must start with %q", ve.Param())
	default:
		if ve.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", ve.Tag(), ve.Param())
		}
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}

// ReloadableFields returns which fields can be changed without restart.
func ReloadableFields() []string {
	return []string{
		"logging.level",
		"logging.format",
	}
}

// NonReloadableFields returns which fields require a restart.
func NonReloadableFields() []string {
	return []string{
		"mock.listen",
		"mock.dsn",
		"metrics.path",
		"schemas.dir",
	}
}
