package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds runtime settings for the reviewdesk CLI.
//
// Durations are time.Duration values; the JSON file accepts either Go
// duration strings ("55m") or integer nanoseconds.
type Config struct {
	ServerURL      string        `validate:"required,url"`
	DataDir        string        `validate:"required"`
	RequestTimeout time.Duration `validate:"gte=0"`
	LogLevel       string        `validate:"oneof=debug info warn error"`

	RefreshLeadTime       time.Duration `validate:"gt=0"`
	SafetyRefreshInterval time.Duration `validate:"gt=0"`
	MinRefreshDelay       time.Duration `validate:"gt=0"`
	ActivityCheckInterval time.Duration `validate:"gt=0"`
	MaxInactivity         time.Duration `validate:"gtfield=ActivityCheckInterval"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.DataDir = ".reviewdesk"
	c.RequestTimeout = 10 * time.Second
	c.LogLevel = "info"

	c.RefreshLeadTime = 2 * time.Minute
	c.SafetyRefreshInterval = 55 * time.Minute
	c.MinRefreshDelay = 5 * time.Second
	c.ActivityCheckInterval = 5 * time.Minute
	c.MaxInactivity = 30 * 24 * time.Hour
}

var validate = validator.New()

// Validate reports the first misconfigured field.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
