// Package config loads the service configuration from YAML with sane
// defaults for every field.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ceacwatch/ceacwatch/pkg/ceac"
	"github.com/ceacwatch/ceacwatch/pkg/checker"
)

// Solver modes.
const (
	SolverManual = "manual"
	SolverVision = "vision"
)

// Duration wraps time.Duration so YAML values can be written as "5m" or "90s".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the underlying time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// SolverConfig selects and configures the challenge solver.
type SolverConfig struct {
	// Mode is "manual" (human answers only) or "vision" (multimodal model).
	Mode string `yaml:"mode"`

	// Model is the vision model name.
	Model string `yaml:"model"`

	// BaseURL points at an OpenAI-compatible endpoint. Empty means the
	// standard endpoint.
	BaseURL string `yaml:"base_url"`

	// APIKeyEnv names the environment variable holding the API key, so the
	// key itself never lives in the config file.
	APIKeyEnv string `yaml:"api_key_env"`
}

// APIKey resolves the configured key from the environment.
func (s SolverConfig) APIKey() string {
	if s.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(s.APIKeyEnv)
}

// LogConfig controls the logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Config is the full service configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// Headless controls whether browsers run without a visible window.
	Headless bool `yaml:"headless"`

	// FormURL overrides the status-check form URL.
	FormURL string `yaml:"form_url"`

	// NavigationTimeout bounds individual page operations.
	NavigationTimeout Duration `yaml:"navigation_timeout"`

	// SessionTTL is how long a parked session may live, from creation.
	SessionTTL Duration `yaml:"session_ttl"`

	// SweepInterval is how often expired sessions are reclaimed.
	SweepInterval Duration `yaml:"sweep_interval"`

	// MaxSessions caps concurrent live sessions.
	MaxSessions int `yaml:"max_sessions"`

	// MaxCaptchaRetries bounds challenge re-submission in the auto flow.
	MaxCaptchaRetries int `yaml:"max_captcha_retries"`

	Solver SolverConfig `yaml:"solver"`
	Log    LogConfig    `yaml:"log"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Listen:            ":5000",
		Headless:          true,
		FormURL:           ceac.DefaultFormURL,
		NavigationTimeout: Duration(ceac.DefaultNavigationTimeout),
		SessionTTL:        Duration(checker.DefaultSessionTTL),
		SweepInterval:     Duration(checker.DefaultSweepInterval),
		MaxSessions:       checker.DefaultMaxSessions,
		MaxCaptchaRetries: checker.DefaultMaxRetries,
		Solver: SolverConfig{
			Mode:      SolverManual,
			Model:     "gpt-4o",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("config: listen address is required")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("config: session_ttl must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("config: sweep_interval must be positive")
	}
	if c.MaxSessions <= 0 {
		return fmt.Errorf("config: max_sessions must be positive")
	}
	if c.MaxCaptchaRetries <= 0 {
		return fmt.Errorf("config: max_captcha_retries must be positive")
	}
	switch c.Solver.Mode {
	case SolverManual, SolverVision:
	default:
		return fmt.Errorf("config: unknown solver mode %q", c.Solver.Mode)
	}
	return nil
}
