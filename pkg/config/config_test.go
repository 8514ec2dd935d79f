package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	require.Equal(t, ":5000", cfg.Listen)
	require.True(t, cfg.Headless)
	require.Equal(t, SolverManual, cfg.Solver.Mode)
	require.Equal(t, 5*time.Minute, cfg.SessionTTL.Std())
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: ":8080"
headless: false
session_ttl: 10m
sweep_interval: 30s
max_sessions: 2
solver:
  mode: vision
  model: gpt-4o-mini
  api_key_env: MY_KEY
log:
  level: debug
  development: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Listen)
	require.False(t, cfg.Headless)
	require.Equal(t, 10*time.Minute, cfg.SessionTTL.Std())
	require.Equal(t, 30*time.Second, cfg.SweepInterval.Std())
	require.Equal(t, 2, cfg.MaxSessions)
	require.Equal(t, SolverVision, cfg.Solver.Mode)
	require.Equal(t, "gpt-4o-mini", cfg.Solver.Model)
	require.Equal(t, "debug", cfg.Log.Level)
	require.True(t, cfg.Log.Development)

	// Unset fields keep their defaults.
	require.Equal(t, Default().MaxCaptchaRetries, cfg.MaxCaptchaRetries)
	require.Equal(t, Default().FormURL, cfg.FormURL)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, "session_ttl: five minutes\n")
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid duration")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidateNamesOffendingField(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty listen", func(c *Config) { c.Listen = "" }, "listen"},
		{"zero ttl", func(c *Config) { c.SessionTTL = 0 }, "session_ttl"},
		{"zero sweep", func(c *Config) { c.SweepInterval = 0 }, "sweep_interval"},
		{"zero sessions", func(c *Config) { c.MaxSessions = 0 }, "max_sessions"},
		{"zero retries", func(c *Config) { c.MaxCaptchaRetries = 0 }, "max_captcha_retries"},
		{"bad solver mode", func(c *Config) { c.Solver.Mode = "onnx" }, "solver mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAPIKeyResolution(t *testing.T) {
	t.Setenv("CEACWATCH_TEST_KEY", "sk-test")
	s := SolverConfig{APIKeyEnv: "CEACWATCH_TEST_KEY"}
	require.Equal(t, "sk-test", s.APIKey())
	require.Empty(t, SolverConfig{}.APIKey())
}
