package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 4, cfg.Screening.Workers)
	assert.Equal(t, 5*time.Second, cfg.Screening.CallTimeout)
	assert.Equal(t, 1, cfg.Screening.MaxRetries)
	assert.True(t, cfg.Bias.FailClosed)
	assert.Equal(t, "reference", cfg.Providers.Sanctions.Mode)
	assert.Equal(t, 5, cfg.Scoring.NearThresholdWeight)
	assert.Equal(t, 100, cfg.History.MaxRuns)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kyt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
screening:
  workers: 8
  call_timeout: 2s
providers:
  sanctions:
    mode: http
    base_url: https://sanctions.example.test
`), 0o600))

	t.Setenv("KYT_SCREENING__WORKERS", "16")
	t.Setenv("KYT_LOG_LEVEL", "warn")
	t.Setenv("KYT_BIAS__FAIL_CLOSED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 16, cfg.Screening.Workers)
	assert.Equal(t, 2*time.Second, cfg.Screening.CallTimeout)
	assert.False(t, cfg.Bias.FailClosed)
	assert.Equal(t, "http", cfg.Providers.Sanctions.Mode)
	assert.Equal(t, "https://sanctions.example.test", cfg.Providers.Sanctions.BaseURL)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(*Config) {},
		},
		{
			name:    "zero workers",
			mutate:  func(c *Config) { c.Screening.Workers = 0 },
			wantErr: "screening.workers",
		},
		{
			name:    "http mode without url",
			mutate:  func(c *Config) { c.Providers.Sanctions.Mode = "http" },
			wantErr: "base_url",
		},
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Providers.Sanctions.Mode = "ftp" },
			wantErr: "not supported",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
