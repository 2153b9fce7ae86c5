package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://www.sec.gov/", cfg.Edgar.BaseURL)
	assert.Equal(t, float64(10), cfg.Edgar.RateLimit)
	assert.Equal(t, 10, cfg.Edgar.Burst)
	assert.Empty(t, cfg.Edgar.UserAgent)
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, 10, cfg.Fetch.BatchSize)
	assert.Equal(t, 1, cfg.Fetch.Parallel)
	assert.False(t, cfg.Fetch.FailFast)
	assert.Equal(t, "filings.db", cfg.Manifest.Path)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("FILINGS_EDGAR_USER_AGENT", "Example Corp admin@example.com")
	t.Setenv("FILINGS_FETCH_PARALLEL", "4")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "Example Corp admin@example.com", cfg.Edgar.UserAgent)
	assert.Equal(t, 4, cfg.Fetch.Parallel)
}

func TestInitLoggerRejectsBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	require.Error(t, err)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
}
