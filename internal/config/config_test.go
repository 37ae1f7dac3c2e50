package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crates-lsp.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "https://index.crates.io", cfg.Endpoint)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 10*time.Second, time.Duration(cfg.FetchTimeout))
	assert.Empty(t, cfg.Token)
	assert.False(t, cfg.Verbose)
}

func TestLoadMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathKeepsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
endpoint = "https://mirror.internal/index"
token = "secret"
concurrency = 8
fetch-timeout = "2m30s"
verbose = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.internal/index", cfg.Endpoint)
	assert.Equal(t, "secret", cfg.Token)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, 150*time.Second, time.Duration(cfg.FetchTimeout))
	assert.True(t, cfg.Verbose)
}

func TestLoadPartialFileKeepsRemainingDefaults(t *testing.T) {
	path := writeConfig(t, `concurrency = 16`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.Concurrency)
	assert.Equal(t, Default().Endpoint, cfg.Endpoint)
	assert.Equal(t, Default().FetchTimeout, cfg.FetchTimeout)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `fetch-timeout = "soon"`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty endpoint", `endpoint = ""`, "endpoint must not be empty"},
		{"zero concurrency", `concurrency = 0`, "concurrency must be positive"},
		{"negative concurrency", `concurrency = -3`, "concurrency must be positive"},
		{"malformed toml", `endpoint = `, "failed to parse TOML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
