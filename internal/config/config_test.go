package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "127.0.0.1:8000", cfg.Server.Addr)
	assert.Equal(t, "/api/v1", cfg.Server.BasePath)
	assert.Equal(t, "http://127.0.0.1:8000/api/v1", cfg.Client.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Client.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestFromYAMLKeepsDefaultsForMissingKeys(t *testing.T) {
	cfg, err := FromYAML([]byte("server:\n  addr: 0.0.0.0:9000\nlog:\n  format: json\n"))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, "/api/v1", cfg.Server.BasePath)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 10*time.Second, cfg.Client.Timeout)
}

func TestValidateRejects(t *testing.T) {
	tests := map[string]string{
		"relative base path": "server:\n  base_path: api\n",
		"bad client url":     "client:\n  base_url: not-a-url\n",
		"rate without burst": "server:\n  rate_limit:\n    requests_per_second: 5\n",
		"unknown log format": "log:\n  format: xml\n",
		"broken yaml":        "server: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(dir)
	assert.ErrorContains(t, err, "rt config init")

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("client:\n  timeout: 3s\n"), 0o644))
	cfg, err = LoadOptional(dir)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Client.Timeout)

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("log:\n  format: xml\n"), 0o644))
	_, err = LoadOptional(dir)
	assert.Error(t, err)
}
