package main

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reactango/internal/config"
	"reactango/internal/logging"
)

func TestApplyOverrides(t *testing.T) {
	cfg := config.Default()
	v := viper.New()
	applyOverrides(cfg, v)
	assert.Equal(t, config.Default(), cfg, "unset overrides keep the file values")

	v.Set("api-url", "http://api.test:9000/api/v1")
	v.Set("timeout", "3s")
	v.Set("log-level", "debug")
	v.Set("log-format", "json")
	applyOverrides(cfg, v)
	assert.Equal(t, "http://api.test:9000/api/v1", cfg.Client.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Client.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	require.NoError(t, cfg.Validate())
}

func TestNewClientUsesConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Client.Timeout = 2 * time.Second
	c := newClient(cfg, logging.Nop())
	assert.Equal(t, cfg.Client.BaseURL, c.BaseURL)
	assert.Equal(t, 2*time.Second, c.Timeout)
	assert.Equal(t, "rt-cli", c.UserAgent)
}

func TestParseID(t *testing.T) {
	id, err := parseID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-3", "abc", "1.5"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}
