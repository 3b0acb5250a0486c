package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, BackendMemory, cfg.Storage)
	assert.Equal(t, BackendMemory, cfg.Bus)
	assert.Equal(t, ":memory:", cfg.DatabasePath)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 5*time.Minute, cfg.BanWindow)
	assert.Equal(t, 5*time.Second, cfg.RevealWindow)
	assert.Equal(t, 30*time.Second, cfg.StartCountdown)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.WriteTimeout)
	assert.Equal(t, time.Minute, cfg.IdleTimeout)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"LIVEQUIZ_PORT":            "9000",
		"LIVEQUIZ_STORAGE":         "redis",
		"LIVEQUIZ_REDIS_URL":       "redis://cache:6379/2",
		"LIVEQUIZ_BAN_WINDOW":      "10m",
		"LIVEQUIZ_START_COUNTDOWN": "0s",
	})
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, BackendRedis, cfg.Storage)
	assert.Equal(t, BackendRedis, cfg.Bus, "bus follows storage")
	assert.Equal(t, "redis://cache:6379/2", cfg.RedisURL)
	assert.Equal(t, 10*time.Minute, cfg.BanWindow)
	assert.Equal(t, time.Duration(0), cfg.StartCountdown)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"unknown storage", map[string]string{"LIVEQUIZ_STORAGE": "postgres"}},
		{"redis bus on memory storage", map[string]string{"LIVEQUIZ_BUS": "redis"}},
		{"bad port", map[string]string{"LIVEQUIZ_PORT": "0"}},
		{"bad duration", map[string]string{"LIVEQUIZ_SESSION_TTL": "soon"}},
		{"zero ttl", map[string]string{"LIVEQUIZ_SESSION_TTL": "0s"}},
		{"zero write timeout", map[string]string{"LIVEQUIZ_WRITE_TIMEOUT": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			assert.Error(t, err)
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{LogLevel: "warn", LogFormat: "json"}
	logger := cfg.Logger(&buf)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
}
