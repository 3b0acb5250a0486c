package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/livequiz/internal/config"
	"github.com/mcoot/livequiz/internal/testutil"
)

func TestServerTakesTimeoutsFromConfig(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{
		"LIVEQUIZ_HOST":             "127.0.0.1",
		"LIVEQUIZ_PORT":             "9090",
		"LIVEQUIZ_WRITE_TIMEOUT":    "20s",
		"LIVEQUIZ_SHUTDOWN_TIMEOUT": "5s",
	})
	require.NoError(t, err)

	server := NewServer(http.NotFoundHandler(), ServerConfigFrom(cfg), testutil.NopLogger())

	assert.Equal(t, "127.0.0.1:9090", server.Addr())
	assert.Equal(t, 15*time.Second, server.server.ReadTimeout)
	assert.Equal(t, 15*time.Second, server.server.ReadHeaderTimeout)
	assert.Equal(t, 20*time.Second, server.server.WriteTimeout)
	assert.Equal(t, time.Minute, server.server.IdleTimeout)
	assert.Equal(t, 5*time.Second, server.config.ShutdownTimeout)
}

func TestServerShutdownStopsStart(t *testing.T) {
	cfg, err := config.LoadFrom(map[string]string{"LIVEQUIZ_HOST": "127.0.0.1"})
	require.NoError(t, err)
	serverConfig := ServerConfigFrom(cfg)
	serverConfig.Port = 0

	server := NewServer(http.NotFoundHandler(), serverConfig, testutil.NopLogger())
	done := make(chan error, 1)
	go func() { done <- server.Start() }()

	require.NoError(t, server.Shutdown(context.Background()))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
