package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghouse/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.App.LogLevel = "disabled"
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = freePort(t)
	cfg.HTTP.ReadTimeout = 5 * time.Second
	cfg.HTTP.WriteTimeout = 5 * time.Second
	cfg.Database.Path = filepath.Join(t.TempDir(), "app.db")
	cfg.Database.Timeout = 5 * time.Second
	// Nothing listens here; the app must come up without a broker.
	cfg.MQTT.Broker = "tcp://127.0.0.1:1"
	cfg.MQTT.ClientID = "ghouse_test"
	cfg.MQTT.Namespace = "ghouse"
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.AccessExpiry = time.Hour
	cfg.WebSocket.PingInterval = 30 * time.Second
	cfg.WebSocket.ReadTimeout = 60 * time.Second
	cfg.WebSocket.WriteTimeout = 10 * time.Second
	cfg.WebSocket.BufferSize = 16
	return cfg
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.JWT.Secret = ""

	_, err := New(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestRun_ServesAndShutsDown(t *testing.T) {
	cfg := testConfig(t)

	application, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Run(ctx) }()

	url := fmt.Sprintf("http://%s/health", application.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("application did not shut down")
	}
}
