package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pipeline-metrics/backend/pkg/config"
	"github.com/wonny/pipeline-metrics/backend/pkg/logger"
)

func TestServer_Listeners(t *testing.T) {
	cfg := &config.Config{Port: "8089", MetricsPort: "9090"}
	cfg.Engine.StoreTimezone = "Asia/Seoul"

	api := New(cfg, logger.Nop(), http.NotFoundHandler())
	assert.Equal(t, ":8089", api.Addr())
	assert.Equal(t, 60*time.Second, api.httpServer.WriteTimeout)

	prom := NewMetricsServer(cfg, logger.Nop(), http.NotFoundHandler())
	assert.Equal(t, ":9090", prom.Addr())
}

func TestServer_ShutdownEndsStart(t *testing.T) {
	cfg := &config.Config{Port: "0"}
	srv := New(cfg, logger.Nop(), http.NotFoundHandler())

	done := make(chan error, 1)
	go func() { done <- srv.Start() }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err := <-done:
		assert.NoError(t, err, "a clean shutdown is not an error")
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
}
