package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wonny/pipeline-metrics/backend/pkg/config"
	"github.com/wonny/pipeline-metrics/backend/pkg/logger"
)

// Server is one HTTP listener of the metrics service
// ⭐ SSOT: 리스너 설정은 이 파일에서만
type Server struct {
	name       string
	httpServer *http.Server
	logger     *logger.Logger
}

// New creates the dashboard API listener on PORT.
// A full evaluation reads the whole CRM snapshot, so writes get a longer
// deadline than reads.
func New(cfg *config.Config, log *logger.Logger, router http.Handler) *Server {
	return &Server{
		name: "dashboard-api",
		httpServer: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: log.WithFields(map[string]interface{}{
			"listener": "dashboard-api",
			"timezone": cfg.Engine.StoreTimezone,
		}),
	}
}

// NewMetricsServer creates the Prometheus listener on METRICS_PORT
func NewMetricsServer(cfg *config.Config, log *logger.Logger, handler http.Handler) *Server {
	return &Server{
		name: "prometheus",
		httpServer: &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: log.WithField("listener", "prometheus"),
	}
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start serves until Shutdown. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Listener accepting requests")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s listener: %w", s.name, err)
	}

	return nil
}

// Shutdown stops accepting requests and waits for in-flight evaluations
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Draining in-flight evaluations")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s listener did not drain: %w", s.name, err)
	}

	return nil
}
