package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/pipeline-metrics/backend/internal/api"
	"github.com/wonny/pipeline-metrics/backend/internal/api/handlers"
	"github.com/wonny/pipeline-metrics/backend/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST/WebSocket API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 지표 평가 엔드포인트 제공 (rate limit 적용)
- 게시된 대시보드 및 동기화 상태 조회
- 선택적으로 스케줄러 동시 실행 (--with-scheduler)

Endpoints:
  GET  /health                 - Health check
  GET  /metrics                - Prometheus (METRICS_PORT가 다르면 별도 포트)
  GET  /api/dashboard          - 마지막으로 게시된 대시보드
  GET  /api/sync/status        - CRM 동기화 상태
  GET  /api/metrics            - 6개 지표 평가 및 게시
  GET  /api/metrics/{view}     - 단일 지표 평가
  GET  /ws                     - WebSocket 평가

Example:
  go run ./cmd/metrics api
  go run ./cmd/metrics api --port 8089 --with-scheduler`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiWithScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default is PORT)")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "with-scheduler", false, "스케줄러 함께 실행")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Pipeline Metrics API Server ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	// Override port if flag is set
	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	log := a.log
	log.WithFields(map[string]interface{}{
		"port":     a.cfg.Port,
		"env":      a.cfg.Env,
		"timezone": a.cfg.Engine.StoreTimezone,
	}).Info("Initializing API server")

	// Rate limiting: shared window in Redis, local token bucket otherwise.
	// HTTP and WebSocket evaluations draw from the same budget.
	local := api.NewLocalLimiter(a.cfg.Engine.APIRateLimit, a.cfg.Engine.APIRateBurst)
	var primary api.Limiter = local
	if a.redis.Enabled() {
		primary = api.NewSharedLimiter(
			redis.NewRateLimiter(a.redis, redisPrefix),
			"evaluate",
			int(a.cfg.Engine.APIRateLimit*60),
			time.Minute,
		)
	}
	limiter := api.NewFallbackLimiter(primary, local, log)

	deps := api.RouterDeps{
		Metrics: handlers.NewMetricsHandler(a.service, log),
		WS:      handlers.NewWSHandler(a.service, log, handlers.WithLimiter(limiter)),
		Limiter: limiter,
		Health:  a.health,
		Logger:  log,
	}

	// Prometheus: dedicated listener on METRICS_PORT, or /metrics on the API port
	var metricsServer *api.Server
	if a.cfg.MetricsEnabled {
		if a.cfg.MetricsPort != "" && a.cfg.MetricsPort != a.cfg.Port {
			metricsServer = api.NewMetricsServer(a.cfg, log, a.recorder.Handler())
			go func() {
				if err := metricsServer.Start(); err != nil {
					log.WithError(err).Error("Metrics listener failed")
				}
			}()
		} else {
			deps.Recorder = a.recorder
		}
	}

	server := api.New(a.cfg, log, api.NewRouter(deps))

	// Optional in-process scheduler
	if apiWithScheduler {
		s, err := newScheduler(a)
		if err != nil {
			return err
		}
		s.Start()
		defer s.Stop()
	}

	// Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		_ = metricsServer.Shutdown(ctx)
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
