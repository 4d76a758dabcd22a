package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/pipeline-metrics/backend/internal/api/handlers"
	"github.com/wonny/pipeline-metrics/backend/internal/telemetry"
	"github.com/wonny/pipeline-metrics/backend/pkg/logger"
)

// RouterDeps holds everything the router wires
type RouterDeps struct {
	Metrics  *handlers.MetricsHandler
	WS       *handlers.WSHandler
	Limiter  Limiter // nil disables rate limiting; share it with the WS handler
	Recorder *telemetry.Recorder
	Health   func() map[string]interface{}
	Logger   *logger.Logger
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(deps RouterDeps) http.Handler {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(deps.Health)).Methods("GET")

	// Prometheus
	if deps.Recorder != nil {
		r.Handle("/metrics", deps.Recorder.Handler()).Methods("GET")
	}

	// API
	api := r.PathPrefix("/api").Subrouter()

	// Published dashboard and sync status never evaluate
	api.HandleFunc("/dashboard", deps.Metrics.GetDashboard).Methods("GET")
	api.HandleFunc("/sync/status", deps.Metrics.GetSyncStatus).Methods("GET")

	// Evaluation endpoints
	limited := func(h http.HandlerFunc) http.Handler {
		if deps.Limiter == nil {
			return h
		}
		return rateLimitMiddleware(deps.Limiter)(h)
	}
	api.Handle("/metrics", limited(deps.Metrics.Evaluate)).Methods("GET")
	api.Handle("/metrics/{view}", limited(deps.Metrics.GetView)).Methods("GET")

	// WebSocket
	if deps.WS != nil {
		r.HandleFunc("/ws", deps.WS.Serve).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(extra func() map[string]interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":  "ok",
			"service": "pipeline-metrics-api",
		}
		if extra != nil {
			for k, v := range extra() {
				body[k] = v
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
