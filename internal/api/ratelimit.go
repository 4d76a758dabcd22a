package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/wonny/pipeline-metrics/backend/pkg/logger"
	"github.com/wonny/pipeline-metrics/backend/pkg/redis"
)

// Limiter decides whether one more evaluation may run now
type Limiter interface {
	Allow(ctx context.Context) (bool, error)
}

// LocalLimiter is a token bucket for a single process
type LocalLimiter struct {
	limiter *rate.Limiter
}

// NewLocalLimiter allows perSecond evaluations with the given burst
func NewLocalLimiter(perSecond float64, burst int) *LocalLimiter {
	return &LocalLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Allow consumes a token if one is available
func (l *LocalLimiter) Allow(ctx context.Context) (bool, error) {
	return l.limiter.Allow(), nil
}

// SharedLimiter applies one sliding window across all API processes
type SharedLimiter struct {
	limiter *redis.RateLimiter
	bucket  string
	window  redis.Window
}

// NewSharedLimiter allows limit evaluations per period across processes
func NewSharedLimiter(rl *redis.RateLimiter, bucket string, limit int, period time.Duration) *SharedLimiter {
	return &SharedLimiter{
		limiter: rl,
		bucket:  bucket,
		window:  redis.Window{Limit: limit, Period: period},
	}
}

// Allow records one evaluation in the shared window
func (l *SharedLimiter) Allow(ctx context.Context) (bool, error) {
	allowed, _, err := l.limiter.Allow(ctx, l.bucket, l.window)
	return allowed, err
}

// FallbackLimiter consults primary and, when it errors, local.
// If both fail the evaluation is allowed.
type FallbackLimiter struct {
	primary Limiter
	local   Limiter
	logger  *logger.Logger
}

// NewFallbackLimiter combines a shared limiter with a local fallback; local may be nil
func NewFallbackLimiter(primary, local Limiter, log *logger.Logger) *FallbackLimiter {
	if log == nil {
		log = logger.Nop()
	}
	return &FallbackLimiter{primary: primary, local: local, logger: log}
}

// Allow reports whether one more evaluation may run. It never returns an error.
func (l *FallbackLimiter) Allow(ctx context.Context) (bool, error) {
	allowed, err := l.primary.Allow(ctx)
	if err != nil && l.local != nil {
		l.logger.WithError(err).Warn("Shared rate limiter failed, using local limiter")
		allowed, err = l.local.Allow(ctx)
	}
	if err != nil {
		return true, nil
	}
	return allowed, nil
}

// rateLimitMiddleware rejects evaluations beyond the limiter's budget
func rateLimitMiddleware(limiter Limiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowed, err := limiter.Allow(r.Context()); err == nil && !allowed {
				w.Header().Set("Retry-After", strconv.Itoa(1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error":"Too many evaluation requests"}` + "\n"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
