package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
	"github.com/wonny/pipeline-metrics/backend/internal/telemetry"
	"github.com/wonny/pipeline-metrics/backend/pkg/logger"
)

// BreakerConfig controls when the guarded store stops hitting the database
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32        // consecutive failures before opening
	OpenTimeout      time.Duration // time in open state before a probe
	HalfOpenProbes   uint32
}

// DefaultBreakerConfig returns the breaker used in production
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "record-store",
		FailureThreshold: 3,
		OpenTimeout:      30 * time.Second,
		HalfOpenProbes:   1,
	}
}

// Guarded wraps a Store with a circuit breaker and load timing.
// While the breaker is open, Load fails fast with ErrStoreUnavailable.
type Guarded struct {
	inner    Store
	cb       *gobreaker.CircuitBreaker
	recorder *telemetry.Recorder
}

// NewGuarded wraps inner
func NewGuarded(inner Store, cfg BreakerConfig, rec *telemetry.Recorder, log *logger.Logger) *Guarded {
	if log == nil {
		log = logger.Nop()
	}

	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenProbes,
		Timeout:     cfg.OpenTimeout,
	}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= cfg.FailureThreshold
	}
	// caller cancellation says nothing about database health
	st.IsSuccessful = func(err error) bool {
		if err == nil {
			return true
		}
		if errors.Is(err, ErrStoreUnavailable) {
			return false
		}
		return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		log.WithFields(map[string]interface{}{
			"breaker": name,
			"from":    from.String(),
			"to":      to.String(),
		}).Warn("record store breaker state changed")
	}

	return &Guarded{
		inner:    inner,
		cb:       gobreaker.NewCircuitBreaker(st),
		recorder: rec,
	}
}

// Load loads through the breaker
func (g *Guarded) Load(ctx context.Context) (*contracts.Snapshot, error) {
	start := time.Now()
	out, err := g.cb.Execute(func() (interface{}, error) {
		return g.inner.Load(ctx)
	})
	g.recorder.ObserveStoreLoad(time.Since(start), err)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		return nil, err
	}
	return out.(*contracts.Snapshot), nil
}

// State reports the breaker state for health output
func (g *Guarded) State() string {
	return g.cb.State().String()
}
