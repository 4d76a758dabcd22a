package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
	"github.com/wonny/pipeline-metrics/backend/internal/engineconfig"
	"github.com/wonny/pipeline-metrics/backend/internal/params"
	"github.com/wonny/pipeline-metrics/backend/internal/telemetry"
	"github.com/wonny/pipeline-metrics/backend/pkg/logger"
)

// ErrUnknownView is returned for a view name outside contracts.ViewNames
var ErrUnknownView = errors.New("unknown view")

// =============================================================================
// Engine - 순수 계산기
// =============================================================================

// Engine evaluates the metric views over one snapshot.
// ⭐ SSOT: 스냅샷 로딩/결과 게시는 상위 레이어(dashboard)에서 담당
// It keeps no state between evaluations.
type Engine struct {
	settings engineconfig.Settings
	loc      *time.Location
	now      func() time.Time
	recorder *telemetry.Recorder
	logger   *logger.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the evaluation clock
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRecorder attaches Prometheus instrumentation
func WithRecorder(r *telemetry.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// NewEngine creates an engine for the store timezone loc
func NewEngine(settings engineconfig.Settings, loc *time.Location, log *logger.Logger, opts ...Option) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logger.Nop()
	}
	e := &Engine{
		settings: settings,
		loc:      loc,
		now:      time.Now,
		logger:   log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Settings returns the engine's view thresholds
func (e *Engine) Settings() engineconfig.Settings {
	return e.settings
}

// Location returns the store timezone
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Now returns the evaluation clock's current time
func (e *Engine) Now() time.Time {
	return e.now()
}

// Input builds the evaluation input for snap and p at the current time
func (e *Engine) Input(snap *contracts.Snapshot, p params.Params) Input {
	return Input{
		Snapshot: snap,
		Params:   p,
		Now:      e.now(),
		Loc:      e.loc,
		Settings: e.settings,
	}
}

// =============================================================================
// Evaluation
// =============================================================================

// Evaluate computes all six views in parallel.
// Views run to completion once started; ctx is only checked up front.
func (e *Engine) Evaluate(ctx context.Context, snap *contracts.Snapshot, p params.Params) (*contracts.Results, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in := e.Input(snap, p)
	out := &contracts.Results{}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		out.Summary = timed(e, contracts.ViewSummary, func() []contracts.SummaryRow { return Summary(in) })
		return nil
	})
	g.Go(func() error {
		out.StageBreakdown = timed(e, contracts.ViewStageBreakdown, func() []contracts.StageBreakdownRow { return StageBreakdown(in) })
		return nil
	})
	g.Go(func() error {
		out.WinRateTrend = timed(e, contracts.ViewWinRateTrend, func() []contracts.WinRateRow { return WinRateTrend(in) })
		return nil
	})
	g.Go(func() error {
		out.StaleDeals = timed(e, contracts.ViewStaleDeals, func() []contracts.StaleDealRow { return StaleDeals(in) })
		return nil
	})
	g.Go(func() error {
		out.OwnerLeaderboard = timed(e, contracts.ViewOwnerLeaderboard, func() []contracts.OwnerRow { return OwnerLeaderboard(in) })
		return nil
	})
	g.Go(func() error {
		out.LifecycleFunnel = timed(e, contracts.ViewLifecycleFunnel, func() []contracts.FunnelRow { return LifecycleFunnel(in) })
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	e.reportCoercion(in)
	e.logger.WithFields(map[string]interface{}{
		"params": p.Key(),
		"rows":   out.RowCounts(),
	}).Debug("metric views evaluated")

	return out, nil
}

// EvaluateView computes a single named view
func (e *Engine) EvaluateView(ctx context.Context, snap *contracts.Snapshot, p params.Params, view string) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in := e.Input(snap, p)
	var rows interface{}
	switch view {
	case contracts.ViewSummary:
		rows = timed(e, view, func() []contracts.SummaryRow { return Summary(in) })
	case contracts.ViewStageBreakdown:
		rows = timed(e, view, func() []contracts.StageBreakdownRow { return StageBreakdown(in) })
	case contracts.ViewWinRateTrend:
		rows = timed(e, view, func() []contracts.WinRateRow { return WinRateTrend(in) })
	case contracts.ViewStaleDeals:
		rows = timed(e, view, func() []contracts.StaleDealRow { return StaleDeals(in) })
	case contracts.ViewOwnerLeaderboard:
		rows = timed(e, view, func() []contracts.OwnerRow { return OwnerLeaderboard(in) })
	case contracts.ViewLifecycleFunnel:
		rows = timed(e, view, func() []contracts.FunnelRow { return LifecycleFunnel(in) })
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownView, view)
	}

	e.reportCoercion(in)
	return rows, nil
}

// reportCoercion logs unparseable amounts once per evaluation
func (e *Engine) reportCoercion(in Input) {
	n := CountUncoercible(in.deals())
	if n == 0 {
		return
	}
	e.recorder.AddCoercionFailures(n)
	e.logger.WithField("deals", n).Debug("deal amounts not parseable, treated as null")
}

func timed[T any](e *Engine, view string, fn func() T) T {
	start := time.Now()
	rows := fn()
	e.recorder.ObserveView(view, time.Since(start))
	return rows
}
