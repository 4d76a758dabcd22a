package dashboard

import (
	"context"
	"fmt"

	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
	"github.com/wonny/pipeline-metrics/backend/internal/freshness"
	"github.com/wonny/pipeline-metrics/backend/internal/metrics"
	"github.com/wonny/pipeline-metrics/backend/internal/params"
	"github.com/wonny/pipeline-metrics/backend/internal/store"
	"github.com/wonny/pipeline-metrics/backend/internal/telemetry"
	"github.com/wonny/pipeline-metrics/backend/pkg/logger"
)

// Outcome is the result of one Refresh
type Outcome struct {
	Ticket  Ticket             `json:"ticket"`
	Results *contracts.Results `json:"results"`
	Applied bool               `json:"applied"` // false when a newer result was already published
}

// Service loads snapshots, evaluates them and publishes to the board
type Service struct {
	store     store.Store
	engine    *metrics.Engine
	board     *Board
	mirror    Mirror
	freshness *freshness.Reader
	recorder  *telemetry.Recorder
	logger    *logger.Logger
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithMirror shares published results through m
func WithMirror(m Mirror) ServiceOption {
	return func(s *Service) { s.mirror = m }
}

// WithFreshness attaches the sync log reader
func WithFreshness(r *freshness.Reader) ServiceOption {
	return func(s *Service) { s.freshness = r }
}

// WithRecorder attaches Prometheus instrumentation
func WithRecorder(r *telemetry.Recorder) ServiceOption {
	return func(s *Service) { s.recorder = r }
}

// NewService creates a dashboard service
func NewService(st store.Store, engine *metrics.Engine, board *Board, log *logger.Logger, opts ...ServiceOption) *Service {
	if log == nil {
		log = logger.Nop()
	}
	s := &Service{
		store:  st,
		engine: engine,
		board:  board,
		logger: log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the underlying engine
func (s *Service) Engine() *metrics.Engine {
	return s.engine
}

// Params parses raw input against the engine clock and store timezone
func (s *Service) Params(raw params.Raw) (params.Params, error) {
	return params.Parse(raw, s.engine.Now(), s.engine.Location(), s.engine.Settings().DefaultLookbackDays)
}

// Refresh evaluates all views for raw and publishes the result.
// A failure is recorded on the board and returned; the published result stays.
func (s *Service) Refresh(ctx context.Context, raw params.Raw) (*Outcome, error) {
	p, perr := s.Params(raw)
	ticket := s.board.Begin(p)
	log := s.logger.WithFields(map[string]interface{}{
		"seq":    ticket.Seq,
		"params": p.Key(),
	})

	if perr != nil {
		return nil, s.fail(ticket, perr, log)
	}

	snap, err := s.store.Load(ctx)
	if err != nil {
		return nil, s.fail(ticket, err, log)
	}

	res, err := s.engine.Evaluate(ctx, snap, p)
	if err != nil {
		return nil, s.fail(ticket, err, log)
	}
	s.recorder.CountEvaluation(telemetry.ResultOK)

	applied := s.board.Publish(ticket, res)
	if !applied {
		log.Debug("newer dashboard already published, result discarded")
	}

	if applied && s.mirror != nil {
		current := s.board.State().Current
		if current != nil && current.Seq == ticket.Seq {
			if _, err := s.mirror.Publish(ctx, current); err != nil {
				log.WithError(err).Warn("failed to mirror dashboard")
			}
		}
	}

	return &Outcome{Ticket: ticket, Results: res, Applied: applied}, nil
}

// EvaluateView evaluates one view without publishing it
func (s *Service) EvaluateView(ctx context.Context, raw params.Raw, view string) (interface{}, params.Params, error) {
	if !contracts.IsView(view) {
		return nil, params.Params{}, fmt.Errorf("%w: %q", metrics.ErrUnknownView, view)
	}

	p, err := s.Params(raw)
	if err != nil {
		s.recorder.CountEvaluation(telemetry.ResultInvalid)
		return nil, params.Params{}, err
	}

	snap, err := s.store.Load(ctx)
	if err != nil {
		s.recorder.CountEvaluation(resultLabel(err))
		return nil, p, err
	}

	rows, err := s.engine.EvaluateView(ctx, snap, p, view)
	if err != nil {
		s.recorder.CountEvaluation(resultLabel(err))
		return nil, p, err
	}
	s.recorder.CountEvaluation(telemetry.ResultOK)
	return rows, p, nil
}

// StaleDeals lists every open deal idle for more than afterDays, with
// default parameters. Used by the alert job.
func (s *Service) StaleDeals(ctx context.Context, afterDays int) ([]contracts.StaleDealRow, error) {
	snap, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	p := params.Default(s.engine.Now(), s.engine.Location(), s.engine.Settings().DefaultLookbackDays)
	return metrics.StaleDealsWith(s.engine.Input(snap, p), afterDays, 0), nil
}

// State returns the local board, falling back to the shared mirror
// when this process has not published anything yet.
func (s *Service) State(ctx context.Context) State {
	st := s.board.State()
	if st.Current != nil || s.mirror == nil {
		return st
	}

	shared, found, err := s.mirror.Latest(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("failed to read mirrored dashboard")
		return st
	}
	if found {
		st.Current = shared
	}
	return st
}

// Freshness reads the sync-freshness indicator
func (s *Service) Freshness(ctx context.Context) (freshness.Status, error) {
	if s.freshness == nil {
		return freshness.Status{}, nil
	}
	return s.freshness.Read(ctx)
}

func (s *Service) fail(t Ticket, err error, log *logger.Logger) error {
	s.board.Fail(t, err)
	s.recorder.CountEvaluation(resultLabel(err))
	log.WithError(err).WithField("kind", FailureKind(err)).Warn("dashboard evaluation failed")
	return err
}

func resultLabel(err error) string {
	switch FailureKind(err) {
	case FailureInvalidParams:
		return telemetry.ResultInvalid
	case FailureStoreUnavailable:
		return telemetry.ResultUnavailable
	default:
		return telemetry.ResultError
	}
}
