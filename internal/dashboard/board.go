package dashboard

import (
	"errors"
	"sync"
	"time"

	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
	"github.com/wonny/pipeline-metrics/backend/internal/params"
	"github.com/wonny/pipeline-metrics/backend/internal/store"
	"github.com/wonny/pipeline-metrics/backend/internal/telemetry"
)

// Ticket tags one evaluation request. Seq increases in submission order.
type Ticket struct {
	Seq         uint64        `json:"seq"`
	Params      params.Params `json:"params"`
	SubmittedAt time.Time     `json:"submitted_at"`
}

// Published is a result set applied at the presentation boundary
type Published struct {
	Ticket
	CompletedAt time.Time          `json:"completed_at"`
	Results     *contracts.Results `json:"results"`
}

// Failure kinds, distinct from "zero data"
const (
	FailureInvalidParams    = "invalid_params"
	FailureStoreUnavailable = "store_unavailable"
	FailureInternal         = "internal"
)

// Failure is the last evaluation error. It never replaces a published result.
type Failure struct {
	Ticket
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// State is what a renderer sees
type State struct {
	Current   *Published `json:"current"`
	LastError *Failure   `json:"last_error"`
}

// Board holds the newest completed evaluation.
// ⭐ SSOT: 결과 적용 순서(최신 요청 우선)는 여기서만 결정
// Results are applied only if their ticket is newer than the published one,
// so a slow evaluation can never overwrite a newer result.
type Board struct {
	mu        sync.Mutex
	seq       uint64
	current   *Published
	lastError *Failure
	recorder  *telemetry.Recorder
	now       func() time.Time
}

// NewBoard creates an empty board
func NewBoard(rec *telemetry.Recorder) *Board {
	return &Board{recorder: rec, now: time.Now}
}

// Begin issues the next ticket
func (b *Board) Begin(p params.Params) Ticket {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	return Ticket{Seq: b.seq, Params: p, SubmittedAt: b.now()}
}

// Publish applies res unless a newer ticket was already published.
// It reports whether res was applied.
func (b *Board) Publish(t Ticket, res *contracts.Results) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current != nil && t.Seq <= b.current.Seq {
		b.recorder.CountDiscarded()
		return false
	}

	b.current = &Published{Ticket: t, CompletedAt: b.now(), Results: res}
	if b.lastError != nil && b.lastError.Seq < t.Seq {
		b.lastError = nil
	}
	b.recorder.SetViewRows(res.RowCounts())
	return true
}

// Fail records a failed evaluation. The published result is left intact.
// Failures older than the published result are dropped.
func (b *Board) Fail(t Ticket, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current != nil && t.Seq <= b.current.Seq {
		return
	}
	if b.lastError != nil && t.Seq <= b.lastError.Seq {
		return
	}
	b.lastError = &Failure{
		Ticket:  t,
		Kind:    FailureKind(err),
		Message: err.Error(),
		At:      b.now(),
	}
}

// State returns the current result and last error
func (b *Board) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	return State{Current: b.current, LastError: b.lastError}
}

// FailureKind classifies an evaluation error
func FailureKind(err error) string {
	switch {
	case errors.Is(err, params.ErrParameterInvalid):
		return FailureInvalidParams
	case errors.Is(err, store.ErrStoreUnavailable):
		return FailureStoreUnavailable
	default:
		return FailureInternal
	}
}
