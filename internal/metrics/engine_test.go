package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
	"github.com/wonny/pipeline-metrics/backend/internal/engineconfig"
	"github.com/wonny/pipeline-metrics/backend/internal/params"
	"github.com/wonny/pipeline-metrics/backend/internal/telemetry"
)

func fixtureSnapshot() *contracts.Snapshot {
	recent := evalNow.AddDate(0, 0, -2)
	stale := evalNow.AddDate(0, 0, -12)
	return &contracts.Snapshot{
		Stages: []contracts.DealStage{
			{ID: "appointmentscheduled", Label: "Appointment Scheduled", Rank: 0},
			{ID: "contractsent", Label: "Contract Sent", Rank: 4},
			{ID: "closedwon", Label: "Closed Won", Rank: 5},
			{ID: "closedlost", Label: "Closed Lost", Rank: 6},
		},
		Owners: []contracts.Owner{
			{ID: "o1", Email: "ana@example.com"},
			{ID: "o2", Email: "bo@example.com"},
		},
		Deals: []contracts.Deal{
			{ID: "1", Name: "Acme", Amount: strp("1200"), Stage: "closedwon", OwnerID: strp("o1"), CreatedAt: recent, UpdatedAt: recent},
			{ID: "2", Name: "Globex", Amount: strp("800"), Stage: "contractsent", OwnerID: strp("o2"), CreatedAt: stale, UpdatedAt: stale},
			{ID: "3", Name: "Initech", Amount: strp("n/a"), Stage: "appointmentscheduled", CreatedAt: recent, UpdatedAt: recent},
			{ID: "4", Name: "Umbrella", Amount: strp("300"), Stage: "closedlost", OwnerID: strp("o1"), CreatedAt: recent, UpdatedAt: recent},
			{ID: "5", Name: "Hooli", Amount: nil, Stage: "legacy-stage", OwnerID: strp("o2"), CreatedAt: stale, UpdatedAt: stale},
		},
		Contacts: []contracts.Contact{
			{ID: "c1", LifecycleStage: strp("lead")},
			{ID: "c2", LifecycleStage: strp("customer")},
			{ID: "c3", LifecycleStage: strp("robot")},
		},
		LoadedAt: evalNow,
	}
}

func newTestEngine(opts ...Option) *Engine {
	opts = append([]Option{WithClock(func() time.Time { return evalNow })}, opts...)
	return NewEngine(engineconfig.Default(), time.UTC, nil, opts...)
}

func TestEngine_Evaluate(t *testing.T) {
	e := newTestEngine()
	p := params.Default(evalNow, time.UTC, 30)

	res, err := e.Evaluate(context.Background(), fixtureSnapshot(), p)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{
		contracts.ViewSummary:          1,
		contracts.ViewStageBreakdown:   3,
		contracts.ViewWinRateTrend:     1,
		contracts.ViewStaleDeals:       2,
		contracts.ViewOwnerLeaderboard: 3,
		contracts.ViewLifecycleFunnel:  3,
	}, res.RowCounts())

	assert.Equal(t, 5, res.Summary[0].TotalDeals)
	assert.Equal(t, "Globex", res.StaleDeals[0].DealName)
	assert.Equal(t, "legacy-stage", res.StageBreakdown[2].Stage)
}

func TestEngine_EvaluateIsIdempotent(t *testing.T) {
	e := newTestEngine()
	p := params.Default(evalNow, time.UTC, 30)
	snap := fixtureSnapshot()

	first, err := e.Evaluate(context.Background(), snap, p)
	require.NoError(t, err)
	second, err := e.Evaluate(context.Background(), snap, p)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
	assert.Equal(t, string(a), string(b), "output must be byte-identical")
}

func TestEngine_EvaluateEmptySnapshotEncodesEmptyArrays(t *testing.T) {
	e := newTestEngine()

	res, err := e.Evaluate(context.Background(), &contracts.Snapshot{}, params.Default(evalNow, time.UTC, 30))
	require.NoError(t, err)

	body, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"summary": [],
		"stage_breakdown": [],
		"win_rate_trend": [],
		"stale_deals": [],
		"owner_leaderboard": [],
		"lifecycle_funnel": []
	}`, string(body))
}

func TestEngine_NullMoneyEncodesAsNull(t *testing.T) {
	e := newTestEngine()
	snap := &contracts.Snapshot{Deals: []contracts.Deal{
		{ID: "1", Stage: "open-stage", Amount: strp("bad"), CreatedAt: evalNow, UpdatedAt: evalNow},
	}}

	rows, err := e.EvaluateView(context.Background(), snap, params.Default(evalNow, time.UTC, 30), contracts.ViewSummary)
	require.NoError(t, err)

	body, err := json.Marshal(rows)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"open_pipeline_value":null`)
}

func TestEngine_EvaluateView(t *testing.T) {
	e := newTestEngine()
	p := params.Default(evalNow, time.UTC, 30)
	snap := fixtureSnapshot()

	all, err := e.Evaluate(context.Background(), snap, p)
	require.NoError(t, err)

	for _, name := range contracts.ViewNames {
		t.Run(name, func(t *testing.T) {
			rows, err := e.EvaluateView(context.Background(), snap, p, name)
			require.NoError(t, err)
			want, ok := all.View(name)
			require.True(t, ok)
			assert.Equal(t, want, rows)
		})
	}

	_, err = e.EvaluateView(context.Background(), snap, p, "forecast")
	assert.True(t, errors.Is(err, ErrUnknownView))
}

func TestEngine_CanceledContext(t *testing.T) {
	e := newTestEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Evaluate(ctx, fixtureSnapshot(), params.Default(evalNow, time.UTC, 30))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = e.EvaluateView(ctx, fixtureSnapshot(), params.Default(evalNow, time.UTC, 30), contracts.ViewSummary)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_RecordsTelemetry(t *testing.T) {
	rec := telemetry.NewRecorder()
	e := newTestEngine(WithRecorder(rec))

	_, err := e.Evaluate(context.Background(), fixtureSnapshot(), params.Default(evalNow, time.UTC, 30))
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.CoercionFailures), "one deal has amount n/a")
	assert.Equal(t, len(contracts.ViewNames), testutil.CollectAndCount(rec.ViewDuration))
}

func TestEngine_Defaults(t *testing.T) {
	e := NewEngine(engineconfig.Default(), nil, nil)

	assert.Equal(t, time.UTC, e.Location())
	assert.Equal(t, 20, e.Settings().StaleLimit)
	assert.WithinDuration(t, time.Now(), e.Now(), time.Minute)
}
