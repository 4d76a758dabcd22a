package dashboard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
	"github.com/wonny/pipeline-metrics/backend/internal/engineconfig"
	"github.com/wonny/pipeline-metrics/backend/internal/freshness"
	"github.com/wonny/pipeline-metrics/backend/internal/metrics"
	"github.com/wonny/pipeline-metrics/backend/internal/params"
	"github.com/wonny/pipeline-metrics/backend/internal/store"
	"github.com/wonny/pipeline-metrics/backend/pkg/redis"
)

var evalNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func strp(s string) *string { return &s }

func snapshot() *contracts.Snapshot {
	recent := evalNow.AddDate(0, 0, -3)
	idle := evalNow.AddDate(0, 0, -20)
	return &contracts.Snapshot{
		Deals: []contracts.Deal{
			{ID: "1", Name: "Acme", Amount: strp("100"), Stage: "closedwon", CreatedAt: recent, UpdatedAt: recent},
			{ID: "2", Name: "Globex", Amount: strp("50"), Stage: "contractsent", CreatedAt: idle, UpdatedAt: idle},
			{ID: "3", Name: "Old", Amount: strp("10"), Stage: "contractsent", CreatedAt: evalNow.AddDate(-1, 0, 0), UpdatedAt: evalNow.AddDate(0, 0, -10)},
		},
	}
}

func newService(st store.Store, opts ...ServiceOption) *Service {
	engine := metrics.NewEngine(engineconfig.Default(), time.UTC, nil,
		metrics.WithClock(func() time.Time { return evalNow }))
	return NewService(st, engine, NewBoard(nil), nil, opts...)
}

// memMirror is an in-process Mirror with the same ordering rule
type memMirror struct {
	mu     sync.Mutex
	latest *Published
	err    error
}

func (m *memMirror) Publish(ctx context.Context, p *Published) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.latest != nil && !p.SubmittedAt.After(m.latest.SubmittedAt) {
		return false, nil
	}
	m.latest = p
	return true, nil
}

func (m *memMirror) Latest(ctx context.Context) (*Published, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, m.latest != nil, m.err
}

func TestService_Refresh(t *testing.T) {
	svc := newService(&store.Static{Snapshot: snapshot()})

	out, err := svc.Refresh(context.Background(), params.Raw{})
	require.NoError(t, err)

	assert.True(t, out.Applied)
	assert.Equal(t, uint64(1), out.Ticket.Seq)
	assert.Equal(t, params.PipelineAll, out.Ticket.Params.Pipeline)
	assert.Equal(t, 2, out.Results.Summary[0].TotalDeals)

	st := svc.State(context.Background())
	require.NotNil(t, st.Current)
	assert.Same(t, out.Results, st.Current.Results)
}

func TestService_RefreshInvalidParamsKeepsDashboard(t *testing.T) {
	svc := newService(&store.Static{Snapshot: snapshot()})

	_, err := svc.Refresh(context.Background(), params.Raw{Start: "last_7_days"})
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), params.Raw{Start: "31/02/2026"})
	require.ErrorIs(t, err, params.ErrParameterInvalid)

	st := svc.State(context.Background())
	require.NotNil(t, st.Current)
	assert.Equal(t, 1, st.Current.Results.Summary[0].TotalDeals, "last_7_days result stays visible")
	require.NotNil(t, st.LastError)
	assert.Equal(t, FailureInvalidParams, st.LastError.Kind)
}

func TestService_RefreshStoreUnavailable(t *testing.T) {
	svc := newService(&store.Static{Err: store.ErrStoreUnavailable})

	_, err := svc.Refresh(context.Background(), params.Raw{})
	require.ErrorIs(t, err, store.ErrStoreUnavailable)

	st := svc.State(context.Background())
	assert.Nil(t, st.Current, "failure is not zero data")
	require.NotNil(t, st.LastError)
	assert.Equal(t, FailureStoreUnavailable, st.LastError.Kind)
}

func TestService_ConcurrentRefreshesNeverRegress(t *testing.T) {
	svc := newService(&store.Static{Snapshot: snapshot()})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Refresh(context.Background(), params.Raw{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// the next ticket is 21, so the published one must be the newest applied
	st := svc.State(context.Background())
	require.NotNil(t, st.Current)
	assert.Equal(t, uint64(20), st.Current.Seq)
}

func TestService_EvaluateView(t *testing.T) {
	svc := newService(&store.Static{Snapshot: snapshot()})

	rows, p, err := svc.EvaluateView(context.Background(), params.Raw{}, contracts.ViewStaleDeals)
	require.NoError(t, err)
	assert.Equal(t, params.PipelineAll, p.Pipeline)
	stale, ok := rows.([]contracts.StaleDealRow)
	require.True(t, ok)
	require.Len(t, stale, 2)
	assert.Equal(t, "Globex", stale[0].DealName)

	_, _, err = svc.EvaluateView(context.Background(), params.Raw{}, "nope")
	assert.ErrorIs(t, err, metrics.ErrUnknownView)

	_, _, err = svc.EvaluateView(context.Background(), params.Raw{Start: "soon"}, contracts.ViewSummary)
	assert.ErrorIs(t, err, params.ErrParameterInvalid)

	assert.Nil(t, svc.State(context.Background()).Current, "single views are not published")
}

func TestService_StaleDeals(t *testing.T) {
	svc := newService(&store.Static{Snapshot: snapshot()})

	rows, err := svc.StaleDeals(context.Background(), 14)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Globex", rows[0].DealName)
	assert.Equal(t, metrics.UnassignedOwner, rows[0].Owner)
}

func TestService_MirrorFallback(t *testing.T) {
	mirror := &memMirror{}
	writer := newService(&store.Static{Snapshot: snapshot()}, WithMirror(mirror))
	reader := newService(&store.Static{Snapshot: snapshot()}, WithMirror(mirror))

	assert.Nil(t, reader.State(context.Background()).Current)

	_, err := writer.Refresh(context.Background(), params.Raw{})
	require.NoError(t, err)

	st := reader.State(context.Background())
	require.NotNil(t, st.Current, "reader sees the result published by another process")
	assert.Equal(t, 2, st.Current.Results.Summary[0].TotalDeals)
}

func TestService_MirrorErrorsDoNotFailRefresh(t *testing.T) {
	svc := newService(&store.Static{Snapshot: snapshot()}, WithMirror(&memMirror{err: errors.New("redis down")}))

	out, err := svc.Refresh(context.Background(), params.Raw{})
	require.NoError(t, err)
	assert.True(t, out.Applied)
}

func TestService_Freshness(t *testing.T) {
	svc := newService(&store.Static{})
	st, err := svc.Freshness(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Known)

	path := filepath.Join(t.TempDir(), "actions.log")
	require.NoError(t, os.WriteFile(path, []byte(`{"timestamp": "2026-10-18T08:00:00", "action": "sync_data", "success": true}`+"\n"), 0o644))

	svc = newService(&store.Static{}, WithFreshness(freshness.NewReader(path)))
	st, err = svc.Freshness(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Known)
}

func TestRedisMirror_Latest(t *testing.T) {
	db, mock := redismock.NewClientMock()
	m := NewRedisMirror(redis.Wrap(db), "pm")

	mock.ExpectHMGet("pm:latest:dashboard", "seq", "payload").SetVal([]interface{}{
		"1760788800000000000",
		`{"seq":7,"params":{"start":"2026-09-18T00:00:00Z","pipeline":"all"},"submitted_at":"2026-10-18T12:00:00Z","completed_at":"2026-10-18T12:00:01Z","results":{"summary":[{"total_deals":2,"open_deals":1,"open_pipeline_value":"50","won_value":null,"won_deals":0,"lost_deals":1}]}}`,
	})

	p, found, err := m.Latest(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(7), p.Seq)
	assert.Equal(t, params.PipelineAll, p.Params.Pipeline)
	require.Len(t, p.Results.Summary, 1)
	assert.Equal(t, "50", p.Results.Summary[0].OpenPipelineValue.Decimal.String())
	assert.False(t, p.Results.Summary[0].WonValue.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisMirror_Disabled(t *testing.T) {
	m := NewRedisMirror(redis.Wrap(nil), "pm")

	stored, err := m.Publish(context.Background(), &Published{Results: &contracts.Results{}})
	require.NoError(t, err)
	assert.False(t, stored)

	_, found, err := m.Latest(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}
