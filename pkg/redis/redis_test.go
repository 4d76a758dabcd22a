package redis

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pipeline-metrics/backend/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, err := New(cfg)
	require.NoError(t, err)
	assert.False(t, client.Enabled())
	assert.NoError(t, client.Close())
}

func TestSequencedStore_Disabled(t *testing.T) {
	client, _ := New(&config.Config{})
	store := NewSequencedStore(client, "test", TTLDashboard)

	stored, err := store.PublishIfNewer(context.Background(), "dashboard", 1, []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, stored)

	_, _, found, err := store.Latest(context.Background(), "dashboard")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSequencedStore_PublishIfNewer(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewSequencedStore(Wrap(db), "pm", 0)
	ctx := context.Background()

	key := store.Key("dashboard")
	assert.Equal(t, "pm:latest:dashboard", key)

	t.Run("newer sequence is stored", func(t *testing.T) {
		mock.ExpectEval(publishIfNewerScript, []string{key}, int64(10), `{"a":1}`, int64(0)).SetVal(int64(1))

		stored, err := store.PublishIfNewer(ctx, "dashboard", 10, []byte(`{"a":1}`))
		require.NoError(t, err)
		assert.True(t, stored)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("older sequence is rejected", func(t *testing.T) {
		mock.ExpectEval(publishIfNewerScript, []string{key}, int64(9), `{"a":0}`, int64(0)).SetVal(int64(0))

		stored, err := store.PublishIfNewer(ctx, "dashboard", 9, []byte(`{"a":0}`))
		require.NoError(t, err)
		assert.False(t, stored)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis error is returned", func(t *testing.T) {
		mock.ExpectEval(publishIfNewerScript, []string{key}, int64(11), `{}`, int64(0)).SetErr(errors.New("READONLY"))

		_, err := store.PublishIfNewer(ctx, "dashboard", 11, []byte(`{}`))
		assert.Error(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSequencedStore_Latest(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewSequencedStore(Wrap(db), "pm", 0)
	ctx := context.Background()
	key := store.Key("dashboard")

	t.Run("found", func(t *testing.T) {
		mock.ExpectHMGet(key, "seq", "payload").SetVal([]interface{}{"42", `{"ok":true}`})

		seq, payload, found, err := store.Latest(ctx, "dashboard")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, int64(42), seq)
		assert.JSONEq(t, `{"ok":true}`, string(payload))
	})

	t.Run("missing key", func(t *testing.T) {
		mock.ExpectHMGet(key, "seq", "payload").SetVal([]interface{}{nil, nil})

		_, _, found, err := store.Latest(ctx, "dashboard")
		require.NoError(t, err)
		assert.False(t, found)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_Allow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	limiter := NewRateLimiter(Wrap(db), "pm")
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return at }
	ctx := context.Background()
	window := Window{Limit: 2, Period: time.Second}

	key := limiter.Key("evaluate")
	assert.Equal(t, "pm:ratelimit:evaluate", key)
	args := []interface{}{at.UnixMilli(), at.UnixMilli() - 1000, 2, int64(1000), strconv.FormatInt(at.UnixNano(), 10)}

	t.Run("allowed", func(t *testing.T) {
		mock.ExpectEval(slidingWindowScript, []string{key}, args...).SetVal([]interface{}{int64(1), int64(1)})

		allowed, remaining, err := limiter.Allow(ctx, "evaluate", window)
		require.NoError(t, err)
		assert.True(t, allowed)
		assert.Equal(t, 1, remaining)
	})

	t.Run("limited", func(t *testing.T) {
		mock.ExpectEval(slidingWindowScript, []string{key}, args...).SetVal([]interface{}{int64(0), int64(0)})

		allowed, _, err := limiter.Allow(ctx, "evaluate", window)
		require.NoError(t, err)
		assert.False(t, allowed)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_Disabled(t *testing.T) {
	limiter := NewRateLimiter(Wrap(nil), "pm")

	allowed, remaining, err := limiter.Allow(context.Background(), "evaluate", Window{Limit: 5, Period: time.Second})
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 5, remaining)
}
