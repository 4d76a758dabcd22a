package metrics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
	"github.com/wonny/pipeline-metrics/backend/internal/engineconfig"
	"github.com/wonny/pipeline-metrics/backend/internal/params"
)

// evalNow is a Sunday
var evalNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func strp(s string) *string { return &s }

func intp(i int) *int { return &i }

func deal(id, stage string, amount *string, created time.Time) contracts.Deal {
	return contracts.Deal{
		ID:        id,
		Name:      "Deal " + id,
		Amount:    amount,
		Stage:     stage,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func input(snap *contracts.Snapshot) Input {
	return Input{
		Snapshot: snap,
		Params:   params.Default(evalNow, time.UTC, 30),
		Now:      evalNow,
		Loc:      time.UTC,
		Settings: engineconfig.Default(),
	}
}

func assertDecimal(t *testing.T, want string, got decimal.NullDecimal) {
	t.Helper()
	require.True(t, got.Valid, "expected %s, got null", want)
	assert.True(t, decimal.RequireFromString(want).Equal(got.Decimal), "expected %s, got %s", want, got.Decimal)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		stage string
		want  contracts.DealStatus
	}{
		{"deal-lost-q1", contracts.StatusLost},
		{"closedlost", contracts.StatusLost},
		{"closedwon", contracts.StatusWon},
		{"closedWon", contracts.StatusWon},
		{"won", contracts.StatusWon},
		{"contract-sent", contracts.StatusOpen},
		{"", contracts.StatusOpen},
		{"WON", contracts.StatusOpen},
		{"Lost", contracts.StatusOpen},
		{"won-then-lost", contracts.StatusLost},
		{"\x00\xff", contracts.StatusOpen},
	}

	for _, tt := range tests {
		t.Run(tt.stage, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.stage))
		})
	}
}

func TestStageResolver(t *testing.T) {
	r := NewStageResolver([]contracts.DealStage{
		{ID: "qualifiedtobuy", Label: "Qualified", Rank: 1},
		{ID: "presentation", Label: "Presentation", Rank: 2},
		{ID: "qualifiedtobuy", Label: "Duplicate", Rank: 9},
	})

	label, rank := r.Resolve("qualifiedtobuy")
	assert.Equal(t, "Qualified", label)
	require.NotNil(t, rank)
	assert.Equal(t, 1, *rank)

	label, rank = r.Resolve("mystery-stage")
	assert.Equal(t, "mystery-stage", label)
	assert.Nil(t, rank)

	assert.Equal(t, "Presentation", r.Label("presentation"))
}

func TestCompareRank(t *testing.T) {
	assert.Equal(t, 0, compareRank(nil, nil))
	assert.Equal(t, 1, compareRank(nil, intp(0)))
	assert.Equal(t, -1, compareRank(intp(1000), nil))
	assert.Equal(t, -1, compareRank(intp(0), intp(1)))
	assert.Equal(t, 0, compareRank(intp(3), intp(3)))
}

func TestBucket(t *testing.T) {
	kst := time.FixedZone("KST", 9*3600)

	tests := []struct {
		name string
		in   time.Time
		g    Granularity
		loc  *time.Location
		want time.Time
	}{
		{"week from sunday", evalNow, Week, time.UTC, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)},
		{"week from monday", time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC), Week, time.UTC, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)},
		{"week from wednesday", time.Date(2026, 10, 14, 23, 59, 0, 0, time.UTC), Week, time.UTC, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)},
		{"week across month", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), Week, time.UTC, time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC)},
		{"month", evalNow, Month, time.UTC, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)},
		{"month in store timezone", time.Date(2026, 10, 31, 20, 0, 0, 0, time.UTC), Month, kst, time.Date(2026, 11, 1, 0, 0, 0, 0, kst)},
		{"nil location is utc", evalNow, Month, nil, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bucket(tt.in, tt.g, tt.loc)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
			assert.True(t, got.Equal(Bucket(got, tt.g, tt.loc)), "bucket must be idempotent")
		})
	}
}

func TestBucket_Monotonic(t *testing.T) {
	prev := Bucket(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Week, time.UTC)
	for h := 0; h < 24*120; h += 7 {
		ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(h) * time.Hour)
		for _, g := range []Granularity{Week, Month} {
			b := Bucket(ts, g, time.UTC)
			assert.False(t, b.After(ts))
		}
		b := Bucket(ts, Week, time.UTC)
		assert.False(t, b.Before(prev))
		prev = b
	}
}

func TestBucket_UnknownGranularity(t *testing.T) {
	assert.Panics(t, func() { Bucket(evalNow, Granularity("day"), time.UTC) })
}

func TestCoerceAmount(t *testing.T) {
	tests := []struct {
		name string
		raw  *string
		want string
		ok   bool
	}{
		{"integer", strp("100"), "100", true},
		{"decimal with spaces", strp(" 12.50 "), "12.5", true},
		{"negative", strp("-3"), "-3", true},
		{"null", nil, "", false},
		{"blank", strp("  "), "", false},
		{"garbage", strp("bad"), "", false},
		{"currency text", strp("$1,000"), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CoerceAmount(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, decimal.RequireFromString(tt.want).Equal(got))
			}
		})
	}
}

func TestCountUncoercible(t *testing.T) {
	deals := []contracts.Deal{
		{Amount: strp("1")},
		{Amount: strp("bad")},
		{Amount: nil},
		{Amount: strp("")},
		{Amount: strp("1.2.3")},
	}
	assert.Equal(t, 2, CountUncoercible(deals))
}

func TestNullSum(t *testing.T) {
	var s nullSum
	assert.False(t, s.value().Valid)

	s.add(strp("bad"))
	s.add(nil)
	assert.False(t, s.value().Valid, "only uncoercible input must stay null")

	s.add(strp("0"))
	assertDecimal(t, "0", s.value())

	s.add(strp("2.5"))
	assertDecimal(t, "2.5", s.value())
}
