package params

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 10, 18, 15, 30, 0, 0, time.UTC)

func TestParse_Defaults(t *testing.T) {
	p, err := Parse(Raw{}, now, time.UTC, 30)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC), p.Start)
	assert.Equal(t, PipelineAll, p.Pipeline)
	assert.Equal(t, Default(now, time.UTC, 30), p)
}

func TestParse_Start(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	tests := []struct {
		name string
		raw  string
		loc  *time.Location
		want time.Time
	}{
		{"date", "2026-01-15", time.UTC, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"date in store timezone", "2026-01-15", berlin, time.Date(2026, 1, 15, 0, 0, 0, 0, berlin)},
		{"rfc3339", "2026-01-15T10:00:00Z", berlin, time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)},
		{"naive timestamp", "2026-01-15 10:00:00", time.UTC, time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)},
		{"preset", "last_7_days", time.UTC, time.Date(2026, 10, 11, 0, 0, 0, 0, time.UTC)},
		{"preset case-insensitive", "Year_To_Date", time.UTC, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"all time", "all_time", time.UTC, time.Time{}},
		{"surrounding spaces", "  2026-02-01 ", time.UTC, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(Raw{Start: tt.raw}, now, tt.loc, 30)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(p.Start), "got %s want %s", p.Start, tt.want)
		})
	}
}

func TestParse_InvalidStartIsNotDefaulted(t *testing.T) {
	for _, raw := range []string{"yesterday-ish", "2026-13-01", "15/01/2026", "last_31_days"} {
		t.Run(raw, func(t *testing.T) {
			p, err := Parse(Raw{Start: raw}, now, time.UTC, 30)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrParameterInvalid))
			assert.Equal(t, Params{}, p)
		})
	}
}

func TestParse_Pipeline(t *testing.T) {
	p, err := Parse(Raw{Pipeline: "default"}, now, time.UTC, 30)
	require.NoError(t, err)
	assert.Equal(t, "default", p.Pipeline)

	_, err = Parse(Raw{Pipeline: "a\nb"}, now, time.UTC, 30)
	assert.ErrorIs(t, err, ErrParameterInvalid)
}

func TestParams_Key(t *testing.T) {
	a, _ := Parse(Raw{Start: "2026-01-15"}, now, time.UTC, 30)
	b, _ := Parse(Raw{Start: "2026-01-15T00:00:00Z"}, now, time.UTC, 30)
	c, _ := Parse(Raw{Start: "2026-01-16"}, now, time.UTC, 30)

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
	assert.Equal(t, "2026-01-15T00:00:00Z|all", a.Key())
}

func TestPresetsAreParseable(t *testing.T) {
	for _, name := range Presets() {
		_, err := Parse(Raw{Start: name}, now, time.UTC, 30)
		assert.NoError(t, err, name)
	}
}
