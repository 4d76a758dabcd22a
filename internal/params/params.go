package params

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrParameterInvalid is returned when a supplied parameter cannot be parsed.
// A present-but-bad value is never replaced by a default.
var ErrParameterInvalid = errors.New("parameter invalid")

// PipelineAll selects every pipeline. It is currently the only behaviour:
// the selector is carried through evaluation but does not filter.
const PipelineAll = "all"

// Params is the immutable parameter context of one evaluation
// ⭐ SSOT: 평가 파라미터는 값으로만 전달 (전역 상태 없음)
type Params struct {
	Start    time.Time `json:"start"`    // inclusive lower bound on deal created_at
	Pipeline string    `json:"pipeline"` // pass-through selector
}

// Raw holds parameter values exactly as supplied by an input control
type Raw struct {
	Start    string `json:"start"`
	Pipeline string `json:"pipeline"`
}

// Key identifies the parameter context; evaluations are tagged with it
func (p Params) Key() string {
	return p.Start.UTC().Format(time.RFC3339) + "|" + p.Pipeline
}

// Default returns the context used when no input was supplied
func Default(now time.Time, loc *time.Location, lookbackDays int) Params {
	return Params{
		Start:    startOfDay(now, loc).AddDate(0, 0, -lookbackDays),
		Pipeline: PipelineAll,
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// presets are the named ranges offered by the date-range control
var presets = map[string]func(today time.Time) time.Time{
	"last_7_days":    func(d time.Time) time.Time { return d.AddDate(0, 0, -7) },
	"last_30_days":   func(d time.Time) time.Time { return d.AddDate(0, 0, -30) },
	"last_90_days":   func(d time.Time) time.Time { return d.AddDate(0, 0, -90) },
	"last_12_months": func(d time.Time) time.Time { return d.AddDate(0, -12, 0) },
	"year_to_date":   func(d time.Time) time.Time { return time.Date(d.Year(), 1, 1, 0, 0, 0, 0, d.Location()) },
	"all_time":       func(time.Time) time.Time { return time.Time{} },
}

// Parse builds Params from raw input. Empty values take defaults; anything
// present that does not parse fails with ErrParameterInvalid.
func Parse(raw Raw, now time.Time, loc *time.Location, lookbackDays int) (Params, error) {
	if loc == nil {
		loc = time.UTC
	}
	p := Default(now, loc, lookbackDays)

	if start := strings.TrimSpace(raw.Start); start != "" {
		t, err := parseStart(start, now, loc)
		if err != nil {
			return Params{}, err
		}
		p.Start = t
	}

	if pipeline := strings.TrimSpace(raw.Pipeline); pipeline != "" {
		if strings.ContainsAny(pipeline, "\x00\n\r\t") {
			return Params{}, fmt.Errorf("%w: pipeline %q contains control characters", ErrParameterInvalid, raw.Pipeline)
		}
		p.Pipeline = pipeline
	}

	return p, nil
}

func parseStart(value string, now time.Time, loc *time.Location) (time.Time, error) {
	if preset, ok := presets[strings.ToLower(value)]; ok {
		return preset(startOfDay(now, loc)), nil
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: date_range.start %q is not a date, timestamp or preset", ErrParameterInvalid, value)
}

// Presets lists the accepted preset names in a stable order
func Presets() []string {
	return []string{"last_7_days", "last_30_days", "last_90_days", "last_12_months", "year_to_date", "all_time"}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
