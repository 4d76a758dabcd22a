package metrics

import (
	"fmt"
	"time"
)

// Granularity of a time bucket
type Granularity string

const (
	Week  Granularity = "week"
	Month Granularity = "month"
)

// Bucket truncates t to the start of its ISO week (Monday) or calendar month
// in loc. Bucketing an already-truncated time returns it unchanged.
func Bucket(t time.Time, g Granularity, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)

	switch g {
	case Week:
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset)
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	default:
		panic(fmt.Sprintf("metrics: unknown granularity %q", g))
	}
}

// daysBetween counts calendar-day boundaries from a to b in loc
func daysBetween(a, b time.Time, loc *time.Location) int {
	a, b = a.In(loc), b.In(loc)
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
