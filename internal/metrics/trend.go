package metrics

import (
	"math"
	"slices"
	"time"

	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
)

// WinRateTrend counts won and lost deals per creation month over the
// trailing TrendMonths window. Months with no deals are not emitted.
func WinRateTrend(in Input) []contracts.WinRateRow {
	loc := in.location()
	since := in.Now.AddDate(0, -in.Settings.TrendMonths, 0)

	byMonth := make(map[time.Time]*contracts.WinRateRow)
	for _, d := range in.deals() {
		if d.CreatedAt.Before(since) {
			continue
		}
		month := Bucket(d.CreatedAt, Month, loc)
		row, ok := byMonth[month]
		if !ok {
			row = &contracts.WinRateRow{Month: month}
			byMonth[month] = row
		}
		switch Classify(d.Stage) {
		case contracts.StatusWon:
			row.Won++
		case contracts.StatusLost:
			row.Lost++
		}
	}

	rows := make([]contracts.WinRateRow, 0, len(byMonth))
	for _, row := range byMonth {
		row.Closed = row.Won + row.Lost
		row.WinRate = WinRate(row.Won, row.Closed)
		rows = append(rows, *row)
	}
	slices.SortFunc(rows, func(a, b contracts.WinRateRow) int {
		return a.Month.Compare(b.Month)
	})
	return rows
}

// WinRate is 100*won/closed rounded to one decimal, nil when closed is 0
func WinRate(won, closed int) *float64 {
	if closed == 0 {
		return nil
	}
	rate := math.Round(1000*float64(won)/float64(closed)) / 10
	return &rate
}
