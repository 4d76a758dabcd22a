package metrics

import (
	"slices"
	"strings"

	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
)

// StaleDeals lists open deals idle for more than StaleAfterDays,
// most idle first, capped at StaleLimit rows.
func StaleDeals(in Input) []contracts.StaleDealRow {
	return StaleDealsWith(in, in.Settings.StaleAfterDays, in.Settings.StaleLimit)
}

// StaleDealsWith is StaleDeals with an explicit threshold and limit.
// limit <= 0 returns every stale deal. Deals with no timestamp at all
// have no idle age and are never listed.
func StaleDealsWith(in Input, afterDays, limit int) []contracts.StaleDealRow {
	loc := in.location()
	resolver := in.resolver()
	owners := in.ownerNames()

	type candidate struct {
		id  string
		row contracts.StaleDealRow
	}
	var stale []candidate

	for _, d := range in.deals() {
		if Classify(d.Stage) != contracts.StatusOpen || d.UpdatedAt.IsZero() {
			continue
		}
		days := daysBetween(d.UpdatedAt, in.Now, loc)
		if days <= afterDays {
			continue
		}
		stale = append(stale, candidate{
			id: d.ID,
			row: contracts.StaleDealRow{
				DealName:        d.Name,
				Stage:           resolver.Label(d.Stage),
				Amount:          NullAmount(d.Amount),
				Owner:           ownerName(owners, d.OwnerID),
				DaysSinceUpdate: days,
			},
		})
	}

	slices.SortFunc(stale, func(a, b candidate) int {
		if a.row.DaysSinceUpdate != b.row.DaysSinceUpdate {
			return b.row.DaysSinceUpdate - a.row.DaysSinceUpdate
		}
		if c := strings.Compare(a.row.DealName, b.row.DealName); c != 0 {
			return c
		}
		return strings.Compare(a.id, b.id)
	})
	if limit > 0 && len(stale) > limit {
		stale = stale[:limit]
	}

	rows := make([]contracts.StaleDealRow, len(stale))
	for i, c := range stale {
		rows[i] = c.row
	}
	return rows
}
