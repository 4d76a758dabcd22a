package metrics

import (
	"slices"
	"strings"

	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
)

// OwnerLeaderboard ranks owners by won revenue for deals created in the
// date range. Owners without any won revenue sort after all others.
func OwnerLeaderboard(in Input) []contracts.OwnerRow {
	owners := in.ownerNames()

	type group struct {
		row      contracts.OwnerRow
		revenue  nullSum
		pipeline nullSum
	}
	groups := make(map[string]*group)

	for _, d := range in.deals() {
		if !in.inDateRange(d) {
			continue
		}
		name := ownerName(owners, d.OwnerID)
		g, ok := groups[name]
		if !ok {
			g = &group{row: contracts.OwnerRow{Owner: name}}
			groups[name] = g
		}
		switch Classify(d.Stage) {
		case contracts.StatusWon:
			g.row.WonDeals++
			g.revenue.add(d.Amount)
		case contracts.StatusOpen:
			g.row.OpenDeals++
			g.pipeline.add(d.Amount)
		}
	}

	rows := make([]contracts.OwnerRow, 0, len(groups))
	for _, g := range groups {
		g.row.WonRevenue = g.revenue.value()
		g.row.OpenPipeline = g.pipeline.value()
		rows = append(rows, g.row)
	}
	slices.SortFunc(rows, func(a, b contracts.OwnerRow) int {
		if c := compareNullDesc(a.WonRevenue, b.WonRevenue); c != 0 {
			return c
		}
		return strings.Compare(a.Owner, b.Owner)
	})
	return rows
}
