package metrics

import (
	"slices"
	"strings"

	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
)

// StageBreakdown groups every open deal by resolved stage label.
// Rows are ordered by rank with unmapped stages last, then by label.
func StageBreakdown(in Input) []contracts.StageBreakdownRow {
	resolver := in.resolver()

	type group struct {
		row   contracts.StageBreakdownRow
		value nullSum
	}
	groups := make(map[string]*group)

	for _, d := range in.deals() {
		if Classify(d.Stage) != contracts.StatusOpen {
			continue
		}
		label, rank := resolver.Resolve(d.Stage)
		g, ok := groups[label]
		if !ok {
			g = &group{row: contracts.StageBreakdownRow{Stage: label, StageOrder: rank}}
			groups[label] = g
		} else if compareRank(rank, g.row.StageOrder) < 0 {
			// two stage ids share a label; keep the lowest rank
			g.row.StageOrder = rank
		}
		g.row.DealCount++
		g.value.add(d.Amount)
	}

	rows := make([]contracts.StageBreakdownRow, 0, len(groups))
	for _, g := range groups {
		g.row.TotalValue = g.value.value()
		rows = append(rows, g.row)
	}
	slices.SortFunc(rows, func(a, b contracts.StageBreakdownRow) int {
		if c := compareRank(a.StageOrder, b.StageOrder); c != 0 {
			return c
		}
		return strings.Compare(a.Stage, b.Stage)
	})
	return rows
}
