package metrics

import (
	"slices"
	"strings"

	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
)

// OtherLifecycleOrder is the ordinal of any lifecycle stage outside the taxonomy
const OtherLifecycleOrder = 99

// lifecycleOrder is the closed funnel taxonomy
var lifecycleOrder = map[string]int{
	"subscriber":               1,
	"lead":                     2,
	"marketing-qualified-lead": 3,
	"sales-qualified-lead":     4,
	"opportunity":              5,
	"customer":                 6,
	"evangelist":               7,
}

// LifecycleOrder returns the funnel ordinal of a lifecycle stage
func LifecycleOrder(stage string) int {
	if order, ok := lifecycleOrder[stage]; ok {
		return order
	}
	return OtherLifecycleOrder
}

// LifecycleFunnel counts contacts per lifecycle stage in funnel order.
// Contacts without a lifecycle stage are skipped.
func LifecycleFunnel(in Input) []contracts.FunnelRow {
	counts := make(map[string]int)
	for _, c := range in.contacts() {
		if c.LifecycleStage == nil {
			continue
		}
		counts[*c.LifecycleStage]++
	}

	rows := make([]contracts.FunnelRow, 0, len(counts))
	for stage, n := range counts {
		rows = append(rows, contracts.FunnelRow{
			Stage:      stage,
			Contacts:   n,
			StageOrder: LifecycleOrder(stage),
		})
	}
	slices.SortFunc(rows, func(a, b contracts.FunnelRow) int {
		if a.StageOrder != b.StageOrder {
			return a.StageOrder - b.StageOrder
		}
		return strings.Compare(a.Stage, b.Stage)
	})
	return rows
}
