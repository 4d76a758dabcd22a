package metrics

import (
	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
)

// Summary counts deals created in the date range by status.
// No deals in scope yields zero rows.
func Summary(in Input) []contracts.SummaryRow {
	var (
		row          contracts.SummaryRow
		openPipeline nullSum
		wonValue     nullSum
	)

	for _, d := range in.deals() {
		if !in.inDateRange(d) {
			continue
		}
		row.TotalDeals++
		switch Classify(d.Stage) {
		case contracts.StatusOpen:
			row.OpenDeals++
			openPipeline.add(d.Amount)
		case contracts.StatusWon:
			row.WonDeals++
			wonValue.add(d.Amount)
		case contracts.StatusLost:
			row.LostDeals++
		}
	}

	if row.TotalDeals == 0 {
		return []contracts.SummaryRow{}
	}
	row.OpenPipelineValue = openPipeline.value()
	row.WonValue = wonValue.value()
	return []contracts.SummaryRow{row}
}
