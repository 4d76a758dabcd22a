package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// View names. These are the names consumers bind result sets by.
const (
	ViewSummary          = "summary"
	ViewStageBreakdown   = "stage_breakdown"
	ViewWinRateTrend     = "win_rate_trend"
	ViewStaleDeals       = "stale_deals"
	ViewOwnerLeaderboard = "owner_leaderboard"
	ViewLifecycleFunnel  = "lifecycle_funnel"
)

// ViewNames lists every view in presentation order
var ViewNames = []string{
	ViewSummary,
	ViewStageBreakdown,
	ViewWinRateTrend,
	ViewStaleDeals,
	ViewOwnerLeaderboard,
	ViewLifecycleFunnel,
}

// IsView reports whether name is a known view
func IsView(name string) bool {
	for _, v := range ViewNames {
		if v == name {
			return true
		}
	}
	return false
}

// Column names and types below are a contract with the renderers.
// Money columns are decimal.NullDecimal: JSON null when no coercible amount
// contributed, never a silent zero.

// SummaryRow is the single row of the summary view
type SummaryRow struct {
	TotalDeals        int                 `json:"total_deals"`
	OpenDeals         int                 `json:"open_deals"`
	OpenPipelineValue decimal.NullDecimal `json:"open_pipeline_value"`
	WonValue          decimal.NullDecimal `json:"won_value"`
	WonDeals          int                 `json:"won_deals"`
	LostDeals         int                 `json:"lost_deals"`
}

// StageBreakdownRow is one open-pipeline stage
type StageBreakdownRow struct {
	Stage      string              `json:"stage"`
	StageOrder *int                `json:"stage_order"` // nil for stages missing from deal_stages
	DealCount  int                 `json:"deal_count"`
	TotalValue decimal.NullDecimal `json:"total_value"`
}

// WinRateRow is one month of the win rate trend
type WinRateRow struct {
	Month   time.Time `json:"month"`
	Won     int       `json:"won"`
	Lost    int       `json:"lost"`
	Closed  int       `json:"closed"`
	WinRate *float64  `json:"win_rate"` // nil when closed = 0
}

// StaleDealRow is one open deal that has not been touched recently
type StaleDealRow struct {
	DealName        string              `json:"deal_name"`
	Stage           string              `json:"stage"`
	Amount          decimal.NullDecimal `json:"amount"`
	Owner           string              `json:"owner"`
	DaysSinceUpdate int                 `json:"days_since_update"`
}

// OwnerRow is one leaderboard entry
type OwnerRow struct {
	Owner        string              `json:"owner"`
	WonDeals     int                 `json:"won_deals"`
	WonRevenue   decimal.NullDecimal `json:"won_revenue"`
	OpenDeals    int                 `json:"open_deals"`
	OpenPipeline decimal.NullDecimal `json:"open_pipeline"`
}

// FunnelRow is one lifecycle stage of the contact funnel
type FunnelRow struct {
	Stage      string `json:"stage"`
	Contacts   int    `json:"contacts"`
	StageOrder int    `json:"stage_order"`
}

// Results holds the six named result sets of one evaluation.
// Empty views are empty slices, never nil, so they encode as [].
type Results struct {
	Summary          []SummaryRow        `json:"summary"`
	StageBreakdown   []StageBreakdownRow `json:"stage_breakdown"`
	WinRateTrend     []WinRateRow        `json:"win_rate_trend"`
	StaleDeals       []StaleDealRow      `json:"stale_deals"`
	OwnerLeaderboard []OwnerRow          `json:"owner_leaderboard"`
	LifecycleFunnel  []FunnelRow         `json:"lifecycle_funnel"`
}

// View returns the named result set, or nil and false for an unknown name
func (r *Results) View(name string) (interface{}, bool) {
	switch name {
	case ViewSummary:
		return r.Summary, true
	case ViewStageBreakdown:
		return r.StageBreakdown, true
	case ViewWinRateTrend:
		return r.WinRateTrend, true
	case ViewStaleDeals:
		return r.StaleDeals, true
	case ViewOwnerLeaderboard:
		return r.OwnerLeaderboard, true
	case ViewLifecycleFunnel:
		return r.LifecycleFunnel, true
	}
	return nil, false
}

// RowCounts returns the number of rows per view
func (r *Results) RowCounts() map[string]int {
	return map[string]int{
		ViewSummary:          len(r.Summary),
		ViewStageBreakdown:   len(r.StageBreakdown),
		ViewWinRateTrend:     len(r.WinRateTrend),
		ViewStaleDeals:       len(r.StaleDeals),
		ViewOwnerLeaderboard: len(r.OwnerLeaderboard),
		ViewLifecycleFunnel:  len(r.LifecycleFunnel),
	}
}
