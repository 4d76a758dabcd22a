package engineconfig

// Settings are the tunable thresholds of the metric views
type Settings struct {
	StaleAfterDays      int `yaml:"stale_after_days" json:"stale_after_days"`           // open deals idle longer than this are stale
	StaleLimit          int `yaml:"stale_limit" json:"stale_limit"`                     // max rows in the stale list
	TrendMonths         int `yaml:"trend_months" json:"trend_months"`                   // trailing window of the win rate trend
	DefaultLookbackDays int `yaml:"default_lookback_days" json:"default_lookback_days"` // date_range.start default
	StaleAlertDays      int `yaml:"stale_alert_days" json:"stale_alert_days"`           // threshold of the scheduled alert
}

// Default returns the settings the dashboards were designed around
func Default() Settings {
	return Settings{
		StaleAfterDays:      7,
		StaleLimit:          20,
		TrendMonths:         12,
		DefaultLookbackDays: 30,
		StaleAlertDays:      14,
	}
}
