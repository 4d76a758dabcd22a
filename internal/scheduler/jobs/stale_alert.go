package jobs

import (
	"context"
	"sort"

	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
	"github.com/wonny/pipeline-metrics/backend/pkg/logger"
)

// StaleLister lists open deals idle for more than afterDays
type StaleLister interface {
	StaleDeals(ctx context.Context, afterDays int) ([]contracts.StaleDealRow, error)
}

// OwnerAlert groups one owner's stale deals
type OwnerAlert struct {
	Owner    string
	Deals    int
	Oldest   int // days since update of the oldest deal
	DealName string
}

// StaleAlertJob logs a warning per owner with stale deals
type StaleAlertJob struct {
	service   StaleLister
	afterDays int
	schedule  string
	logger    *logger.Logger
}

// NewStaleAlertJob creates a new stale deal alert job
func NewStaleAlertJob(svc StaleLister, afterDays int, schedule string, log *logger.Logger) *StaleAlertJob {
	return &StaleAlertJob{
		service:   svc,
		afterDays: afterDays,
		schedule:  schedule,
		logger:    log,
	}
}

// Name returns the job name
func (j *StaleAlertJob) Name() string {
	return "stale_deal_alert"
}

// Schedule returns the cron schedule
func (j *StaleAlertJob) Schedule() string {
	return j.schedule
}

// Run executes the alert
func (j *StaleAlertJob) Run(ctx context.Context) error {
	rows, err := j.service.StaleDeals(ctx, j.afterDays)
	if err != nil {
		return err
	}

	alerts := GroupByOwner(rows)
	for _, a := range alerts {
		j.logger.WithFields(map[string]interface{}{
			"owner":       a.Owner,
			"stale_deals": a.Deals,
			"oldest_days": a.Oldest,
			"oldest_deal": a.DealName,
		}).Warn("Owner has stale deals")
	}

	j.logger.WithFields(map[string]interface{}{
		"after_days": j.afterDays,
		"deals":      len(rows),
		"owners":     len(alerts),
	}).Info("Stale deal alert completed")

	return nil
}

// GroupByOwner folds stale rows into one alert per owner,
// most stale deals first, then owner name.
func GroupByOwner(rows []contracts.StaleDealRow) []OwnerAlert {
	byOwner := make(map[string]*OwnerAlert)
	for _, r := range rows {
		a, ok := byOwner[r.Owner]
		if !ok {
			a = &OwnerAlert{Owner: r.Owner}
			byOwner[r.Owner] = a
		}
		a.Deals++
		if r.DaysSinceUpdate > a.Oldest || a.DealName == "" {
			a.Oldest = r.DaysSinceUpdate
			a.DealName = r.DealName
		}
	}

	alerts := make([]OwnerAlert, 0, len(byOwner))
	for _, a := range byOwner {
		alerts = append(alerts, *a)
	}
	sort.Slice(alerts, func(i, k int) bool {
		if alerts[i].Deals != alerts[k].Deals {
			return alerts[i].Deals > alerts[k].Deals
		}
		return alerts[i].Owner < alerts[k].Owner
	})
	return alerts
}
