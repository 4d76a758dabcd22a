package jobs

import (
	"context"

	"github.com/wonny/pipeline-metrics/backend/internal/dashboard"
	"github.com/wonny/pipeline-metrics/backend/internal/params"
	"github.com/wonny/pipeline-metrics/backend/pkg/logger"
)

// Refresher is the part of the dashboard service the refresh job needs
type Refresher interface {
	Refresh(ctx context.Context, raw params.Raw) (*dashboard.Outcome, error)
}

// DashboardRefreshJob re-evaluates the dashboard with default parameters
// ⭐ SSOT: 대시보드 주기 갱신은 이 Job에서만
type DashboardRefreshJob struct {
	service  Refresher
	schedule string
	logger   *logger.Logger
}

// NewDashboardRefreshJob creates a new dashboard refresh job
func NewDashboardRefreshJob(svc Refresher, schedule string, log *logger.Logger) *DashboardRefreshJob {
	return &DashboardRefreshJob{
		service:  svc,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *DashboardRefreshJob) Name() string {
	return "dashboard_refresh"
}

// Schedule returns the cron schedule
func (j *DashboardRefreshJob) Schedule() string {
	return j.schedule
}

// Run executes the refresh
func (j *DashboardRefreshJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled dashboard refresh")

	out, err := j.service.Refresh(ctx, params.Raw{})
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"seq":     out.Ticket.Seq,
		"applied": out.Applied,
	}).Info("Dashboard refreshed")

	return nil
}
