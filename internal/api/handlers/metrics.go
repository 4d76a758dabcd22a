package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/pipeline-metrics/backend/internal/contracts"
	"github.com/wonny/pipeline-metrics/backend/internal/dashboard"
	"github.com/wonny/pipeline-metrics/backend/internal/freshness"
	"github.com/wonny/pipeline-metrics/backend/internal/params"
	"github.com/wonny/pipeline-metrics/backend/pkg/logger"
)

// DashboardService is what the metric handlers need from the dashboard layer
type DashboardService interface {
	Refresh(ctx context.Context, raw params.Raw) (*dashboard.Outcome, error)
	EvaluateView(ctx context.Context, raw params.Raw, view string) (interface{}, params.Params, error)
	State(ctx context.Context) dashboard.State
	Freshness(ctx context.Context) (freshness.Status, error)
}

// MetricsHandler serves the metric views
// ⭐ SSOT: 메트릭 API 핸들러는 이 구조체에서만
type MetricsHandler struct {
	service DashboardService
	logger  *logger.Logger
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler(service DashboardService, log *logger.Logger) *MetricsHandler {
	return &MetricsHandler{
		service: service,
		logger:  log,
	}
}

// EvaluateResponse is the body of GET /api/metrics
type EvaluateResponse struct {
	Seq     uint64             `json:"seq"`
	Params  params.Params      `json:"params"`
	Applied bool               `json:"applied"`
	Views   *contracts.Results `json:"views"`
}

// ViewResponse is the body of GET /api/metrics/{view}
type ViewResponse struct {
	View   string        `json:"view"`
	Params params.Params `json:"params"`
	Rows   interface{}   `json:"rows"`
}

// DashboardResponse is the body of GET /api/dashboard
type DashboardResponse struct {
	dashboard.State
	Freshness *freshness.Status `json:"freshness"`
}

// Evaluate evaluates all views and publishes the result
// GET /api/metrics?start=&pipeline=
func (h *MetricsHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.Refresh(r.Context(), rawParams(r))
	if err != nil {
		h.fail(w, err)
		return
	}

	respondJSON(w, http.StatusOK, EvaluateResponse{
		Seq:     out.Ticket.Seq,
		Params:  out.Ticket.Params,
		Applied: out.Applied,
		Views:   out.Results,
	})
}

// GetView evaluates a single view
// GET /api/metrics/{view}?start=&pipeline=
func (h *MetricsHandler) GetView(w http.ResponseWriter, r *http.Request) {
	view := mux.Vars(r)["view"]

	rows, p, err := h.service.EvaluateView(r.Context(), rawParams(r), view)
	if err != nil {
		h.fail(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ViewResponse{View: view, Params: p, Rows: rows})
}

// GetDashboard returns the last published result without evaluating
// GET /api/dashboard
func (h *MetricsHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	resp := DashboardResponse{State: h.service.State(r.Context())}

	if st, err := h.service.Freshness(r.Context()); err != nil {
		h.logger.WithError(err).Warn("Failed to read sync log")
	} else {
		resp.Freshness = &st
	}

	respondJSON(w, http.StatusOK, resp)
}

// SyncStatusResponse is the body of GET /api/sync/status
type SyncStatusResponse struct {
	freshness.Status
	AgeSeconds *float64 `json:"age_seconds"`
}

// GetSyncStatus returns the sync-freshness indicator
// GET /api/sync/status
func (h *MetricsHandler) GetSyncStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Freshness(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to read sync log")
		respondError(w, http.StatusInternalServerError, "Failed to read sync log")
		return
	}

	resp := SyncStatusResponse{Status: st}
	if age, ok := st.Age(time.Now()); ok {
		secs := age.Seconds()
		resp.AgeSeconds = &secs
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *MetricsHandler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).Error("Metric evaluation failed")
	}
	respondError(w, status, err.Error())
}
