package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Evaluation outcomes used as the "result" label
const (
	ResultOK          = "ok"
	ResultInvalid     = "invalid_params"
	ResultUnavailable = "store_unavailable"
	ResultError       = "error"
)

// Recorder holds the Prometheus metrics of the metrics backend.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	ViewDuration      *prometheus.HistogramVec
	Evaluations       *prometheus.CounterVec
	CoercionFailures  prometheus.Counter
	StaleDiscarded    prometheus.Counter
	StoreLoadDuration *prometheus.HistogramVec
	ViewRows          *prometheus.GaugeVec
}

// NewRecorder creates a Recorder on its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		ViewDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_metrics_view_duration_seconds",
				Help:    "Duration of one metric view evaluation in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"view"},
		),

		Evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_metrics_evaluations_total",
				Help: "Total number of dashboard evaluations by result",
			},
			[]string{"result"},
		),

		CoercionFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pipeline_metrics_coercion_failures_total",
				Help: "Total number of deal amounts that could not be parsed",
			},
		),

		StaleDiscarded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pipeline_metrics_stale_results_discarded_total",
				Help: "Total number of evaluation results discarded because a newer one was already published",
			},
		),

		StoreLoadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_metrics_store_load_duration_seconds",
				Help:    "Duration of record store snapshot loads in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"result"},
		),

		ViewRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "pipeline_metrics_view_rows",
				Help: "Number of rows in the last published result set per view",
			},
			[]string{"view"},
		),
	}

	r.registry.MustRegister(
		r.ViewDuration,
		r.Evaluations,
		r.CoercionFailures,
		r.StaleDiscarded,
		r.StoreLoadDuration,
		r.ViewRows,
	)
	return r
}

// ObserveView records how long one view took
func (r *Recorder) ObserveView(view string, d time.Duration) {
	if r == nil {
		return
	}
	r.ViewDuration.WithLabelValues(view).Observe(d.Seconds())
}

// CountEvaluation records the outcome of one evaluation
func (r *Recorder) CountEvaluation(result string) {
	if r == nil {
		return
	}
	r.Evaluations.WithLabelValues(result).Inc()
}

// AddCoercionFailures records unparseable amounts seen in one evaluation
func (r *Recorder) AddCoercionFailures(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.CoercionFailures.Add(float64(n))
}

// CountDiscarded records a superseded result
func (r *Recorder) CountDiscarded() {
	if r == nil {
		return
	}
	r.StaleDiscarded.Inc()
}

// ObserveStoreLoad records one snapshot load
func (r *Recorder) ObserveStoreLoad(d time.Duration, err error) {
	if r == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	r.StoreLoadDuration.WithLabelValues(result).Observe(d.Seconds())
}

// SetViewRows records the row counts of a published result
func (r *Recorder) SetViewRows(counts map[string]int) {
	if r == nil {
		return
	}
	for view, n := range counts {
		r.ViewRows.WithLabelValues(view).Set(float64(n))
	}
}

// Handler serves the registry in Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}
