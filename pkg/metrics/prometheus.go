package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	runsTotal     *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	residualMode  *prometheus.CounterVec
	lastPredicted *prometheus.GaugeVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		runsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpred_prediction_runs_total",
				Help: "Total prediction runs by terminal status",
			},
			[]string{"status"},
		),
		stageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stockpred_pipeline_stage_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: []float64{.05, .25, 1, 5, 15, 60, 180, 600},
			},
			[]string{"stage"},
		),
		residualMode: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stockpred_residual_model_runs_total",
				Help: "Runs by residual model availability (trained or degraded)",
			},
			[]string{"mode"},
		),
		lastPredicted: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stockpred_last_predicted_price",
				Help: "Most recent predicted price per ticker and horizon",
			},
			[]string{"ticker", "horizon"},
		),
	}
}

// RecordRun records a terminal run status (completed or failed).
func (r *Recorder) RecordRun(status string) {
	r.runsTotal.WithLabelValues(status).Inc()
}

// RecordStageDuration records a pipeline stage duration in seconds.
func (r *Recorder) RecordStageDuration(stage string, seconds float64) {
	r.stageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordResidualMode records whether the residual model trained or was skipped.
func (r *Recorder) RecordResidualMode(mode string) {
	r.residualMode.WithLabelValues(mode).Inc()
}

// RecordPredictedPrice records the headline predicted price for a horizon.
func (r *Recorder) RecordPredictedPrice(ticker, horizon string, price float64) {
	r.lastPredicted.WithLabelValues(ticker, horizon).Set(price)
}
