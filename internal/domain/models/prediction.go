package models

import "time"

// Prediction run statuses. A terminal "running" status with no later update
// means the process died mid-run and the record is stale.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// MonteCarloBundle summarizes the terminal price distribution of a
// geometric-Brownian-motion fan-chart simulation.
type MonteCarloBundle struct {
	P10  float64 `json:"p10"`
	P25  float64 `json:"p25"`
	P50  float64 `json:"p50"`
	P75  float64 `json:"p75"`
	P90  float64 `json:"p90"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// HorizonResult is the forecast for a single named horizon. Confidence is a
// declared heuristic decaying linearly with horizon length, not a calibrated
// interval.
type HorizonResult struct {
	Horizon        Horizon           `json:"horizon"`
	PredictedPrice float64           `json:"predictedPrice"`
	LowerBound     float64           `json:"lowerBound"`
	UpperBound     float64           `json:"upperBound"`
	ChangePercent  float64           `json:"changePercent"`
	Confidence     float64           `json:"confidence"`
	MonteCarlo     *MonteCarloBundle `json:"monteCarlo,omitempty"`
}

// ForecastPoint is one entry of the forecast timeseries.
type ForecastPoint struct {
	Date  string  `json:"date"` // YYYY-MM-DD
	Value float64 `json:"value"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// Prediction is the persisted record of one prediction run.
type Prediction struct {
	ID          string          `json:"id"`
	Ticker      string          `json:"ticker"`
	Status      string          `json:"status"`
	Horizons    []Horizon       `json:"horizons"`
	Results     []HorizonResult `json:"results,omitempty"`
	Timeseries  []ForecastPoint `json:"timeseries,omitempty"`
	LastClose   float64         `json:"lastClose,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// PredictionEvent is the lifecycle event published on run transitions.
type PredictionEvent struct {
	Type      string    `json:"type"` // prediction.started | prediction.completed | prediction.failed
	RunID     string    `json:"runId"`
	Ticker    string    `json:"ticker"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	EventPredictionStarted   = "prediction.started"
	EventPredictionCompleted = "prediction.completed"
	EventPredictionFailed    = "prediction.failed"
)
