package models

import "errors"

var (
	// ErrInsufficientData means the price history has fewer usable rows than
	// the largest indicator window requires. Fails the whole run.
	ErrInsufficientData = errors.New("insufficient data for feature derivation")

	// ErrResidualUnavailable marks the recognized degraded mode where too few
	// training sequences exist for the residual model. Not a run failure; the
	// ensemble falls back to the unmodified baseline.
	ErrResidualUnavailable = errors.New("residual model unavailable")

	// ErrUpstreamData means the market data fetch failed after all retries.
	ErrUpstreamData = errors.New("upstream market data unavailable")

	// ErrSimulationInput means drift or volatility was non-finite. Fails only
	// the Monte Carlo block of the affected horizon.
	ErrSimulationInput = errors.New("non-finite simulation input")

	// ErrPredictionNotFound means no run exists for the requested id.
	ErrPredictionNotFound = errors.New("prediction not found")
)
