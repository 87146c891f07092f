package simulation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katsup07/stock-predictor-2/internal/domain/models"
)

func TestRunDeterministic(t *testing.T) {
	a, err := Run(100, 0.08, 0.25, 756)
	require.NoError(t, err)
	b, err := Run(100, 0.08, 0.25, 756)
	require.NoError(t, err)

	// Fixed seed means bit-identical summaries for identical inputs.
	assert.Equal(t, *a, *b)
}

func TestRunPercentilesOrdered(t *testing.T) {
	bundle, err := Run(150, 0.05, 0.30, 252)
	require.NoError(t, err)

	assert.LessOrEqual(t, bundle.P10, bundle.P25)
	assert.LessOrEqual(t, bundle.P25, bundle.P50)
	assert.LessOrEqual(t, bundle.P50, bundle.P75)
	assert.LessOrEqual(t, bundle.P75, bundle.P90)
	assert.Greater(t, bundle.Mean, 0.0)
	assert.Greater(t, bundle.Std, 0.0)
}

func TestRunZeroVolatility(t *testing.T) {
	bundle, err := Run(100, 0.0, 0.0, 252)
	require.NoError(t, err)

	// Every path is identical with no shocks and no drift.
	assert.InDelta(t, 100.0, bundle.P50, 0.01)
	assert.InDelta(t, bundle.P10, bundle.P90, 0.01)
	assert.InDelta(t, 0.0, bundle.Std, 0.01)
}

func TestRunRejectsNonFiniteInputs(t *testing.T) {
	_, err := Run(100, math.NaN(), 0.2, 252)
	assert.ErrorIs(t, err, models.ErrSimulationInput)

	_, err = Run(100, 0.05, math.Inf(1), 252)
	assert.ErrorIs(t, err, models.ErrSimulationInput)

	_, err = Run(-5, 0.05, 0.2, 252)
	assert.ErrorIs(t, err, models.ErrSimulationInput)

	_, err = Run(100, 0.05, 0.2, 0)
	assert.ErrorIs(t, err, models.ErrSimulationInput)
}

func TestDriftVol(t *testing.T) {
	closes := []float64{100, 101, 102.01, 103.0301}
	drift, vol := DriftVol(closes)
	assert.InDelta(t, 0.01*252, drift, 1e-9, "constant one percent daily return annualizes to 2.52")
	assert.InDelta(t, 0.0, vol, 1e-9)

	d, v := DriftVol([]float64{100})
	assert.True(t, math.IsNaN(d))
	assert.True(t, math.IsNaN(v))
}
