package residual

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katsup07/stock-predictor-2/pkg/logger"
)

// testConfig shrinks the network so training stays fast. The production
// shape is exercised through DefaultConfig assertions below.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Window = 5
	cfg.Hidden1 = 8
	cfg.Hidden2 = 4
	cfg.Dense = 3
	cfg.BatchSize = 8
	cfg.MaxEpochs = 5
	cfg.MinSequences = 10
	return cfg
}

func syntheticData(n, dim int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	feats := make([][]float64, n)
	targets := make([]float64, n)
	for i := range feats {
		row := make([]float64, dim)
		for j := range row {
			row[j] = rng.Float64()
		}
		feats[i] = row
		targets[i] = 3*row[0] - 1
	}
	return feats, targets
}

func TestScalerRoundTrip(t *testing.T) {
	vals := []float64{-4.2, 0, 1.5, 9.75, 3.3}
	s, err := FitScalarScaler(vals)
	require.NoError(t, err)

	for _, v := range vals {
		got := s.InverseScalar(s.TransformScalar(v))
		assert.InDelta(t, v, got, 1e-6)
	}

	scaled := s.TransformScalar(9.75)
	assert.InDelta(t, 1.0, scaled, 1e-9, "max maps to 1")
	assert.InDelta(t, 0.0, s.TransformScalar(-4.2), 1e-9, "min maps to 0")
}

func TestScalerConstantColumn(t *testing.T) {
	s, err := FitScaler([][]float64{{5, 1}, {5, 2}, {5, 3}})
	require.NoError(t, err)
	row := s.TransformRow([]float64{5, 2})
	assert.Equal(t, 0.0, row[0], "constant column scales to zero, not NaN")
	assert.InDelta(t, 0.5, row[1], 1e-9)

	_, err = FitScaler(nil)
	assert.Error(t, err)
}

func TestTrainTooFewSequences(t *testing.T) {
	cfg := DefaultConfig()
	feats, targets := syntheticData(100, 4, 1) // 100-60=40 sequences < 70

	m, err := Train(logger.Nop(), cfg, feats, targets)
	require.NoError(t, err)
	assert.Nil(t, m, "insufficient history is a degraded mode, not an error")
}

func TestTrainMisalignedInput(t *testing.T) {
	feats, targets := syntheticData(50, 4, 1)
	_, err := Train(logger.Nop(), testConfig(), feats, targets[:40])
	assert.Error(t, err)
}

func TestTrainAndPredict(t *testing.T) {
	cfg := testConfig()
	feats, targets := syntheticData(120, 4, 2)

	m, err := Train(logger.Nop(), cfg, feats, targets)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, cfg.Window, m.Window())

	window := feats[len(feats)-cfg.Window:]
	got, err := m.PredictNext(window)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(got) || math.IsInf(got, 0))

	// Inverse scaling bounds the prediction near the training target range.
	assert.Greater(t, got, -10.0)
	assert.Less(t, got, 10.0)

	_, err = m.PredictNext(window[:2])
	assert.Error(t, err, "window length is fixed")
}

func TestTrainingIsDeterministicForSeed(t *testing.T) {
	cfg := testConfig()
	feats, targets := syntheticData(120, 3, 3)

	m1, err := Train(logger.Nop(), cfg, feats, targets)
	require.NoError(t, err)
	m2, err := Train(logger.Nop(), cfg, feats, targets)
	require.NoError(t, err)

	window := feats[len(feats)-cfg.Window:]
	p1, err := m1.PredictNext(window)
	require.NoError(t, err)
	p2, err := m2.PredictNext(window)
	require.NoError(t, err)
	assert.Equal(t, p1, p2, "same seed and data give the same model")
}
