package baseline

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katsup07/stock-predictor-2/pkg/util"
)

func businessDays(n int) []time.Time {
	out := make([]time.Time, 0, n)
	d := time.Date(2019, 1, 2, 0, 0, 0, 0, time.UTC)
	for len(out) < n {
		if util.IsBusinessDay(d) {
			out = append(out, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return out
}

func TestFitFlatSeries(t *testing.T) {
	dates := businessDays(600)
	closes := make([]float64, len(dates))
	for i := range closes {
		closes[i] = 100.0
	}

	m, err := Fit(dates, closes)
	require.NoError(t, err)

	for _, h := range []int{21, 252, 1260} {
		fc := m.Forecast(h)
		require.Len(t, fc, h)
		last := fc[len(fc)-1]
		assert.InDelta(t, 100.0, last.Value, 0.5, "flat series forecast at %d days", h)
		assert.LessOrEqual(t, last.Lower, last.Value)
		assert.GreaterOrEqual(t, last.Upper, last.Value)
	}

	for _, r := range m.InSampleResiduals() {
		assert.InDelta(t, 0.0, r, 0.5)
	}
}

func TestFitLinearTrend(t *testing.T) {
	dates := businessDays(500)
	closes := make([]float64, len(dates))
	for i := range closes {
		closes[i] = 100.0 * math.Exp(0.001*float64(i))
	}

	m, err := Fit(dates, closes)
	require.NoError(t, err)

	fc := m.Forecast(21)
	require.Len(t, fc, 21)
	lastClose := closes[len(closes)-1]
	assert.Greater(t, fc[20].Value, lastClose, "upward trend continues beyond the last observation")

	// Residuals align one-to-one with the fit range.
	assert.Len(t, m.InSampleResiduals(), len(dates))
	assert.Len(t, m.Dates(), len(dates))
}

func TestForecastStrictlyFuture(t *testing.T) {
	dates := businessDays(300)
	closes := make([]float64, len(dates))
	for i := range closes {
		closes[i] = 50 + 0.1*float64(i)
	}

	m, err := Fit(dates, closes)
	require.NoError(t, err)

	fc := m.Forecast(10)
	lastObserved := dates[len(dates)-1]
	prev := lastObserved
	for _, p := range fc {
		assert.True(t, p.Date.After(prev), "forecast dates strictly increase past the history")
		assert.True(t, util.IsBusinessDay(p.Date))
		prev = p.Date
	}
}

func TestFitRejectsBadInput(t *testing.T) {
	dates := businessDays(10)

	_, err := Fit(dates[:3], []float64{1, 2})
	assert.Error(t, err)

	_, err = Fit(dates[:2], []float64{100, -5})
	assert.Error(t, err)

	_, err = Fit(dates[:1], []float64{100})
	assert.Error(t, err)
}
