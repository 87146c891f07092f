package features

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katsup07/stock-predictor-2/internal/domain/models"
	"github.com/katsup07/stock-predictor-2/pkg/util"
)

func businessDaySeries(n int, close func(i int) float64, volume func(i int) float64) *models.PriceSeries {
	s := &models.PriceSeries{Ticker: "TEST"}
	d := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		for !util.IsBusinessDay(d) {
			d = d.AddDate(0, 0, 1)
		}
		c := close(i)
		s.Bars = append(s.Bars, models.DailyBar{
			Date: d, Open: c, High: c * 1.01, Low: c * 0.99, Close: c, Volume: volume(i),
		})
		d = d.AddDate(0, 0, 1)
	}
	return s
}

func TestDeriveFlatSeries(t *testing.T) {
	series := businessDaySeries(600,
		func(i int) float64 { return 100.0 },
		func(i int) float64 { return 0 })

	table, err := Derive(series, nil)
	require.NoError(t, err)

	// 200-period windows dominate the warm-up drop.
	assert.Equal(t, 401, table.Len())

	for _, name := range []string{"sma_5", "sma_20", "sma_50", "sma_200", "ema_5", "ema_200"} {
		for _, v := range table.Column(name) {
			assert.InDelta(t, 100.0, v, 1e-9, "column %s", name)
		}
	}
	for _, v := range table.Column("rsi_14") {
		assert.InDelta(t, 50.0, v, 1e-9, "flat series oscillator is neutral")
	}
	for _, v := range table.Column("bb_width") {
		assert.InDelta(t, 0.0, v, 1e-9)
	}
	for _, v := range table.Column("return_1") {
		assert.InDelta(t, 0.0, v, 1e-12)
	}
}

func TestDeriveNoUndefinedValues(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	price := 150.0
	series := businessDaySeries(500,
		func(i int) float64 {
			price *= 1 + 0.02*(rng.Float64()-0.5)
			return price
		},
		func(i int) float64 { return 1e6 * (1 + rng.Float64()) })

	context := &models.MarketContextSeries{Series: map[string][]models.ContextPoint{}}
	for _, name := range []string{"sp500", "vix", "treasury10y"} {
		pts := make([]models.ContextPoint, 0, len(series.Bars))
		for i, b := range series.Bars {
			if i%7 == 3 {
				continue // gaps get forward-filled
			}
			pts = append(pts, models.ContextPoint{Date: b.Date, Value: 1000 + float64(i)})
		}
		context.Series[name] = pts
	}

	table, err := Derive(series, context)
	require.NoError(t, err)
	require.GreaterOrEqual(t, 500-table.Len(), 199, "warm-up rows must be dropped")

	for _, name := range table.Columns() {
		for i, v := range table.Column(name) {
			require.False(t, math.IsNaN(v), "NaN in column %s row %d", name, i)
		}
	}

	assert.Contains(t, table.ModelColumns(), "sp500")
	assert.Contains(t, table.ModelColumns(), "sp500_return")
	assert.NotContains(t, table.ModelColumns(), "close", "raw prices excluded from model input")
	assert.NotContains(t, table.ModelColumns(), "volume")

	// Matrix shape matches the declared schema.
	m := table.ModelMatrix()
	require.Equal(t, table.Len(), len(m))
	assert.Equal(t, len(table.ModelColumns()), len(m[0]))
}

func TestDeriveInsufficientData(t *testing.T) {
	series := businessDaySeries(150,
		func(i int) float64 { return 100 + float64(i) },
		func(i int) float64 { return 1000 })

	_, err := Derive(series, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInsufficientData)

	_, err = Derive(&models.PriceSeries{Ticker: "EMPTY"}, nil)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}
