package usecase

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katsup07/stock-predictor-2/internal/baseline"
	"github.com/katsup07/stock-predictor-2/internal/domain/models"
	"github.com/katsup07/stock-predictor-2/internal/residual"
	"github.com/katsup07/stock-predictor-2/pkg/logger"
	"github.com/katsup07/stock-predictor-2/pkg/util"
)

type fakeMarket struct {
	series *models.PriceSeries
	err    error
}

func (f *fakeMarket) FetchPriceSeries(_ context.Context, ticker string) (*models.PriceSeries, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := *f.series
	s.Ticker = ticker
	return &s, nil
}

func (f *fakeMarket) FetchMarketContext(context.Context) (*models.MarketContextSeries, error) {
	return nil, models.ErrUpstreamData // features degrade gracefully without context
}

func (f *fakeMarket) FetchQuote(context.Context, string) (*models.Quote, error) {
	return nil, models.ErrUpstreamData
}

func (f *fakeMarket) SearchSymbols(context.Context, string) ([]models.SymbolMatch, error) {
	return nil, models.ErrUpstreamData
}

type memStore struct {
	mu   sync.Mutex
	runs map[string]*models.Prediction
}

func newMemStore() *memStore { return &memStore{runs: map[string]*models.Prediction{}} }

func (s *memStore) Save(_ context.Context, p *models.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.runs[p.ID] = &cp
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*models.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.runs[id]
	if !ok {
		return nil, models.ErrPredictionNotFound
	}
	return p, nil
}

func (s *memStore) Close() error { return nil }

type nopMetrics struct{}

func (nopMetrics) RecordRun(string)                             {}
func (nopMetrics) RecordStageDuration(string, float64)          {}
func (nopMetrics) RecordResidualMode(string)                    {}
func (nopMetrics) RecordPredictedPrice(string, string, float64) {}

func randomWalkSeries(n int, seed int64) *models.PriceSeries {
	rng := rand.New(rand.NewSource(seed))
	s := &models.PriceSeries{Ticker: "TEST"}
	price := 100.0
	d := time.Date(2018, 1, 2, 0, 0, 0, 0, time.UTC)
	for len(s.Bars) < n {
		if util.IsBusinessDay(d) {
			price *= 1 + 0.01*(rng.Float64()-0.5)
			s.Bars = append(s.Bars, models.DailyBar{
				Date: d, Open: price, High: price * 1.01, Low: price * 0.99,
				Close: price, Volume: 1e6,
			})
		}
		d = d.AddDate(0, 0, 1)
	}
	return s
}

func smallResidualConfig() residual.Config {
	cfg := residual.DefaultConfig()
	cfg.Window = 10
	cfg.Hidden1 = 6
	cfg.Hidden2 = 4
	cfg.Dense = 3
	cfg.MaxEpochs = 2
	cfg.MinSequences = 100 // keeps short fixtures on the degraded branch
	return cfg
}

func TestBlendResultScenario(t *testing.T) {
	// Last close 200, baseline 1yr point 210, correction 5, weight 0.4.
	point := baseline.Point{Value: 210, Lower: 205, Upper: 215}
	got := blendResult(models.Horizon1Yr, point, 5.0, 200.0)

	assert.Equal(t, 212.0, got.PredictedPrice)
	assert.Equal(t, 6.0, got.ChangePercent)
	assert.Equal(t, 207.0, got.LowerBound, "bounds shift by the same weighted correction")
	assert.Equal(t, 217.0, got.UpperBound)
	assert.Equal(t, 0.765, got.Confidence)
}

func TestConfidenceDecay(t *testing.T) {
	assert.Equal(t, util.Round3(0.85*(1-21.0/2520)), confidence(21))
	assert.Equal(t, 0.1, confidence(5000), "floored for horizons past the decay window")

	prev := 1.0
	for _, h := range models.AllHorizons {
		c := confidence(h.Days())
		assert.Less(t, c, prev, "confidence decreases with horizon %s", h)
		prev = c
	}
}

func TestRunCompletesWithDegradedResidual(t *testing.T) {
	// 300 rows leave ~100 feature rows, well under the sequence minimum, so
	// every prediction equals the unmodified baseline point.
	market := &fakeMarket{series: randomWalkSeries(300, 1)}
	store := newMemStore()
	p := NewPredictor(logger.Nop(), market, nopMetrics{},
		WithStore(store), WithResidualConfig(smallResidualConfig()))

	run, err := p.Accept(context.Background(), "ACME", []string{"1mo", "5yr"})
	require.NoError(t, err)

	stub, err := store.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, stub.Status)

	p.Run(context.Background(), run)

	got, err := store.Get(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	require.Len(t, got.Results, 2)

	oneMo, fiveYr := got.Results[0], got.Results[1]
	assert.Equal(t, models.Horizon1Mo, oneMo.Horizon)
	assert.Nil(t, oneMo.MonteCarlo, "short horizons carry no fan chart")
	assert.Equal(t, models.Horizon5Yr, fiveYr.Horizon)
	require.NotNil(t, fiveYr.MonteCarlo, "three years and beyond always carry one")
	assert.LessOrEqual(t, fiveYr.MonteCarlo.P10, fiveYr.MonteCarlo.P90)

	assert.Len(t, got.Timeseries, 500, "timeseries capped for transport")
	last := got.LastClose
	assert.InDelta(t, oneMo.ChangePercent,
		(oneMo.PredictedPrice-last)/last*100, 0.02)
}

// calmAfterStormSeries has violent swings in its warmup prefix and a dead
// flat tail long enough to cover every feature row.
func calmAfterStormSeries(n, stormBars int) *models.PriceSeries {
	s := &models.PriceSeries{Ticker: "TEST"}
	d := time.Date(2018, 1, 2, 0, 0, 0, 0, time.UTC)
	for len(s.Bars) < n {
		if util.IsBusinessDay(d) {
			price := 100.0
			if i := len(s.Bars); i < stormBars {
				if i%2 == 0 {
					price = 110.0
				} else {
					price = 90.0
				}
			}
			s.Bars = append(s.Bars, models.DailyBar{
				Date: d, Open: price, High: price * 1.01, Low: price * 0.99,
				Close: price, Volume: 1e6,
			})
		}
		d = d.AddDate(0, 0, 1)
	}
	return s
}

func TestMonteCarloUsesFeatureWindowVolatility(t *testing.T) {
	// The 190 storm bars all fall inside the indicator warmup, so the rows
	// the models see are flat. Fan-chart volatility must come from those
	// rows, not the raw history, leaving the chart degenerate here.
	market := &fakeMarket{series: calmAfterStormSeries(460, 190)}
	store := newMemStore()
	cfg := smallResidualConfig()
	cfg.MinSequences = 1000
	p := NewPredictor(logger.Nop(), market, nopMetrics{},
		WithStore(store), WithResidualConfig(cfg))

	run, err := p.Accept(context.Background(), "ACME", []string{"5yr"})
	require.NoError(t, err)
	p.Run(context.Background(), run)

	got, err := store.Get(context.Background(), run.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, got.Status)
	require.Len(t, got.Results, 1)

	mc := got.Results[0].MonteCarlo
	require.NotNil(t, mc)
	assert.Equal(t, mc.P10, mc.P90, "zero recent volatility collapses the fan chart")
	assert.Equal(t, 100.0, mc.P50)
	assert.Zero(t, mc.Std)
}

func TestRunFailsOnUpstreamError(t *testing.T) {
	market := &fakeMarket{err: models.ErrUpstreamData}
	store := newMemStore()
	p := NewPredictor(logger.Nop(), market, nopMetrics{}, WithStore(store))

	run, err := p.Accept(context.Background(), "ACME", []string{"1yr"})
	require.NoError(t, err)
	p.Run(context.Background(), run)

	got, err := store.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.NotEmpty(t, got.Error, "terminal failure always carries a readable error")
	assert.Empty(t, got.Results, "no partial horizon set on failure")
}

func TestRunFailsOnShortHistory(t *testing.T) {
	market := &fakeMarket{series: randomWalkSeries(120, 2)}
	store := newMemStore()
	p := NewPredictor(logger.Nop(), market, nopMetrics{}, WithStore(store))

	run, err := p.Accept(context.Background(), "ACME", []string{"1mo"})
	require.NoError(t, err)
	p.Run(context.Background(), run)

	got, err := store.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
}

func TestGoroutineDispatcher(t *testing.T) {
	market := &fakeMarket{series: randomWalkSeries(300, 3)}
	store := newMemStore()
	p := NewPredictor(logger.Nop(), market, nopMetrics{},
		WithStore(store), WithResidualConfig(smallResidualConfig()))
	d := NewGoroutineDispatcher(logger.Nop(), p, 2)

	run, err := p.Accept(context.Background(), "ACME", []string{"1mo"})
	require.NoError(t, err)
	require.NoError(t, d.Dispatch(context.Background(), run))
	d.Stop()

	got, err := store.Get(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
}

func TestGetWithoutStore(t *testing.T) {
	p := NewPredictor(logger.Nop(), &fakeMarket{}, nopMetrics{})
	_, err := p.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrPredictionNotFound)
}
