package simulation

import (
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/katsup07/stock-predictor-2/internal/domain/models"
	"github.com/katsup07/stock-predictor-2/pkg/util"
)

const (
	numPaths    = 1000
	tradingDays = 252

	// The seed is fixed so fan charts are reproducible for identical
	// drift, volatility and day-count inputs. Identical across runs and
	// tickers for a given input triple, which is the documented contract.
	seed = 42
)

// DriftVol derives annualized drift and volatility from a close series:
// mean and sample std of 1-day simple returns, annualized by 252.
func DriftVol(closes []float64) (drift, vol float64) {
	if len(closes) < 2 {
		return math.NaN(), math.NaN()
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			return math.NaN(), math.NaN()
		}
		returns = append(returns, closes[i]/closes[i-1]-1)
	}
	drift = stat.Mean(returns, nil) * tradingDays
	vol = stat.StdDev(returns, nil) * math.Sqrt(tradingDays)
	return drift, vol
}

// Run simulates geometric Brownian motion paths from lastPrice and returns
// the terminal price distribution summary. Deterministic for identical
// inputs.
func Run(lastPrice, drift, vol float64, days int) (*models.MonteCarloBundle, error) {
	if !isFinite(drift) || !isFinite(vol) {
		return nil, fmt.Errorf("drift=%v vol=%v: %w", drift, vol, models.ErrSimulationInput)
	}
	if lastPrice <= 0 || !isFinite(lastPrice) {
		return nil, fmt.Errorf("last price %v: %w", lastPrice, models.ErrSimulationInput)
	}
	if days <= 0 {
		return nil, fmt.Errorf("day count %d: %w", days, models.ErrSimulationInput)
	}

	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(seed)}
	dt := 1.0 / tradingDays
	step := (drift - 0.5*vol*vol) * dt
	shock := vol * math.Sqrt(dt)

	terminal := make([]float64, numPaths)
	for p := 0; p < numPaths; p++ {
		price := lastPrice
		for d := 0; d < days; d++ {
			price *= math.Exp(step + shock*normal.Rand())
		}
		terminal[p] = price
	}

	sorted := append([]float64{}, terminal...)
	sort.Float64s(sorted)

	return &models.MonteCarloBundle{
		P10:  util.Round2(percentile(sorted, 10)),
		P25:  util.Round2(percentile(sorted, 25)),
		P50:  util.Round2(percentile(sorted, 50)),
		P75:  util.Round2(percentile(sorted, 75)),
		P90:  util.Round2(percentile(sorted, 90)),
		Mean: util.Round2(stat.Mean(terminal, nil)),
		Std:  util.Round2(stat.PopStdDev(terminal, nil)),
	}, nil
}

// percentile interpolates linearly between closest ranks on sorted input.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
