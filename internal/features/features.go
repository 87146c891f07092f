package features

import (
	"fmt"
	"math"
	"sort"
	"time"

	talib "github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/stat"

	"github.com/katsup07/stock-predictor-2/internal/domain/models"
)

// rawColumns are carried through for reference but excluded from model input:
// absolute price/volume levels are scale-incompatible with indicator ratios.
var rawColumns = []string{"open", "high", "low", "close", "volume"}

// indicatorColumns is the fixed engineered-feature schema, in output order.
// Window sizes are contractual, not tunable defaults.
var indicatorColumns = []string{
	"sma_5", "sma_20", "sma_50", "sma_200",
	"ema_5", "ema_20", "ema_50", "ema_200",
	"rsi_14",
	"macd", "macd_signal", "macd_hist",
	"bb_upper", "bb_mid", "bb_lower", "bb_width",
	"atr_14",
	"obv",
	"roc_10",
	"return_1", "return_5", "return_20",
	"vol_20",
}

// FeatureTable holds one row per date after the warm-up drop, with raw OHLCV,
// indicator and market-context columns. No remaining cell is NaN.
type FeatureTable struct {
	Dates   []time.Time
	columns map[string][]float64
	order   []string // every column, schema order
	model   []string // model-input columns (indicators + context)
}

// Len returns the number of rows.
func (t *FeatureTable) Len() int { return len(t.Dates) }

// Columns returns all column names in schema order.
func (t *FeatureTable) Columns() []string { return t.order }

// ModelColumns returns the enumerated model-input columns. Downstream
// consumers receive this schema structurally instead of rediscovering
// columns by name.
func (t *FeatureTable) ModelColumns() []string { return t.model }

// Column returns the values of a named column, or nil if absent.
func (t *FeatureTable) Column(name string) []float64 { return t.columns[name] }

// ModelMatrix returns the model-input columns as a row-major matrix aligned
// with Dates.
func (t *FeatureTable) ModelMatrix() [][]float64 {
	rows := make([][]float64, t.Len())
	for i := range rows {
		row := make([]float64, len(t.model))
		for j, name := range t.model {
			row[j] = t.columns[name][i]
		}
		rows[i] = row
	}
	return rows
}

// Derive builds the feature table from a daily price series and optional
// market context. At least 199 leading warm-up rows are dropped when data is
// sufficient; the 200-period windows dominate the warm-up.
func Derive(series *models.PriceSeries, context *models.MarketContextSeries) (*FeatureTable, error) {
	n := series.Len()
	if n == 0 {
		return nil, fmt.Errorf("empty price series: %w", models.ErrInsufficientData)
	}

	opens := make([]float64, n)
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range series.Bars {
		opens[i] = b.Open
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	cols := map[string][]float64{
		"open":   opens,
		"high":   highs,
		"low":    lows,
		"close":  closes,
		"volume": volumes,
	}

	// go-talib zero-fills the warm-up region, so the lookback of each
	// indicator is masked to NaN explicitly before the drop step.
	for _, w := range []int{5, 20, 50, 200} {
		cols[fmt.Sprintf("sma_%d", w)] = maskLeading(talib.Sma(closes, w), w-1)
		cols[fmt.Sprintf("ema_%d", w)] = maskLeading(talib.Ema(closes, w), w-1)
	}
	cols["rsi_14"] = neutralizeFlatRSI(maskLeading(talib.Rsi(closes, 14), 14), closes, 14)

	macd, macdSignal, macdHist := talib.Macd(closes, 12, 26, 9)
	cols["macd"] = maskLeading(macd, 33)
	cols["macd_signal"] = maskLeading(macdSignal, 33)
	cols["macd_hist"] = maskLeading(macdHist, 33)

	bbUpper, bbMid, bbLower := talib.BBands(closes, 20, 2, 2, talib.SMA)
	cols["bb_upper"] = maskLeading(bbUpper, 19)
	cols["bb_mid"] = maskLeading(bbMid, 19)
	cols["bb_lower"] = maskLeading(bbLower, 19)
	cols["bb_width"] = bandWidth(cols["bb_upper"], cols["bb_mid"], cols["bb_lower"])

	cols["atr_14"] = maskLeading(talib.Atr(highs, lows, closes, 14), 14)
	cols["obv"] = talib.Obv(closes, volumes)
	cols["roc_10"] = maskLeading(talib.Roc(closes, 10), 10)

	cols["return_1"] = simpleReturns(closes, 1)
	cols["return_5"] = simpleReturns(closes, 5)
	cols["return_20"] = simpleReturns(closes, 20)
	cols["vol_20"] = realizedVol(cols["return_1"], 20)

	order := append(append([]string{}, rawColumns...), indicatorColumns...)
	model := append([]string{}, indicatorColumns...)

	if context != nil {
		names := make([]string, 0, len(context.Series))
		for name := range context.Series {
			names = append(names, name)
		}
		sort.Strings(names)
		dates := series.Dates()
		for _, name := range names {
			joined := joinForwardFill(dates, context.Series[name])
			ret := simpleReturns(joined, 1)
			cols[name] = joined
			cols[name+"_return"] = ret
			order = append(order, name, name+"_return")
			model = append(model, name, name+"_return")
		}
	}

	table := dropNaNRows(series.Dates(), cols, order, model)
	if table.Len() == 0 {
		return nil, fmt.Errorf("price series of %d rows leaves no usable feature rows: %w",
			n, models.ErrInsufficientData)
	}
	return table, nil
}

// maskLeading replaces the first k values with NaN. go-talib reports 0 for
// warm-up slots, which would otherwise survive the drop step as fake data.
func maskLeading(vals []float64, k int) []float64 {
	for i := 0; i < k && i < len(vals); i++ {
		vals[i] = math.NaN()
	}
	return vals
}

// neutralizeFlatRSI pins the oscillator to its neutral midpoint where the
// lookback window is perfectly flat. The 0/0 average-gain case is undefined
// and ta-lib reports it as 0, which would read as maximally oversold.
func neutralizeFlatRSI(rsi, closes []float64, period int) []float64 {
	for i := period; i < len(rsi); i++ {
		flat := true
		for j := i - period; j < i; j++ {
			if closes[j] != closes[j+1] {
				flat = false
				break
			}
		}
		if flat {
			rsi[i] = 50
		}
	}
	return rsi
}

func bandWidth(upper, mid, lower []float64) []float64 {
	out := make([]float64, len(mid))
	for i := range mid {
		if mid[i] == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = (upper[i] - lower[i]) / mid[i]
	}
	return out
}

func simpleReturns(vals []float64, k int) []float64 {
	out := make([]float64, len(vals))
	for i := range vals {
		if i < k || vals[i-k] == 0 || math.IsNaN(vals[i]) || math.IsNaN(vals[i-k]) {
			out[i] = math.NaN()
			continue
		}
		out[i] = vals[i]/vals[i-k] - 1
	}
	return out
}

// realizedVol annualizes the rolling sample std of 1-period returns.
func realizedVol(returns []float64, window int) []float64 {
	out := make([]float64, len(returns))
	for i := range returns {
		if i < window {
			out[i] = math.NaN()
			continue
		}
		out[i] = stat.StdDev(returns[i-window+1:i+1], nil) * math.Sqrt(252)
	}
	return out
}

// joinForwardFill left-joins a context series onto the price dates, carrying
// the last known value across gaps. Dates before the first context point
// stay NaN.
func joinForwardFill(dates []time.Time, points []models.ContextPoint) []float64 {
	out := make([]float64, len(dates))
	last := math.NaN()
	j := 0
	for i, d := range dates {
		for j < len(points) && !points[j].Date.After(d) {
			last = points[j].Value
			j++
		}
		out[i] = last
	}
	return out
}

func dropNaNRows(dates []time.Time, cols map[string][]float64, order, model []string) *FeatureTable {
	n := len(dates)
	keep := make([]bool, n)
	kept := 0
	for i := 0; i < n; i++ {
		ok := true
		for _, name := range order {
			if math.IsNaN(cols[name][i]) {
				ok = false
				break
			}
		}
		keep[i] = ok
		if ok {
			kept++
		}
	}

	out := &FeatureTable{
		Dates:   make([]time.Time, 0, kept),
		columns: make(map[string][]float64, len(order)),
		order:   order,
		model:   model,
	}
	for _, name := range order {
		out.columns[name] = make([]float64, 0, kept)
	}
	for i := 0; i < n; i++ {
		if !keep[i] {
			continue
		}
		out.Dates = append(out.Dates, dates[i])
		for _, name := range order {
			out.columns[name] = append(out.columns[name], cols[name][i])
		}
	}
	return out
}
