package baseline

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/katsup07/stock-predictor-2/pkg/util"
)

// Decomposition parameters. The changepoint prior scale controls trend-bend
// sensitivity and is fixed, not tuned per run.
const (
	numChangepoints    = 25
	changepointRange   = 0.8
	changepointPrior   = 0.05
	weeklyFourierOrder = 3
	yearlyFourierOrder = 10
	daysPerYear        = 365.25
	uncertaintyZ       = 1.64 // ~80% band
)

// usHolidays are fixed-calendar dates whose neighborhood gets a dummy
// regressor. Trading days adjacent to market closures carry a repeatable
// effect worth absorbing out of the trend.
var usHolidays = []struct {
	month time.Month
	day   int
}{
	{time.January, 1},
	{time.June, 19},
	{time.July, 4},
	{time.December, 25},
}

// Point is a single forecast entry in price space.
type Point struct {
	Date  time.Time
	Value float64
	Lower float64
	Upper float64
}

// Model is a trend plus weekly/yearly seasonality decomposition fit on
// log-close. Additive in log space, so seasonal effects scale
// multiplicatively with price. Refit from scratch on the full history every
// run.
type Model struct {
	start        time.Time
	spanDays     float64
	changepoints []float64
	coefs        []float64
	sigma        float64 // in-sample residual std, log space
	dates        []time.Time
	fitted       []float64 // price space
	observed     []float64
}

// Fit builds the decomposition model from aligned dates and closing prices.
func Fit(dates []time.Time, closes []float64) (*Model, error) {
	n := len(dates)
	if n != len(closes) {
		return nil, fmt.Errorf("dates and closes length mismatch: %d vs %d", n, len(closes))
	}
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 observations, got %d", n)
	}
	for i, c := range closes {
		if c <= 0 || math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("non-positive close %v at index %d", c, i)
		}
	}

	m := &Model{
		start:    dates[0],
		spanDays: dates[n-1].Sub(dates[0]).Hours() / 24,
		dates:    append([]time.Time{}, dates...),
		observed: append([]float64{}, closes...),
	}
	if m.spanDays <= 0 {
		m.spanDays = 1
	}

	// Changepoints evenly spaced over the first 80% of scaled history.
	m.changepoints = make([]float64, numChangepoints)
	for j := range m.changepoints {
		m.changepoints[j] = changepointRange * float64(j+1) / float64(numChangepoints+1)
	}

	width := m.featureCount()
	rows := n + numChangepoints // penalty rows keep the trend from bending freely
	a := mat.NewDense(rows, width, nil)
	y := mat.NewVecDense(rows, nil)
	for i := 0; i < n; i++ {
		a.SetRow(i, m.designRow(dates[i]))
		y.SetVec(i, math.Log(closes[i]))
	}
	penalty := math.Sqrt(1.0 / changepointPrior)
	for j := 0; j < numChangepoints; j++ {
		a.Set(n+j, 2+j, penalty)
	}

	var x mat.VecDense
	if err := x.SolveVec(a, y); err != nil {
		// A Condition error still carries a usable solution; the seasonal
		// columns are often near-collinear on short histories.
		if _, ok := err.(mat.Condition); !ok {
			return nil, fmt.Errorf("least squares solve: %w", err)
		}
	}
	m.coefs = make([]float64, width)
	for j := 0; j < width; j++ {
		m.coefs[j] = x.AtVec(j)
	}

	m.fitted = make([]float64, n)
	logResiduals := make([]float64, n)
	for i := 0; i < n; i++ {
		logFit := m.predictLog(dates[i])
		m.fitted[i] = math.Exp(logFit)
		logResiduals[i] = math.Log(closes[i]) - logFit
	}
	m.sigma = stat.StdDev(logResiduals, nil)
	if math.IsNaN(m.sigma) {
		m.sigma = 0
	}
	return m, nil
}

// Forecast produces point and band estimates for each future business day,
// strictly after the last observed date, up to horizonDays steps. Bands widen
// with the square root of the step count relative to history length.
func (m *Model) Forecast(horizonDays int) []Point {
	out := make([]Point, 0, horizonDays)
	n := float64(len(m.dates))
	d := m.dates[len(m.dates)-1]
	for h := 1; h <= horizonDays; h++ {
		d = util.NextBusinessDay(d)
		logFit := m.predictLog(d)
		spread := uncertaintyZ * m.sigma * math.Sqrt(1+float64(h)/n)
		out = append(out, Point{
			Date:  d,
			Value: math.Exp(logFit),
			Lower: math.Exp(logFit - spread),
			Upper: math.Exp(logFit + spread),
		})
	}
	return out
}

// InSampleResiduals returns observed minus retrodicted close per fit date, in
// price space, aligned one-to-one with the fit range.
func (m *Model) InSampleResiduals() []float64 {
	out := make([]float64, len(m.fitted))
	for i := range out {
		out[i] = m.observed[i] - m.fitted[i]
	}
	return out
}

// Dates returns the fit dates.
func (m *Model) Dates() []time.Time { return m.dates }

// Fitted returns the retrodicted closes, price space.
func (m *Model) Fitted() []float64 { return m.fitted }

func (m *Model) featureCount() int {
	return 2 + numChangepoints + 2*weeklyFourierOrder + 2*yearlyFourierOrder + len(usHolidays)
}

// designRow builds the regression features for one date: intercept, scaled
// time, hinge terms per changepoint, weekly and yearly Fourier pairs, and
// holiday dummies.
func (m *Model) designRow(d time.Time) []float64 {
	days := d.Sub(m.start).Hours() / 24
	t := days / m.spanDays

	row := make([]float64, 0, m.featureCount())
	row = append(row, 1, t)
	for _, cp := range m.changepoints {
		if t > cp {
			row = append(row, t-cp)
		} else {
			row = append(row, 0)
		}
	}
	for k := 1; k <= weeklyFourierOrder; k++ {
		arg := 2 * math.Pi * float64(k) * days / 7
		row = append(row, math.Sin(arg), math.Cos(arg))
	}
	for k := 1; k <= yearlyFourierOrder; k++ {
		arg := 2 * math.Pi * float64(k) * days / daysPerYear
		row = append(row, math.Sin(arg), math.Cos(arg))
	}
	for _, h := range usHolidays {
		row = append(row, holidayDummy(d, h.month, h.day))
	}
	return row
}

func (m *Model) predictLog(d time.Time) float64 {
	row := m.designRow(d)
	sum := 0.0
	for j, v := range row {
		sum += m.coefs[j] * v
	}
	return sum
}

// holidayDummy is 1 when d falls within one calendar day of the fixed date.
func holidayDummy(d time.Time, month time.Month, day int) float64 {
	for _, delta := range []int{-1, 0, 1} {
		x := d.AddDate(0, 0, delta)
		if x.Month() == month && x.Day() == day {
			return 1
		}
	}
	return 0
}
