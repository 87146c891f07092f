package models

import "time"

// DailyBar is a single end-of-day OHLCV record.
type DailyBar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// PriceSeries is an ordered daily price history, strictly increasing by date.
// Non-trading days are simply absent. Immutable once fetched.
type PriceSeries struct {
	Ticker string
	Bars   []DailyBar
}

// Len returns the number of bars in the series.
func (s *PriceSeries) Len() int { return len(s.Bars) }

// LastClose returns the most recent closing price, or 0 for an empty series.
func (s *PriceSeries) LastClose() float64 {
	if len(s.Bars) == 0 {
		return 0
	}
	return s.Bars[len(s.Bars)-1].Close
}

// LastDate returns the most recent bar date, or the zero time for an empty series.
func (s *PriceSeries) LastDate() time.Time {
	if len(s.Bars) == 0 {
		return time.Time{}
	}
	return s.Bars[len(s.Bars)-1].Date
}

// Closes returns the closing prices in date order.
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Dates returns the bar dates in order.
func (s *PriceSeries) Dates() []time.Time {
	out := make([]time.Time, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Date
	}
	return out
}

// ContextPoint is one dated observation of a market context series.
type ContextPoint struct {
	Date  time.Time
	Value float64
}

// MarketContextSeries holds named context series (broad index, volatility
// index, long-term yield) keyed by date. Joined against a PriceSeries by the
// feature engineer with forward fill across gaps.
type MarketContextSeries struct {
	Series map[string][]ContextPoint
}

// Quote is a current-price snapshot for a ticker with the company identity
// the chart metadata carries.
type Quote struct {
	Ticker        string    `json:"ticker"`
	Name          string    `json:"name"`
	Exchange      string    `json:"exchange"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Currency      string    `json:"currency"`
	MarketTime    time.Time `json:"marketTime"`
}

// SymbolMatch is one symbol-search result. Price fields are populated only
// for a direct ticker hit; fuzzy matches carry identity fields alone.
type SymbolMatch struct {
	Ticker        string  `json:"ticker"`
	Name          string  `json:"name"`
	Exchange      string  `json:"exchange"`
	Sector        string  `json:"sector"`
	LastPrice     float64 `json:"lastPrice"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
}
