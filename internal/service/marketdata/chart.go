package marketdata

import (
	"fmt"
	"time"

	"github.com/katsup07/stock-predictor-2/internal/domain/models"
)

// chartResponse mirrors the v8 chart payload shape. Quote arrays use
// pointers because the upstream emits null for missing sessions.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				LongName           string  `json:"longName"`
				ShortName          string  `json:"shortName"`
				ExchangeName       string  `json:"exchangeName"`
				FullExchangeName   string  `json:"fullExchangeName"`
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// barsFromChart converts a chart payload into an ordered price series,
// skipping sessions with any missing field.
func barsFromChart(ticker string, resp *chartResponse) (*models.PriceSeries, error) {
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("empty chart result: %w", models.ErrUpstreamData)
	}
	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("chart result has no quote block: %w", models.ErrUpstreamData)
	}
	quote := result.Indicators.Quote[0]

	series := &models.PriceSeries{Ticker: ticker}
	for i, ts := range result.Timestamp {
		if i >= len(quote.Open) || i >= len(quote.High) || i >= len(quote.Low) ||
			i >= len(quote.Close) || i >= len(quote.Volume) {
			break
		}
		if quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil ||
			quote.Close[i] == nil || quote.Volume[i] == nil {
			continue
		}
		day := time.Unix(ts, 0).UTC().Truncate(24 * time.Hour)
		// Intraday refreshes can repeat the last session; keep the latest.
		if n := len(series.Bars); n > 0 && !series.Bars[n-1].Date.Before(day) {
			series.Bars = series.Bars[:n-1]
		}
		series.Bars = append(series.Bars, models.DailyBar{
			Date:   day,
			Open:   *quote.Open[i],
			High:   *quote.High[i],
			Low:    *quote.Low[i],
			Close:  *quote.Close[i],
			Volume: *quote.Volume[i],
		})
	}
	if series.Len() == 0 {
		return nil, fmt.Errorf("no complete daily bars: %w", models.ErrUpstreamData)
	}
	return series, nil
}
