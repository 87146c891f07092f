package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katsup07/stock-predictor-2/internal/domain/models"
	drepo "github.com/katsup07/stock-predictor-2/internal/domain/repository"
	pkghttp "github.com/katsup07/stock-predictor-2/pkg/http"
	"github.com/katsup07/stock-predictor-2/pkg/logger"
)

func chartPayload(symbol string, n int) map[string]interface{} {
	ts := make([]int64, n)
	open := make([]*float64, n)
	high := make([]*float64, n)
	low := make([]*float64, n)
	closes := make([]*float64, n)
	vol := make([]*float64, n)
	base := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		ts[i] = base.AddDate(0, 0, i).Unix()
		v := 100.0 + float64(i)
		vv := 1e6
		open[i], high[i], low[i], closes[i], vol[i] = &v, &v, &v, &v, &vv
	}
	// One null session must be skipped, not zero-filled.
	closes[1] = nil

	return map[string]interface{}{
		"chart": map[string]interface{}{
			"result": []map[string]interface{}{{
				"meta": map[string]interface{}{
					"symbol":             symbol,
					"longName":           "Acme Corporation",
					"exchangeName":       "NMS",
					"fullExchangeName":   "NasdaqGS",
					"currency":           "USD",
					"regularMarketPrice": 104.0,
					"chartPreviousClose": 100.0,
					"regularMarketTime":  ts[n-1],
				},
				"timestamp": ts,
				"indicators": map[string]interface{}{
					"quote": []map[string]interface{}{{
						"open": open, "high": high, "low": low,
						"close": closes, "volume": vol,
					}},
				},
			}},
			"error": nil,
		},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) drepo.MarketDataProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(pkghttp.NewClient(), logger.Nop(),
		WithBaseURL(srv.URL),
		WithRetry(3, time.Millisecond),
		WithRateLimit(100, 100))
}

func TestFetchPriceSeries(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/v8/finance/chart/ACME")
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		json.NewEncoder(w).Encode(chartPayload("ACME", 5))
	})

	series, err := c.FetchPriceSeries(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, "ACME", series.Ticker)
	assert.Equal(t, 4, series.Len(), "null sessions are dropped")
	assert.Equal(t, 104.0, series.LastClose())

	prev := time.Time{}
	for _, b := range series.Bars {
		assert.True(t, b.Date.After(prev), "bars strictly increase by date")
		prev = b.Date
	}
}

func TestFetchPriceSeriesRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "upstream busy", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(chartPayload("ACME", 3))
	})

	series, err := c.FetchPriceSeries(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2, series.Len())
}

func TestFetchPriceSeriesExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusInternalServerError)
	})

	_, err := c.FetchPriceSeries(context.Background(), "ACME")
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUpstreamData)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchQuote(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chartPayload("ACME", 2))
	})

	q, err := c.FetchQuote(context.Background(), "ACME")
	require.NoError(t, err)
	assert.Equal(t, 104.0, q.Price)
	assert.Equal(t, 4.0, q.Change)
	assert.InDelta(t, 4.0, q.ChangePercent, 1e-9)
	assert.Equal(t, "USD", q.Currency)
	assert.Equal(t, "Acme Corporation", q.Name)
	assert.Equal(t, "NasdaqGS", q.Exchange)
}

func searchPayload() map[string]interface{} {
	return map[string]interface{}{
		"quotes": []map[string]interface{}{
			{"symbol": "ACME", "longname": "Acme Corporation", "exchange": "NMS", "sector": "Industrials", "quoteType": "EQUITY"},
			{"symbol": "ACMX", "shortname": "Acme Explorers", "exchange": "NYQ", "quoteType": "EQUITY"},
			{"symbol": "ACME-USD", "shortname": "AcmeCoin", "exchange": "CCC", "quoteType": "CRYPTOCURRENCY"},
			{"symbol": "ACMF", "shortname": "Acme Growth Fund", "exchange": "PCX", "quoteType": "ETF"},
		},
	}
}

func TestSearchSymbolsDirectHitLeads(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v1/finance/search"):
			assert.Equal(t, "ACME", r.URL.Query().Get("q"))
			json.NewEncoder(w).Encode(searchPayload())
		default:
			json.NewEncoder(w).Encode(chartPayload("ACME", 2))
		}
	})

	matches, err := c.SearchSymbols(context.Background(), " acme ")
	require.NoError(t, err)
	require.Len(t, matches, 3, "crypto quotes are filtered and the direct hit is deduplicated")

	direct := matches[0]
	assert.Equal(t, "ACME", direct.Ticker)
	assert.Equal(t, "Acme Corporation", direct.Name)
	assert.Equal(t, "NasdaqGS", direct.Exchange)
	assert.Equal(t, 104.0, direct.LastPrice)
	assert.Equal(t, 4.0, direct.Change)

	assert.Equal(t, "ACMX", matches[1].Ticker)
	assert.Zero(t, matches[1].LastPrice, "fuzzy matches carry identity only")
	assert.Equal(t, "ACMF", matches[2].Ticker)
}

func TestSearchSymbolsFuzzyOnlyWhenNoDirectHit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/finance/search") {
			json.NewEncoder(w).Encode(searchPayload())
			return
		}
		fmt.Fprintln(w, `{"chart":{"result":[],"error":{"code":"Not Found","description":"no such symbol"}}}`)
	})

	matches, err := c.SearchSymbols(context.Background(), "ACM")
	require.NoError(t, err)
	require.Len(t, matches, 3)
	assert.Equal(t, "ACME", matches[0].Ticker)
	assert.Equal(t, "Industrials", matches[0].Sector)
}

func TestSearchSymbolsEmptyQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty query")
	})

	matches, err := c.SearchSymbols(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestFetchMarketContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(chartPayload("CTX", 4))
	})

	mc, err := c.FetchMarketContext(context.Background())
	require.NoError(t, err)
	require.Len(t, mc.Series, 3)
	for _, name := range []string{"sp500", "vix", "treasury10y"} {
		assert.NotEmpty(t, mc.Series[name], "series %s", name)
	}
}

func TestFetchMarketContextAllUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"chart":{"result":[],"error":{"code":"Not Found","description":"gone"}}}`)
	})

	_, err := c.FetchMarketContext(context.Background())
	assert.ErrorIs(t, err, models.ErrUpstreamData)
}
