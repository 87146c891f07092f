package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/katsup07/stock-predictor-2/internal/domain/models"
	drepo "github.com/katsup07/stock-predictor-2/internal/domain/repository"
	"github.com/katsup07/stock-predictor-2/internal/service/ratelimit"
	pkghttp "github.com/katsup07/stock-predictor-2/pkg/http"
	"github.com/katsup07/stock-predictor-2/pkg/logger"
)

// contextTickers maps upstream index symbols to context series names.
var contextTickers = map[string]string{
	"^GSPC": "sp500",
	"^VIX":  "vix",
	"^TNX":  "treasury10y",
}

// Client fetches daily bars and quotes from a Yahoo-style chart API.
// Transient failures are retried with linear backoff before surfacing.
type Client struct {
	http          *pkghttp.Client
	log           *logger.Logger
	baseURL       string
	retryAttempts int
	retryDelay    time.Duration
	limiter       *ratelimit.Limiter
	rateCapacity  float64
	rateRefill    float64
	historyYears  int
}

// Option configures Client.
type Option func(*Client)

// WithBaseURL overrides the upstream base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithRetry sets the retry attempts and the base backoff delay.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) { c.retryAttempts, c.retryDelay = attempts, delay }
}

// WithRateLimit sets the upstream token bucket parameters.
func WithRateLimit(capacity, refillPerSec float64) Option {
	return func(c *Client) { c.rateCapacity, c.rateRefill = capacity, refillPerSec }
}

// WithHistoryYears sets how much history a price series request pulls.
func WithHistoryYears(years int) Option {
	return func(c *Client) { c.historyYears = years }
}

// New creates a market data client.
func New(httpClient *pkghttp.Client, log *logger.Logger, opts ...Option) drepo.MarketDataProvider {
	c := &Client{
		http:          httpClient,
		log:           log,
		baseURL:       "https://query1.finance.yahoo.com",
		retryAttempts: 3,
		retryDelay:    2 * time.Second,
		limiter:       ratelimit.New(),
		rateCapacity:  5,
		rateRefill:    2,
		historyYears:  10,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPriceSeries pulls the full daily history for a ticker.
func (c *Client) FetchPriceSeries(ctx context.Context, ticker string) (*models.PriceSeries, error) {
	resp, err := c.chart(ctx, ticker, fmt.Sprintf("%dy", c.historyYears))
	if err != nil {
		return nil, err
	}
	series, err := barsFromChart(ticker, resp)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ticker, err)
	}
	c.log.Debug("price series fetched",
		logger.String("ticker", ticker), logger.Int("bars", series.Len()))
	return series, nil
}

// FetchMarketContext pulls the broad index, volatility index and long-term
// yield series. Missing individual series degrade the context instead of
// failing it; only a fully empty result is an error.
func (c *Client) FetchMarketContext(ctx context.Context) (*models.MarketContextSeries, error) {
	out := &models.MarketContextSeries{Series: map[string][]models.ContextPoint{}}
	for symbol, name := range contextTickers {
		resp, err := c.chart(ctx, symbol, fmt.Sprintf("%dy", c.historyYears))
		if err != nil {
			c.log.Warn("context series unavailable",
				logger.String("symbol", symbol), logger.Error(err))
			continue
		}
		series, err := barsFromChart(symbol, resp)
		if err != nil {
			c.log.Warn("context series unparseable",
				logger.String("symbol", symbol), logger.Error(err))
			continue
		}
		points := make([]models.ContextPoint, 0, series.Len())
		for _, b := range series.Bars {
			points = append(points, models.ContextPoint{Date: b.Date, Value: b.Close})
		}
		out.Series[name] = points
	}
	if len(out.Series) == 0 {
		return nil, fmt.Errorf("no context series available: %w", models.ErrUpstreamData)
	}
	return out, nil
}

// FetchQuote returns the current price snapshot from the chart metadata.
func (c *Client) FetchQuote(ctx context.Context, ticker string) (*models.Quote, error) {
	resp, err := c.chart(ctx, ticker, "1d")
	if err != nil {
		return nil, err
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("empty chart result for %s: %w", ticker, models.ErrUpstreamData)
	}
	meta := resp.Chart.Result[0].Meta
	change := meta.RegularMarketPrice - meta.ChartPreviousClose
	changePct := 0.0
	if meta.ChartPreviousClose != 0 {
		changePct = change / meta.ChartPreviousClose * 100
	}
	name := meta.LongName
	if name == "" {
		name = meta.ShortName
	}
	if name == "" {
		name = ticker
	}
	exchange := meta.FullExchangeName
	if exchange == "" {
		exchange = meta.ExchangeName
	}
	return &models.Quote{
		Ticker:        ticker,
		Name:          name,
		Exchange:      exchange,
		Price:         meta.RegularMarketPrice,
		Change:        change,
		ChangePercent: changePct,
		Currency:      meta.Currency,
		MarketTime:    time.Unix(meta.RegularMarketTime, 0).UTC(),
	}, nil
}

// chart issues one chart request with rate limiting and linear-backoff
// retries (delay * attempt number).
func (c *Client) chart(ctx context.Context, symbol, rangeParam string) (*chartResponse, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, url.PathEscape(symbol))
	params := url.Values{}
	params.Set("range", rangeParam)
	params.Set("interval", "1d")

	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt-1)):
			}
		}
		if err := c.limiter.Wait(ctx, "chart", c.rateCapacity, c.rateRefill); err != nil {
			return nil, err
		}

		var resp chartResponse
		if err := c.http.GetJSON(ctx, endpoint, params, &resp); err != nil {
			lastErr = err
			c.log.Warn("chart request failed",
				logger.String("symbol", symbol),
				logger.Int("attempt", attempt),
				logger.Error(err))
			continue
		}
		if resp.Chart.Error != nil {
			lastErr = fmt.Errorf("%s: %s", resp.Chart.Error.Code, resp.Chart.Error.Description)
			continue
		}
		return &resp, nil
	}
	return nil, fmt.Errorf("chart %s after %d attempts: %v: %w",
		symbol, c.retryAttempts, lastErr, models.ErrUpstreamData)
}
