package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/katsup07/stock-predictor-2/internal/domain/models"
	"github.com/katsup07/stock-predictor-2/pkg/logger"
)

const maxSearchResults = 10

// searchResponse mirrors the v1 symbol search payload.
type searchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
		Exchange  string `json:"exchange"`
		Sector    string `json:"sector"`
		QuoteType string `json:"quoteType"`
	} `json:"quotes"`
}

// SearchSymbols resolves a query to tradable symbols. A direct ticker hit
// leads the list with live price fields; fuzzy matches follow with identity
// fields only. Equities and ETFs only, capped at ten entries.
func (c *Client) SearchSymbols(ctx context.Context, query string) ([]models.SymbolMatch, error) {
	query = strings.ToUpper(strings.TrimSpace(query))
	if query == "" {
		return nil, nil
	}

	results := make([]models.SymbolMatch, 0, maxSearchResults)
	seen := map[string]bool{}

	// Exact-ticker queries resolve through the chart API, which also yields
	// a current price the fuzzy search cannot provide.
	if quote, err := c.FetchQuote(ctx, query); err == nil && quote.Price > 0 {
		results = append(results, models.SymbolMatch{
			Ticker:        query,
			Name:          quote.Name,
			Exchange:      quote.Exchange,
			LastPrice:     quote.Price,
			Change:        quote.Change,
			ChangePercent: quote.ChangePercent,
		})
		seen[query] = true
	}

	resp, err := c.search(ctx, query)
	if err != nil {
		if len(results) > 0 {
			c.log.Warn("symbol search degraded to direct lookup",
				logger.String("query", query), logger.Error(err))
			return results, nil
		}
		return nil, err
	}

	for _, q := range resp.Quotes {
		if q.Symbol == "" || seen[q.Symbol] {
			continue
		}
		if q.QuoteType != "EQUITY" && q.QuoteType != "ETF" {
			continue
		}
		name := q.LongName
		if name == "" {
			name = q.ShortName
		}
		if name == "" {
			name = q.Symbol
		}
		seen[q.Symbol] = true
		results = append(results, models.SymbolMatch{
			Ticker:   q.Symbol,
			Name:     name,
			Exchange: q.Exchange,
			Sector:   q.Sector,
		})
		if len(results) == maxSearchResults {
			break
		}
	}
	return results, nil
}

// search issues one symbol search request with the same rate limiting and
// retry discipline as chart.
func (c *Client) search(ctx context.Context, query string) (*searchResponse, error) {
	endpoint := c.baseURL + "/v1/finance/search"
	params := url.Values{}
	params.Set("q", query)
	params.Set("quotesCount", "8")
	params.Set("newsCount", "0")

	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt-1)):
			}
		}
		if err := c.limiter.Wait(ctx, "search", c.rateCapacity, c.rateRefill); err != nil {
			return nil, err
		}

		var resp searchResponse
		if err := c.http.GetJSON(ctx, endpoint, params, &resp); err != nil {
			lastErr = err
			c.log.Warn("search request failed",
				logger.String("query", query),
				logger.Int("attempt", attempt),
				logger.Error(err))
			continue
		}
		return &resp, nil
	}
	return nil, fmt.Errorf("search %q after %d attempts: %v: %w",
		query, c.retryAttempts, lastErr, models.ErrUpstreamData)
}
