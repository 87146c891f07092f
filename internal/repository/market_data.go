package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/katsup07/stock-predictor-2/internal/domain/models"
	drepo "github.com/katsup07/stock-predictor-2/internal/domain/repository"
	"github.com/katsup07/stock-predictor-2/pkg/cache"
	"github.com/katsup07/stock-predictor-2/pkg/logger"
)

const (
	priceSeriesKeyPrefix = "prices:"
	quoteKeyPrefix       = "quote:"
	searchKeyPrefix      = "search:"
	marketContextKey     = "market_context"
)

// CachedMarketData is a cache-aside wrapper around a market data provider.
// Daily bars only change after the close, so cached series stay fresh for
// most of a trading day.
type CachedMarketData struct {
	provider  drepo.MarketDataProvider
	cache     cache.Service
	log       *logger.Logger
	seriesTTL time.Duration
	quoteTTL  time.Duration
}

// NewCachedMarketData wraps provider with freshness-based caching.
func NewCachedMarketData(
	provider drepo.MarketDataProvider,
	c cache.Service,
	log *logger.Logger,
	seriesTTL, quoteTTL time.Duration,
) drepo.MarketDataProvider {
	return &CachedMarketData{
		provider:  provider,
		cache:     c,
		log:       log,
		seriesTTL: seriesTTL,
		quoteTTL:  quoteTTL,
	}
}

func (m *CachedMarketData) FetchPriceSeries(ctx context.Context, ticker string) (*models.PriceSeries, error) {
	key := priceSeriesKeyPrefix + ticker
	var cached models.PriceSeries
	if err := m.cache.Get(ctx, key, &cached); err == nil && cached.Len() > 0 {
		m.log.Debug("price series cache hit", logger.String("ticker", ticker))
		return &cached, nil
	} else if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		m.log.Warn("price series cache read", logger.Error(err))
	}

	series, err := m.provider.FetchPriceSeries(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if err := m.cache.Set(ctx, key, series, m.seriesTTL); err != nil {
		m.log.Warn("price series cache write", logger.Error(err))
	}
	return series, nil
}

func (m *CachedMarketData) FetchMarketContext(ctx context.Context) (*models.MarketContextSeries, error) {
	var cached models.MarketContextSeries
	if err := m.cache.Get(ctx, marketContextKey, &cached); err == nil && len(cached.Series) > 0 {
		return &cached, nil
	} else if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		m.log.Warn("market context cache read", logger.Error(err))
	}

	mc, err := m.provider.FetchMarketContext(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.cache.Set(ctx, marketContextKey, mc, m.seriesTTL); err != nil {
		m.log.Warn("market context cache write", logger.Error(err))
	}
	return mc, nil
}

func (m *CachedMarketData) FetchQuote(ctx context.Context, ticker string) (*models.Quote, error) {
	key := quoteKeyPrefix + ticker
	var cached models.Quote
	if err := m.cache.Get(ctx, key, &cached); err == nil && cached.Ticker != "" {
		return &cached, nil
	} else if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		m.log.Warn("quote cache read", logger.Error(err))
	}

	quote, err := m.provider.FetchQuote(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if err := m.cache.Set(ctx, key, quote, m.quoteTTL); err != nil {
		m.log.Warn("quote cache write", logger.Error(err))
	}
	return quote, nil
}

func (m *CachedMarketData) SearchSymbols(ctx context.Context, query string) ([]models.SymbolMatch, error) {
	key := searchKeyPrefix + strings.ToUpper(strings.TrimSpace(query))
	var cached []models.SymbolMatch
	if err := m.cache.Get(ctx, key, &cached); err == nil && len(cached) > 0 {
		return cached, nil
	} else if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		m.log.Warn("search cache read", logger.Error(err))
	}

	matches, err := m.provider.SearchSymbols(ctx, query)
	if err != nil {
		return nil, err
	}
	// Direct hits carry a live price, so search shares the quote TTL.
	if len(matches) > 0 {
		if err := m.cache.Set(ctx, key, matches, m.quoteTTL); err != nil {
			m.log.Warn("search cache write", logger.Error(err))
		}
	}
	return matches, nil
}
