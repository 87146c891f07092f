package repository

import (
	"context"

	"github.com/katsup07/stock-predictor-2/internal/domain/models"
)

// MarketDataProvider fetches daily price history, market context series and
// quotes. Transient failures are retried inside the provider; an error from
// these methods means retries are exhausted.
type MarketDataProvider interface {
	FetchPriceSeries(ctx context.Context, ticker string) (*models.PriceSeries, error)
	FetchMarketContext(ctx context.Context) (*models.MarketContextSeries, error)
	FetchQuote(ctx context.Context, ticker string) (*models.Quote, error)
	SearchSymbols(ctx context.Context, query string) ([]models.SymbolMatch, error)
}

// PredictionStore persists prediction runs under independent per-run keys.
// A nil store is a valid configuration (no-persistence mode).
type PredictionStore interface {
	Save(ctx context.Context, p *models.Prediction) error
	Get(ctx context.Context, id string) (*models.Prediction, error)
	Close() error
}

// ForecastArchive records completed horizon results for offline analysis.
type ForecastArchive interface {
	Init(ctx context.Context) error // ensure tables
	Archive(ctx context.Context, p *models.Prediction) error
	Health(ctx context.Context) error
	Close() error
}

// EventPublisher emits prediction lifecycle events.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *models.PredictionEvent) error
	Close() error
}

// Dispatcher hands a prediction run off for background execution. Dispatch
// returns once the run is accepted; the run itself is not cancellable.
type Dispatcher interface {
	Dispatch(ctx context.Context, p *models.Prediction) error
	Stop()
}

// Metrics records pipeline observability signals.
type Metrics interface {
	RecordRun(status string)
	RecordStageDuration(stage string, seconds float64)
	RecordResidualMode(mode string)
	RecordPredictedPrice(ticker, horizon string, price float64)
}
