package repository

import (
	"context"
	"fmt"

	"github.com/katsup07/stock-predictor-2/internal/domain/models"
	drepo "github.com/katsup07/stock-predictor-2/internal/domain/repository"
	"github.com/katsup07/stock-predictor-2/pkg/clickhouse"
)

const archiveTable = "forecast_results"

var archiveSchema = []string{
	`CREATE TABLE IF NOT EXISTS ` + archiveTable + ` (
		run_id         String,
		ticker         String,
		horizon        String,
		predicted      Float64,
		lower_bound    Float64,
		upper_bound    Float64,
		change_percent Float64,
		confidence     Float64,
		mc_p10         Float64 DEFAULT 0,
		mc_p50         Float64 DEFAULT 0,
		mc_p90         Float64 DEFAULT 0,
		last_close     Float64,
		created_at     DateTime
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(created_at)
	ORDER BY (ticker, created_at)`,
}

// ClickHouseForecastArchive records completed horizon results for offline
// analysis, one row per run and horizon.
type ClickHouseForecastArchive struct {
	client *clickhouse.Client
}

// NewClickHouseForecastArchive creates the archive on an initialized client.
func NewClickHouseForecastArchive(client *clickhouse.Client) drepo.ForecastArchive {
	return &ClickHouseForecastArchive{client: client}
}

func (a *ClickHouseForecastArchive) Init(ctx context.Context) error {
	return a.client.InitSchema(ctx, archiveSchema)
}

func (a *ClickHouseForecastArchive) Archive(ctx context.Context, p *models.Prediction) error {
	if len(p.Results) == 0 {
		return nil
	}
	q := fmt.Sprintf(`INSERT INTO %s
		(run_id, ticker, horizon, predicted, lower_bound, upper_bound,
		 change_percent, confidence, mc_p10, mc_p50, mc_p90, last_close, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, archiveTable)

	for _, r := range p.Results {
		var p10, p50, p90 float64
		if r.MonteCarlo != nil {
			p10, p50, p90 = r.MonteCarlo.P10, r.MonteCarlo.P50, r.MonteCarlo.P90
		}
		createdAt := p.CreatedAt
		if p.CompletedAt != nil {
			createdAt = *p.CompletedAt
		}
		if _, err := a.client.DB().ExecContext(ctx, q,
			p.ID, p.Ticker, string(r.Horizon),
			r.PredictedPrice, r.LowerBound, r.UpperBound,
			r.ChangePercent, r.Confidence,
			p10, p50, p90, p.LastClose, createdAt,
		); err != nil {
			return fmt.Errorf("archive run %s horizon %s: %w", p.ID, r.Horizon, err)
		}
	}
	return nil
}

func (a *ClickHouseForecastArchive) Health(ctx context.Context) error {
	return a.client.Health(ctx)
}

func (a *ClickHouseForecastArchive) Close() error {
	return a.client.Close()
}
