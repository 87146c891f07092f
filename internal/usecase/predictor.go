package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/katsup07/stock-predictor-2/internal/baseline"
	"github.com/katsup07/stock-predictor-2/internal/domain/models"
	drepo "github.com/katsup07/stock-predictor-2/internal/domain/repository"
	"github.com/katsup07/stock-predictor-2/internal/features"
	"github.com/katsup07/stock-predictor-2/internal/residual"
	"github.com/katsup07/stock-predictor-2/internal/simulation"
	"github.com/katsup07/stock-predictor-2/pkg/logger"
	"github.com/katsup07/stock-predictor-2/pkg/util"
)

const (
	confidenceCeiling = 0.85
	confidenceFloor   = 0.1
	maxHorizonDays    = 2520 // confidence decay denominator, ~10 years
	timeseriesCap     = 500
)

// Predictor runs the full forecasting pipeline for one prediction request.
// Store, archive and events are optional collaborators; a nil handle is a
// valid degraded configuration, not an error.
type Predictor struct {
	log         *logger.Logger
	market      drepo.MarketDataProvider
	store       drepo.PredictionStore
	archive     drepo.ForecastArchive
	events      drepo.EventPublisher
	metrics     drepo.Metrics
	residualCfg residual.Config
}

// PredictorOption configures optional collaborators.
type PredictorOption func(*Predictor)

// WithStore attaches run persistence.
func WithStore(s drepo.PredictionStore) PredictorOption {
	return func(p *Predictor) { p.store = s }
}

// WithArchive attaches the completed-forecast archive.
func WithArchive(a drepo.ForecastArchive) PredictorOption {
	return func(p *Predictor) { p.archive = a }
}

// WithEvents attaches the lifecycle event publisher.
func WithEvents(e drepo.EventPublisher) PredictorOption {
	return func(p *Predictor) { p.events = e }
}

// WithResidualConfig overrides the corrector hyperparameters.
func WithResidualConfig(cfg residual.Config) PredictorOption {
	return func(p *Predictor) { p.residualCfg = cfg }
}

// NewPredictor creates the pipeline orchestrator.
func NewPredictor(
	log *logger.Logger,
	market drepo.MarketDataProvider,
	metrics drepo.Metrics,
	opts ...PredictorOption,
) *Predictor {
	p := &Predictor{
		log:         log,
		market:      market,
		metrics:     metrics,
		residualCfg: residual.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewRun builds the initial running record for a request.
func (p *Predictor) NewRun(ticker string, horizons []string) *models.Prediction {
	return &models.Prediction{
		ID:        uuid.NewString(),
		Ticker:    ticker,
		Status:    models.StatusRunning,
		Horizons:  models.NormalizeHorizons(horizons),
		CreatedAt: time.Now().UTC(),
	}
}

// Accept creates a run for the request and persists its running stub before
// any background work starts, so the id is immediately queryable.
func (p *Predictor) Accept(ctx context.Context, ticker string, horizons []string) (*models.Prediction, error) {
	run := p.NewRun(ticker, horizons)
	if p.store != nil {
		if err := p.store.Save(ctx, run); err != nil {
			return nil, fmt.Errorf("persist run stub: %w", err)
		}
	}
	return run, nil
}

// Get returns a persisted run by id.
func (p *Predictor) Get(ctx context.Context, id string) (*models.Prediction, error) {
	if p.store == nil {
		return nil, models.ErrPredictionNotFound
	}
	return p.store.Get(ctx, id)
}

// Run executes the pipeline to a terminal status. Stages run strictly in
// sequence; each output is a hard input of the next. There is no
// cancellation once a run starts, and nothing in the run outlives it except
// the persisted record.
func (p *Predictor) Run(ctx context.Context, run *models.Prediction) {
	log := p.log.With(logger.String("run_id", run.ID), logger.String("ticker", run.Ticker))
	log.Info("prediction run started", logger.Strings("horizons", horizonLabels(run.Horizons)))
	p.publishEvent(ctx, run, models.EventPredictionStarted, "")

	if err := p.execute(ctx, run, log); err != nil {
		run.Status = models.StatusFailed
		run.Error = err.Error()
		now := time.Now().UTC()
		run.CompletedAt = &now
		p.persist(ctx, run, log)
		p.publishEvent(ctx, run, models.EventPredictionFailed, run.Error)
		p.metrics.RecordRun(models.StatusFailed)
		log.Error("prediction run failed", logger.Error(err))
		return
	}

	run.Status = models.StatusCompleted
	now := time.Now().UTC()
	run.CompletedAt = &now
	p.persist(ctx, run, log)
	p.archiveRun(ctx, run, log)
	p.publishEvent(ctx, run, models.EventPredictionCompleted, "")
	p.metrics.RecordRun(models.StatusCompleted)
	log.Info("prediction run completed",
		logger.Int("results", len(run.Results)),
		logger.Int("timeseries_points", len(run.Timeseries)))
}

func (p *Predictor) execute(ctx context.Context, run *models.Prediction, log *logger.Logger) error {
	series, contextSeries, err := p.fetch(ctx, run.Ticker, log)
	if err != nil {
		return err
	}
	run.LastClose = series.LastClose()

	start := time.Now()
	table, err := features.Derive(series, contextSeries)
	if err != nil {
		return fmt.Errorf("feature derivation: %w", err)
	}
	p.metrics.RecordStageDuration("features", time.Since(start).Seconds())
	log.Debug("feature table built",
		logger.Int("rows", table.Len()),
		logger.Int("model_columns", len(table.ModelColumns())))

	start = time.Now()
	base, err := baseline.Fit(series.Dates(), series.Closes())
	if err != nil {
		return fmt.Errorf("baseline fit: %w", err)
	}
	p.metrics.RecordStageDuration("baseline", time.Since(start).Seconds())

	start = time.Now()
	correction := p.trainCorrection(table, base, log)
	p.metrics.RecordStageDuration("residual", time.Since(start).Seconds())

	start = time.Now()
	// Drift and volatility come from the same post-warmup rows the models
	// see, not the raw fetched history.
	closes := series.Closes()
	featureCloses := closes[len(closes)-table.Len():]
	if err := p.assemble(run, series, featureCloses, base, correction, log); err != nil {
		return err
	}
	p.metrics.RecordStageDuration("ensemble", time.Since(start).Seconds())
	return nil
}

func (p *Predictor) fetch(ctx context.Context, ticker string, log *logger.Logger) (*models.PriceSeries, *models.MarketContextSeries, error) {
	start := time.Now()
	defer func() { p.metrics.RecordStageDuration("fetch", time.Since(start).Seconds()) }()

	series, err := p.market.FetchPriceSeries(ctx, ticker)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch price series for %s: %w", ticker, err)
	}

	// Market context is enrichment. Its absence degrades features, not the run.
	contextSeries, err := p.market.FetchMarketContext(ctx)
	if err != nil {
		log.Warn("market context unavailable, deriving features without it", logger.Error(err))
		contextSeries = nil
	}
	return series, contextSeries, nil
}

// trainCorrection fits the residual corrector on the baseline's in-sample
// errors and returns the single next-step correction in price units. Zero
// when the model is unavailable.
func (p *Predictor) trainCorrection(table *features.FeatureTable, base *baseline.Model, log *logger.Logger) float64 {
	// The baseline is fit on the full history; feature rows are a suffix of
	// it, so residuals align by taking the matching tail.
	residuals := base.InSampleResiduals()
	aligned := residuals[len(residuals)-table.Len():]

	model, err := residual.Train(log, p.residualCfg, table.ModelMatrix(), aligned)
	if err != nil {
		log.Warn("residual training failed, falling back to baseline only", logger.Error(err))
		p.metrics.RecordResidualMode("degraded")
		return 0
	}
	if model == nil {
		p.metrics.RecordResidualMode("degraded")
		return 0
	}
	p.metrics.RecordResidualMode("trained")

	matrix := table.ModelMatrix()
	window := matrix[len(matrix)-model.Window():]
	correction, err := model.PredictNext(window)
	if err != nil {
		log.Warn("residual inference failed, using zero correction", logger.Error(err))
		return 0
	}
	log.Debug("residual correction predicted", logger.Float64("correction", correction))
	return correction
}

// assemble blends baseline and correction per horizon, attaches Monte Carlo
// bundles for long horizons and builds the capped forecast timeseries.
func (p *Predictor) assemble(run *models.Prediction, series *models.PriceSeries, featureCloses []float64, base *baseline.Model, correction float64, log *logger.Logger) error {
	lastClose := series.LastClose()
	if lastClose <= 0 {
		return fmt.Errorf("non-positive last close %v: %w", lastClose, models.ErrInsufficientData)
	}

	maxDays := 0
	for _, h := range run.Horizons {
		if d := h.Days(); d > maxDays {
			maxDays = d
		}
	}
	forecast := base.Forecast(maxDays)

	drift, vol := simulation.DriftVol(featureCloses)
	run.Results = make([]models.HorizonResult, 0, len(run.Horizons))
	for _, h := range run.Horizons {
		days := h.Days()
		result := blendResult(h, forecast[days-1], correction, lastClose)

		if days >= models.MonteCarloThresholdDays {
			bundle, err := simulation.Run(lastClose, drift, vol, days)
			switch {
			case errors.Is(err, models.ErrSimulationInput):
				// Only the fan chart fails; the rest of the horizon stands.
				log.Warn("skipping fan chart", logger.String("horizon", string(h)), logger.Error(err))
			case err != nil:
				return fmt.Errorf("simulate horizon %s: %w", h, err)
			default:
				result.MonteCarlo = bundle
			}
		}

		run.Results = append(run.Results, result)
		p.metrics.RecordPredictedPrice(run.Ticker, string(h), result.PredictedPrice)
	}

	points := len(forecast)
	if points > timeseriesCap {
		points = timeseriesCap
	}
	run.Timeseries = make([]models.ForecastPoint, 0, points)
	for _, fp := range forecast[:points] {
		run.Timeseries = append(run.Timeseries, models.ForecastPoint{
			Date:  util.FormatDate(fp.Date),
			Value: util.Round2(fp.Value),
			Lower: util.Round2(fp.Lower),
			Upper: util.Round2(fp.Upper),
		})
	}
	return nil
}

func (p *Predictor) persist(ctx context.Context, run *models.Prediction, log *logger.Logger) {
	if p.store == nil {
		return
	}
	if err := p.store.Save(ctx, run); err != nil {
		log.Error("persist prediction", logger.Error(err))
	}
}

func (p *Predictor) archiveRun(ctx context.Context, run *models.Prediction, log *logger.Logger) {
	if p.archive == nil {
		return
	}
	if err := p.archive.Archive(ctx, run); err != nil {
		log.Error("archive prediction", logger.Error(err))
	}
}

func (p *Predictor) publishEvent(ctx context.Context, run *models.Prediction, eventType, errMsg string) {
	if p.events == nil {
		return
	}
	ev := &models.PredictionEvent{
		Type:      eventType,
		RunID:     run.ID,
		Ticker:    run.Ticker,
		Status:    run.Status,
		Error:     errMsg,
		Timestamp: time.Now().UTC(),
	}
	if err := p.events.PublishEvent(ctx, ev); err != nil {
		p.log.Warn("publish prediction event", logger.String("type", eventType), logger.Error(err))
	}
}

// blendResult applies the horizon-weighted correction on top of the baseline
// point. The same weighted correction shifts point and both bounds; the
// bounds do not model residual uncertainty independently.
func blendResult(h models.Horizon, point baseline.Point, correction, lastClose float64) models.HorizonResult {
	shift := h.Weight() * correction
	return models.HorizonResult{
		Horizon:        h,
		PredictedPrice: util.Round2(point.Value + shift),
		LowerBound:     util.Round2(point.Lower + shift),
		UpperBound:     util.Round2(point.Upper + shift),
		ChangePercent:  util.Round2((point.Value + shift - lastClose) / lastClose * 100),
		Confidence:     confidence(h.Days()),
	}
}

// confidence decays linearly from the ceiling with horizon length. A declared
// heuristic, not a calibrated interval.
func confidence(days int) float64 {
	c := confidenceCeiling * (1 - float64(days)/maxHorizonDays)
	if c < confidenceFloor {
		c = confidenceFloor
	}
	return util.Round3(c)
}

func horizonLabels(hs []models.Horizon) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = string(h)
	}
	return out
}
