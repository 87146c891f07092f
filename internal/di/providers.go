package di

import (
	"context"
	"fmt"
	"time"

	drepo "github.com/katsup07/stock-predictor-2/internal/domain/repository"
	"github.com/katsup07/stock-predictor-2/internal/handler/api"
	internalrepo "github.com/katsup07/stock-predictor-2/internal/repository"
	"github.com/katsup07/stock-predictor-2/internal/service/marketdata"
	"github.com/katsup07/stock-predictor-2/internal/usecase"
	"github.com/katsup07/stock-predictor-2/pkg/cache"
	pkgch "github.com/katsup07/stock-predictor-2/pkg/clickhouse"
	"github.com/katsup07/stock-predictor-2/pkg/config"
	xhttp "github.com/katsup07/stock-predictor-2/pkg/http"
	pkgkafka "github.com/katsup07/stock-predictor-2/pkg/kafka"
	"github.com/katsup07/stock-predictor-2/pkg/logger"
	"github.com/katsup07/stock-predictor-2/pkg/metrics"
	"github.com/katsup07/stock-predictor-2/pkg/queue"
	"github.com/katsup07/stock-predictor-2/pkg/server"
)

// Completed runs stay queryable for a week; clients poll within minutes.
const predictionTTL = 7 * 24 * time.Hour

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideHTTPClient creates the outbound HTTP client for market data.
func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(
		xhttp.WithTimeout(cfg.MarketData.Timeout),
	)
}

// ProvideRedisCache creates the Redis cache when Redis is enabled.
// Returns nil when disabled; dependents degrade to uncached operation.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Host, cfg.Redis.Port),
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideMarketData creates the Yahoo chart client, wrapped in the layered
// cache when Redis is available.
func ProvideMarketData(
	cfg *config.Config,
	httpClient *xhttp.Client,
	redisCache *cache.RedisCache,
	log *logger.Logger,
) drepo.MarketDataProvider {
	opts := []marketdata.Option{
		marketdata.WithRetry(cfg.MarketData.RetryAttempts, cfg.MarketData.RetryDelay),
		marketdata.WithHistoryYears(cfg.MarketData.HistoryYears),
	}
	if cfg.MarketData.BaseURL != "" {
		opts = append(opts, marketdata.WithBaseURL(cfg.MarketData.BaseURL))
	}
	if cfg.MarketData.RateCapacity > 0 {
		opts = append(opts, marketdata.WithRateLimit(cfg.MarketData.RateCapacity, cfg.MarketData.RateRefill))
	}
	provider := marketdata.New(httpClient, log, opts...)

	if redisCache == nil {
		return provider
	}
	layered := cache.NewLayeredCache(redisCache, cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize))
	return internalrepo.NewCachedMarketData(
		provider,
		layered,
		log,
		cfg.Cache.PriceSeriesTTL,
		cfg.Cache.QuoteTTL,
	)
}

// ProvidePredictionStore creates Redis-backed run persistence.
func ProvidePredictionStore(redisCache *cache.RedisCache) drepo.PredictionStore {
	if redisCache == nil {
		return nil
	}
	return internalrepo.NewRedisPredictionStore(redisCache.Client(), predictionTTL)
}

// ProvideClickHouseClient creates the ClickHouse client when enabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideForecastArchive creates the ClickHouse forecast archive and
// initializes its schema.
func ProvideForecastArchive(chClient *pkgch.Client) (drepo.ForecastArchive, error) {
	if chClient == nil {
		return nil, nil
	}
	archive := internalrepo.NewClickHouseForecastArchive(chClient)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := archive.Init(ctx); err != nil {
		_ = chClient.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return archive, nil
}

// ProvideKafkaProducer creates the Kafka producer when Kafka is enabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression("snappy"),
		pkgkafka.WithRequiredAcks(1),
		pkgkafka.WithMaxAttempts(3),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideEventPublisher creates the lifecycle event publisher.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) drepo.EventPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaEventPublisher(producer, cfg.Kafka.EventsTopic)
}

// ProvidePredictor creates the pipeline orchestrator with whatever optional
// collaborators the config enabled.
func ProvidePredictor(
	log *logger.Logger,
	market drepo.MarketDataProvider,
	m drepo.Metrics,
	store drepo.PredictionStore,
	archive drepo.ForecastArchive,
	events drepo.EventPublisher,
) *usecase.Predictor {
	var opts []usecase.PredictorOption
	if store != nil {
		opts = append(opts, usecase.WithStore(store))
	}
	if archive != nil {
		opts = append(opts, usecase.WithArchive(archive))
	}
	if events != nil {
		opts = append(opts, usecase.WithEvents(events))
	}
	return usecase.NewPredictor(log, market, m, opts...)
}

// ProvideQueue creates the Redis job queue when queue dispatch is enabled.
func ProvideQueue(cfg *config.Config, log *logger.Logger, redisCache *cache.RedisCache) *queue.RedisQueue {
	if !cfg.Predictor.QueueEnabled || redisCache == nil {
		return nil
	}
	return queue.NewRedisQueue(
		log,
		&queue.Config{
			Workers:    cfg.Predictor.QueueWorkers,
			RetryLimit: 2,
			RetryDelay: 30 * time.Second,
		},
		redisCache.Client(),
		queue.WithKeyPrefix("stockpred"),
	)
}

// ProvideDispatcher selects queue-backed dispatch when a queue exists,
// otherwise the in-process goroutine pool.
func ProvideDispatcher(
	cfg *config.Config,
	log *logger.Logger,
	predictor *usecase.Predictor,
	q *queue.RedisQueue,
) drepo.Dispatcher {
	if q != nil {
		q.RegisterJob(usecase.NewPredictionJob(predictor))
		return usecase.NewQueueDispatcher(q)
	}
	return usecase.NewGoroutineDispatcher(log, predictor, cfg.Predictor.MaxConcurrentRuns)
}

// ProvideKafkaConsumer creates the Kafka consumer when configured.
func ProvideKafkaConsumer(cfg *config.Config, log *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaPredictionsHandler creates the request-topic handler.
func ProvideKafkaPredictionsHandler(
	cfg *config.Config,
	log *logger.Logger,
	predictor *usecase.Predictor,
	dispatcher drepo.Dispatcher,
) *usecase.KafkaPredictionsHandler {
	if !cfg.Kafka.Enabled || cfg.Kafka.RequestTopic == "" {
		return nil
	}
	return usecase.NewKafkaPredictionsHandler(cfg.Kafka.RequestTopic, log, predictor, dispatcher)
}

// ProvideRouter aggregates the API handlers.
func ProvideRouter(
	log *logger.Logger,
	predictor *usecase.Predictor,
	dispatcher drepo.Dispatcher,
	market drepo.MarketDataProvider,
) *api.Router {
	return api.NewRouter(
		api.NewPredictionsHandler(log, predictor, dispatcher),
		api.NewStocksHandler(log, market),
		api.NewHealthHandler(),
	)
}

// ProvideHTTPServer creates the Echo server with routes mounted.
func ProvideHTTPServer(cfg *config.Config, log *logger.Logger, router *api.Router) *xhttp.Server {
	return xhttp.NewServer(log, router,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(true),
	)
}

// ProvideApp assembles the application lifecycle.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	httpServer *xhttp.Server,
	q *queue.RedisQueue,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaPredictionsHandler,
	dispatcher drepo.Dispatcher,
	store drepo.PredictionStore,
	archive drepo.ForecastArchive,
	events drepo.EventPublisher,
) *server.App {
	return server.New(cfg, log, httpServer, q, consumer, kh, dispatcher, store, archive, events)
}
