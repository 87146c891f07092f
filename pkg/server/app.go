package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	drepo "github.com/katsup07/stock-predictor-2/internal/domain/repository"
	"github.com/katsup07/stock-predictor-2/internal/usecase"
	"github.com/katsup07/stock-predictor-2/pkg/config"
	xhttp "github.com/katsup07/stock-predictor-2/pkg/http"
	pkgkafka "github.com/katsup07/stock-predictor-2/pkg/kafka"
	"github.com/katsup07/stock-predictor-2/pkg/logger"
	"github.com/katsup07/stock-predictor-2/pkg/queue"
)

// App encapsulates the application lifecycle: the HTTP API, the optional
// queue workers and Kafka consumer, and graceful shutdown of all of them.
type App struct {
	cfg        *config.Config
	log        *logger.Logger
	httpServer *xhttp.Server
	queue      *queue.RedisQueue
	consumer   *pkgkafka.Consumer
	kh         *usecase.KafkaPredictionsHandler
	dispatcher drepo.Dispatcher
	store      drepo.PredictionStore
	archive    drepo.ForecastArchive
	events     drepo.EventPublisher
}

// New creates an App with all dependencies. Queue, consumer, store, archive
// and events may be nil when the corresponding backend is disabled.
func New(
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
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		httpServer: httpServer,
		queue:      q,
		consumer:   consumer,
		kh:         kh,
		dispatcher: dispatcher,
		store:      store,
		archive:    archive,
		events:     events,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			a.log.Error("queue start error", logger.Error(err))
			return err
		}
		a.log.Info("queue workers started", logger.Int("workers", a.cfg.Predictor.QueueWorkers))
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", logger.Error(err))
			}
		}()
		a.log.Info("kafka consumer started", logger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", logger.Error(err))
		return err
	}
	a.log.Info("application started",
		logger.String("env", a.cfg.Environment),
		logger.Int("port", a.cfg.Server.Port),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops intake first, drains in-flight runs, then closes
// infrastructure clients.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", logger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", logger.Error(err))
		}
	}

	// Waits for any in-flight goroutine runs; no-op for the queue dispatcher.
	a.dispatcher.Stop()

	if a.queue != nil {
		if err := a.queue.Stop(shutdownCtx); err != nil {
			a.log.Warn("queue stop error", logger.Error(err))
		}
	}

	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.log.Warn("event publisher close error", logger.Error(err))
		}
	}
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.log.Warn("archive close error", logger.Error(err))
		}
	}
	// Closing the store closes the shared Redis client, so it goes last.
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("store close error", logger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
