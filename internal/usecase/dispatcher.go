package usecase

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/katsup07/stock-predictor-2/internal/domain/models"
	drepo "github.com/katsup07/stock-predictor-2/internal/domain/repository"
	"github.com/katsup07/stock-predictor-2/pkg/logger"
	"github.com/katsup07/stock-predictor-2/pkg/queue"
)

// GoroutineDispatcher runs predictions on background goroutines with a
// bounded number of concurrent runs. Dispatch returns as soon as the run is
// accepted; the run itself proceeds on a fresh context because nothing can
// cancel it once started.
type GoroutineDispatcher struct {
	log       *logger.Logger
	predictor *Predictor
	sem       chan struct{}
	wg        sync.WaitGroup
}

// NewGoroutineDispatcher creates an in-process dispatcher allowing at most
// maxConcurrent simultaneous runs.
func NewGoroutineDispatcher(log *logger.Logger, predictor *Predictor, maxConcurrent int) *GoroutineDispatcher {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &GoroutineDispatcher{
		log:       log,
		predictor: predictor,
		sem:       make(chan struct{}, maxConcurrent),
	}
}

// Dispatch accepts the run and schedules it in the background.
func (d *GoroutineDispatcher) Dispatch(_ context.Context, p *models.Prediction) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.sem <- struct{}{}
		defer func() { <-d.sem }()
		d.predictor.Run(context.Background(), p)
	}()
	return nil
}

// Stop waits for in-flight runs to reach a terminal status.
func (d *GoroutineDispatcher) Stop() {
	d.wg.Wait()
}

var _ drepo.Dispatcher = (*GoroutineDispatcher)(nil)

const predictionRunMessageType = "prediction.run"

// QueueDispatcher hands runs to the Redis-backed job queue so they survive
// process handoff and are rate-limited by the worker pool.
type QueueDispatcher struct {
	pub queue.Publisher
}

// NewQueueDispatcher creates a dispatcher publishing to the job queue.
func NewQueueDispatcher(pub queue.Publisher) *QueueDispatcher {
	return &QueueDispatcher{pub: pub}
}

// Dispatch enqueues the run for a queue worker.
func (d *QueueDispatcher) Dispatch(ctx context.Context, p *models.Prediction) error {
	return d.pub.PublishMessage(ctx, predictionRunMessageType, p)
}

// Stop is a no-op; queue shutdown is owned by the queue itself.
func (d *QueueDispatcher) Stop() {}

var _ drepo.Dispatcher = (*QueueDispatcher)(nil)

// PredictionJob consumes queued prediction runs.
type PredictionJob struct {
	predictor *Predictor
}

// NewPredictionJob creates the queue job for prediction runs.
func NewPredictionJob(predictor *Predictor) *PredictionJob {
	return &PredictionJob{predictor: predictor}
}

func (j *PredictionJob) Name() string { return "prediction_run" }

func (j *PredictionJob) Type() string { return predictionRunMessageType }

// Handle executes one queued run to a terminal status.
func (j *PredictionJob) Handle(ctx context.Context, payload json.RawMessage) error {
	run, err := queue.ParsePayload[models.Prediction](payload)
	if err != nil {
		return err
	}
	j.predictor.Run(ctx, run)
	return nil
}

var _ queue.Job = (*PredictionJob)(nil)
