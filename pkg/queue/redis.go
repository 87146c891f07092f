package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/katsup07/stock-predictor-2/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Config contains queue tuning knobs.
type Config struct {
	Workers    int
	RetryLimit int
	RetryDelay time.Duration
}

// RedisQueue is a Redis-list-backed job queue with a worker pool.
type RedisQueue struct {
	log       *logger.Logger
	cfg       *Config
	client    *redis.Client
	jobs      map[string]Job
	keyPrefix string

	mu        sync.RWMutex
	isRunning bool
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// Option configures RedisQueue.
type Option func(*RedisQueue)

// WithKeyPrefix sets a custom Redis key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(r *RedisQueue) {
		r.keyPrefix = prefix
	}
}

// NewRedisQueue creates a Redis queue.
func NewRedisQueue(log *logger.Logger, cfg *Config, client *redis.Client, opts ...Option) *RedisQueue {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	rq := &RedisQueue{
		log:       log,
		cfg:       cfg,
		client:    client,
		jobs:      make(map[string]Job),
		keyPrefix: "stockpred:queue",
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(rq)
	}
	return rq
}

// RegisterJob registers a job handler for its message type.
func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.Type()]; exists {
		r.log.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.log.Info("job registered",
		logger.String("job", job.Name()),
		logger.String("type", job.Type()))
}

// Start verifies connectivity and launches workers.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	if r.isRunning {
		r.mu.Unlock()
		return fmt.Errorf("queue already running")
	}
	r.isRunning = true
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		r.mu.Lock()
		r.isRunning = false
		r.mu.Unlock()
		return fmt.Errorf("redis ping: %w", err)
	}

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.log.Info("redis queue started", logger.Int("workers", r.cfg.Workers))
	return nil
}

// Stop gracefully stops the queue, waiting for in-flight jobs.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	r.mu.Unlock()

	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for queue workers: %w", ctx.Err())
	case <-done:
		r.log.Info("redis queue stopped gracefully")
		return nil
	}
}

// PublishMessage enqueues a message (implements Publisher).
func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	running := r.isRunning
	r.mu.RUnlock()
	if !running {
		return fmt.Errorf("queue not running")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	msg := Message{
		ID:        fmt.Sprintf("%d", time.Now().UnixNano()),
		Type:      msgType,
		Payload:   raw,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := r.client.LPush(ctx, r.queueKey(), data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

func (r *RedisQueue) worker(id int) {
	defer r.wg.Done()
	r.log.Info("queue worker started", logger.Int("worker_id", id))

	for {
		select {
		case <-r.ctx.Done():
			r.log.Info("queue worker stopping", logger.Int("worker_id", id))
			return
		default:
			r.processNext()
		}
	}
}

func (r *RedisQueue) processNext() {
	ctx, cancel := context.WithTimeout(r.ctx, 2*time.Second)
	result, err := r.client.BRPop(ctx, time.Second, r.queueKey()).Result()
	cancel()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return
		}
		r.log.Error("brpop error", logger.Error(err))
		time.Sleep(time.Second)
		return
	}
	if len(result) < 2 {
		return
	}

	var msg Message
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		r.log.Error("malformed queue message dropped", logger.Error(err))
		return
	}

	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.log.Warn("no job registered for message type", logger.String("type", msg.Type))
		return
	}

	// Jobs run to completion even during shutdown; a prediction run has no
	// cancellation signal once started.
	if err := job.Handle(context.Background(), msg.Payload); err != nil {
		r.retry(msg, job, err)
	}
}

func (r *RedisQueue) retry(msg Message, job Job, cause error) {
	msg.Attempts++
	if msg.Attempts > r.cfg.RetryLimit {
		r.log.Error("job failed permanently",
			logger.String("job", job.Name()),
			logger.String("msg_id", msg.ID),
			logger.Int("attempts", msg.Attempts),
			logger.Error(cause))
		return
	}

	r.log.Warn("job failed, requeueing",
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts),
		logger.Error(cause))

	time.Sleep(r.cfg.RetryDelay)

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.LPush(ctx, r.queueKey(), data).Err(); err != nil {
		r.log.Error("requeue failed", logger.Error(err))
	}
}

func (r *RedisQueue) queueKey() string {
	return r.keyPrefix + ":messages"
}
