package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/katsup07/stock-predictor-2/internal/domain/models"
	drepo "github.com/katsup07/stock-predictor-2/internal/domain/repository"
)

const predictionKeyPrefix = "stockpred:prediction:"

// RedisPredictionStore persists prediction runs as JSON documents under
// independent per-run keys.
type RedisPredictionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPredictionStore creates a store with the given record retention.
// A non-positive ttl keeps records until evicted.
func NewRedisPredictionStore(client *redis.Client, ttl time.Duration) drepo.PredictionStore {
	return &RedisPredictionStore{client: client, ttl: ttl}
}

func (s *RedisPredictionStore) Save(ctx context.Context, p *models.Prediction) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prediction %s: %w", p.ID, err)
	}
	if err := s.client.Set(ctx, predictionKeyPrefix+p.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save prediction %s: %w", p.ID, err)
	}
	return nil
}

func (s *RedisPredictionStore) Get(ctx context.Context, id string) (*models.Prediction, error) {
	data, err := s.client.Get(ctx, predictionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrPredictionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prediction %s: %w", id, err)
	}
	var p models.Prediction
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal prediction %s: %w", id, err)
	}
	return &p, nil
}

func (s *RedisPredictionStore) Close() error {
	return s.client.Close()
}
