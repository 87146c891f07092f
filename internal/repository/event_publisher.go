package repository

import (
	"context"
	"fmt"

	"github.com/katsup07/stock-predictor-2/internal/domain/models"
	drepo "github.com/katsup07/stock-predictor-2/internal/domain/repository"
	pkgkafka "github.com/katsup07/stock-predictor-2/pkg/kafka"
)

// KafkaEventPublisher emits prediction lifecycle events keyed by run id so
// events of one run stay ordered within a partition.
type KafkaEventPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaEventPublisher creates a publisher for the events topic.
func NewKafkaEventPublisher(producer *pkgkafka.Producer, topic string) drepo.EventPublisher {
	return &KafkaEventPublisher{producer: producer, topic: topic}
}

func (p *KafkaEventPublisher) PublishEvent(ctx context.Context, ev *models.PredictionEvent) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(ev.RunID), ev); err != nil {
		return fmt.Errorf("publish %s for run %s: %w", ev.Type, ev.RunID, err)
	}
	return nil
}

func (p *KafkaEventPublisher) Close() error {
	return p.producer.Close()
}
