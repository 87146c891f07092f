package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/katsup07/stock-predictor-2/internal/domain/models"
	drepo "github.com/katsup07/stock-predictor-2/internal/domain/repository"
	pkgkafka "github.com/katsup07/stock-predictor-2/pkg/kafka"
	"github.com/katsup07/stock-predictor-2/pkg/logger"
)

// KafkaPredictionsHandler accepts prediction requests from a Kafka topic as
// an alternate trigger to the HTTP endpoint.
type KafkaPredictionsHandler struct {
	topic      string
	log        *logger.Logger
	predictor  *Predictor
	dispatcher drepo.Dispatcher
}

// NewKafkaPredictionsHandler creates the request-topic consumer handler.
func NewKafkaPredictionsHandler(topic string, log *logger.Logger, predictor *Predictor, dispatcher drepo.Dispatcher) *KafkaPredictionsHandler {
	return &KafkaPredictionsHandler{topic: topic, log: log, predictor: predictor, dispatcher: dispatcher}
}

func (h *KafkaPredictionsHandler) Topic() string { return h.topic }

// incoming message schema: {ticker, horizons}
func (h *KafkaPredictionsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Ticker   string   `json:"ticker"`
		Horizons []string `json:"horizons"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("unmarshal prediction request: %w", err)
	}
	if m.Ticker == "" {
		h.log.Warn("dropping prediction request without ticker")
		return nil
	}
	// The HTTP path defaults omitted horizons to the full set; topic
	// requests get the same treatment instead of an empty run.
	if len(m.Horizons) == 0 {
		m.Horizons = horizonLabels(models.AllHorizons)
	}

	run, err := h.predictor.Accept(ctx, m.Ticker, m.Horizons)
	if err != nil {
		return err
	}
	if err := h.dispatcher.Dispatch(ctx, run); err != nil {
		return fmt.Errorf("dispatch run %s: %w", run.ID, err)
	}
	h.log.Info("prediction request accepted from topic",
		logger.String("run_id", run.ID),
		logger.String("ticker", m.Ticker))
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaPredictionsHandler)(nil)
