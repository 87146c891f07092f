package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katsup07/stock-predictor-2/internal/domain/models"
	"github.com/katsup07/stock-predictor-2/pkg/logger"
)

type captureDispatcher struct {
	mu   sync.Mutex
	runs []*models.Prediction
}

func (d *captureDispatcher) Dispatch(_ context.Context, p *models.Prediction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.runs = append(d.runs, p)
	return nil
}

func (d *captureDispatcher) Stop() {}

func newTopicHandler() (*KafkaPredictionsHandler, *memStore, *captureDispatcher) {
	store := newMemStore()
	p := NewPredictor(logger.Nop(), &fakeMarket{}, nopMetrics{}, WithStore(store))
	d := &captureDispatcher{}
	return NewKafkaPredictionsHandler("predictions", logger.Nop(), p, d), store, d
}

func TestTopicRequestDispatchesRun(t *testing.T) {
	h, store, d := newTopicHandler()

	err := h.Handle(context.Background(), []byte(`{"ticker":"ACME","horizons":["1mo","1yr"]}`))
	require.NoError(t, err)
	require.Len(t, d.runs, 1)

	run, err := store.Get(context.Background(), d.runs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "ACME", run.Ticker)
	assert.Equal(t, []models.Horizon{models.Horizon1Mo, models.Horizon1Yr}, run.Horizons)
}

func TestTopicRequestDefaultsOmittedHorizons(t *testing.T) {
	h, store, d := newTopicHandler()

	// Same default as the HTTP path: no horizons means all of them, never
	// an empty run that completes with zero results.
	err := h.Handle(context.Background(), []byte(`{"ticker":"ACME"}`))
	require.NoError(t, err)
	require.Len(t, d.runs, 1)

	run, err := store.Get(context.Background(), d.runs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.AllHorizons, run.Horizons)
}

func TestTopicRequestWithoutTickerIsDropped(t *testing.T) {
	h, _, d := newTopicHandler()

	err := h.Handle(context.Background(), []byte(`{"horizons":["1mo"]}`))
	require.NoError(t, err, "malformed business input is dropped, not retried")
	assert.Empty(t, d.runs)
}

func TestTopicRequestBadJSON(t *testing.T) {
	h, _, d := newTopicHandler()

	err := h.Handle(context.Background(), []byte(`{not json`))
	require.Error(t, err)
	assert.Empty(t, d.runs)
}
