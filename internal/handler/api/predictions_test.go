package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katsup07/stock-predictor-2/internal/domain/models"
	"github.com/katsup07/stock-predictor-2/internal/usecase"
	"github.com/katsup07/stock-predictor-2/pkg/logger"
)

type stubMarket struct{}

func (stubMarket) FetchPriceSeries(_ context.Context, ticker string) (*models.PriceSeries, error) {
	return &models.PriceSeries{Ticker: ticker}, nil
}

func (stubMarket) FetchMarketContext(context.Context) (*models.MarketContextSeries, error) {
	return nil, models.ErrUpstreamData
}

func (stubMarket) FetchQuote(_ context.Context, ticker string) (*models.Quote, error) {
	return &models.Quote{Ticker: ticker, Price: 42.5, Currency: "USD"}, nil
}

func (stubMarket) SearchSymbols(_ context.Context, query string) ([]models.SymbolMatch, error) {
	if query == "NOPE" {
		return nil, nil
	}
	return []models.SymbolMatch{
		{Ticker: "ACME", Name: "Acme Corporation", Exchange: "NasdaqGS", Sector: "Industrials", LastPrice: 42.5},
		{Ticker: "ACMX", Name: "Acme Explorers", Exchange: "NYSE"},
	}, nil
}

type stubStore struct {
	mu   sync.Mutex
	runs map[string]*models.Prediction
}

func newStubStore() *stubStore { return &stubStore{runs: map[string]*models.Prediction{}} }

func (s *stubStore) Save(_ context.Context, p *models.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.runs[p.ID] = &cp
	return nil
}

func (s *stubStore) Get(_ context.Context, id string) (*models.Prediction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.runs[id]; ok {
		return p, nil
	}
	return nil, models.ErrPredictionNotFound
}

func (s *stubStore) Close() error { return nil }

type recordingDispatcher struct {
	mu   sync.Mutex
	runs []*models.Prediction
}

func (d *recordingDispatcher) Dispatch(_ context.Context, p *models.Prediction) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.runs = append(d.runs, p)
	return nil
}

func (d *recordingDispatcher) Stop() {}

type stubMetrics struct{}

func (stubMetrics) RecordRun(string)                             {}
func (stubMetrics) RecordStageDuration(string, float64)          {}
func (stubMetrics) RecordResidualMode(string)                    {}
func (stubMetrics) RecordPredictedPrice(string, string, float64) {}

func newTestServer(t *testing.T) (*echo.Echo, *stubStore, *recordingDispatcher) {
	t.Helper()
	store := newStubStore()
	predictor := usecase.NewPredictor(logger.Nop(), stubMarket{}, stubMetrics{},
		usecase.WithStore(store))
	dispatcher := &recordingDispatcher{}

	e := echo.New()
	NewRouter(
		NewPredictionsHandler(logger.Nop(), predictor, dispatcher),
		NewStocksHandler(logger.Nop(), stubMarket{}),
		NewHealthHandler(),
	).RegisterRoutes(e)
	return e, store, dispatcher
}

func TestCreatePredictionAccepted(t *testing.T) {
	e, store, dispatcher := newTestServer(t)

	body := `{"ticker":"ACME","horizons":["1mo","5yr"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/predictions", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		Data struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.ID)
	assert.Equal(t, models.StatusRunning, resp.Data.Status)

	// The stub is queryable before the background run finishes.
	stub, err := store.Get(context.Background(), resp.Data.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRunning, stub.Status)

	require.Len(t, dispatcher.runs, 1)
	assert.Equal(t, resp.Data.ID, dispatcher.runs[0].ID)
}

func TestCreatePredictionRejectsBadTicker(t *testing.T) {
	e, _, dispatcher := newTestServer(t)

	body := `{"ticker":"not a ticker!!","horizons":["1mo"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/predictions", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, dispatcher.runs)
}

func TestCreatePredictionRejectsUnknownHorizon(t *testing.T) {
	e, _, _ := newTestServer(t)

	body := `{"ticker":"ACME","horizons":["7yr"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/predictions", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPredictionNotFound(t *testing.T) {
	e, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/predictions/nope", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetPrediction(t *testing.T) {
	e, store, _ := newTestServer(t)
	done := &models.Prediction{
		ID: "run-1", Ticker: "ACME", Status: models.StatusCompleted,
		Results: []models.HorizonResult{{Horizon: models.Horizon1Mo, PredictedPrice: 101.5}},
	}
	require.NoError(t, store.Save(context.Background(), done))

	req := httptest.NewRequest(http.MethodGet, "/api/predictions/run-1", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"completed"`)
	assert.Contains(t, rec.Body.String(), `101.5`)
}

func TestQuoteEndpoint(t *testing.T) {
	e, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/stocks/acme", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ACME"`)
	assert.Contains(t, rec.Body.String(), `42.5`)
}

func TestSearchEndpoint(t *testing.T) {
	e, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/stocks/search?q=acme", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data []models.SymbolMatch `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "Acme Corporation", resp.Data[0].Name)
	assert.Equal(t, "Industrials", resp.Data[0].Sector)
	assert.Equal(t, 42.5, resp.Data[0].LastPrice)
}

func TestSearchEndpointNoMatches(t *testing.T) {
	e, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/stocks/search?q=NOPE", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestSearchEndpointRequiresQuery(t *testing.T) {
	e, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/stocks/search", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	e, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
