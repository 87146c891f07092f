package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/katsup07/stock-predictor-2/internal/domain/models"
	drepo "github.com/katsup07/stock-predictor-2/internal/domain/repository"
	"github.com/katsup07/stock-predictor-2/internal/usecase"
	xhttp "github.com/katsup07/stock-predictor-2/pkg/http"
	xlogger "github.com/katsup07/stock-predictor-2/pkg/logger"
)

// PredictionsHandler exposes the prediction run endpoints.
type PredictionsHandler struct {
	logger     *xlogger.Logger
	predictor  *usecase.Predictor
	dispatcher drepo.Dispatcher
}

func NewPredictionsHandler(logger *xlogger.Logger, predictor *usecase.Predictor, dispatcher drepo.Dispatcher) *PredictionsHandler {
	return &PredictionsHandler{logger: logger, predictor: predictor, dispatcher: dispatcher}
}

func (h *PredictionsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/predictions")
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
}

// Create accepts a prediction request, persists the running stub and
// dispatches the pipeline in the background. Responds 202 immediately; the
// run is queried by id afterwards.
func (h *PredictionsHandler) Create(c echo.Context) error {
	req := &models.CreatePredictionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	req.Ticker = strings.ToUpper(req.Ticker)

	ctx := c.Request().Context()
	run, err := h.predictor.Accept(ctx, req.Ticker, req.Horizons)
	if err != nil {
		h.logger.Error("accept prediction", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if err := h.dispatcher.Dispatch(ctx, run); err != nil {
		h.logger.Error("dispatch prediction", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("could not schedule prediction run"))
	}

	return xhttp.AcceptedResponse(c, echo.Map{
		"id":       run.ID,
		"ticker":   run.Ticker,
		"status":   run.Status,
		"horizons": run.Horizons,
	})
}

// Get returns the current state of a run, terminal or not.
func (h *PredictionsHandler) Get(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return xhttp.BadRequestResponse(c, "missing prediction id")
	}

	run, err := h.predictor.Get(c.Request().Context(), id)
	if errors.Is(err, models.ErrPredictionNotFound) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("prediction %s not found", id))
	}
	if err != nil {
		h.logger.Error("get prediction", xlogger.String("id", id), xlogger.Error(err))
		return xhttp.InternalServerErrorResponse(c)
	}
	return xhttp.SuccessResponse(c, run)
}

// HealthHandler answers liveness probes.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler { return &HealthHandler{} }

func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
}
