package api

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/katsup07/stock-predictor-2/internal/domain/models"
	drepo "github.com/katsup07/stock-predictor-2/internal/domain/repository"
	xhttp "github.com/katsup07/stock-predictor-2/pkg/http"
	xlogger "github.com/katsup07/stock-predictor-2/pkg/logger"
	"github.com/katsup07/stock-predictor-2/pkg/util"
)

// historyRangeBars maps a history range label to a trailing bar count.
var historyRangeBars = map[string]int{
	"1mo": 21,
	"6mo": 126,
	"1y":  252,
	"2y":  504,
	"5y":  1260,
	"10y": 2520,
}

// StocksHandler exposes quote and history lookups.
type StocksHandler struct {
	logger *xlogger.Logger
	market drepo.MarketDataProvider
}

func NewStocksHandler(logger *xlogger.Logger, market drepo.MarketDataProvider) *StocksHandler {
	return &StocksHandler{logger: logger, market: market}
}

func (h *StocksHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/stocks")
	g.GET("/search", h.Search)
	g.GET("/:ticker", h.Quote)
	g.GET("/:ticker/history", h.History)
}

func (h *StocksHandler) Search(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return xhttp.BadRequestResponse(c, "missing query parameter q")
	}

	matches, err := h.market.SearchSymbols(c.Request().Context(), q)
	if err != nil {
		h.logger.Warn("symbol search", xlogger.String("query", q), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("search unavailable"))
	}
	if matches == nil {
		matches = []models.SymbolMatch{}
	}
	return xhttp.SuccessResponse(c, matches)
}

func (h *StocksHandler) Quote(c echo.Context) error {
	ticker := strings.ToUpper(c.Param("ticker"))
	if ticker == "" {
		return xhttp.BadRequestResponse(c, "missing ticker")
	}

	quote, err := h.market.FetchQuote(c.Request().Context(), ticker)
	if err != nil {
		h.logger.Warn("fetch quote", xlogger.String("ticker", ticker), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("quote unavailable for "+ticker))
	}
	return xhttp.SuccessResponse(c, quote)
}

func (h *StocksHandler) History(c echo.Context) error {
	ticker := strings.ToUpper(c.Param("ticker"))
	if ticker == "" {
		return xhttp.BadRequestResponse(c, "missing ticker")
	}
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	series, err := h.market.FetchPriceSeries(c.Request().Context(), ticker)
	if err != nil {
		h.logger.Warn("fetch history", xlogger.String("ticker", ticker), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("history unavailable for "+ticker))
	}

	bars := series.Bars
	if n, ok := historyRangeBars[req.Range]; ok && len(bars) > n {
		bars = bars[len(bars)-n:]
	}

	type barPayload struct {
		Date   string  `json:"date"`
		Open   float64 `json:"open"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Close  float64 `json:"close"`
		Volume float64 `json:"volume"`
	}
	payload := make([]barPayload, 0, len(bars))
	for _, b := range bars {
		payload = append(payload, barPayload{
			Date:   util.FormatDate(b.Date),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	return xhttp.SuccessResponse(c, echo.Map{
		"ticker": ticker,
		"range":  req.Range,
		"bars":   payload,
	})
}
