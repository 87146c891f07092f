package middleware

import (
	"time"

	"github.com/katsup07/stock-predictor-2/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs HTTP requests with method, path, status, and latency.
func RequestLogging(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			start := time.Now()

			err := next(c)

			log.Info("http request",
				logger.String("method", req.Method),
				logger.String("path", req.URL.Path),
				logger.Int("status", c.Response().Status),
				logger.Duration("latency", time.Since(start)),
			)

			return err
		}
	}
}
