package middleware

import (
	"log"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs one line per request. Websocket upgrades and
// metric scrapes are skipped to keep the log readable.
func RequestLogging() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.URL.Path == "/ws" || req.URL.Path == "/metrics" {
				return next(c)
			}

			start := time.Now()
			err := next(c)

			log.Printf("[%s] %s %s - %d (%s)",
				req.Method,
				req.RequestURI,
				req.RemoteAddr,
				c.Response().Status,
				time.Since(start),
			)
			return err
		}
	}
}
