package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// RequestLogger writes one access log line per request. 5xx responses log
// at error level, 4xx at warn.
func RequestLogger(log *logrus.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			res := c.Response()
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			entry := log.WithContext(c.Request().Context()).WithFields(logrus.Fields{
				"method":     c.Request().Method,
				"route":      route,
				"status":     res.Status,
				"latency_ms": time.Since(start).Milliseconds(),
				"request_id": res.Header().Get(echo.HeaderXRequestID),
				"ip":         c.RealIP(),
			})
			if id, ok := UserID(c); ok {
				entry = entry.WithField("user_id", id)
			}
			switch {
			case res.Status >= 500:
				entry.Error("request")
			case res.Status >= 400:
				entry.Warn("request")
			default:
				entry.Info("request")
			}
			return nil
		}
	}
}
