package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

// Health reports liveness plus the state of MySQL and Redis. Redis is
// optional, so only a database failure turns the check red.
type Health struct {
	DB    pinger
	Redis *redis.Client
}

func (h Health) Check(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	db := "ok"
	if h.DB == nil {
		db = "disabled"
	} else if err := h.DB.PingContext(ctx); err != nil {
		db, status, code = "down", "degraded", http.StatusServiceUnavailable
	}
	cache := "disabled"
	if h.Redis != nil {
		cache = "ok"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			cache = "down"
		}
	}
	return c.JSON(code, echo.Map{"status": status, "db": db, "redis": cache})
}
