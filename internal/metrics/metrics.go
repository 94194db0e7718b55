// Package metrics holds the Prometheus collectors of the service and the
// echo glue that records and exposes them.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ticketsPurchased = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_purchased_total",
			Help: "Tickets created by purchase, by kind (free or paid)",
		},
		[]string{"kind"},
	)

	capacityRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "capacity_rejections_total",
			Help: "Operations rejected because an offering had no capacity left",
		},
	)

	payuNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payu_notifications_total",
			Help: "PayU confirmations received, by result",
		},
		[]string{"result"},
	)
)

// Purchase kinds.
const (
	KindFree = "free"
	KindPaid = "paid"
)

// TrackPurchase counts a created ticket.
func TrackPurchase(kind string) { ticketsPurchased.WithLabelValues(kind).Inc() }

// TrackCapacityRejection counts an operation refused for lack of capacity.
func TrackCapacityRejection() { capacityRejections.Inc() }

// TrackNotification counts a processed gateway confirmation.
func TrackNotification(result string) { payuNotifications.WithLabelValues(result).Inc() }

// Middleware records request count and latency per route template.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}

// Handler serves the default registry.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
