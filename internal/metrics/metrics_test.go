package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareRecordsRouteTemplate(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/v1/events/:id", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/metrics", Handler())

	before := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/v1/events/:id", "204"))
	for _, id := range []string{"1", "2"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/events/"+id, nil))
	}
	after := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/v1/events/:id", "204"))
	assert.Equal(t, 2.0, after-before)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/v1/events/:id",status="204"}`)
}

func TestBusinessCounters(t *testing.T) {
	free := testutil.ToFloat64(ticketsPurchased.WithLabelValues(KindFree))
	TrackPurchase(KindFree)
	assert.Equal(t, 1.0, testutil.ToFloat64(ticketsPurchased.WithLabelValues(KindFree))-free)

	rejected := testutil.ToFloat64(capacityRejections)
	TrackCapacityRejection()
	assert.Equal(t, 1.0, testutil.ToFloat64(capacityRejections)-rejected)

	ignored := testutil.ToFloat64(payuNotifications.WithLabelValues("ignored"))
	TrackNotification("ignored")
	assert.Equal(t, 1.0, testutil.ToFloat64(payuNotifications.WithLabelValues("ignored"))-ignored)
}
