package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// requestError is a malformed or invalid request body or parameter.
type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

// statusOf classifies err into an HTTP status. Unknown errors are 500.
func statusOf(err error) int {
	var reqErr *requestError
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInsufficientCapacity),
		errors.Is(err, repository.ErrConflict),
		errors.Is(err, repository.ErrEmailExists):
		return http.StatusConflict
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrGatewayNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrInvalidSignature),
		errors.Is(err, service.ErrMissingNotificationField):
		return http.StatusBadRequest
	}
	for _, e := range clientErrors {
		if errors.Is(err, e) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

var clientErrors = []error{
	service.ErrInvalidAmount, service.ErrInvalidDates, service.ErrDuplicateTicketType,
	service.ErrUnknownTicketType, service.ErrCapacityExceedsEvent, service.ErrLocationRequired,
	service.ErrDuplicateEvent, service.ErrInvalidCategory, service.ErrInvalidStatus,
	service.ErrWeakPassword, service.ErrMissingCode, service.ErrInvalidRole,
	service.ErrEventNotActive, service.ErrUnderage, service.ErrTicketUsed, service.ErrTicketCancelled,
	service.ErrTicketPending, service.ErrTicketAlreadyPaid, service.ErrTicketNotPayable,
	service.ErrPaymentAlreadyApproved, service.ErrInvalidTransition, service.ErrEventAlreadyCancelled,
	service.ErrOfferingMismatch, service.ErrCapacityBelowSold,
}

// writeError renders err as {"error": msg}. Server errors are handed to
// the echo error handler so they get logged, and the client only sees a
// generic message.
func writeError(c echo.Context, err error) error {
	status := statusOf(err)
	switch status {
	case http.StatusInternalServerError:
		return echo.NewHTTPError(status, "internal error").SetInternal(err)
	case http.StatusServiceUnavailable:
		// The wrapped detail names the missing credentials.
		return c.JSON(status, echo.Map{"error": service.ErrGatewayNotConfigured.Error()})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

// ErrorHandler replaces echo's default handler so every error body uses
// the {"error": msg} shape.
func ErrorHandler(log *logrus.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		msg := "internal error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if s, ok := he.Message.(string); ok {
				msg = s
			} else {
				msg = http.StatusText(status)
			}
			if he.Internal != nil {
				err = he.Internal
			}
		}
		if status >= http.StatusInternalServerError {
			log.WithContext(c.Request().Context()).WithError(err).
				WithField("route", c.Path()).Error("request failed")
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, echo.Map{"error": msg})
	}
}
