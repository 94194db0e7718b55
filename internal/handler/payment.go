package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/payu"
	"github.com/iliyamo/event-ticketing/internal/service"
)

type userReader interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// PaymentHandler serves the PayU confirmation webhook and the buyer's
// payment endpoints.
type PaymentHandler struct {
	Payments *service.PaymentService
	Users    userReader
}

func NewPaymentHandler(payments *service.PaymentService, users userReader) *PaymentHandler {
	return &PaymentHandler{Payments: payments, Users: users}
}

// Confirmation applies a gateway notification. PayU posts form fields;
// JSON bodies with the same keys are accepted too.
func (h *PaymentHandler) Confirmation(c echo.Context) error {
	get, err := notificationFields(c)
	if err != nil {
		return writeError(c, err)
	}
	n, err := payu.ParseNotification(get)
	if err != nil {
		metrics.TrackNotification("missing_field")
		return writeError(c, err)
	}
	out, err := h.Payments.HandleNotification(c.Request().Context(), n)
	if err != nil {
		return writeError(c, err)
	}
	msg := "notification processed"
	if !out.Changed {
		msg = "notification received, ticket unchanged"
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":        msg,
		"reference_code": out.Reference,
		"payment_status": out.PaymentStatus,
		"ticket_id":      out.TicketID,
		"ticket_status":  out.TicketStatus,
	})
}

func notificationFields(c echo.Context) (func(string) string, error) {
	req := c.Request()
	if strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		var body map[string]any
		dec := json.NewDecoder(req.Body)
		dec.UseNumber()
		if err := dec.Decode(&body); err != nil {
			return nil, badRequest("invalid body")
		}
		return func(k string) string {
			v, ok := body[k]
			if !ok || v == nil {
				return ""
			}
			switch t := v.(type) {
			case string:
				return t
			case json.Number:
				return t.String()
			}
			return fmt.Sprint(v)
		}, nil
	}
	if _, err := c.FormParams(); err != nil {
		return nil, badRequest("invalid body")
	}
	return c.FormValue, nil
}

// Init (re)starts checkout for a pending ticket of the caller.
func (h *PaymentHandler) Init(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	uid, _ := middleware.UserID(c)
	form, err := h.Payments.InitPayment(c.Request().Context(), uid, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, form)
}

// History lists the caller's transactions by buyer email.
func (h *PaymentHandler) History(c echo.Context) error {
	uid, _ := middleware.UserID(c)
	u, err := h.Users.GetByID(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	list, err := h.Payments.History(c.Request().Context(), u.Email)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, nonNil(list))
}
