package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/payu"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/repository/memstore"
	"github.com/iliyamo/event-ticketing/internal/service"
	"github.com/iliyamo/event-ticketing/internal/utils"
)

const testSecret = "handler-test-secret"

var testPayU = config.PayUConfig{
	MerchantID:  "508029",
	AccountID:   "512321",
	APIKey:      "4Vj8eK4rloUd272L48hsrarnUA",
	Currency:    "COP",
	Sandbox:     true,
	CheckoutURL: "https://sandbox.checkout.example/",
}

type env struct {
	t     *testing.T
	e     *echo.Echo
	store *memstore.Store
	buyer model.User
	staff model.User
	event model.Event
	free  model.TicketTypeEvent
	paid  model.TicketTypeEvent
}

func newEnv(t *testing.T, payCfg config.PayUConfig) *env {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	store := memstore.New()
	payments := service.NewPaymentService(store, nil, payCfg, service.NopPublisher{}, service.NopBroadcaster{}, log)
	tickets := service.NewTicketService(store, payments, service.NopPublisher{}, service.NopBroadcaster{}, log)
	th := NewTicketHandler(tickets, nil, nil)
	ph := NewPaymentHandler(payments, nil)

	e := echo.New()
	e.Validator = NewValidator()
	e.HTTPErrorHandler = ErrorHandler(log)
	auth := middleware.JWTAuth(testSecret)
	e.POST("/v1/events/:id/tickets", th.Purchase, auth)
	e.POST("/v1/tickets/validate", th.Validate, auth, middleware.RequireRoles(model.RoleStaff, model.RoleAdmin))
	e.POST("/v1/payments/payu/confirmation", ph.Confirmation)

	v := &env{t: t, e: e, store: store}
	v.buyer = store.AddUser(model.User{Email: "buyer@example.co", Username: "buyer", Roles: []string{model.RoleParticipant}, IsActive: true})
	v.staff = store.AddUser(model.User{Email: "staff@example.co", Username: "staff", Roles: []string{model.RoleStaff}, IsActive: true})
	general := store.AddTicketType(model.TicketType{Name: "General"})
	vip := store.AddTicketType(model.TicketType{Name: "VIP"})
	v.event = store.AddEvent(model.Event{
		Name:     "Festival",
		StartAt:  time.Now().Add(30 * 24 * time.Hour),
		EndAt:    time.Now().Add(31 * 24 * time.Hour),
		Country:  "Colombia",
		Category: "musica",
		Status:   model.EventActive,
	})
	v.free = store.AddOffering(model.TicketTypeEvent{EventID: v.event.ID, TicketTypeID: general.ID, Price: decimal.Zero, MaxCapacity: 2})
	v.paid = store.AddOffering(model.TicketTypeEvent{EventID: v.event.ID, TicketTypeID: vip.ID, Price: decimal.RequireFromString("150000"), MaxCapacity: 5})
	return v
}

func (v *env) token(u model.User) string {
	v.t.Helper()
	tok, err := utils.NewAccessToken(testSecret, u.ID, u.Roles, 15)
	require.NoError(v.t, err)
	return tok.Token
}

func (v *env) do(method, path, contentType, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	v.e.ServeHTTP(rec, req)
	return rec
}

func (v *env) purchase(offering model.TicketTypeEvent, amount int, bearer string) *httptest.ResponseRecorder {
	body := fmt.Sprintf(`{"config_type_id":%d,"amount":%d}`, offering.ID, amount)
	return v.do(http.MethodPost, fmt.Sprintf("/v1/events/%d/tickets", v.event.ID), echo.MIMEApplicationJSON, body, bearer)
}

func notificationForm(ref, value, state, sign string) url.Values {
	if sign == "" {
		sign = payu.Sign(testPayU.APIKey, testPayU.MerchantID, ref, value, "COP")
	}
	return url.Values{
		"reference_sale": {ref},
		"value":          {value},
		"currency":       {"COP"},
		"state_pol":      {state},
		"sign":           {sign},
		"transaction_id": {"tx-" + ref},
		"email_buyer":    {"buyer@example.co"},
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), rec.Body.String())
	return m
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{badRequest("invalid body"), http.StatusBadRequest},
		{service.ErrInvalidAmount, http.StatusBadRequest},
		{fmt.Errorf("wrap: %w", service.ErrWeakPassword), http.StatusBadRequest},
		{service.ErrTicketUsed, http.StatusBadRequest},
		{service.ErrInsufficientCapacity, http.StatusConflict},
		{repository.ErrEmailExists, http.StatusConflict},
		{repository.ErrConflict, http.StatusConflict},
		{repository.ErrForbidden, http.StatusForbidden},
		{service.ErrTicketNotFound, http.StatusNotFound},
		{repository.ErrNotFound, http.StatusNotFound},
		{service.ErrInvalidSignature, http.StatusBadRequest},
		{&payu.MissingFieldError{Field: "sign"}, http.StatusBadRequest},
		{service.ErrGatewayNotConfigured, http.StatusServiceUnavailable},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusOf(tc.err), tc.err.Error())
	}
}

func TestPurchaseFreeTicket(t *testing.T) {
	v := newEnv(t, testPayU)

	rec := v.purchase(v.free, 2, v.token(v.buyer))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	ticket := decode(t, rec)["ticket"].(map[string]any)
	assert.Equal(t, model.TicketPurchased, ticket["status"])
	assert.NotEmpty(t, ticket["unique_code"])
	assert.Equal(t, 2, v.store.Offering(v.free.ID).CapacitySold)

	rec = v.purchase(v.free, 1, v.token(v.buyer))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not enough capacity left", decode(t, rec)["error"])
	assert.Equal(t, 2, v.store.Offering(v.free.ID).CapacitySold)
}

func TestPurchasePaidTicketReturnsCheckout(t *testing.T) {
	v := newEnv(t, testPayU)

	rec := v.purchase(v.paid, 1, v.token(v.buyer))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, model.TicketPending, body["ticket"].(map[string]any)["status"])
	checkout := body["checkout"].(map[string]any)
	assert.Equal(t, "150000.00", checkout["amount"])
	assert.Equal(t, 0, v.store.Offering(v.paid.ID).CapacitySold)
}

func TestPurchaseRejections(t *testing.T) {
	v := newEnv(t, testPayU)

	assert.Equal(t, http.StatusUnauthorized, v.purchase(v.free, 1, "").Code)

	rec := v.purchase(v.free, 0, v.token(v.buyer))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.ErrInvalidAmount.Error(), decode(t, rec)["error"])

	rec = v.do(http.MethodPost, fmt.Sprintf("/v1/events/%d/tickets", v.event.ID), echo.MIMEApplicationJSON, `{"amount":1}`, v.token(v.buyer))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "config_type_id")

	rec = v.do(http.MethodPost, "/v1/events/999/tickets", echo.MIMEApplicationJSON, `{"config_type_id":1}`, v.token(v.buyer))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPurchasePaidWithoutGateway(t *testing.T) {
	v := newEnv(t, config.PayUConfig{})

	rec := v.purchase(v.paid, 1, v.token(v.buyer))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "payment gateway not configured", decode(t, rec)["error"])
	assert.Empty(t, v.store.Tickets())
}

func TestConfirmationApprovesOnce(t *testing.T) {
	v := newEnv(t, testPayU)
	tk := v.store.AddTicket(model.Ticket{UserID: v.buyer.ID, EventID: v.event.ID, OfferingID: v.paid.ID, Amount: 2, Status: model.TicketPending, UniqueCode: "ref-1"})
	form := notificationForm("ref-1", "300000.00", payu.StateApproved, "").Encode()

	rec := v.do(http.MethodPost, "/v1/payments/payu/confirmation", echo.MIMEApplicationForm, form, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "notification processed", body["message"])
	assert.Equal(t, model.PaymentApproved, body["payment_status"])
	assert.Equal(t, model.TicketPurchased, body["ticket_status"])
	assert.EqualValues(t, tk.ID, body["ticket_id"])
	assert.Equal(t, 2, v.store.Offering(v.paid.ID).CapacitySold)

	rec = v.do(http.MethodPost, "/v1/payments/payu/confirmation", echo.MIMEApplicationForm, form, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "notification received, ticket unchanged", decode(t, rec)["message"])
	assert.Equal(t, 2, v.store.Offering(v.paid.ID).CapacitySold)
	assert.Equal(t, 1, v.store.PaymentCount())
}

func TestConfirmationAcceptsJSON(t *testing.T) {
	v := newEnv(t, testPayU)
	v.store.AddTicket(model.Ticket{UserID: v.buyer.ID, EventID: v.event.ID, OfferingID: v.paid.ID, Amount: 1, Status: model.TicketPending, UniqueCode: "ref-2"})
	sign := payu.Sign(testPayU.APIKey, testPayU.MerchantID, "ref-2", "150000.00", "COP")
	body := fmt.Sprintf(`{"reference_sale":"ref-2","value":"150000.00","currency":"COP","state_pol":%s,"sign":%q}`, payu.StateApproved, sign)

	rec := v.do(http.MethodPost, "/v1/payments/payu/confirmation", echo.MIMEApplicationJSON, body, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.TicketPurchased, decode(t, rec)["ticket_status"])
}

func TestConfirmationAcceptsNumericJSONValue(t *testing.T) {
	v := newEnv(t, testPayU)
	v.store.AddTicket(model.Ticket{UserID: v.buyer.ID, EventID: v.event.ID, OfferingID: v.paid.ID, Amount: 1, Status: model.TicketPending, UniqueCode: "ref-3"})
	sign := payu.Sign(testPayU.APIKey, testPayU.MerchantID, "ref-3", "1500000.00", "COP")
	body := fmt.Sprintf(`{"reference_sale":"ref-3","value":1500000.00,"currency":"COP","state_pol":%s,"sign":%q}`, payu.StateApproved, sign)

	rec := v.do(http.MethodPost, "/v1/payments/payu/confirmation", echo.MIMEApplicationJSON, body, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p, ok := v.store.Payment("ref-3")
	require.True(t, ok)
	assert.Equal(t, "1500000.00", p.Amount.StringFixed(2))
}

func TestConfirmationRejectsBadInput(t *testing.T) {
	v := newEnv(t, testPayU)
	v.store.AddTicket(model.Ticket{UserID: v.buyer.ID, EventID: v.event.ID, OfferingID: v.paid.ID, Amount: 1, Status: model.TicketPending, UniqueCode: "ref-1"})

	forged := notificationForm("ref-1", "150000.00", payu.StateApproved, "0123456789abcdef0123456789abcdef")
	rec := v.do(http.MethodPost, "/v1/payments/payu/confirmation", echo.MIMEApplicationForm, forged.Encode(), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid signature", decode(t, rec)["error"])

	missing := notificationForm("ref-1", "150000.00", payu.StateApproved, "")
	missing.Del("sign")
	rec = v.do(http.MethodPost, "/v1/payments/payu/confirmation", echo.MIMEApplicationForm, missing.Encode(), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing field: sign", decode(t, rec)["error"])

	unknown := notificationForm("ghost", "1.00", payu.StateApproved, "")
	rec = v.do(http.MethodPost, "/v1/payments/payu/confirmation", echo.MIMEApplicationForm, unknown.Encode(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 0, v.store.PaymentCount())
}

func TestConfirmationWithoutCapacityConflicts(t *testing.T) {
	v := newEnv(t, testPayU)
	sold := v.store.Offering(v.paid.ID)
	sold.CapacitySold = sold.MaxCapacity
	v.store.AddOffering(sold)
	tk := v.store.AddTicket(model.Ticket{UserID: v.buyer.ID, EventID: v.event.ID, OfferingID: v.paid.ID, Amount: 1, Status: model.TicketPending, UniqueCode: "ref-1"})

	form := notificationForm("ref-1", "150000.00", payu.StateApproved, "").Encode()
	rec := v.do(http.MethodPost, "/v1/payments/payu/confirmation", echo.MIMEApplicationForm, form, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, model.TicketPending, v.store.Ticket(tk.ID).Status)
	assert.Equal(t, 0, v.store.PaymentCount())
}

func TestValidateTicket(t *testing.T) {
	v := newEnv(t, testPayU)
	rec := v.purchase(v.free, 1, v.token(v.buyer))
	require.Equal(t, http.StatusCreated, rec.Code)
	code := decode(t, rec)["ticket"].(map[string]any)["unique_code"].(string)
	body := fmt.Sprintf(`{"unique_code":%q}`, code)

	rec = v.do(http.MethodPost, "/v1/tickets/validate", echo.MIMEApplicationJSON, body, v.token(v.buyer))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = v.do(http.MethodPost, "/v1/tickets/validate", echo.MIMEApplicationJSON, body, v.token(v.staff))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode(t, rec)
	assert.Equal(t, model.TicketUsed, res["ticket"].(map[string]any)["status"])
	assert.EqualValues(t, v.staff.ID, res["access"].(map[string]any)["accessed_by"])
	assert.Equal(t, 0, v.store.Offering(v.free.ID).CapacitySold)
	require.Len(t, v.store.AccessLogs(), 1)

	rec = v.do(http.MethodPost, "/v1/tickets/validate", echo.MIMEApplicationJSON, body, v.token(v.staff))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ticket already used", decode(t, rec)["error"])
	assert.Len(t, v.store.AccessLogs(), 1)

	rec = v.do(http.MethodPost, "/v1/tickets/validate", echo.MIMEApplicationJSON, `{}`, v.token(v.staff))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.ErrMissingCode.Error(), decode(t, rec)["error"])
}

func TestErrorHandlerHidesInternalErrors(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(log)
	e.GET("/boom", func(c echo.Context) error { return writeError(c, errors.New("dial tcp: refused")) })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not Found"}`, rec.Body.String())
}
