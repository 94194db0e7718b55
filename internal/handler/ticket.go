package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// TicketHandler serves purchases, ticket lookups, entrance scans and
// administrative ticket edits.
type TicketHandler struct {
	Tickets *service.TicketService
	Reader  ticketReader
	Audit   auditReader
}

func NewTicketHandler(tickets *service.TicketService, reader ticketReader, audit auditReader) *TicketHandler {
	return &TicketHandler{Tickets: tickets, Reader: reader, Audit: audit}
}

type purchaseReq struct {
	OfferingID uint64 `json:"config_type_id" validate:"required"`
	Amount     *int   `json:"amount"`
}

type scanReq struct {
	Code string `json:"unique_code"`
}

type ticketChangeReq struct {
	Status     string `json:"status" validate:"omitempty,oneof=pendiente comprada usada cancelada"`
	OfferingID uint64 `json:"config_type_id"`
	Amount     int    `json:"amount" validate:"gte=0"`
}

// Purchase buys Amount admissions of one ticket type for the caller.
func (h *TicketHandler) Purchase(c echo.Context) error {
	eventID, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req purchaseReq
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	amount := 1
	if req.Amount != nil {
		amount = *req.Amount
	}
	uid, _ := middleware.UserID(c)
	res, err := h.Tickets.Purchase(c.Request().Context(), service.PurchaseInput{
		UserID:     uid,
		EventID:    eventID,
		OfferingID: req.OfferingID,
		Amount:     amount,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *TicketHandler) Mine(c echo.Context) error {
	uid, _ := middleware.UserID(c)
	list, err := h.Reader.ListByUser(c.Request().Context(), uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, nonNil(list))
}

// Get returns a ticket to its owner or to Administrador/Staff.
func (h *TicketHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	t, err := h.Reader.GetByID(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	uid, _ := middleware.UserID(c)
	if t.UserID != uid && !middleware.HasRole(c, model.RoleAdmin, model.RoleStaff) {
		return writeError(c, repository.ErrForbidden)
	}
	return c.JSON(http.StatusOK, t)
}

// Validate admits the holder of the ticket identified by unique_code.
func (h *TicketHandler) Validate(c echo.Context) error {
	var req scanReq
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	uid, _ := middleware.UserID(c)
	res, err := h.Tickets.Scan(c.Request().Context(), service.ScanInput{
		Code:    req.Code,
		StaffID: uid,
		IP:      c.RealIP(),
		Device:  c.Request().UserAgent(),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *TicketHandler) AccessLogs(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	logs, err := h.Audit.ListAccessLogs(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, nonNil(logs))
}

// Update is the administrative edit of status, ticket type or amount.
func (h *TicketHandler) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req ticketChangeReq
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	uid, _ := middleware.UserID(c)
	t, err := h.Tickets.Update(c.Request().Context(), uid, id, service.TicketChange{
		Status:     req.Status,
		OfferingID: req.OfferingID,
		Amount:     req.Amount,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TicketHandler) Cancel(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	uid, _ := middleware.UserID(c)
	t, err := h.Tickets.Cancel(c.Request().Context(), uid, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}
