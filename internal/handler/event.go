package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// EventHandler serves event browsing and organizer management.
type EventHandler struct {
	Events *service.EventService
	Reader eventReader
	Audit  auditReader
	Roster ticketReader
}

func NewEventHandler(events *service.EventService, reader eventReader, audit auditReader, roster ticketReader) *EventHandler {
	return &EventHandler{Events: events, Reader: reader, Audit: audit, Roster: roster}
}

type offeringReq struct {
	TicketTypeID uint64          `json:"ticket_type_id" validate:"required"`
	Price        decimal.Decimal `json:"price"`
	MaxCapacity  int             `json:"maximun_capacity" validate:"gte=1"`
}

type eventReq struct {
	Name           string        `json:"event_name" validate:"required,max=200"`
	Description    string        `json:"description"`
	StartAt        time.Time     `json:"start_datetime" validate:"required"`
	EndAt          time.Time     `json:"end_datetime" validate:"required"`
	SalesOpenAt    *time.Time    `json:"sales_open_datetime"`
	Country        string        `json:"country" validate:"required"`
	CityID         *uint64       `json:"location_id"`
	CityText       string        `json:"city_text"`
	DepartmentText string        `json:"department_text"`
	Organizer      string        `json:"organizer"`
	Category       string        `json:"category" validate:"required"`
	Status         string        `json:"status"`
	MinAge         *int          `json:"min_age" validate:"omitempty,gte=0"`
	MaxCapacity    *int          `json:"max_capacity" validate:"omitempty,gte=1"`
	Offerings      []offeringReq `json:"ticket_types" validate:"omitempty,dive"`
}

func (r eventReq) input() service.EventInput {
	in := service.EventInput{
		Name:           strings.TrimSpace(r.Name),
		Description:    r.Description,
		StartAt:        r.StartAt,
		EndAt:          r.EndAt,
		SalesOpenAt:    r.SalesOpenAt,
		Country:        strings.TrimSpace(r.Country),
		CityID:         r.CityID,
		CityText:       r.CityText,
		DepartmentText: r.DepartmentText,
		Organizer:      r.Organizer,
		Category:       strings.ToLower(strings.TrimSpace(r.Category)),
		Status:         r.Status,
		MinAge:         r.MinAge,
		MaxCapacity:    r.MaxCapacity,
	}
	if r.Offerings != nil {
		in.Offerings = make([]service.OfferingInput, 0, len(r.Offerings))
		for _, o := range r.Offerings {
			in.Offerings = append(in.Offerings, service.OfferingInput{
				TicketTypeID: o.TicketTypeID,
				Price:        o.Price,
				MaxCapacity:  o.MaxCapacity,
			})
		}
	}
	return in
}

// List returns events filtered by status (default activo), category, city
// and a free-text search.
func (h *EventHandler) List(c echo.Context) error {
	status := c.QueryParam("status")
	if status == "" {
		status = model.EventActive
	}
	f := repository.EventFilter{
		Status:   status,
		Category: c.QueryParam("category"),
		Search:   c.QueryParam("q"),
		CityID:   uint64(queryInt(c, "city_id", 0)),
		Limit:    queryInt(c, "limit", 20),
		Offset:   queryInt(c, "offset", 0),
	}
	events, err := h.Reader.List(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, nonNil(events))
}

func (h *EventHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	d, err := h.Events.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *EventHandler) Availability(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	a, err := h.Events.Availability(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// TicketTypes lists the offerings of an event that is on sale.
func (h *EventHandler) TicketTypes(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	d, err := h.Events.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	if d.Status != model.EventActive {
		return writeError(c, service.ErrEventNotActive)
	}
	return c.JSON(http.StatusOK, nonNil(d.Offerings))
}

func (h *EventHandler) Create(c echo.Context) error {
	var req eventReq
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	d, err := h.Events.Create(c.Request().Context(), actorOf(c), req.input())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, d)
}

// Update replaces the event. Omitting ticket_types keeps the offerings.
func (h *EventHandler) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req eventReq
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	d, err := h.Events.Update(c.Request().Context(), actorOf(c), id, req.input())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *EventHandler) Cancel(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	res, err := h.Events.Cancel(c.Request().Context(), actorOf(c), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *EventHandler) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	if err := h.Events.Delete(c.Request().Context(), actorOf(c), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Mine lists the events created by the caller.
func (h *EventHandler) Mine(c echo.Context) error {
	events, err := h.Reader.ListByCreator(c.Request().Context(), actorOf(c).ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, nonNil(events))
}

// Attending lists the events the caller holds tickets for.
func (h *EventHandler) Attending(c echo.Context) error {
	events, err := h.Reader.ListByAttendee(c.Request().Context(), actorOf(c).ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, nonNil(events))
}

func (h *EventHandler) Attendees(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	list, err := h.Roster.ListAttendees(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, nonNil(list))
}

func (h *EventHandler) Changes(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	logs, err := h.Audit.ListChanges(c.Request().Context(), model.EntityEvent, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, nonNil(logs))
}
