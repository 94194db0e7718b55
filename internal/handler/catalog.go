package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/model"
)

type ticketTypeStore interface {
	List(ctx context.Context) ([]model.TicketType, error)
	Create(ctx context.Context, t *model.TicketType) error
}

type locationReader interface {
	Departments(ctx context.Context) ([]model.Department, error)
	Cities(ctx context.Context, departmentID uint64) ([]model.City, error)
}

// CatalogHandler serves the reference data: ticket types and the
// department/city tree.
type CatalogHandler struct {
	Types     ticketTypeStore
	Locations locationReader
}

func NewCatalogHandler(types ticketTypeStore, locations locationReader) *CatalogHandler {
	return &CatalogHandler{Types: types, Locations: locations}
}

type ticketTypeReq struct {
	Name        string `json:"ticket_name" validate:"required,max=100"`
	Description string `json:"description"`
}

func (h *CatalogHandler) TicketTypes(c echo.Context) error {
	list, err := h.Types.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, nonNil(list))
}

func (h *CatalogHandler) CreateTicketType(c echo.Context) error {
	var req ticketTypeReq
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}
	t := model.TicketType{Name: strings.TrimSpace(req.Name), Description: req.Description}
	if err := h.Types.Create(c.Request().Context(), &t); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *CatalogHandler) Departments(c echo.Context) error {
	list, err := h.Locations.Departments(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, nonNil(list))
}

func (h *CatalogHandler) Cities(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	list, err := h.Locations.Cities(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, nonNil(list))
}
