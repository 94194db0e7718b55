package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/service"
)

type userLister interface {
	List(ctx context.Context, limit, offset int) ([]model.User, error)
}

// AdminHandler serves user administration for Administrador.
type AdminHandler struct {
	Users userLister
	Roles *service.UserService
	Audit auditReader
}

func NewAdminHandler(users userLister, roles *service.UserService, audit auditReader) *AdminHandler {
	return &AdminHandler{Users: users, Roles: roles, Audit: audit}
}

func (h *AdminHandler) ListUsers(c echo.Context) error {
	list, err := h.Users.List(c.Request().Context(), queryInt(c, "limit", 50), queryInt(c, "offset", 0))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, nonNil(list))
}

func (h *AdminHandler) AssignRole(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	if err := h.Roles.AssignRole(c.Request().Context(), actorOf(c), id, c.Param("role")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) RemoveRole(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	if err := h.Roles.RemoveRole(c.Request().Context(), actorOf(c), id, c.Param("role")); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) UserChanges(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	logs, err := h.Audit.ListChanges(c.Request().Context(), model.EntityUser, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, nonNil(logs))
}
