package handler

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-ticketing/internal/middleware"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
	"github.com/iliyamo/event-ticketing/internal/service"
)

// actorOf builds the service actor from the authenticated request.
func actorOf(c echo.Context) service.Actor {
	id, _ := middleware.UserID(c)
	return service.Actor{ID: id, Roles: middleware.Roles(c)}
}

// Read-side dependencies. The SQL repositories satisfy them.
type (
	eventReader interface {
		List(ctx context.Context, f repository.EventFilter) ([]model.Event, error)
		ListByCreator(ctx context.Context, creatorID uint64) ([]model.Event, error)
		ListByAttendee(ctx context.Context, userID uint64) ([]model.Event, error)
	}
	ticketReader interface {
		GetByID(ctx context.Context, id uint64) (model.Ticket, error)
		ListByUser(ctx context.Context, userID uint64) ([]model.Ticket, error)
		ListAttendees(ctx context.Context, eventID uint64) ([]model.Attendee, error)
	}
	auditReader interface {
		ListChanges(ctx context.Context, entity string, id uint64) ([]model.ChangeLog, error)
		ListAccessLogs(ctx context.Context, ticketID uint64) ([]model.TicketAccessLog, error)
	}
)

// nonNil keeps empty lists rendering as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
