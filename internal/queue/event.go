// Package queue carries ticketing events over RabbitMQ.
package queue

import (
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// Durable queue names. The routing key equals the queue name on the
// default exchange.
const (
	TicketConfirmedQueue = "ticket.confirmed"
	EventCancelledQueue  = "event.cancelled"
)

// TicketConfirmedEvent is published once a ticket reaches comprada.
type TicketConfirmedEvent struct {
	TicketID    uint64 `json:"ticket_id"`
	UserID      uint64 `json:"user_id"`
	EventID     uint64 `json:"event_id"`
	OfferingID  uint64 `json:"config_type_id"`
	Amount      int    `json:"amount"`
	UniqueCode  string `json:"unique_code"`
	ConfirmedAt string `json:"confirmed_at"`
}

// EventCancelledEvent is published after an event and its tickets were
// cancelled.
type EventCancelledEvent struct {
	EventID          uint64 `json:"event_id"`
	EventName        string `json:"event_name"`
	CreatorID        uint64 `json:"creator_id"`
	CancelledTickets int    `json:"cancelled_tickets"`
	CancelledAt      string `json:"cancelled_at"`
}

func newTicketConfirmed(t model.Ticket, at time.Time) TicketConfirmedEvent {
	return TicketConfirmedEvent{
		TicketID:    t.ID,
		UserID:      t.UserID,
		EventID:     t.EventID,
		OfferingID:  t.OfferingID,
		Amount:      t.Amount,
		UniqueCode:  t.UniqueCode,
		ConfirmedAt: at.UTC().Format(time.RFC3339),
	}
}

func newEventCancelled(ev model.Event, cancelled int, at time.Time) EventCancelledEvent {
	return EventCancelledEvent{
		EventID:          ev.ID,
		EventName:        ev.Name,
		CreatorID:        ev.CreatorID,
		CancelledTickets: cancelled,
		CancelledAt:      at.UTC().Format(time.RFC3339),
	}
}
