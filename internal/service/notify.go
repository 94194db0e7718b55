package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// EventPublisher delivers domain events to the message broker.  It is
// called after the transaction that produced the event has committed.
type EventPublisher interface {
	TicketConfirmed(ctx context.Context, t model.Ticket) error
	EventCancelled(ctx context.Context, ev model.Event, cancelledTickets int) error
}

// AvailabilityBroadcaster pushes capacity snapshots to connected clients.
type AvailabilityBroadcaster interface {
	Broadcast(ctx context.Context, a model.Availability) error
}

// NopPublisher discards every event.
type NopPublisher struct{}

func (NopPublisher) TicketConfirmed(context.Context, model.Ticket) error { return nil }
func (NopPublisher) EventCancelled(context.Context, model.Event, int) error { return nil }

// NopBroadcaster discards every snapshot.
type NopBroadcaster struct{}

func (NopBroadcaster) Broadcast(context.Context, model.Availability) error { return nil }

// outbox collects the notifications produced inside a transaction.  It is
// flushed only once the transaction has committed.
type outbox struct {
	confirmed    []model.Ticket
	availability []model.Availability
	cancelled    *model.Event
	cancelCount  int
}

func (o *outbox) snapshot(ctx context.Context, tx repository.Tx, eventID uint64) error {
	ev, err := tx.GetEvent(ctx, eventID)
	if err != nil {
		return orNotFound(err, ErrEventNotFound)
	}
	offerings, err := tx.ListOfferings(ctx, eventID)
	if err != nil {
		return err
	}
	o.availability = append(o.availability, model.NewAvailability(ev, offerings))
	return nil
}

// notifier sends outbox contents.  Delivery failures are logged and never
// reach the caller: the state change they describe is already committed.
type notifier struct {
	pub EventPublisher
	bc  AvailabilityBroadcaster
	log *logrus.Logger
}

func newNotifier(pub EventPublisher, bc AvailabilityBroadcaster, log *logrus.Logger) notifier {
	if pub == nil {
		pub = NopPublisher{}
	}
	if bc == nil {
		bc = NopBroadcaster{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return notifier{pub: pub, bc: bc, log: log}
}

func (n notifier) flush(ctx context.Context, o *outbox) {
	entry := n.log.WithContext(ctx)
	for _, t := range o.confirmed {
		if err := n.pub.TicketConfirmed(ctx, t); err != nil {
			entry.WithError(err).WithField("ticket_id", t.ID).Error("publish ticket confirmed")
		}
	}
	if o.cancelled != nil {
		if err := n.pub.EventCancelled(ctx, *o.cancelled, o.cancelCount); err != nil {
			entry.WithError(err).WithField("event_id", o.cancelled.ID).Error("publish event cancelled")
		}
	}
	for _, a := range o.availability {
		if err := n.bc.Broadcast(ctx, a); err != nil {
			entry.WithError(err).WithField("event_id", a.EventID).Warn("broadcast availability")
		}
	}
}
