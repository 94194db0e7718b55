package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// EventService manages events and their offerings.
type EventService struct {
	store repository.Store
	audit AuditWriter
	notifier
	now func() time.Time
}

// NewEventService returns an EventService.
func NewEventService(store repository.Store, pub EventPublisher, bc AvailabilityBroadcaster, log *logrus.Logger) *EventService {
	return &EventService{
		store:    store,
		notifier: newNotifier(pub, bc, log),
		now:      time.Now,
	}
}

// OfferingInput prices one ticket type within an event.
type OfferingInput struct {
	TicketTypeID uint64
	Price        decimal.Decimal
	MaxCapacity  int
}

// EventInput is the writable state of an event.  A nil Offerings leaves
// the offerings of an existing event untouched on update.
type EventInput struct {
	Name           string
	Description    string
	StartAt        time.Time
	EndAt          time.Time
	SalesOpenAt    *time.Time
	Country        string
	CityID         *uint64
	CityText       string
	DepartmentText string
	Organizer      string
	Category       string
	Status         string
	MinAge         *int
	MaxCapacity    *int
	Offerings      []OfferingInput
}

// EventDetail is an event with its offerings.
type EventDetail struct {
	model.Event
	Offerings []model.TicketTypeEvent `json:"ticket_types"`
}

func (in EventInput) apply(ev *model.Event) {
	ev.Name = strings.TrimSpace(in.Name)
	ev.Description = in.Description
	ev.StartAt = in.StartAt.UTC()
	ev.EndAt = in.EndAt.UTC()
	ev.SalesOpenAt = in.SalesOpenAt
	ev.Country = strings.TrimSpace(in.Country)
	ev.Organizer = in.Organizer
	ev.Category = in.Category
	ev.MinAge = in.MinAge
	ev.MaxCapacity = in.MaxCapacity
	if ev.Category == "" {
		ev.Category = "otros"
	}
	if ev.InColombia() {
		ev.CityID, ev.CityText, ev.DepartmentText = in.CityID, "", ""
	} else {
		ev.CityID, ev.CityText, ev.DepartmentText = nil, strings.TrimSpace(in.CityText), strings.TrimSpace(in.DepartmentText)
	}
}

// validateEvent checks the event fields.  checkPast is false on updates that
// keep the original schedule, so a running event stays editable.
func validateEvent(ev model.Event, offerings []OfferingInput, now time.Time, checkPast bool) error {
	if !ev.EndAt.After(ev.StartAt) {
		return ErrInvalidDates
	}
	if checkPast && (ev.StartAt.Before(now) || ev.EndAt.Before(now)) {
		return ErrInvalidDates
	}
	if !model.ValidCategory(ev.Category) {
		return ErrInvalidCategory
	}
	if ev.InColombia() {
		if ev.CityID == nil || *ev.CityID == 0 {
			return ErrLocationRequired
		}
	} else if ev.CityText == "" || ev.DepartmentText == "" {
		return ErrLocationRequired
	}
	if (ev.MinAge != nil && *ev.MinAge < 0) || (ev.MaxCapacity != nil && *ev.MaxCapacity < 0) {
		return ErrInvalidAmount
	}
	seen := make(map[uint64]bool, len(offerings))
	total := 0
	for _, o := range offerings {
		if seen[o.TicketTypeID] {
			return ErrDuplicateTicketType
		}
		seen[o.TicketTypeID] = true
		if o.MaxCapacity <= 0 || o.Price.IsNegative() {
			return ErrInvalidAmount
		}
		total += o.MaxCapacity
	}
	if ev.MaxCapacity != nil && total > *ev.MaxCapacity {
		return ErrCapacityExceedsEvent
	}
	return nil
}

func typeIDs(offerings []OfferingInput) []uint64 {
	ids := make([]uint64, 0, len(offerings))
	for _, o := range offerings {
		ids = append(ids, o.TicketTypeID)
	}
	return ids
}

// Create stores a new event owned by actor together with its offerings.
func (s *EventService) Create(ctx context.Context, actor Actor, in EventInput) (EventDetail, error) {
	now := s.now().UTC()
	ev := model.Event{CreatorID: actor.ID}
	in.apply(&ev)
	switch in.Status {
	case "":
		ev.Status = model.EventScheduled
		if ev.SalesOpenAt == nil || !now.Before(*ev.SalesOpenAt) {
			ev.Status = model.EventActive
		}
	case model.EventScheduled, model.EventActive:
		ev.Status = in.Status
	default:
		return EventDetail{}, ErrInvalidStatus
	}
	if err := validateEvent(ev, in.Offerings, now, true); err != nil {
		return EventDetail{}, err
	}

	var out EventDetail
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := checkReferences(ctx, tx, ev, in.Offerings); err != nil {
			return err
		}
		if err := tx.InsertEvent(ctx, &ev); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		for _, oi := range in.Offerings {
			o := model.TicketTypeEvent{EventID: ev.ID, TicketTypeID: oi.TicketTypeID, Price: oi.Price, MaxCapacity: oi.MaxCapacity}
			if err := tx.InsertOffering(ctx, &o); err != nil {
				return fmt.Errorf("insert offering: %w", err)
			}
		}
		var err error
		out, err = detailTx(ctx, tx, ev.ID)
		return err
	})
	if err != nil {
		logFailure(s.log.WithContext(ctx).WithField("creator_id", actor.ID), err, "create event")
		return EventDetail{}, err
	}
	s.log.WithContext(ctx).WithFields(logrus.Fields{"event_id": out.ID, "creator_id": actor.ID}).Info("event created")
	return out, nil
}

func checkReferences(ctx context.Context, tx repository.Tx, ev model.Event, offerings []OfferingInput) error {
	if len(offerings) > 0 {
		ok, err := tx.TicketTypesExist(ctx, typeIDs(offerings))
		if err != nil {
			return fmt.Errorf("check ticket types: %w", err)
		}
		if !ok {
			return ErrUnknownTicketType
		}
	}
	dup, err := tx.DuplicateEventExists(ctx, ev)
	if err != nil {
		return fmt.Errorf("check duplicate event: %w", err)
	}
	if dup {
		return ErrDuplicateEvent
	}
	return nil
}

// Update rewrites an event, reconciles its offerings by ticket type and
// records every changed field in the change log.
func (s *EventService) Update(ctx context.Context, actor Actor, eventID uint64, in EventInput) (EventDetail, error) {
	now := s.now().UTC()
	var out EventDetail
	box := &outbox{}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		old, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return orNotFound(err, ErrEventNotFound)
		}
		if !actor.canManage(old) {
			return repository.ErrForbidden
		}
		if old.Status == model.EventCancelled {
			return ErrEventAlreadyCancelled
		}
		ev := old
		in.apply(&ev)
		switch in.Status {
		case "":
		case model.EventScheduled, model.EventActive, model.EventFinished:
			ev.Status = in.Status
		default:
			return ErrInvalidStatus
		}
		rescheduled := !ev.StartAt.Equal(old.StartAt) || !ev.EndAt.Equal(old.EndAt)
		offerings := in.Offerings
		if offerings == nil {
			current, err := tx.ListOfferings(ctx, eventID)
			if err != nil {
				return err
			}
			for _, o := range current {
				offerings = append(offerings, OfferingInput{TicketTypeID: o.TicketTypeID, Price: o.Price, MaxCapacity: o.MaxCapacity})
			}
		}
		if err := validateEvent(ev, offerings, now, rescheduled); err != nil {
			return err
		}
		if err := checkReferences(ctx, tx, ev, in.Offerings); err != nil {
			return err
		}

		var changes ChangedFields
		trackEvent(&changes, old, ev)
		capacityChanged := false
		if in.Offerings != nil {
			if capacityChanged, err = reconcileOfferings(ctx, tx, eventID, in.Offerings, &changes); err != nil {
				return err
			}
		}
		if err := tx.UpdateEvent(ctx, ev); err != nil {
			return fmt.Errorf("update event: %w", err)
		}
		if err := s.audit.Write(ctx, tx, model.EntityEvent, eventID, actorRef(actor.ID), ChangeEventData, changes); err != nil {
			return err
		}
		if capacityChanged || ev.Status != old.Status {
			if err := box.snapshot(ctx, tx, eventID); err != nil {
				return err
			}
		}
		out, err = detailTx(ctx, tx, eventID)
		return err
	})
	entry := s.log.WithContext(ctx).WithFields(logrus.Fields{"event_id": eventID, "actor_id": actor.ID})
	if err != nil {
		logFailure(entry, err, "update event")
		return EventDetail{}, err
	}
	entry.Info("event updated")
	s.flush(ctx, box)
	return out, nil
}

func trackEvent(c *ChangedFields, old, ev model.Event) {
	c.Track("event_name", old.Name, ev.Name)
	c.Track("description", old.Description, ev.Description)
	c.Track("start_datetime", old.StartAt, ev.StartAt)
	c.Track("end_datetime", old.EndAt, ev.EndAt)
	c.Track("sales_open_datetime", old.SalesOpenAt, ev.SalesOpenAt)
	c.Track("country", old.Country, ev.Country)
	c.Track("location", old.CityID, ev.CityID)
	c.Track("city_text", old.CityText, ev.CityText)
	c.Track("department_text", old.DepartmentText, ev.DepartmentText)
	c.Track("organizer", old.Organizer, ev.Organizer)
	c.Track("category", old.Category, ev.Category)
	c.Track("status", old.Status, ev.Status)
	c.Track("min_age", old.MinAge, ev.MinAge)
	c.Track("max_capacity", old.MaxCapacity, ev.MaxCapacity)
}

// reconcileOfferings makes the event's offerings match want.  It reports
// whether any capacity figure changed.
func reconcileOfferings(ctx context.Context, tx repository.Tx, eventID uint64, want []OfferingInput, c *ChangedFields) (bool, error) {
	current, err := tx.ListOfferings(ctx, eventID)
	if err != nil {
		return false, err
	}
	ids := make([]uint64, 0, len(current))
	for _, o := range current {
		ids = append(ids, o.ID)
	}
	locked, err := lockOfferings(ctx, tx, ids...)
	if err != nil {
		return false, err
	}
	byType := make(map[uint64]model.TicketTypeEvent, len(locked))
	for _, o := range locked {
		byType[o.TicketTypeID] = o
	}

	changed := false
	keep := make(map[uint64]bool, len(want))
	for _, w := range want {
		keep[w.TicketTypeID] = true
		label := fmt.Sprintf("ticket_type[%d]", w.TicketTypeID)
		o, ok := byType[w.TicketTypeID]
		if !ok {
			n := model.TicketTypeEvent{EventID: eventID, TicketTypeID: w.TicketTypeID, Price: w.Price, MaxCapacity: w.MaxCapacity}
			if err := tx.InsertOffering(ctx, &n); err != nil {
				return false, fmt.Errorf("insert offering: %w", err)
			}
			c.Track(label, "", fmt.Sprintf("price=%s maximun_capacity=%d", w.Price.StringFixed(2), w.MaxCapacity))
			changed = true
			continue
		}
		if w.MaxCapacity < o.CapacitySold {
			return false, ErrCapacityBelowSold
		}
		if o.Price.Equal(w.Price) && o.MaxCapacity == w.MaxCapacity {
			continue
		}
		c.Track(label+".price", o.Price, w.Price)
		c.Track(label+".maximun_capacity", o.MaxCapacity, w.MaxCapacity)
		changed = changed || o.MaxCapacity != w.MaxCapacity
		o.Price, o.MaxCapacity = w.Price, w.MaxCapacity
		if err := tx.UpdateOffering(ctx, o); err != nil {
			return false, fmt.Errorf("update offering: %w", err)
		}
	}

	for _, id := range sortedKeys(locked) {
		o := locked[id]
		if keep[o.TicketTypeID] {
			continue
		}
		n, err := tx.CountTicketsByOffering(ctx, o.ID)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return false, fmt.Errorf("%w: ticket type %d has %d tickets", repository.ErrConflict, o.TicketTypeID, n)
		}
		if err := tx.DeleteOffering(ctx, o.ID); err != nil {
			return false, fmt.Errorf("delete offering: %w", err)
		}
		c.Track(fmt.Sprintf("ticket_type[%d]", o.TicketTypeID), fmt.Sprintf("price=%s maximun_capacity=%d", o.Price.StringFixed(2), o.MaxCapacity), "")
		changed = true
	}
	return changed, nil
}

// CancelResult reports the effect of cancelling an event.
type CancelResult struct {
	Event            model.Event `json:"event"`
	CancelledTickets int         `json:"cancelled_tickets"`
	ReleasedCapacity int         `json:"released_capacity"`
}

// Cancel cancels the event and every ticket that is not already
// cancelled, releasing the capacity held by purchased tickets.
func (s *EventService) Cancel(ctx context.Context, actor Actor, eventID uint64) (CancelResult, error) {
	var res CancelResult
	box := &outbox{}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		ev, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return orNotFound(err, ErrEventNotFound)
		}
		if !actor.canManage(ev) {
			return repository.ErrForbidden
		}
		if ev.Status == model.EventCancelled {
			return ErrEventAlreadyCancelled
		}

		// Lock order is event, tickets, offerings on every write path.
		tickets, err := tx.LockTicketsByEvent(ctx, eventID)
		if err != nil {
			return err
		}
		current, err := tx.ListOfferings(ctx, eventID)
		if err != nil {
			return err
		}
		ids := make([]uint64, 0, len(current))
		for _, o := range current {
			ids = append(ids, o.ID)
		}
		offerings, err := lockOfferings(ctx, tx, ids...)
		if err != nil {
			return err
		}

		released := map[uint64]int{}
		for _, t := range tickets {
			if t.Status == model.TicketCancelled {
				continue
			}
			if c := claimOf(t); c.amount > 0 {
				released[c.offering] += c.amount
				res.ReleasedCapacity += c.amount
			}
			t.Status = model.TicketCancelled
			if err := tx.UpdateTicket(ctx, t); err != nil {
				return fmt.Errorf("cancel ticket %d: %w", t.ID, err)
			}
			res.CancelledTickets++
		}
		for _, id := range sortedKeys(released) {
			o, ok := offerings[id]
			if !ok {
				continue
			}
			if err := tx.SetCapacitySold(ctx, id, release(o, released[id])); err != nil {
				return fmt.Errorf("set capacity sold: %w", err)
			}
		}

		if err := tx.SetEventStatus(ctx, eventID, model.EventCancelled); err != nil {
			return fmt.Errorf("cancel event: %w", err)
		}
		var changes ChangedFields
		changes.Track("status", ev.Status, model.EventCancelled)
		if err := s.audit.Write(ctx, tx, model.EntityEvent, eventID, actorRef(actor.ID), ChangeEventData, changes); err != nil {
			return err
		}
		ev.Status = model.EventCancelled
		res.Event = ev
		box.cancelled = &res.Event
		box.cancelCount = res.CancelledTickets
		return box.snapshot(ctx, tx, eventID)
	})
	entry := s.log.WithContext(ctx).WithFields(logrus.Fields{"event_id": eventID, "actor_id": actor.ID})
	if err != nil {
		logFailure(entry, err, "cancel event")
		return CancelResult{}, err
	}
	entry.WithFields(logrus.Fields{
		"cancelled_tickets": res.CancelledTickets,
		"released_capacity": res.ReleasedCapacity,
	}).Info("event cancelled")
	s.flush(ctx, box)
	return res, nil
}

// Delete removes an event that never sold a ticket.
func (s *EventService) Delete(ctx context.Context, actor Actor, eventID uint64) error {
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		ev, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return orNotFound(err, ErrEventNotFound)
		}
		if !actor.canManage(ev) {
			return repository.ErrForbidden
		}
		n, err := tx.CountTicketsByEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: event has %d tickets", repository.ErrConflict, n)
		}
		return tx.DeleteEvent(ctx, eventID)
	})
	entry := s.log.WithContext(ctx).WithFields(logrus.Fields{"event_id": eventID, "actor_id": actor.ID})
	if err != nil {
		logFailure(entry, err, "delete event")
		return err
	}
	entry.Info("event deleted")
	return nil
}

// Get returns the event with its offerings, activating a scheduled event
// whose sales have opened.
func (s *EventService) Get(ctx context.Context, eventID uint64) (EventDetail, error) {
	now := s.now().UTC()
	var out EventDetail
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := activateIfOpen(ctx, tx, eventID, now); err != nil {
			return err
		}
		var err error
		out, err = detailTx(ctx, tx, eventID)
		return err
	})
	return out, err
}

// Availability returns the capacity snapshot of an event.
func (s *EventService) Availability(ctx context.Context, eventID uint64) (model.Availability, error) {
	now := s.now().UTC()
	var a model.Availability
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := activateIfOpen(ctx, tx, eventID, now); err != nil {
			return err
		}
		box := &outbox{}
		if err := box.snapshot(ctx, tx, eventID); err != nil {
			return err
		}
		a = box.availability[0]
		return nil
	})
	return a, err
}

func activateIfOpen(ctx context.Context, tx repository.Tx, eventID uint64, now time.Time) error {
	ev, err := tx.GetEvent(ctx, eventID)
	if err != nil {
		return orNotFound(err, ErrEventNotFound)
	}
	if !ev.SalesOpen(now) {
		return nil
	}
	if err := tx.SetEventStatus(ctx, eventID, model.EventActive); err != nil {
		return fmt.Errorf("activate event: %w", err)
	}
	return nil
}

func detailTx(ctx context.Context, tx repository.Tx, eventID uint64) (EventDetail, error) {
	ev, err := tx.GetEvent(ctx, eventID)
	if err != nil {
		return EventDetail{}, orNotFound(err, ErrEventNotFound)
	}
	offerings, err := tx.ListOfferings(ctx, eventID)
	if err != nil {
		return EventDetail{}, err
	}
	return EventDetail{Event: ev, Offerings: offerings}, nil
}
