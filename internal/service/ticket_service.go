package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/payu"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// TicketService owns every ticket state transition together with the
// capacity bookkeeping it implies.
type TicketService struct {
	store    repository.Store
	payments *PaymentService
	notifier
	now     func() time.Time
	newCode func() string
}

// NewTicketService returns a TicketService.  payments signs checkouts for
// paid offerings.
func NewTicketService(store repository.Store, payments *PaymentService, pub EventPublisher, bc AvailabilityBroadcaster, log *logrus.Logger) *TicketService {
	return &TicketService{
		store:    store,
		payments: payments,
		notifier: newNotifier(pub, bc, log),
		now:      time.Now,
		newCode:  uuid.NewString,
	}
}

// PurchaseInput is a buyer's request for Amount admissions of one offering.
type PurchaseInput struct {
	UserID     uint64
	EventID    uint64
	OfferingID uint64
	Amount     int
}

// PurchaseResult is the created ticket.  Checkout is set for paid
// offerings and carries the form the client posts to the gateway.
type PurchaseResult struct {
	Ticket   model.Ticket       `json:"ticket"`
	Checkout *payu.CheckoutForm `json:"checkout,omitempty"`
}

// Purchase creates a ticket.  Free offerings produce a comprada ticket and
// reserve capacity immediately; paid ones produce a pendiente ticket that
// is confirmed by the gateway notification.
func (s *TicketService) Purchase(ctx context.Context, in PurchaseInput) (PurchaseResult, error) {
	var res PurchaseResult
	box := &outbox{}
	now := s.now().UTC()
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		ev, err := tx.LockEvent(ctx, in.EventID)
		if err != nil {
			return orNotFound(err, ErrEventNotFound)
		}
		if ev.SalesOpen(now) {
			if err := tx.SetEventStatus(ctx, ev.ID, model.EventActive); err != nil {
				return fmt.Errorf("activate event: %w", err)
			}
			ev.Status = model.EventActive
		}
		if ev.Status != model.EventActive {
			return ErrEventNotActive
		}
		if in.Amount <= 0 {
			return ErrInvalidAmount
		}
		u, err := tx.GetUser(ctx, in.UserID)
		if err != nil {
			return orNotFound(err, ErrUserNotFound)
		}
		if ev.MinAge != nil && *ev.MinAge > 0 && u.AgeAt(now) < *ev.MinAge {
			return ErrUnderage
		}
		o, err := tx.LockOffering(ctx, in.OfferingID)
		if err != nil {
			return orNotFound(err, ErrOfferingNotFound)
		}
		if o.EventID != ev.ID {
			return ErrOfferingMismatch
		}
		if _, err := reserve(o, in.Amount); err != nil {
			return err
		}

		t := model.Ticket{
			UserID:      u.ID,
			EventID:     ev.ID,
			OfferingID:  o.ID,
			Amount:      in.Amount,
			PurchasedAt: now,
			Status:      model.TicketPending,
			UniqueCode:  s.newCode(),
		}
		if o.Free() {
			t.Status = model.TicketPurchased
		} else if err := s.payments.Configured(); err != nil {
			return err
		}
		if err := tx.InsertTicket(ctx, &t); err != nil {
			return fmt.Errorf("insert ticket: %w", err)
		}
		res.Ticket = t

		if !o.Free() {
			form, err := s.payments.begin(ctx, tx, t, o, ev, u)
			if err != nil {
				return err
			}
			res.Checkout = &form
			return nil
		}
		if _, err := rebalance(ctx, tx, model.Ticket{}, t); err != nil {
			return err
		}
		box.confirmed = append(box.confirmed, t)
		return box.snapshot(ctx, tx, ev.ID)
	})
	entry := s.log.WithContext(ctx).WithFields(logrus.Fields{
		"user_id":        in.UserID,
		"event_id":       in.EventID,
		"config_type_id": in.OfferingID,
		"amount":         in.Amount,
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientCapacity) {
			metrics.TrackCapacityRejection()
		}
		logFailure(entry, err, "purchase ticket")
		return PurchaseResult{}, err
	}
	kind := metrics.KindPaid
	if res.Checkout == nil {
		kind = metrics.KindFree
	}
	metrics.TrackPurchase(kind)
	entry.WithFields(logrus.Fields{"ticket_id": res.Ticket.ID, "status": res.Ticket.Status}).Info("ticket purchased")
	s.flush(ctx, box)
	return res, nil
}

// TicketChange is an administrative edit.  Zero fields keep their value.
type TicketChange struct {
	Status     string
	OfferingID uint64
	Amount     int
}

// transitions lists the status moves an edit may perform.  usada and
// cancelada are terminal.
var transitions = map[string][]string{
	model.TicketPending:   {model.TicketPurchased, model.TicketCancelled},
	model.TicketPurchased: {model.TicketUsed, model.TicketCancelled},
}

func canTransition(from, to string) bool {
	next, ok := transitions[from]
	if !ok {
		return false
	}
	if from == to {
		return true
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Update applies an administrative edit of status, offering or amount and
// rebalances capacity accordingly.
func (s *TicketService) Update(ctx context.Context, actorID, ticketID uint64, ch TicketChange) (model.Ticket, error) {
	if ch.Amount < 0 {
		return model.Ticket{}, ErrInvalidAmount
	}
	if ch.Status != "" && !model.ValidTicketStatus(ch.Status) {
		return model.Ticket{}, ErrInvalidStatus
	}
	var out model.Ticket
	box := &outbox{}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		before, err := tx.LockTicket(ctx, ticketID)
		if err != nil {
			return orNotFound(err, ErrTicketNotFound)
		}
		switch before.Status {
		case model.TicketUsed:
			return ErrTicketUsed
		case model.TicketCancelled:
			return ErrTicketCancelled
		}
		after := before
		if ch.Status != "" {
			after.Status = ch.Status
		}
		if ch.OfferingID != 0 {
			after.OfferingID = ch.OfferingID
		}
		if ch.Amount != 0 {
			after.Amount = ch.Amount
		}
		if !canTransition(before.Status, after.Status) {
			return ErrInvalidTransition
		}
		out, err = s.apply(ctx, tx, box, before, after)
		return err
	})
	entry := s.log.WithContext(ctx).WithFields(logrus.Fields{"ticket_id": ticketID, "actor_id": actorID})
	if err != nil {
		if errors.Is(err, ErrInsufficientCapacity) {
			metrics.TrackCapacityRejection()
		}
		logFailure(entry, err, "update ticket")
		return model.Ticket{}, err
	}
	entry.WithField("status", out.Status).Info("ticket updated")
	s.flush(ctx, box)
	return out, nil
}

// Cancel moves a ticket to cancelada, releasing its capacity when it was
// purchased.
func (s *TicketService) Cancel(ctx context.Context, actorID, ticketID uint64) (model.Ticket, error) {
	return s.Update(ctx, actorID, ticketID, TicketChange{Status: model.TicketCancelled})
}

// ScanInput identifies a ticket presented at the entrance.
type ScanInput struct {
	Code    string
	StaffID uint64
	IP      string
	Device  string
}

// ScanResult is the admitted ticket and the access log written for it.
type ScanResult struct {
	Ticket model.Ticket          `json:"ticket"`
	Access model.TicketAccessLog `json:"access"`
}

// Scan admits the holder of a purchased ticket.  Any other status is
// rejected without modification.
func (s *TicketService) Scan(ctx context.Context, in ScanInput) (ScanResult, error) {
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return ScanResult{}, ErrMissingCode
	}
	var res ScanResult
	box := &outbox{}
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		before, err := tx.LockTicketByCode(ctx, code)
		if err != nil {
			return orNotFound(err, ErrTicketNotFound)
		}
		switch before.Status {
		case model.TicketUsed:
			return ErrTicketUsed
		case model.TicketCancelled:
			return ErrTicketCancelled
		case model.TicketPending:
			return ErrTicketPending
		}
		after := before
		after.Status = model.TicketUsed
		if res.Ticket, err = s.apply(ctx, tx, box, before, after); err != nil {
			return err
		}
		res.Access = model.TicketAccessLog{
			TicketID:   before.ID,
			AccessedBy: actorRef(in.StaffID),
			AccessedAt: s.now().UTC(),
			IPAddress:  in.IP,
			DeviceInfo: in.Device,
		}
		if err := tx.InsertAccessLog(ctx, &res.Access); err != nil {
			return fmt.Errorf("insert access log: %w", err)
		}
		return nil
	})
	entry := s.log.WithContext(ctx).WithFields(logrus.Fields{"unique_code": code, "staff_id": in.StaffID})
	if err != nil {
		logFailure(entry, err, "scan ticket")
		return ScanResult{}, err
	}
	entry.WithField("ticket_id", res.Ticket.ID).Info("ticket admitted")
	s.flush(ctx, box)
	return res, nil
}

// apply rebalances capacity for before → after, stores after and queues
// the notifications the change produces.
func (s *TicketService) apply(ctx context.Context, tx repository.Tx, box *outbox, before, after model.Ticket) (model.Ticket, error) {
	changed, err := rebalance(ctx, tx, before, after)
	if err != nil {
		return model.Ticket{}, err
	}
	if err := tx.UpdateTicket(ctx, after); err != nil {
		return model.Ticket{}, fmt.Errorf("update ticket: %w", err)
	}
	if after.Status == model.TicketPurchased && before.Status != model.TicketPurchased {
		box.confirmed = append(box.confirmed, after)
	}
	if len(changed) > 0 {
		if err := box.snapshot(ctx, tx, after.EventID); err != nil {
			return model.Ticket{}, err
		}
	}
	return after, nil
}

// logFailure logs business-rule rejections at warn level and everything
// else at error level.
func logFailure(entry *logrus.Entry, err error, msg string) {
	if isBusinessError(err) {
		entry.WithError(err).Warn(msg)
		return
	}
	entry.WithError(err).Error(msg)
}
