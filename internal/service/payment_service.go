package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/metrics"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/payu"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

// PaymentLister reads a buyer's payment history.
type PaymentLister interface {
	ListByEmail(ctx context.Context, email string) ([]model.PaymentTransaction, error)
}

// PaymentService reconciles PayU payments with ticket state.
type PaymentService struct {
	store   repository.Store
	history PaymentLister
	cfg     config.PayUConfig
	notifier
}

// NewPaymentService returns a PaymentService.  history may be nil when the
// caller never lists payments.
func NewPaymentService(store repository.Store, history PaymentLister, cfg config.PayUConfig, pub EventPublisher, bc AvailabilityBroadcaster, log *logrus.Logger) *PaymentService {
	return &PaymentService{
		store:    store,
		history:  history,
		cfg:      cfg,
		notifier: newNotifier(pub, bc, log),
	}
}

// Configured returns ErrGatewayNotConfigured when merchant credentials are
// missing.
func (s *PaymentService) Configured() error {
	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrGatewayNotConfigured, err)
	}
	return nil
}

// NotificationOutcome summarises what a confirmation did.
type NotificationOutcome struct {
	Reference      string `json:"reference_code"`
	PaymentStatus  string `json:"payment_status"`
	TicketID       uint64 `json:"ticket_id"`
	PreviousStatus string `json:"previous_ticket_status"`
	TicketStatus   string `json:"ticket_status"`
	Changed        bool   `json:"changed"`
}

// HandleNotification applies a PayU confirmation.  Replays are harmless:
// the transaction row is upserted by reference and the ticket only moves
// when its current status allows the transition the payment state implies.
func (s *PaymentService) HandleNotification(ctx context.Context, n payu.Notification) (NotificationOutcome, error) {
	if err := s.Configured(); err != nil {
		return NotificationOutcome{}, err
	}
	entry := s.log.WithContext(ctx).WithField("reference", n.ReferenceSale)
	if !n.Verify(s.cfg.APIKey, s.cfg.MerchantID) {
		metrics.TrackNotification("invalid_signature")
		entry.Warn("payu notification with invalid signature")
		return NotificationOutcome{}, ErrInvalidSignature
	}
	amount, err := payu.NormalizeAmount(n.Value)
	if err != nil {
		return NotificationOutcome{}, fmt.Errorf("%w: value %q", ErrInvalidAmount, n.Value)
	}

	out := NotificationOutcome{Reference: n.ReferenceSale, PaymentStatus: n.Status()}
	box := &outbox{}
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		before, err := tx.LockTicketByCode(ctx, n.ReferenceSale)
		if err != nil {
			return orNotFound(err, ErrTicketNotFound)
		}
		p := model.PaymentTransaction{
			ReferenceCode: n.ReferenceSale,
			TransactionID: n.TransactionID,
			Status:        out.PaymentStatus,
			RawState:      n.StatePol,
			Amount:        amount,
			Currency:      n.Currency,
			BuyerEmail:    n.EmailBuyer,
			Gateway:       model.GatewayPayU,
		}
		if err := tx.UpsertPayment(ctx, &p); err != nil {
			return fmt.Errorf("upsert payment: %w", err)
		}

		out.TicketID = before.ID
		out.PreviousStatus = before.Status
		out.TicketStatus = before.Status

		after := before
		switch {
		case out.PaymentStatus == model.PaymentApproved && before.Status == model.TicketPending:
			after.Status = model.TicketPurchased
		case (out.PaymentStatus == model.PaymentRejected || out.PaymentStatus == model.PaymentError) &&
			before.Status == model.TicketPurchased:
			after.Status = model.TicketCancelled
		default:
			return nil
		}

		changed, err := rebalance(ctx, tx, before, after)
		if err != nil {
			return err
		}
		if err := tx.UpdateTicket(ctx, after); err != nil {
			return fmt.Errorf("update ticket: %w", err)
		}
		out.TicketStatus = after.Status
		out.Changed = true
		if after.Status == model.TicketPurchased {
			box.confirmed = append(box.confirmed, after)
		}
		if len(changed) > 0 {
			return box.snapshot(ctx, tx, after.EventID)
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInsufficientCapacity):
			metrics.TrackCapacityRejection()
			metrics.TrackNotification("capacity_exhausted")
			entry.Warn("approved payment for ticket without capacity left")
		case errors.Is(err, ErrTicketNotFound):
			metrics.TrackNotification("unknown_reference")
			entry.Warn("payu notification for unknown reference")
		default:
			metrics.TrackNotification("error")
			entry.WithError(err).Error("apply payu notification")
		}
		return NotificationOutcome{}, err
	}

	result := "ignored"
	if out.Changed {
		result = out.TicketStatus
	}
	metrics.TrackNotification(result)
	entry.WithFields(logrus.Fields{
		"payment_status": out.PaymentStatus,
		"ticket_id":      out.TicketID,
		"from":           out.PreviousStatus,
		"to":             out.TicketStatus,
	}).Info("payu notification applied")
	s.flush(ctx, box)
	return out, nil
}

// InitPayment (re)starts the gateway checkout of a pending ticket owned by
// userID.
func (s *PaymentService) InitPayment(ctx context.Context, userID, ticketID uint64) (payu.CheckoutForm, error) {
	if err := s.Configured(); err != nil {
		return payu.CheckoutForm{}, err
	}
	var form payu.CheckoutForm
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		t, err := tx.LockTicket(ctx, ticketID)
		if err != nil {
			return orNotFound(err, ErrTicketNotFound)
		}
		if t.UserID != userID {
			return repository.ErrForbidden
		}
		switch t.Status {
		case model.TicketPurchased:
			return ErrTicketAlreadyPaid
		case model.TicketUsed, model.TicketCancelled:
			return ErrTicketNotPayable
		}
		ev, err := tx.GetEvent(ctx, t.EventID)
		if err != nil {
			return orNotFound(err, ErrEventNotFound)
		}
		o, err := tx.LockOffering(ctx, t.OfferingID)
		if err != nil {
			return orNotFound(err, ErrOfferingNotFound)
		}
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return orNotFound(err, ErrUserNotFound)
		}
		form, err = s.begin(ctx, tx, t, o, ev, u)
		return err
	})
	return form, err
}

// begin records the transaction of t as iniciada with its current total and
// returns the signed checkout form.
func (s *PaymentService) begin(ctx context.Context, tx repository.Tx, t model.Ticket, o model.TicketTypeEvent, ev model.Event, u model.User) (payu.CheckoutForm, error) {
	total := o.Price.Mul(decimal.NewFromInt(int64(t.Amount)))
	cur, err := tx.GetPaymentByReference(ctx, t.UniqueCode)
	switch {
	case err == nil && cur.Status == model.PaymentApproved:
		return payu.CheckoutForm{}, ErrPaymentAlreadyApproved
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return payu.CheckoutForm{}, fmt.Errorf("get payment: %w", err)
	}
	p := model.PaymentTransaction{
		ReferenceCode: t.UniqueCode,
		Status:        model.PaymentInitiated,
		Amount:        total.Round(2),
		Currency:      s.cfg.Currency,
		BuyerEmail:    u.Email,
		Gateway:       model.GatewayPayU,
	}
	if err := tx.UpsertPayment(ctx, &p); err != nil {
		return payu.CheckoutForm{}, fmt.Errorf("upsert payment: %w", err)
	}
	description := fmt.Sprintf("%s - %s x%d", ev.Name, o.TicketTypeName, t.Amount)
	return payu.NewCheckoutForm(s.cfg, t.UniqueCode, description, total, u.Email), nil
}

// History returns the buyer's transactions, newest first.
func (s *PaymentService) History(ctx context.Context, email string) ([]model.PaymentTransaction, error) {
	if s.history == nil {
		return []model.PaymentTransaction{}, nil
	}
	return s.history.ListByEmail(ctx, email)
}
