package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// sqlCommand is satisfied by both *sql.DB and *sql.Tx so that query helpers
// can run either standalone or inside a caller's transaction.
type sqlCommand interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Store opens units of work against the ticketing tables.  Every state
// transition that touches capacity runs inside WithinTx so that the row
// locks taken by the Lock* methods are held until commit.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of operations available inside one transaction.  Lock*
// methods take a row lock (SELECT ... FOR UPDATE) that serialises
// concurrent writers of the same row.
type Tx interface {
	GetEvent(ctx context.Context, id uint64) (model.Event, error)
	LockEvent(ctx context.Context, id uint64) (model.Event, error)
	InsertEvent(ctx context.Context, ev *model.Event) error
	UpdateEvent(ctx context.Context, ev model.Event) error
	SetEventStatus(ctx context.Context, id uint64, status string) error
	DeleteEvent(ctx context.Context, id uint64) error
	DuplicateEventExists(ctx context.Context, ev model.Event) (bool, error)

	TicketTypesExist(ctx context.Context, ids []uint64) (bool, error)
	ListOfferings(ctx context.Context, eventID uint64) ([]model.TicketTypeEvent, error)
	LockOffering(ctx context.Context, id uint64) (model.TicketTypeEvent, error)
	InsertOffering(ctx context.Context, o *model.TicketTypeEvent) error
	UpdateOffering(ctx context.Context, o model.TicketTypeEvent) error
	DeleteOffering(ctx context.Context, id uint64) error
	SetCapacitySold(ctx context.Context, id uint64, sold int) error
	CountTicketsByOffering(ctx context.Context, offeringID uint64) (int, error)
	CountTicketsByEvent(ctx context.Context, eventID uint64) (int, error)

	InsertTicket(ctx context.Context, t *model.Ticket) error
	LockTicket(ctx context.Context, id uint64) (model.Ticket, error)
	LockTicketByCode(ctx context.Context, code string) (model.Ticket, error)
	LockTicketsByEvent(ctx context.Context, eventID uint64) ([]model.Ticket, error)
	UpdateTicket(ctx context.Context, t model.Ticket) error

	GetPaymentByReference(ctx context.Context, ref string) (model.PaymentTransaction, error)
	UpsertPayment(ctx context.Context, p *model.PaymentTransaction) error

	GetUser(ctx context.Context, id uint64) (model.User, error)
	UpdateUserProfile(ctx context.Context, u model.User) error

	InsertChangeLogs(ctx context.Context, logs []model.ChangeLog) error
	InsertAccessLog(ctx context.Context, l *model.TicketAccessLog) error
}

// SQLStore implements Store on MySQL.
type SQLStore struct {
	db        *sql.DB
	events    *EventRepo
	offerings *OfferingRepo
	tickets   *TicketRepo
	payments  *PaymentRepo
	users     *UserRepo
	audit     *AuditRepo
	types     *TicketTypeRepo
}

// NewSQLStore returns a Store backed by db.
func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:        db,
		events:    NewEventRepo(db),
		offerings: NewOfferingRepo(db),
		tickets:   NewTicketRepo(db),
		payments:  NewPaymentRepo(db),
		users:     NewUserRepo(db),
		audit:     NewAuditRepo(db),
		types:     NewTicketTypeRepo(db),
	}
}

// WithinTx runs fn inside a database transaction.  The transaction is
// committed when fn returns nil and rolled back otherwise.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &sqlTx{s: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// sqlTx binds the per-table repositories to one *sql.Tx.
type sqlTx struct {
	s  *SQLStore
	tx *sql.Tx
}

func (t *sqlTx) GetEvent(ctx context.Context, id uint64) (model.Event, error) {
	return t.s.events.getTx(ctx, t.tx, id, false)
}

func (t *sqlTx) LockEvent(ctx context.Context, id uint64) (model.Event, error) {
	return t.s.events.getTx(ctx, t.tx, id, true)
}

func (t *sqlTx) InsertEvent(ctx context.Context, ev *model.Event) error {
	return t.s.events.CreateTx(ctx, t.tx, ev)
}

func (t *sqlTx) UpdateEvent(ctx context.Context, ev model.Event) error {
	return t.s.events.UpdateTx(ctx, t.tx, ev)
}

func (t *sqlTx) SetEventStatus(ctx context.Context, id uint64, status string) error {
	return t.s.events.SetStatusTx(ctx, t.tx, id, status)
}

func (t *sqlTx) DeleteEvent(ctx context.Context, id uint64) error {
	return t.s.events.DeleteTx(ctx, t.tx, id)
}

func (t *sqlTx) DuplicateEventExists(ctx context.Context, ev model.Event) (bool, error) {
	return t.s.events.duplicateExists(ctx, t.tx, ev)
}

func (t *sqlTx) TicketTypesExist(ctx context.Context, ids []uint64) (bool, error) {
	return t.s.types.existTx(ctx, t.tx, ids)
}

func (t *sqlTx) ListOfferings(ctx context.Context, eventID uint64) ([]model.TicketTypeEvent, error) {
	return t.s.offerings.listByEvent(ctx, t.tx, eventID)
}

func (t *sqlTx) LockOffering(ctx context.Context, id uint64) (model.TicketTypeEvent, error) {
	return t.s.offerings.LockTx(ctx, t.tx, id)
}

func (t *sqlTx) InsertOffering(ctx context.Context, o *model.TicketTypeEvent) error {
	return t.s.offerings.CreateTx(ctx, t.tx, o)
}

func (t *sqlTx) UpdateOffering(ctx context.Context, o model.TicketTypeEvent) error {
	return t.s.offerings.UpdateTx(ctx, t.tx, o)
}

func (t *sqlTx) DeleteOffering(ctx context.Context, id uint64) error {
	return t.s.offerings.DeleteTx(ctx, t.tx, id)
}

func (t *sqlTx) SetCapacitySold(ctx context.Context, id uint64, sold int) error {
	return t.s.offerings.SetSoldTx(ctx, t.tx, id, sold)
}

func (t *sqlTx) CountTicketsByOffering(ctx context.Context, offeringID uint64) (int, error) {
	return t.s.tickets.countTx(ctx, t.tx, "config_type_id", offeringID)
}

func (t *sqlTx) CountTicketsByEvent(ctx context.Context, eventID uint64) (int, error) {
	return t.s.tickets.countTx(ctx, t.tx, "event_id", eventID)
}

func (t *sqlTx) InsertTicket(ctx context.Context, tk *model.Ticket) error {
	return t.s.tickets.CreateTx(ctx, t.tx, tk)
}

func (t *sqlTx) LockTicket(ctx context.Context, id uint64) (model.Ticket, error) {
	return t.s.tickets.lockTx(ctx, t.tx, "id", id)
}

func (t *sqlTx) LockTicketByCode(ctx context.Context, code string) (model.Ticket, error) {
	return t.s.tickets.lockTx(ctx, t.tx, "unique_code", code)
}

func (t *sqlTx) LockTicketsByEvent(ctx context.Context, eventID uint64) ([]model.Ticket, error) {
	return t.s.tickets.LockByEventTx(ctx, t.tx, eventID)
}

func (t *sqlTx) UpdateTicket(ctx context.Context, tk model.Ticket) error {
	return t.s.tickets.UpdateTx(ctx, t.tx, tk)
}

func (t *sqlTx) GetPaymentByReference(ctx context.Context, ref string) (model.PaymentTransaction, error) {
	return t.s.payments.getByReference(ctx, t.tx, ref)
}

func (t *sqlTx) UpsertPayment(ctx context.Context, p *model.PaymentTransaction) error {
	return t.s.payments.UpsertTx(ctx, t.tx, p)
}

func (t *sqlTx) GetUser(ctx context.Context, id uint64) (model.User, error) {
	return t.s.users.getTx(ctx, t.tx, "id", id)
}

func (t *sqlTx) UpdateUserProfile(ctx context.Context, u model.User) error {
	return t.s.users.UpdateProfileTx(ctx, t.tx, u)
}

func (t *sqlTx) InsertChangeLogs(ctx context.Context, logs []model.ChangeLog) error {
	return t.s.audit.CreateChangesTx(ctx, t.tx, logs)
}

func (t *sqlTx) InsertAccessLog(ctx context.Context, l *model.TicketAccessLog) error {
	return t.s.audit.CreateAccessTx(ctx, t.tx, l)
}
