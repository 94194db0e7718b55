package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// OfferingRepo manages ticket_type_events rows: the price and capacity of
// one ticket type inside one event.  capacity_sold is only ever written
// through SetSoldTx while the row is locked.
type OfferingRepo struct {
	db *sql.DB
}

// NewOfferingRepo returns a new OfferingRepo bound to the given database.
func NewOfferingRepo(db *sql.DB) *OfferingRepo { return &OfferingRepo{db: db} }

const offeringSelect = `SELECT o.id, o.event_id, o.ticket_type_id, tt.ticket_name, o.price, o.maximun_capacity, o.capacity_sold
	FROM ticket_type_events o JOIN ticket_types tt ON tt.id = o.ticket_type_id`

func scanOffering(row rowScanner) (model.TicketTypeEvent, error) {
	var o model.TicketTypeEvent
	err := row.Scan(&o.ID, &o.EventID, &o.TicketTypeID, &o.TicketTypeName, &o.Price, &o.MaxCapacity, &o.CapacitySold)
	return o, err
}

// ListByEvent returns the offerings of an event ordered by id.
func (r *OfferingRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.TicketTypeEvent, error) {
	return r.listByEvent(ctx, r.db, eventID)
}

func (r *OfferingRepo) listByEvent(ctx context.Context, tx sqlCommand, eventID uint64) ([]model.TicketTypeEvent, error) {
	rows, err := tx.QueryContext(ctx, offeringSelect+` WHERE o.event_id = ? ORDER BY o.id`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.TicketTypeEvent, 0)
	for rows.Next() {
		o, err := scanOffering(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// LockTx reads an offering and holds a row lock on it until the
// transaction ends.  Concurrent purchases of the same offering block here.
func (r *OfferingRepo) LockTx(ctx context.Context, tx sqlCommand, id uint64) (model.TicketTypeEvent, error) {
	o, err := scanOffering(tx.QueryRowContext(ctx, offeringSelect+` WHERE o.id = ? FOR UPDATE`, id))
	if err != nil {
		return model.TicketTypeEvent{}, notFound(err)
	}
	return o, nil
}

// CreateTx inserts a new offering with capacity_sold = 0.
func (r *OfferingRepo) CreateTx(ctx context.Context, tx sqlCommand, o *model.TicketTypeEvent) error {
	const q = `INSERT INTO ticket_type_events (event_id, ticket_type_id, price, maximun_capacity, capacity_sold) VALUES (?, ?, ?, ?, 0)`
	res, err := tx.ExecContext(ctx, q, o.EventID, o.TicketTypeID, o.Price.StringFixed(2), o.MaxCapacity)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	o.CapacitySold = 0
	return nil
}

// UpdateTx changes price and maximun_capacity.  capacity_sold is left untouched.
func (r *OfferingRepo) UpdateTx(ctx context.Context, tx sqlCommand, o model.TicketTypeEvent) error {
	_, err := tx.ExecContext(ctx, `UPDATE ticket_type_events SET price=?, maximun_capacity=? WHERE id=?`,
		o.Price.StringFixed(2), o.MaxCapacity, o.ID)
	return err
}

// DeleteTx removes an offering.
func (r *OfferingRepo) DeleteTx(ctx context.Context, tx sqlCommand, id uint64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM ticket_type_events WHERE id=?`, id)
	return err
}

// SetSoldTx stores the new capacity_sold of a locked offering.
func (r *OfferingRepo) SetSoldTx(ctx context.Context, tx sqlCommand, id uint64, sold int) error {
	_, err := tx.ExecContext(ctx, `UPDATE ticket_type_events SET capacity_sold=? WHERE id=?`, sold, id)
	return err
}
