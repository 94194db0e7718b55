package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// TicketRepo provides persistence for tickets.  Status transitions and
// their capacity bookkeeping are performed by the ticket service inside a
// Store transaction; this repository only reads and writes rows.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketColumns = `id, user_id, event_id, config_type_id, amount, date_of_purchase, status, unique_code, updated_at`

func scanTicket(row rowScanner) (model.Ticket, error) {
	var t model.Ticket
	err := row.Scan(&t.ID, &t.UserID, &t.EventID, &t.OfferingID, &t.Amount, &t.PurchasedAt, &t.Status, &t.UniqueCode, &t.UpdatedAt)
	return t, err
}

// GetByID fetches one ticket.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (model.Ticket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id))
	if err != nil {
		return model.Ticket{}, notFound(err)
	}
	return t, nil
}

// ListByUser returns the user's tickets, newest first.
func (r *TicketRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE user_id = ? ORDER BY date_of_purchase DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectTickets(rows)
}

// ListAttendees returns the non-cancelled tickets of an event joined with
// buyer details.
func (r *TicketRepo) ListAttendees(ctx context.Context, eventID uint64) ([]model.Attendee, error) {
	const q = `SELECT t.id, t.unique_code, t.status, t.amount, tt.ticket_name, u.id, u.username, u.email, u.first_name, u.last_name
		FROM tickets t
		JOIN users u ON u.id = t.user_id
		JOIN ticket_type_events o ON o.id = t.config_type_id
		JOIN ticket_types tt ON tt.id = o.ticket_type_id
		WHERE t.event_id = ? AND t.status <> ?
		ORDER BY t.id`
	rows, err := r.db.QueryContext(ctx, q, eventID, model.TicketCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Attendee, 0)
	for rows.Next() {
		var (
			a           model.Attendee
			first, last string
		)
		if err := rows.Scan(&a.TicketID, &a.UniqueCode, &a.Status, &a.Amount, &a.TicketType,
			&a.UserID, &a.Username, &a.Email, &first, &last); err != nil {
			return nil, err
		}
		a.FullName = model.User{FirstName: first, LastName: last}.FullName()
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateTx inserts t and populates its ID.  PurchasedAt defaults to now.
func (r *TicketRepo) CreateTx(ctx context.Context, tx sqlCommand, t *model.Ticket) error {
	if t.PurchasedAt.IsZero() {
		t.PurchasedAt = time.Now().UTC()
	}
	t.UpdatedAt = t.PurchasedAt
	const q = `INSERT INTO tickets (user_id, event_id, config_type_id, amount, date_of_purchase, status, unique_code, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, t.UserID, t.EventID, t.OfferingID, t.Amount, t.PurchasedAt, t.Status, t.UniqueCode, t.UpdatedAt)
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
	t.ID = uint64(id)
	return nil
}

// lockTx loads one ticket by id or unique_code with a row lock.
func (r *TicketRepo) lockTx(ctx context.Context, tx sqlCommand, column string, value any) (model.Ticket, error) {
	var q string
	switch column {
	case "unique_code":
		q = `SELECT ` + ticketColumns + ` FROM tickets WHERE unique_code = ? FOR UPDATE`
	default:
		q = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ? FOR UPDATE`
	}
	t, err := scanTicket(tx.QueryRowContext(ctx, q, value))
	if err != nil {
		return model.Ticket{}, notFound(err)
	}
	return t, nil
}

// LockByEventTx locks every ticket of an event.
func (r *TicketRepo) LockByEventTx(ctx context.Context, tx sqlCommand, eventID uint64) ([]model.Ticket, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE event_id = ? ORDER BY id FOR UPDATE`, eventID)
	if err != nil {
		return nil, err
	}
	return collectTickets(rows)
}

// UpdateTx stores status, offering and amount of t.
func (r *TicketRepo) UpdateTx(ctx context.Context, tx sqlCommand, t model.Ticket) error {
	_, err := tx.ExecContext(ctx, `UPDATE tickets SET status=?, config_type_id=?, amount=?, updated_at=? WHERE id=?`,
		t.Status, t.OfferingID, t.Amount, time.Now().UTC(), t.ID)
	return err
}

func (r *TicketRepo) countTx(ctx context.Context, tx sqlCommand, column string, id uint64) (int, error) {
	q := `SELECT COUNT(*) FROM tickets WHERE event_id = ?`
	if column == "config_type_id" {
		q = `SELECT COUNT(*) FROM tickets WHERE config_type_id = ?`
	}
	var n int
	err := tx.QueryRowContext(ctx, q, id).Scan(&n)
	return n, err
}

func collectTickets(rows *sql.Rows) ([]model.Ticket, error) {
	defer rows.Close()
	out := make([]model.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
