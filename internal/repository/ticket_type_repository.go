package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// TicketTypeRepo manages the reusable ticket type catalogue.
type TicketTypeRepo struct {
	db *sql.DB
}

// NewTicketTypeRepo returns a new TicketTypeRepo bound to the given database.
func NewTicketTypeRepo(db *sql.DB) *TicketTypeRepo { return &TicketTypeRepo{db: db} }

// List returns every ticket type ordered by name.
func (r *TicketTypeRepo) List(ctx context.Context) ([]model.TicketType, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, ticket_name, description FROM ticket_types ORDER BY ticket_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.TicketType, 0)
	for rows.Next() {
		var t model.TicketType
		if err := rows.Scan(&t.ID, &t.Name, &t.Description); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Create inserts a ticket type.  A duplicate name yields ErrConflict.
func (r *TicketTypeRepo) Create(ctx context.Context, t *model.TicketType) error {
	res, err := r.db.ExecContext(ctx, `INSERT INTO ticket_types (ticket_name, description) VALUES (?, ?)`,
		strings.TrimSpace(t.Name), t.Description)
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

// existTx reports whether every id references a ticket type.
func (r *TicketTypeRepo) existTx(ctx context.Context, tx sqlCommand, ids []uint64) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	q := `SELECT COUNT(DISTINCT id) FROM ticket_types WHERE id IN (?` + strings.Repeat(",?", len(ids)-1) + `)`
	var n int
	if err := tx.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return false, err
	}
	return n == len(uniqueIDs(ids)), nil
}

func uniqueIDs(ids []uint64) map[uint64]struct{} {
	m := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}
