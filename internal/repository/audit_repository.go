package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// AuditRepo stores change logs for events/users and ticket access logs.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns a new AuditRepo bound to the given database.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// CreateChangesTx bulk-inserts change log rows.  An empty slice is a no-op.
func (r *AuditRepo) CreateChangesTx(ctx context.Context, tx sqlCommand, logs []model.ChangeLog) error {
	if len(logs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	q := `INSERT INTO change_logs (entity, entity_id, changed_by, change_type, field_changed, old_value, new_value, changed_at) VALUES ` +
		strings.TrimSuffix(strings.Repeat("(?, ?, ?, ?, ?, ?, ?, ?),", len(logs)), ",")
	args := make([]any, 0, len(logs)*8)
	for _, l := range logs {
		var by any
		if l.ChangedBy != nil {
			by = *l.ChangedBy
		}
		args = append(args, l.Entity, l.EntityID, by, l.ChangeType, l.Field, l.OldValue, l.NewValue, now)
	}
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

// ListChanges returns the change history of one entity, newest first.
func (r *AuditRepo) ListChanges(ctx context.Context, entity string, id uint64) ([]model.ChangeLog, error) {
	const q = `SELECT id, entity, entity_id, changed_by, change_type, field_changed, old_value, new_value, changed_at
		FROM change_logs WHERE entity = ? AND entity_id = ? ORDER BY changed_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, entity, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ChangeLog, 0)
	for rows.Next() {
		var (
			l  model.ChangeLog
			by sql.NullInt64
		)
		if err := rows.Scan(&l.ID, &l.Entity, &l.EntityID, &by, &l.ChangeType, &l.Field, &l.OldValue, &l.NewValue, &l.ChangedAt); err != nil {
			return nil, err
		}
		if by.Valid {
			u := uint64(by.Int64)
			l.ChangedBy = &u
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CreateAccessTx records a ticket scan.
func (r *AuditRepo) CreateAccessTx(ctx context.Context, tx sqlCommand, l *model.TicketAccessLog) error {
	if l.AccessedAt.IsZero() {
		l.AccessedAt = time.Now().UTC()
	}
	var by any
	if l.AccessedBy != nil {
		by = *l.AccessedBy
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO ticket_access_logs (ticket_id, accessed_by, accessed_at, ip_address, device_info) VALUES (?, ?, ?, ?, ?)`,
		l.TicketID, by, l.AccessedAt, nullString(l.IPAddress), nullString(truncate(l.DeviceInfo, 255)))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	return nil
}

// ListAccessLogs returns the scans of a ticket, newest first.
func (r *AuditRepo) ListAccessLogs(ctx context.Context, ticketID uint64) ([]model.TicketAccessLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, ticket_id, accessed_by, accessed_at, ip_address, device_info FROM ticket_access_logs WHERE ticket_id = ? ORDER BY accessed_at DESC, id DESC`,
		ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.TicketAccessLog, 0)
	for rows.Next() {
		var (
			l      model.TicketAccessLog
			by     sql.NullInt64
			ip     sql.NullString
			device sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.TicketID, &by, &l.AccessedAt, &ip, &device); err != nil {
			return nil, err
		}
		if by.Valid {
			u := uint64(by.Int64)
			l.AccessedBy = &u
		}
		l.IPAddress = ip.String
		l.DeviceInfo = device.String
		out = append(out, l)
	}
	return out, rows.Err()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
