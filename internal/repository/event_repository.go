package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
)

// EventRepo provides persistence for events.  All timestamps are stored
// in UTC (the DSN sets loc=UTC).
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, creator_id, event_name, description, start_datetime, end_datetime,
	sales_open_datetime, country, city_id, city_text, department_text, organizer,
	category, status, min_age, max_capacity, created_at, updated_at`

// EventFilter narrows List results.  Zero values mean "no filter".
type EventFilter struct {
	Status   string
	Category string
	Search   string
	CityID   uint64
	Limit    int
	Offset   int
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (model.Event, error) {
	var (
		ev        model.Event
		salesOpen sql.NullTime
		cityID    sql.NullInt64
		cityText  sql.NullString
		deptText  sql.NullString
		organizer sql.NullString
		minAge    sql.NullInt64
		maxCap    sql.NullInt64
	)
	err := row.Scan(&ev.ID, &ev.CreatorID, &ev.Name, &ev.Description, &ev.StartAt, &ev.EndAt,
		&salesOpen, &ev.Country, &cityID, &cityText, &deptText, &organizer,
		&ev.Category, &ev.Status, &minAge, &maxCap, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return model.Event{}, err
	}
	if salesOpen.Valid {
		t := salesOpen.Time
		ev.SalesOpenAt = &t
	}
	if cityID.Valid {
		id := uint64(cityID.Int64)
		ev.CityID = &id
	}
	ev.CityText = cityText.String
	ev.DepartmentText = deptText.String
	ev.Organizer = organizer.String
	if minAge.Valid {
		n := int(minAge.Int64)
		ev.MinAge = &n
	}
	if maxCap.Valid {
		n := int(maxCap.Int64)
		ev.MaxCapacity = &n
	}
	return ev, nil
}

// GetByID fetches one event.  ErrNotFound is returned when it does not exist.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	return r.getTx(ctx, r.db, id, false)
}

func (r *EventRepo) getTx(ctx context.Context, tx sqlCommand, id uint64, lock bool) (model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	if lock {
		q += ` FOR UPDATE`
	}
	ev, err := scanEvent(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		return model.Event{}, notFound(err)
	}
	return ev, nil
}

// List returns events matching f ordered by start time.
func (r *EventRepo) List(ctx context.Context, f EventFilter) ([]model.Event, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.CityID != 0 {
		where = append(where, "city_id = ?")
		args = append(args, f.CityID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		where = append(where, "(event_name LIKE ? OR description LIKE ?)")
		like := "%" + s + "%"
		args = append(args, like, like)
	}
	q := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY start_datetime ASC, id ASC`
	limit := f.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	q += ` LIMIT ? OFFSET ?`
	args = append(args, limit, f.Offset)
	return r.query(ctx, q, args...)
}

// ListByCreator returns events created by the given user, newest first.
func (r *EventRepo) ListByCreator(ctx context.Context, creatorID uint64) ([]model.Event, error) {
	return r.query(ctx, `SELECT `+eventColumns+` FROM events WHERE creator_id = ? ORDER BY created_at DESC, id DESC`, creatorID)
}

// ListByAttendee returns events for which the user holds at least one
// ticket that is not cancelled.
func (r *EventRepo) ListByAttendee(ctx context.Context, userID uint64) ([]model.Event, error) {
	q := `SELECT ` + prefixed("e.", eventColumns) + ` FROM events e
		WHERE EXISTS (SELECT 1 FROM tickets t WHERE t.event_id = e.id AND t.user_id = ? AND t.status <> ?)
		ORDER BY e.start_datetime ASC`
	return r.query(ctx, q, userID, model.TicketCancelled)
}

func (r *EventRepo) query(ctx context.Context, q string, args ...any) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CreateTx inserts ev within the caller's transaction and populates its
// generated ID and timestamps.
func (r *EventRepo) CreateTx(ctx context.Context, tx sqlCommand, ev *model.Event) error {
	const q = `INSERT INTO events (creator_id, event_name, description, start_datetime, end_datetime,
		sales_open_datetime, country, city_id, city_text, department_text, organizer, category,
		status, min_age, max_capacity) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	res, err := tx.ExecContext(ctx, q, eventArgs(*ev)...)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	created, err := r.getTx(ctx, tx, uint64(id), false)
	if err != nil {
		return err
	}
	*ev = created
	return nil
}

// UpdateTx overwrites the mutable columns of ev.
func (r *EventRepo) UpdateTx(ctx context.Context, tx sqlCommand, ev model.Event) error {
	const q = `UPDATE events SET creator_id=?, event_name=?, description=?, start_datetime=?, end_datetime=?,
		sales_open_datetime=?, country=?, city_id=?, city_text=?, department_text=?, organizer=?, category=?,
		status=?, min_age=?, max_capacity=?, updated_at=? WHERE id=?`
	args := append(eventArgs(ev), time.Now().UTC(), ev.ID)
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

// SetStatusTx changes only the status column.
func (r *EventRepo) SetStatusTx(ctx context.Context, tx sqlCommand, id uint64, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE events SET status=?, updated_at=? WHERE id=?`, status, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTx removes the event and its offerings.
func (r *EventRepo) DeleteTx(ctx context.Context, tx sqlCommand, id uint64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM ticket_type_events WHERE event_id=?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// duplicateExists reports whether another event shares name, city and
// schedule with ev.
func (r *EventRepo) duplicateExists(ctx context.Context, tx sqlCommand, ev model.Event) (bool, error) {
	const q = `SELECT COUNT(*) FROM events WHERE event_name=? AND city_id <=> ? AND start_datetime=? AND end_datetime=? AND id<>?`
	var n int
	if err := tx.QueryRowContext(ctx, q, ev.Name, nullUint(ev.CityID), ev.StartAt, ev.EndAt, ev.ID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func eventArgs(ev model.Event) []any {
	return []any{
		ev.CreatorID, ev.Name, ev.Description, ev.StartAt.UTC(), ev.EndAt.UTC(),
		nullTime(ev.SalesOpenAt), ev.Country, nullUint(ev.CityID), nullString(ev.CityText),
		nullString(ev.DepartmentText), nullString(ev.Organizer), ev.Category,
		ev.Status, nullInt(ev.MinAge), nullInt(ev.MaxCapacity),
	}
}

func prefixed(prefix, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullUint(v *uint64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
