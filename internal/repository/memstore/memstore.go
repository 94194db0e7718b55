// Package memstore is an in-memory repository.Store used by service and
// handler tests.  Transactions are serialised by a single mutex, which is
// at least as strict as the row locks taken by the SQL store, and a failed
// transaction restores the snapshot taken when it began.
package memstore

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/repository"
)

type state struct {
	seq         uint64
	events      map[uint64]model.Event
	offerings   map[uint64]model.TicketTypeEvent
	ticketTypes map[uint64]model.TicketType
	tickets     map[uint64]model.Ticket
	payments    map[string]model.PaymentTransaction
	users       map[uint64]model.User
	changes     []model.ChangeLog
	accesses    []model.TicketAccessLog
}

func (s *state) clone() *state {
	return &state{
		seq:         s.seq,
		events:      maps.Clone(s.events),
		offerings:   maps.Clone(s.offerings),
		ticketTypes: maps.Clone(s.ticketTypes),
		tickets:     maps.Clone(s.tickets),
		payments:    maps.Clone(s.payments),
		users:       maps.Clone(s.users),
		changes:     slices.Clone(s.changes),
		accesses:    slices.Clone(s.accesses),
	}
}

func (s *state) next() uint64 {
	s.seq++
	return s.seq
}

// Store implements repository.Store in memory.
type Store struct {
	mu sync.Mutex
	st *state
	// Commits counts committed transactions.
	Commits int
	locks   []string
}

// New returns an empty store.
func New() *Store {
	return &Store{st: &state{
		events:      map[uint64]model.Event{},
		offerings:   map[uint64]model.TicketTypeEvent{},
		ticketTypes: map[uint64]model.TicketType{},
		tickets:     map[uint64]model.Ticket{},
		payments:    map[string]model.PaymentTransaction{},
		users:       map[uint64]model.User{},
	}}
}

// WithinTx runs fn with exclusive access to the store.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.st.clone()
	t := &tx{st: s.st}
	err := fn(ctx, t)
	s.locks = t.locks
	if err != nil {
		s.st = snapshot
		return err
	}
	s.Commits++
	return nil
}

// AddUser stores u, assigning an id when zero.
func (s *Store) AddUser(u model.User) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == 0 {
		u.ID = s.st.next()
	}
	s.st.users[u.ID] = u
	return u
}

// AddTicketType stores t, assigning an id when zero.
func (s *Store) AddTicketType(t model.TicketType) model.TicketType {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.st.next()
	}
	s.st.ticketTypes[t.ID] = t
	return t
}

// AddEvent stores ev, assigning an id when zero.
func (s *Store) AddEvent(ev model.Event) model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.ID == 0 {
		ev.ID = s.st.next()
	}
	s.st.events[ev.ID] = ev
	return ev
}

// AddOffering stores o, assigning an id when zero.
func (s *Store) AddOffering(o model.TicketTypeEvent) model.TicketTypeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		o.ID = s.st.next()
	}
	if tt, ok := s.st.ticketTypes[o.TicketTypeID]; ok && o.TicketTypeName == "" {
		o.TicketTypeName = tt.Name
	}
	s.st.offerings[o.ID] = o
	return o
}

// AddTicket stores t as-is, without touching capacity.
func (s *Store) AddTicket(t model.Ticket) model.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.st.next()
	}
	s.st.tickets[t.ID] = t
	return t
}

// Event returns the stored event.
func (s *Store) Event(id uint64) model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.events[id]
}

// Offering returns the stored offering.
func (s *Store) Offering(id uint64) model.TicketTypeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.offerings[id]
}

// Ticket returns the stored ticket.
func (s *Store) Ticket(id uint64) model.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.tickets[id]
}

// Tickets returns every stored ticket ordered by id.
func (s *Store) Tickets() []model.Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Collect(maps.Values(s.st.tickets))
	slices.SortFunc(out, func(a, b model.Ticket) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// User returns the stored user.
func (s *Store) User(id uint64) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.users[id]
}

// Payment returns the stored transaction for ref and whether it exists.
func (s *Store) Payment(ref string) (model.PaymentTransaction, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.payments[ref]
	return p, ok
}

// PaymentCount returns the number of stored transactions.
func (s *Store) PaymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.payments)
}

// ChangeLogs returns every stored change log row.
func (s *Store) ChangeLogs() []model.ChangeLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.changes)
}

// AccessLogs returns every stored access log row.
// LastLocks returns the row-lock sequence ("event", "ticket", "offering")
// taken by the most recent transaction.
func (s *Store) LastLocks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.locks)
}

func (s *Store) AccessLogs() []model.TicketAccessLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.accesses)
}

type tx struct {
	st    *state
	locks []string
}

func (t *tx) lock(table string) { t.locks = append(t.locks, table) }

func (t *tx) GetEvent(_ context.Context, id uint64) (model.Event, error) {
	ev, ok := t.st.events[id]
	if !ok {
		return model.Event{}, repository.ErrNotFound
	}
	return ev, nil
}

func (t *tx) LockEvent(ctx context.Context, id uint64) (model.Event, error) {
	t.lock("event")
	return t.GetEvent(ctx, id)
}

func (t *tx) InsertEvent(_ context.Context, ev *model.Event) error {
	ev.ID = t.st.next()
	now := time.Now().UTC()
	ev.CreatedAt, ev.UpdatedAt = now, now
	t.st.events[ev.ID] = *ev
	return nil
}

func (t *tx) UpdateEvent(_ context.Context, ev model.Event) error {
	if _, ok := t.st.events[ev.ID]; !ok {
		return repository.ErrNotFound
	}
	ev.UpdatedAt = time.Now().UTC()
	t.st.events[ev.ID] = ev
	return nil
}

func (t *tx) SetEventStatus(_ context.Context, id uint64, status string) error {
	ev, ok := t.st.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	ev.Status = status
	t.st.events[id] = ev
	return nil
}

func (t *tx) DeleteEvent(_ context.Context, id uint64) error {
	if _, ok := t.st.events[id]; !ok {
		return repository.ErrNotFound
	}
	delete(t.st.events, id)
	for oid, o := range t.st.offerings {
		if o.EventID == id {
			delete(t.st.offerings, oid)
		}
	}
	return nil
}

func (t *tx) DuplicateEventExists(_ context.Context, ev model.Event) (bool, error) {
	for _, other := range t.st.events {
		if other.ID == ev.ID || other.Name != ev.Name {
			continue
		}
		sameCity := (other.CityID == nil && ev.CityID == nil) ||
			(other.CityID != nil && ev.CityID != nil && *other.CityID == *ev.CityID)
		if sameCity && other.StartAt.Equal(ev.StartAt) && other.EndAt.Equal(ev.EndAt) {
			return true, nil
		}
	}
	return false, nil
}

func (t *tx) TicketTypesExist(_ context.Context, ids []uint64) (bool, error) {
	for _, id := range ids {
		if _, ok := t.st.ticketTypes[id]; !ok {
			return false, nil
		}
	}
	return true, nil
}

func (t *tx) ListOfferings(_ context.Context, eventID uint64) ([]model.TicketTypeEvent, error) {
	out := make([]model.TicketTypeEvent, 0)
	for _, o := range t.st.offerings {
		if o.EventID == eventID {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b model.TicketTypeEvent) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (t *tx) LockOffering(_ context.Context, id uint64) (model.TicketTypeEvent, error) {
	t.lock("offering")
	o, ok := t.st.offerings[id]
	if !ok {
		return model.TicketTypeEvent{}, repository.ErrNotFound
	}
	return o, nil
}

func (t *tx) InsertOffering(_ context.Context, o *model.TicketTypeEvent) error {
	for _, other := range t.st.offerings {
		if other.EventID == o.EventID && other.TicketTypeID == o.TicketTypeID {
			return repository.ErrConflict
		}
	}
	o.ID = t.st.next()
	o.CapacitySold = 0
	if tt, ok := t.st.ticketTypes[o.TicketTypeID]; ok {
		o.TicketTypeName = tt.Name
	}
	t.st.offerings[o.ID] = *o
	return nil
}

func (t *tx) UpdateOffering(_ context.Context, o model.TicketTypeEvent) error {
	cur, ok := t.st.offerings[o.ID]
	if !ok {
		return repository.ErrNotFound
	}
	cur.Price = o.Price
	cur.MaxCapacity = o.MaxCapacity
	t.st.offerings[o.ID] = cur
	return nil
}

func (t *tx) DeleteOffering(_ context.Context, id uint64) error {
	delete(t.st.offerings, id)
	return nil
}

func (t *tx) SetCapacitySold(_ context.Context, id uint64, sold int) error {
	o, ok := t.st.offerings[id]
	if !ok {
		return repository.ErrNotFound
	}
	o.CapacitySold = sold
	t.st.offerings[id] = o
	return nil
}

func (t *tx) CountTicketsByOffering(_ context.Context, offeringID uint64) (int, error) {
	n := 0
	for _, tk := range t.st.tickets {
		if tk.OfferingID == offeringID {
			n++
		}
	}
	return n, nil
}

func (t *tx) CountTicketsByEvent(_ context.Context, eventID uint64) (int, error) {
	n := 0
	for _, tk := range t.st.tickets {
		if tk.EventID == eventID {
			n++
		}
	}
	return n, nil
}

func (t *tx) InsertTicket(_ context.Context, tk *model.Ticket) error {
	for _, other := range t.st.tickets {
		if other.UniqueCode == tk.UniqueCode {
			return repository.ErrConflict
		}
	}
	tk.ID = t.st.next()
	if tk.PurchasedAt.IsZero() {
		tk.PurchasedAt = time.Now().UTC()
	}
	tk.UpdatedAt = tk.PurchasedAt
	t.st.tickets[tk.ID] = *tk
	return nil
}

func (t *tx) LockTicket(_ context.Context, id uint64) (model.Ticket, error) {
	t.lock("ticket")
	tk, ok := t.st.tickets[id]
	if !ok {
		return model.Ticket{}, repository.ErrNotFound
	}
	return tk, nil
}

func (t *tx) LockTicketByCode(_ context.Context, code string) (model.Ticket, error) {
	t.lock("ticket")
	for _, tk := range t.st.tickets {
		if tk.UniqueCode == code {
			return tk, nil
		}
	}
	return model.Ticket{}, repository.ErrNotFound
}

func (t *tx) LockTicketsByEvent(_ context.Context, eventID uint64) ([]model.Ticket, error) {
	t.lock("ticket")
	out := make([]model.Ticket, 0)
	for _, tk := range t.st.tickets {
		if tk.EventID == eventID {
			out = append(out, tk)
		}
	}
	slices.SortFunc(out, func(a, b model.Ticket) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (t *tx) UpdateTicket(_ context.Context, tk model.Ticket) error {
	if _, ok := t.st.tickets[tk.ID]; !ok {
		return repository.ErrNotFound
	}
	tk.UpdatedAt = time.Now().UTC()
	t.st.tickets[tk.ID] = tk
	return nil
}

func (t *tx) GetPaymentByReference(_ context.Context, ref string) (model.PaymentTransaction, error) {
	p, ok := t.st.payments[ref]
	if !ok {
		return model.PaymentTransaction{}, repository.ErrNotFound
	}
	return p, nil
}

func (t *tx) UpsertPayment(_ context.Context, p *model.PaymentTransaction) error {
	now := time.Now().UTC()
	if p.Gateway == "" {
		p.Gateway = model.GatewayPayU
	}
	if cur, ok := t.st.payments[p.ReferenceCode]; ok {
		p.ID = cur.ID
		p.CreatedAt = cur.CreatedAt
		if p.TransactionID == "" {
			p.TransactionID = cur.TransactionID
		}
		if p.BuyerEmail == "" {
			p.BuyerEmail = cur.BuyerEmail
		}
	} else {
		p.ID = t.st.next()
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	t.st.payments[p.ReferenceCode] = *p
	return nil
}

func (t *tx) GetUser(_ context.Context, id uint64) (model.User, error) {
	u, ok := t.st.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (t *tx) UpdateUserProfile(_ context.Context, u model.User) error {
	cur, ok := t.st.users[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	for id, other := range t.st.users {
		if id != u.ID && other.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	u.PasswordHash = cur.PasswordHash
	u.Roles = cur.Roles
	t.st.users[u.ID] = u
	return nil
}

func (t *tx) InsertChangeLogs(_ context.Context, logs []model.ChangeLog) error {
	now := time.Now().UTC()
	for _, l := range logs {
		l.ID = t.st.next()
		l.ChangedAt = now
		t.st.changes = append(t.st.changes, l)
	}
	return nil
}

func (t *tx) InsertAccessLog(_ context.Context, l *model.TicketAccessLog) error {
	l.ID = t.st.next()
	if l.AccessedAt.IsZero() {
		l.AccessedAt = time.Now().UTC()
	}
	t.st.accesses = append(t.st.accesses, *l)
	return nil
}
