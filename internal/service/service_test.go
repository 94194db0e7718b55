package service

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/model"
	"github.com/iliyamo/event-ticketing/internal/payu"
	"github.com/iliyamo/event-ticketing/internal/repository/memstore"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

var testPayU = config.PayUConfig{
	MerchantID:  "508029",
	AccountID:   "512321",
	APIKey:      "4Vj8eK4rloUd272L48hsrarnUA",
	Currency:    "COP",
	Sandbox:     true,
	CheckoutURL: "https://sandbox.checkout.example/",
}

type recordingPublisher struct {
	mu        sync.Mutex
	confirmed []model.Ticket
	cancelled []uint64
}

func (p *recordingPublisher) TicketConfirmed(_ context.Context, t model.Ticket) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, t)
	return nil
}

func (p *recordingPublisher) EventCancelled(_ context.Context, ev model.Event, _ int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, ev.ID)
	return nil
}

type recordingBroadcaster struct {
	mu        sync.Mutex
	snapshots []model.Availability
}

func (b *recordingBroadcaster) Broadcast(_ context.Context, a model.Availability) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots = append(b.snapshots, a)
	return nil
}

func (b *recordingBroadcaster) last() model.Availability {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshots[len(b.snapshots)-1]
}

type fixture struct {
	store    *memstore.Store
	pub      *recordingPublisher
	bc       *recordingBroadcaster
	tickets  *TicketService
	payments *PaymentService
	events   *EventService
	users    *UserService

	organizer model.User
	buyer     model.User
	general   model.TicketType
	vip       model.TicketType
	event     model.Event
	free      model.TicketTypeEvent
	paid      model.TicketTypeEvent
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: memstore.New(),
		pub:   &recordingPublisher{},
		bc:    &recordingBroadcaster{},
	}
	log := quietLogger()
	f.payments = NewPaymentService(f.store, nil, testPayU, f.pub, f.bc, log)
	f.tickets = NewTicketService(f.store, f.payments, f.pub, f.bc, log)
	f.tickets.now = func() time.Time { return testNow }
	f.events = NewEventService(f.store, f.pub, f.bc, log)
	f.events.now = func() time.Time { return testNow }
	f.users = NewUserService(f.store, nil, log)

	birth := time.Date(1990, 5, 1, 0, 0, 0, 0, time.UTC)
	f.organizer = f.store.AddUser(model.User{Email: "org@example.co", Username: "org", Roles: []string{model.RoleOrganizer}, IsActive: true})
	f.buyer = f.store.AddUser(model.User{Email: "buyer@example.co", Username: "buyer", FirstName: "Ana", BirthDate: &birth, Roles: []string{model.RoleParticipant}, IsActive: true})
	f.general = f.store.AddTicketType(model.TicketType{Name: "General"})
	f.vip = f.store.AddTicketType(model.TicketType{Name: "VIP"})

	city := uint64(1)
	f.event = f.store.AddEvent(model.Event{
		CreatorID: f.organizer.ID,
		Name:      "Festival",
		StartAt:   testNow.Add(30 * 24 * time.Hour),
		EndAt:     testNow.Add(31 * 24 * time.Hour),
		Country:   "Colombia",
		CityID:    &city,
		Category:  "musica",
		Status:    model.EventActive,
	})
	f.free = f.store.AddOffering(model.TicketTypeEvent{EventID: f.event.ID, TicketTypeID: f.general.ID, Price: decimal.Zero, MaxCapacity: 10})
	f.paid = f.store.AddOffering(model.TicketTypeEvent{EventID: f.event.ID, TicketTypeID: f.vip.ID, Price: decimal.RequireFromString("150000"), MaxCapacity: 5})
	return f
}

// addTicket stores a ticket and, when it is comprada, accounts for it in
// the offering so the fixture starts consistent.
func (f *fixture) addTicket(o model.TicketTypeEvent, status string, amount int, code string) model.Ticket {
	t := f.store.AddTicket(model.Ticket{
		UserID:     f.buyer.ID,
		EventID:    o.EventID,
		OfferingID: o.ID,
		Amount:     amount,
		Status:     status,
		UniqueCode: code,
	})
	if status == model.TicketPurchased {
		cur := f.store.Offering(o.ID)
		cur.CapacitySold += amount
		f.store.AddOffering(cur)
	}
	return t
}

func signedNotification(ref, value, state string) payu.Notification {
	return payu.Notification{
		ReferenceSale: ref,
		Value:         value,
		Currency:      "COP",
		StatePol:      state,
		Sign:          payu.Sign(testPayU.APIKey, testPayU.MerchantID, ref, value, "COP"),
		TransactionID: "tx-" + ref,
		EmailBuyer:    "buyer@example.co",
	}
}

func ptr[T any](v T) *T { return &v }
