package model

import "github.com/shopspring/decimal"

// TicketType is a reusable label (e.g. "VIP", "General") that is not tied to
// any single event.
type TicketType struct {
	ID          uint64 `json:"id"`          // ticket_types.id
	Name        string `json:"ticket_name"` // ticket_types.ticket_name
	Description string `json:"description"` // ticket_types.description
}

// TicketTypeEvent is the priced, capacity-bounded offering of a ticket type
// within one event.  CapacitySold is derived bookkeeping: it must always
// equal the sum of Amount over the offering's purchased tickets and stay
// within [0, MaxCapacity].
//
// Fields:
//
//	ID           – primary key identifier.
//	EventID      – owning event.
//	TicketTypeID – ticket type being offered.
//	Price        – unit price (DECIMAL(10,2)); zero marks a free offering.
//	MaxCapacity  – admissions available (column maximun_capacity).
//	CapacitySold – admissions currently counted as purchased.
type TicketTypeEvent struct {
	ID             uint64          `json:"id"`                    // ticket_type_events.id
	EventID        uint64          `json:"event_id"`              // ticket_type_events.event_id
	TicketTypeID   uint64          `json:"ticket_type_id"`        // ticket_type_events.ticket_type_id
	TicketTypeName string          `json:"ticket_name,omitempty"` // joined from ticket_types.ticket_name
	Price          decimal.Decimal `json:"price"`                 // ticket_type_events.price
	MaxCapacity    int             `json:"maximun_capacity"`      // ticket_type_events.maximun_capacity
	CapacitySold   int             `json:"capacity_sold"`         // ticket_type_events.capacity_sold
}

// Remaining returns the admissions still available for purchase.
func (o TicketTypeEvent) Remaining() int {
	if r := o.MaxCapacity - o.CapacitySold; r > 0 {
		return r
	}
	return 0
}

// SoldOut reports whether no admissions remain.
func (o TicketTypeEvent) SoldOut() bool { return o.Remaining() == 0 }

// Free reports whether tickets of this offering cost nothing.
func (o TicketTypeEvent) Free() bool { return o.Price.IsZero() }
