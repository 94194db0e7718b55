package model

import "time"

// Ticket statuses stored in tickets.status.  TicketPurchased ("comprada")
// is the paid state and the only one counted toward capacity_sold.
const (
	TicketPending   = "pendiente"
	TicketPurchased = "comprada"
	TicketUsed      = "usada"
	TicketCancelled = "cancelada"
)

// Ticket is one purchase record of Amount admissions against a single
// TicketTypeEvent.  UniqueCode is the QR payload and doubles as the
// payment gateway reference code.
type Ticket struct {
	ID          uint64    `json:"id"`               // tickets.id
	UserID      uint64    `json:"user_id"`          // tickets.user_id
	EventID     uint64    `json:"event_id"`         // tickets.event_id
	OfferingID  uint64    `json:"config_type_id"`   // tickets.config_type_id
	Amount      int       `json:"amount"`           // tickets.amount
	PurchasedAt time.Time `json:"date_of_purchase"` // tickets.date_of_purchase
	Status      string    `json:"status"`           // tickets.status
	UniqueCode  string    `json:"unique_code"`      // tickets.unique_code
	UpdatedAt   time.Time `json:"updated_at"`       // tickets.updated_at
}

// ValidTicketStatus reports whether s is a known ticket status.
func ValidTicketStatus(s string) bool {
	switch s {
	case TicketPending, TicketPurchased, TicketUsed, TicketCancelled:
		return true
	}
	return false
}

// Attendee is a ticket joined with buyer details for the attendee list.
type Attendee struct {
	TicketID   uint64 `json:"ticket_id"`
	UniqueCode string `json:"unique_code"`
	Status     string `json:"status"`
	Amount     int    `json:"amount"`
	TicketType string `json:"ticket_type"`
	UserID     uint64 `json:"user_id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
}
