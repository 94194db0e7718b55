package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment transaction statuses stored in payment_transactions.status.
const (
	PaymentInitiated = "iniciada"
	PaymentApproved  = "aprobado"
	PaymentRejected  = "rechazado"
	PaymentPending   = "pendiente"
	PaymentError     = "error"
	PaymentUnknown   = "desconocido"
)

// GatewayPayU is the only gateway recorded in payment_transactions.gateway.
const GatewayPayU = "PayU"

// PaymentTransaction mirrors the gateway's view of one payment.  Rows are
// reconciled idempotently by ReferenceCode, which equals the ticket's
// UniqueCode.
type PaymentTransaction struct {
	ID            uint64          `json:"id"`                       // payment_transactions.id
	ReferenceCode string          `json:"reference_code"`           // payment_transactions.reference_code (unique)
	TransactionID string          `json:"transaction_id,omitempty"` // payment_transactions.transaction_id
	Status        string          `json:"status"`                   // payment_transactions.status
	RawState      string          `json:"state_pol,omitempty"`      // payment_transactions.raw_state
	Amount        decimal.Decimal `json:"amount"`                   // payment_transactions.amount
	Currency      string          `json:"currency"`                 // payment_transactions.currency
	BuyerEmail    string          `json:"buyer_email,omitempty"`    // payment_transactions.buyer_email
	Gateway       string          `json:"gateway"`                  // payment_transactions.gateway
	CreatedAt     time.Time       `json:"created_at"`               // payment_transactions.created_at
	UpdatedAt     time.Time       `json:"updated_at"`               // payment_transactions.updated_at
}
