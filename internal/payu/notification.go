package payu

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/event-ticketing/internal/model"
)

var (
	// ErrMissingField is wrapped by MissingFieldError.
	ErrMissingField = errors.New("missing notification field")
	// ErrInvalidSignature means the notification was not signed with our API key.
	ErrInvalidSignature = errors.New("invalid signature")
)

// MissingFieldError names the required notification field that was absent.
type MissingFieldError struct{ Field string }

func (e *MissingFieldError) Error() string { return fmt.Sprintf("missing field: %s", e.Field) }
func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// Gateway state_pol codes.
const (
	StateApproved = "4"
	StateRejected = "6"
	StatePending  = "7"
	StateError    = "104"
)

// Notification is a confirmation posted by PayU to the merchant.
type Notification struct {
	ReferenceSale string
	Value         string
	Currency      string
	StatePol      string
	Sign          string
	TransactionID string
	EmailBuyer    string
}

// requiredFields lists the fields every notification must carry, in the
// order they are reported when missing.
var requiredFields = []string{"reference_sale", "value", "currency", "state_pol", "sign"}

// ParseNotification builds a Notification from a field getter (a form
// value lookup or a decoded JSON map).
func ParseNotification(get func(key string) string) (Notification, error) {
	for _, f := range requiredFields {
		if strings.TrimSpace(get(f)) == "" {
			return Notification{}, &MissingFieldError{Field: f}
		}
	}
	return Notification{
		ReferenceSale: strings.TrimSpace(get("reference_sale")),
		Value:         strings.TrimSpace(get("value")),
		Currency:      strings.TrimSpace(get("currency")),
		StatePol:      strings.TrimSpace(get("state_pol")),
		Sign:          strings.TrimSpace(get("sign")),
		TransactionID: strings.TrimSpace(get("transaction_id")),
		EmailBuyer:    strings.TrimSpace(get("email_buyer")),
	}, nil
}

// Verify checks the notification signature against the merchant credentials.
func (n Notification) Verify(apiKey, merchantID string) bool {
	return Verify(apiKey, merchantID, n.ReferenceSale, n.Value, n.Currency, n.Sign)
}

// Status maps state_pol to a payment transaction status.
func (n Notification) Status() string { return MapState(n.StatePol) }

// MapState maps a gateway state code to a payment transaction status.
func MapState(state string) string {
	switch strings.TrimSpace(state) {
	case StateApproved:
		return model.PaymentApproved
	case StateRejected:
		return model.PaymentRejected
	case StatePending:
		return model.PaymentPending
	case StateError:
		return model.PaymentError
	}
	return model.PaymentUnknown
}
