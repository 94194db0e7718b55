// Package payu implements the merchant side of the PayU WebCheckout
// protocol: signing checkout forms and verifying confirmation
// notifications.
package payu

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/shopspring/decimal"
)

// Sign returns the lower-hex MD5 of "apiKey~merchantID~reference~amount~currency".
func Sign(apiKey, merchantID, reference, amount, currency string) string {
	sum := md5.Sum([]byte(strings.Join([]string{apiKey, merchantID, reference, amount, currency}, "~")))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether sign matches the signature computed over amount as
// sent by the gateway.  PayU signs confirmations with the value shortened
// to one decimal when the second decimal is zero, so that form is accepted
// as well.
func Verify(apiKey, merchantID, reference, amount, currency, sign string) bool {
	sign = strings.ToLower(strings.TrimSpace(sign))
	if sign == "" {
		return false
	}
	candidates := []string{amount}
	if short, ok := confirmationValue(amount); ok && short != amount {
		candidates = append(candidates, short)
	}
	for _, a := range candidates {
		want := Sign(apiKey, merchantID, reference, a, currency)
		if subtle.ConstantTimeCompare([]byte(want), []byte(sign)) == 1 {
			return true
		}
	}
	return false
}

// FormatAmount renders d with exactly two decimals, rounding half away
// from zero.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// NormalizeAmount parses a gateway value and rounds it to two decimals.
func NormalizeAmount(value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Decimal{}, err
	}
	return d.Round(2), nil
}

// confirmationValue applies the PayU "new_value" rule: "150.00" → "150.0",
// "150.25" → "150.25".
func confirmationValue(value string) (string, bool) {
	d, err := NormalizeAmount(value)
	if err != nil {
		return "", false
	}
	s := d.StringFixed(2)
	if strings.HasSuffix(s, "0") {
		return s[:len(s)-1], true
	}
	return s, true
}
