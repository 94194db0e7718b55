package payu

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/iliyamo/event-ticketing/internal/model"
)

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestSignJoinsFieldsWithTilde(t *testing.T) {
	got := Sign("4Vj8eK4rloUd272L48hsrarnUA", "508029", "TestPayU", "3", "USD")
	assert.Equal(t, md5hex("4Vj8eK4rloUd272L48hsrarnUA~508029~TestPayU~3~USD"), got)
	assert.Len(t, got, 32)
}

func TestVerify(t *testing.T) {
	sign := Sign("key", "m1", "ref-1", "150.00", "COP")

	assert.True(t, Verify("key", "m1", "ref-1", "150.00", "COP", sign))
	assert.True(t, Verify("key", "m1", "ref-1", "150.00", "COP", "  "+sign+" "))
	assert.False(t, Verify("other", "m1", "ref-1", "150.00", "COP", sign))
	assert.False(t, Verify("key", "m1", "ref-2", "150.00", "COP", sign))
	assert.False(t, Verify("key", "m1", "ref-1", "151.00", "COP", sign))
	assert.False(t, Verify("key", "m1", "ref-1", "150.00", "COP", ""))
}

func TestVerifyAcceptsShortenedConfirmationValue(t *testing.T) {
	sign := Sign("key", "m1", "ref-1", "150.0", "COP")
	assert.True(t, Verify("key", "m1", "ref-1", "150.00", "COP", sign))

	sign = Sign("key", "m1", "ref-1", "150.25", "COP")
	assert.True(t, Verify("key", "m1", "ref-1", "150.25", "COP", sign))
}

func TestNormalizeAmountRoundsHalfUp(t *testing.T) {
	cases := map[string]string{
		"10":      "10.00",
		"10.005":  "10.01",
		"10.004":  "10.00",
		" 99.9 ":  "99.90",
		"1200.50": "1200.50",
	}
	for in, want := range cases {
		d, err := NormalizeAmount(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, FormatAmount(d), in)
	}
	_, err := NormalizeAmount("abc")
	assert.Error(t, err)
}

func TestParseNotificationRequiresFields(t *testing.T) {
	full := map[string]string{
		"reference_sale": "abc",
		"value":          "10.00",
		"currency":       "COP",
		"state_pol":      "4",
		"sign":           "deadbeef",
		"transaction_id": "tx-1",
	}
	n, err := ParseNotification(func(k string) string { return full[k] })
	require.NoError(t, err)
	assert.Equal(t, "abc", n.ReferenceSale)
	assert.Equal(t, "tx-1", n.TransactionID)
	assert.Equal(t, model.PaymentApproved, n.Status())

	for _, f := range requiredFields {
		partial := map[string]string{}
		for k, v := range full {
			if k != f {
				partial[k] = v
			}
		}
		_, err := ParseNotification(func(k string) string { return partial[k] })
		var mf *MissingFieldError
		require.True(t, errors.As(err, &mf), f)
		assert.Equal(t, f, mf.Field)
		assert.ErrorIs(t, err, ErrMissingField)
	}
}

func TestMapState(t *testing.T) {
	assert.Equal(t, model.PaymentApproved, MapState("4"))
	assert.Equal(t, model.PaymentRejected, MapState("6"))
	assert.Equal(t, model.PaymentPending, MapState("7"))
	assert.Equal(t, model.PaymentError, MapState("104"))
	assert.Equal(t, model.PaymentUnknown, MapState("5"))
	assert.Equal(t, model.PaymentUnknown, MapState(""))
}

func TestNewCheckoutForm(t *testing.T) {
	cfg := config.PayUConfig{
		MerchantID: "508029", AccountID: "512321", APIKey: "key", Currency: "COP",
		Sandbox: true, CheckoutURL: "https://sandbox.example", ConfirmationURL: "https://api/confirm",
	}
	form := NewCheckoutForm(cfg, "ref-1", "Concierto - VIP", decimal.RequireFromString("30000.5"), "a@b.co")

	assert.Equal(t, "30000.50", form.Amount)
	assert.Equal(t, "1", form.Test)
	assert.Equal(t, "ref-1", form.ReferenceCode)
	assert.Equal(t, Sign("key", "508029", "ref-1", "30000.50", "COP"), form.Signature)
	assert.Equal(t, "https://sandbox.example", form.Action)
	assert.Equal(t, "https://api/confirm", form.ConfirmationURL)
}
