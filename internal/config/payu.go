package config

import (
	"errors"
	"strings"
)

// PayUConfig holds the merchant credentials and callback URLs of the PayU
// WebCheckout integration.  The API key is the shared secret used to sign
// checkout forms and to verify confirmation notifications.
type PayUConfig struct {
	MerchantID      string
	AccountID       string
	APIKey          string
	Currency        string
	Sandbox         bool
	CheckoutURL     string
	ConfirmationURL string
	ResponseURL     string
}

const (
	payuSandboxURL    = "https://sandbox.checkout.payulatam.com/ppp-web-gateway-payu/"
	payuProductionURL = "https://checkout.payulatam.com/ppp-web-gateway-payu/"
)

// LoadPayUConfig reads PAYU_* variables.  Missing credentials are not fatal;
// Validate reports them and payment endpoints answer 503 until fixed.
func LoadPayUConfig() PayUConfig {
	cfg := PayUConfig{
		MerchantID:      strings.TrimSpace(getenv("PAYU_MERCHANT_ID", "")),
		AccountID:       strings.TrimSpace(getenv("PAYU_ACCOUNT_ID", "")),
		APIKey:          strings.TrimSpace(getenv("PAYU_API_KEY", "")),
		Currency:        strings.ToUpper(getenv("PAYU_CURRENCY", "COP")),
		Sandbox:         envBool("PAYU_SANDBOX", true),
		CheckoutURL:     getenv("PAYU_CHECKOUT_URL", ""),
		ConfirmationURL: getenv("PAYU_CONFIRMATION_URL", ""),
		ResponseURL:     getenv("PAYU_RESPONSE_URL", ""),
	}
	if cfg.CheckoutURL == "" {
		cfg.CheckoutURL = payuProductionURL
		if cfg.Sandbox {
			cfg.CheckoutURL = payuSandboxURL
		}
	}
	return cfg
}

// Validate returns an error naming every missing credential.
func (c PayUConfig) Validate() error {
	var missing []string
	if c.MerchantID == "" {
		missing = append(missing, "PAYU_MERCHANT_ID")
	}
	if c.AccountID == "" {
		missing = append(missing, "PAYU_ACCOUNT_ID")
	}
	if c.APIKey == "" {
		missing = append(missing, "PAYU_API_KEY")
	}
	if len(missing) > 0 {
		return errors.New("payu: missing " + strings.Join(missing, ", "))
	}
	return nil
}
