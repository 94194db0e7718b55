package payu

import (
	"github.com/shopspring/decimal"

	"github.com/iliyamo/event-ticketing/internal/config"
)

// CheckoutForm carries the fields a client posts to the PayU WebCheckout
// page.  Field names follow the gateway's form contract.
type CheckoutForm struct {
	Action          string `json:"action"`
	MerchantID      string `json:"merchantId"`
	AccountID       string `json:"accountId"`
	Description     string `json:"description"`
	ReferenceCode   string `json:"referenceCode"`
	Amount          string `json:"amount"`
	Tax             string `json:"tax"`
	TaxReturnBase   string `json:"taxReturnBase"`
	Currency        string `json:"currency"`
	Signature       string `json:"signature"`
	Test            string `json:"test"`
	BuyerEmail      string `json:"buyerEmail"`
	ConfirmationURL string `json:"confirmationUrl,omitempty"`
	ResponseURL     string `json:"responseUrl,omitempty"`
}

// NewCheckoutForm signs a checkout for reference over total.
func NewCheckoutForm(cfg config.PayUConfig, reference, description string, total decimal.Decimal, buyerEmail string) CheckoutForm {
	amount := FormatAmount(total)
	test := "0"
	if cfg.Sandbox {
		test = "1"
	}
	return CheckoutForm{
		Action:          cfg.CheckoutURL,
		MerchantID:      cfg.MerchantID,
		AccountID:       cfg.AccountID,
		Description:     description,
		ReferenceCode:   reference,
		Amount:          amount,
		Tax:             "0",
		TaxReturnBase:   "0",
		Currency:        cfg.Currency,
		Signature:       Sign(cfg.APIKey, cfg.MerchantID, reference, amount, cfg.Currency),
		Test:            test,
		BuyerEmail:      buyerEmail,
		ConfirmationURL: cfg.ConfirmationURL,
		ResponseURL:     cfg.ResponseURL,
	}
}
