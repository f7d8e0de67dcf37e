package checkout

import (
	"encoding/json"
	"strings"

	checkoutmodel "github.com/Emolus-Dev/payments/internal/core/datamodel/checkout"
	"github.com/Emolus-Dev/payments/internal/gateway"
)

// Provider object kinds. The provider returns one of two response shapes
// depending on which charge path was taken.
const (
	ObjectPaymentIntent = "payment_intent"
	ObjectCharge        = "charge"
)

const (
	// IntentStatusSucceeded is the terminal success status of an
	// intent-style charge.
	IntentStatusSucceeded = "succeeded"

	// DefaultReceiptURL stands in when the provider response carries no
	// receipt link.
	DefaultReceiptURL = "/stripe/payment-ok"

	// RedirectPaymentFailed is the designated failure sentinel returned by
	// reconciliation and used as the failure redirect target.
	RedirectPaymentFailed = "payment-failed"
)

// ChargeOutcome is the provider's charge response, one variant per response
// shape. Each variant owns its extraction into the uniform response-log row.
type ChargeOutcome interface {
	Object() string
	ChargeID() string
	Succeeded() bool
	FailureReason() string
	ReceiptLink() string
	ResponseLog(paymentRequestRef string) *checkoutmodel.ResponseLog
}

// ChargeDetails holds the charge-level fields that live one level down
// inside an intent-style response.
type ChargeDetails struct {
	AmountCapturedMinor int64
	AmountRefundedMinor int64
	Currency            string
	ReceiptURL          string
}

// IntentCharge is the two-step intent-based response shape. Captured and
// refunded amounts live in the nested charge, not at the top level.
type IntentCharge struct {
	ID             string
	Status         string
	AmountMinor    int64
	ReceiptEmail   string
	FailureMessage string
	Charge         *ChargeDetails
	Raw            json.RawMessage
}

func (c *IntentCharge) Object() string {
	return ObjectPaymentIntent
}

func (c *IntentCharge) ChargeID() string {
	return c.ID
}

func (c *IntentCharge) Succeeded() bool {
	return c.Status == IntentStatusSucceeded
}

func (c *IntentCharge) FailureReason() string {
	return c.FailureMessage
}

func (c *IntentCharge) ReceiptLink() string {
	if c.Charge != nil && c.Charge.ReceiptURL != "" {
		return c.Charge.ReceiptURL
	}
	return DefaultReceiptURL
}

func (c *IntentCharge) ResponseLog(paymentRequestRef string) *checkoutmodel.ResponseLog {
	entry := &checkoutmodel.ResponseLog{
		Gateway:           "Stripe",
		PaymentRequestRef: paymentRequestRef,
		IsPaid:            c.Succeeded(),
		ChargeID:          c.ID,
		Amount:            gateway.MinorToMajor(c.AmountMinor),
		ReceiptEmail:      c.ReceiptEmail,
		ReceiptURL:        DefaultReceiptURL,
		RawResponse:       c.Raw,
	}
	if c.Charge != nil {
		entry.AmountCaptured = gateway.MinorToMajor(c.Charge.AmountCapturedMinor)
		entry.AmountRefunded = gateway.MinorToMajor(c.Charge.AmountRefundedMinor)
		entry.Currency = strings.ToUpper(c.Charge.Currency)
		if c.Charge.ReceiptURL != "" {
			entry.ReceiptURL = c.Charge.ReceiptURL
		}
	}
	return entry
}

// DirectCharge is the legacy one-step response shape; all fields live at the
// top level.
type DirectCharge struct {
	ID                  string
	Captured            bool
	AmountMinor         int64
	AmountCapturedMinor int64
	AmountRefundedMinor int64
	Currency            string
	ReceiptEmail        string
	ReceiptNumber       string
	ReceiptURL          string
	FailureMessage      string
	Raw                 json.RawMessage
}

func (c *DirectCharge) Object() string {
	return ObjectCharge
}

func (c *DirectCharge) ChargeID() string {
	return c.ID
}

func (c *DirectCharge) Succeeded() bool {
	return c.Captured
}

func (c *DirectCharge) FailureReason() string {
	return c.FailureMessage
}

func (c *DirectCharge) ReceiptLink() string {
	if c.ReceiptURL != "" {
		return c.ReceiptURL
	}
	return DefaultReceiptURL
}

func (c *DirectCharge) ResponseLog(paymentRequestRef string) *checkoutmodel.ResponseLog {
	entry := &checkoutmodel.ResponseLog{
		Gateway:           "Stripe",
		PaymentRequestRef: paymentRequestRef,
		IsPaid:            c.Captured,
		ChargeID:          c.ID,
		Amount:            gateway.MinorToMajor(c.AmountMinor),
		AmountCaptured:    gateway.MinorToMajor(c.AmountCapturedMinor),
		AmountRefunded:    gateway.MinorToMajor(c.AmountRefundedMinor),
		ReceiptEmail:      c.ReceiptEmail,
		ReceiptNumber:     c.ReceiptNumber,
		Currency:          strings.ToUpper(c.Currency),
		ReceiptURL:        c.ReceiptLink(),
		RawResponse:       c.Raw,
	}
	return entry
}
