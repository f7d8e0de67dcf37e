package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentCompleted = "payment.completed"
	EventTypePaymentFailed    = "payment.failed"
	EventTypeCardStored       = "payment.card_stored"
)

type PaymentCompletedEvent struct {
	BaseEvent
	ReferenceDocType string  `json:"reference_doctype"`
	ReferenceDocName string  `json:"reference_docname"`
	ChargeID         string  `json:"charge_id"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
	ReceiptURL       string  `json:"receipt_url"`
}

func NewPaymentCompletedEvent(docType, docName, chargeID string, amount float64, currency, receiptURL string) *PaymentCompletedEvent {
	return &PaymentCompletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentCompleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"reference_doctype": docType,
				"reference_docname": docName,
				"charge_id":         chargeID,
				"amount":            amount,
				"currency":          currency,
				"receipt_url":       receiptURL,
			},
		},
		ReferenceDocType: docType,
		ReferenceDocName: docName,
		ChargeID:         chargeID,
		Amount:           amount,
		Currency:         currency,
		ReceiptURL:       receiptURL,
	}
}

type PaymentFailedEvent struct {
	BaseEvent
	ReferenceDocType string  `json:"reference_doctype"`
	ReferenceDocName string  `json:"reference_docname"`
	Amount           float64 `json:"amount"`
	Currency         string  `json:"currency"`
	Reason           string  `json:"reason"`
}

func NewPaymentFailedEvent(docType, docName string, amount float64, currency, reason string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"reference_doctype": docType,
				"reference_docname": docName,
				"amount":            amount,
				"currency":          currency,
				"reason":            reason,
			},
		},
		ReferenceDocType: docType,
		ReferenceDocName: docName,
		Amount:           amount,
		Currency:         currency,
		Reason:           reason,
	}
}

type CardStoredEvent struct {
	BaseEvent
	Party            string `json:"party"`
	StripeCustomerID string `json:"stripe_customer_id"`
	CardBrand        string `json:"card_brand"`
}

func NewCardStoredEvent(party, customerID, brand string) *CardStoredEvent {
	return &CardStoredEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeCardStored,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"party":              party,
				"stripe_customer_id": customerID,
				"card_brand":         brand,
			},
		},
		Party:            party,
		StripeCustomerID: customerID,
		CardBrand:        brand,
	}
}
