package checkout

import (
	"encoding/json"
	"time"
)

// Audit log statuses. A row that never reaches Completed is the implicit
// failure marker; nothing ever writes a terminal failure status.
const (
	StatusPending   = "Pending"
	StatusCompleted = "Completed"
)

// AuditLog is the per-attempt request log. One row per inbound payment
// submission, created at intake with status Pending.
type AuditLog struct {
	ID               int64           `gorm:"primaryKey"`
	RequestID        string          `gorm:"column:request_id;not null;uniqueIndex"`
	Service          string          `gorm:"column:service;not null;default:Stripe"`
	Status           string          `gorm:"column:status;default:Pending"`
	ReferenceDocType string          `gorm:"column:reference_doctype"`
	ReferenceDocName string          `gorm:"column:reference_docname;index"`
	Payload          json.RawMessage `gorm:"column:payload;type:jsonb"`
	CreatedAt        time.Time       `gorm:"column:created_at;default:now()"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;default:now()"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// ResponseLog is the normalized provider outcome, one row per attempt that
// reached the provider, keyed back to its audit log by request id. Amounts
// are stored in major units.
type ResponseLog struct {
	ID                int64           `gorm:"primaryKey"`
	Gateway           string          `gorm:"column:gateway;not null;default:Stripe"`
	RequestID         string          `gorm:"column:request_id;index"`
	PaymentRequestRef string          `gorm:"column:ref_to_payment_request;index"`
	IsPaid            bool            `gorm:"column:payment_stripe_is_paid"`
	ChargeID          string          `gorm:"column:payment_stripe_id"`
	Amount            float64         `gorm:"column:amount"`
	AmountCaptured    float64         `gorm:"column:amount_captured"`
	AmountRefunded    float64         `gorm:"column:amount_refunded"`
	ReceiptEmail      string          `gorm:"column:stripe_receipt_email"`
	ReceiptNumber     string          `gorm:"column:stripe_receipt_number"`
	Currency          string          `gorm:"column:stripe_currency"`
	ReceiptURL        string          `gorm:"column:stripe_receipt_url"`
	RawResponse       json.RawMessage `gorm:"column:stripe_response;type:jsonb"`
	CreatedAt         time.Time       `gorm:"column:created_at;default:now()"`
}

func (ResponseLog) TableName() string {
	return "response_logs"
}

// StoredCard records a payment method attached to a remote customer for
// reuse. Written once on first attachment, never updated by the charge flow.
type StoredCard struct {
	ID                    int64     `gorm:"primaryKey"`
	Party                 string    `gorm:"column:party;not null;index"`
	Email                 string    `gorm:"column:email"`
	Gateway               string    `gorm:"column:gateway;not null;default:Stripe"`
	IsDefault             bool      `gorm:"column:is_default;default:true"`
	StripeCustomerID      string    `gorm:"column:stripe_customer_id;not null"`
	StripePaymentMethodID string    `gorm:"column:stripe_payment_method_id;not null;uniqueIndex"`
	CardNumber            string    `gorm:"column:card_number"`
	ExpMonth              int       `gorm:"column:expiration_month"`
	ExpYear               int       `gorm:"column:expiration_year"`
	CardBrand             string    `gorm:"column:card_brand"`
	GatewaySettingName    string    `gorm:"column:gateway_setting_name"`
	CreatedAt             time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt             time.Time `gorm:"column:updated_at;default:now()"`
}

func (StoredCard) TableName() string {
	return "stored_cards"
}

// Account is the local party registry. Attachment is refused for payers
// whose order does not resolve to a known account.
type Account struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"column:name;not null;uniqueIndex"`
	Email     string    `gorm:"column:email"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
}

func (Account) TableName() string {
	return "accounts"
}
