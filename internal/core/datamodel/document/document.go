package document

import "time"

// Document statuses relevant to the payment flow. The document store owns
// the full lifecycle; this module only reads Status and drives the
// Requested -> Paid transition.
const (
	StatusRequested = "Requested"
	StatusPaid      = "Paid"
)

// Document is the referenced business document being paid (an invoice or
// payment request). The payment flow reads its identity and amount, writes
// SuccessRedirectURL after a captured charge and flips Status to Paid.
type Document struct {
	ID                 int64     `gorm:"primaryKey"`
	DocType            string    `gorm:"column:doctype;not null;uniqueIndex:idx_documents_type_name"`
	DocName            string    `gorm:"column:docname;not null;uniqueIndex:idx_documents_type_name"`
	Status             string    `gorm:"column:status;default:Requested"`
	Party              string    `gorm:"column:party"`
	PayerName          string    `gorm:"column:payer_name"`
	PayerEmail         string    `gorm:"column:payer_email"`
	Title              string    `gorm:"column:title"`
	Description        string    `gorm:"column:description"`
	GrandTotal         float64   `gorm:"column:grand_total"`
	Currency           string    `gorm:"column:currency"`
	PaymentGateway     string    `gorm:"column:payment_gateway"`
	SuccessRedirectURL string    `gorm:"column:success_redirect_url"`
	IsSubscription     bool      `gorm:"column:is_subscription;default:false"`
	PaymentPlan        string    `gorm:"column:payment_plan"`
	Recurrence         string    `gorm:"column:recurrence"`
	CreatedAt          time.Time `gorm:"column:created_at;default:now()"`
	UpdatedAt          time.Time `gorm:"column:updated_at;default:now()"`
}

func (Document) TableName() string {
	return "documents"
}

// Paid reports whether the document already completed a payment and carries
// the receipt URL to bounce the payer back to.
func (d *Document) Paid() bool {
	return d.Status == StatusPaid && d.SuccessRedirectURL != ""
}
