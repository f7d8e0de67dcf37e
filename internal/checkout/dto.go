package checkout

import (
	"encoding/json"
	"strings"

	errors "github.com/Emolus-Dev/payments/internal"
	"github.com/Emolus-Dev/payments/internal/core/common/validation"
)

// MakePaymentRequest is the inbound submission from the checkout page.
// Data carries the payer/reference payload as a JSON blob; ResultStripe
// carries the card metadata produced by the client-side tokenization step.
type MakePaymentRequest struct {
	StripeTokenID     string `json:"stripe_token_id"`
	Data              string `json:"data"`
	ReferenceDocType  string `json:"reference_doctype,omitempty"`
	ReferenceDocName  string `json:"reference_docname,omitempty"`
	SavePaymentMethod string `json:"save_payment_method,omitempty"`
	ResultStripe      string `json:"result_stripe,omitempty"`
}

// PaymentSubmission is the normalized per-attempt payload. It lives only for
// the duration of one attempt and is persisted only through the audit log.
type PaymentSubmission struct {
	Amount            float64 `json:"amount"`
	Currency          string  `json:"currency"`
	Title             string  `json:"title,omitempty"`
	Description       string  `json:"description,omitempty"`
	ReferenceDocType  string  `json:"reference_doctype"`
	ReferenceDocName  string  `json:"reference_docname"`
	PayerName         string  `json:"payer_name,omitempty"`
	PayerEmail        string  `json:"payer_email,omitempty"`
	OrderID           string  `json:"order_id,omitempty"`
	RedirectTo        string  `json:"redirect_to,omitempty"`
	RedirectMessage   string  `json:"redirect_message,omitempty"`
	StripeTokenID     string  `json:"stripe_token_id"`
	SavePaymentMethod string  `json:"-"`
}

// SaveCard reports whether the payer asked to store the card for reuse. The
// checkout page submits the literal "OK" when the box is ticked.
func (s *PaymentSubmission) SaveCard() bool {
	return s.SavePaymentMethod == "OK"
}

func (s *PaymentSubmission) Validate() error {
	validator := validation.NewValidator()

	validator.Field("amount", s.Amount).Required().Positive(errors.ErrCodeInvalidAmount)
	validator.Field("currency", s.Currency).Required().MinLength(3).MaxLength(3)
	validator.Field("stripe_token_id", s.StripeTokenID).Required()
	validator.Field("reference_docname", s.ReferenceDocName).Required()

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// CardMetadata mirrors the token object the client-side tokenization step
// returns; only the card display fields are read.
type CardMetadata struct {
	Token struct {
		Card struct {
			Last4    string `json:"last4"`
			ExpMonth int    `json:"exp_month"`
			ExpYear  int    `json:"exp_year"`
			Brand    string `json:"brand"`
		} `json:"card"`
	} `json:"token"`
}

// MaskedNumber renders the card number with all but the last four digits
// masked.
func (m *CardMetadata) MaskedNumber() string {
	return strings.Repeat("*", 12) + m.Token.Card.Last4
}

// HasCard reports whether the tokenization payload carried the card display
// fields. Submissions without them cannot produce a stored card row.
func (m *CardMetadata) HasCard() bool {
	return m.Token.Card.Last4 != ""
}

// ParseSubmission normalizes an inbound request into a PaymentSubmission
// plus the optional card metadata side payload. Absent optional fields
// default to empty.
func ParseSubmission(req *MakePaymentRequest) (*PaymentSubmission, *CardMetadata, error) {
	var sub PaymentSubmission
	if err := json.Unmarshal([]byte(req.Data), &sub); err != nil {
		return nil, nil, errors.NewValidationError("invalid data payload", errors.ErrCodeValidationFailed).WithCause(err)
	}

	sub.StripeTokenID = req.StripeTokenID
	sub.SavePaymentMethod = req.SavePaymentMethod
	if req.ReferenceDocType != "" {
		sub.ReferenceDocType = req.ReferenceDocType
	}
	if req.ReferenceDocName != "" {
		sub.ReferenceDocName = req.ReferenceDocName
	}
	if sub.OrderID == "" {
		sub.OrderID = sub.ReferenceDocName
	}

	card := &CardMetadata{}
	if req.ResultStripe != "" {
		if err := json.Unmarshal([]byte(req.ResultStripe), card); err != nil {
			return nil, nil, errors.NewValidationError("invalid card metadata payload", errors.ErrCodeValidationFailed).WithCause(err)
		}
	}

	return &sub, card, nil
}

// CheckoutResult is the terminal contract returned to the web caller.
type CheckoutResult struct {
	RedirectTo string `json:"redirect_to"`
	Status     string `json:"status"`
}

// CheckoutContext carries the fields the checkout page renders.
type CheckoutContext struct {
	Amount                string `json:"amount"`
	Title                 string `json:"title"`
	Description           string `json:"description"`
	ReferenceDocType      string `json:"reference_doctype"`
	ReferenceDocName      string `json:"reference_docname"`
	PayerName             string `json:"payer_name"`
	PayerEmail            string `json:"payer_email"`
	OrderID               string `json:"order_id"`
	Currency              string `json:"currency"`
	PublishableKey        string `json:"publishable_key"`
	HeaderImage           string `json:"header_img,omitempty"`
	IsTokenizationEnabled bool   `json:"is_tokenization_enabled"`
}
