package checkout_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Emolus-Dev/payments/internal/checkout"
)

var _ = Describe("ChargeOutcome", func() {
	Describe("IntentCharge", func() {
		It("extracts capture details from the nested charge", func() {
			outcome := &checkout.IntentCharge{
				ID:           "pi_123",
				Status:       "succeeded",
				AmountMinor:  2000,
				ReceiptEmail: "aulia@mail.com",
				Charge: &checkout.ChargeDetails{
					AmountCapturedMinor: 2000,
					AmountRefundedMinor: 0,
					Currency:            "usd",
					ReceiptURL:          "https://pay.stripe.com/receipts/pi_123",
				},
				Raw: json.RawMessage(`{"id":"pi_123"}`),
			}

			Expect(outcome.Object()).To(Equal("payment_intent"))
			Expect(outcome.Succeeded()).To(BeTrue())
			Expect(outcome.ReceiptLink()).To(Equal("https://pay.stripe.com/receipts/pi_123"))

			entry := outcome.ResponseLog("PR-0001")
			Expect(entry.IsPaid).To(BeTrue())
			Expect(entry.ChargeID).To(Equal("pi_123"))
			Expect(entry.Amount).To(Equal(20.00))
			Expect(entry.AmountCaptured).To(Equal(20.00))
			Expect(entry.Currency).To(Equal("USD"))
			Expect(entry.ReceiptURL).To(Equal("https://pay.stripe.com/receipts/pi_123"))
			Expect(entry.PaymentRequestRef).To(Equal("PR-0001"))
			Expect(string(entry.RawResponse)).To(Equal(`{"id":"pi_123"}`))
		})

		It("is not succeeded for any non-terminal status", func() {
			for _, status := range []string{"requires_action", "requires_payment_method", "processing", "canceled"} {
				outcome := &checkout.IntentCharge{ID: "pi_123", Status: status}
				Expect(outcome.Succeeded()).To(BeFalse(), status)
			}
		})

		It("falls back to the default receipt link without a nested charge", func() {
			outcome := &checkout.IntentCharge{ID: "pi_123", Status: "succeeded"}
			Expect(outcome.ReceiptLink()).To(Equal("/stripe/payment-ok"))

			entry := outcome.ResponseLog("PR-0001")
			Expect(entry.ReceiptURL).To(Equal("/stripe/payment-ok"))
			Expect(entry.Currency).To(BeEmpty())
		})
	})

	Describe("DirectCharge", func() {
		It("extracts everything from the top level", func() {
			outcome := &checkout.DirectCharge{
				ID:                  "ch_123",
				Captured:            true,
				AmountMinor:         2000,
				AmountCapturedMinor: 2000,
				AmountRefundedMinor: 0,
				Currency:            "usd",
				ReceiptEmail:        "aulia@mail.com",
				ReceiptNumber:       "1234-5678",
				ReceiptURL:          "https://pay.stripe.com/receipts/ch_123",
			}

			Expect(outcome.Object()).To(Equal("charge"))
			Expect(outcome.Succeeded()).To(BeTrue())

			entry := outcome.ResponseLog("PR-0001")
			Expect(entry.IsPaid).To(BeTrue())
			Expect(entry.ChargeID).To(Equal("ch_123"))
			Expect(entry.Amount).To(Equal(20.00))
			Expect(entry.AmountCaptured).To(Equal(20.00))
			Expect(entry.Currency).To(Equal("USD"))
			Expect(entry.ReceiptNumber).To(Equal("1234-5678"))
		})

		It("treats an uncaptured charge as failed regardless of other fields", func() {
			outcome := &checkout.DirectCharge{
				ID:             "ch_declined",
				Captured:       false,
				AmountMinor:    2000,
				FailureMessage: "Your card was declined.",
			}
			Expect(outcome.Succeeded()).To(BeFalse())
			Expect(outcome.FailureReason()).To(Equal("Your card was declined."))
			Expect(outcome.ResponseLog("PR-0001").IsPaid).To(BeFalse())
		})
	})
})

var _ = Describe("ParseSubmission", func() {
	It("normalizes the data payload and token into one submission", func() {
		sub, card, err := checkout.ParseSubmission(&checkout.MakePaymentRequest{
			StripeTokenID:     "tok_visa",
			Data:              `{"amount":20,"currency":"USD","reference_doctype":"Payment Request","reference_docname":"PR-0001"}`,
			SavePaymentMethod: "OK",
			ResultStripe:      `{"token":{"card":{"last4":"4242","exp_month":12,"exp_year":2030,"brand":"Visa"}}}`,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(sub.StripeTokenID).To(Equal("tok_visa"))
		Expect(sub.Amount).To(Equal(20.00))
		Expect(sub.SaveCard()).To(BeTrue())
		Expect(sub.OrderID).To(Equal("PR-0001"), "order id defaults to the document name")
		Expect(card.Token.Card.Last4).To(Equal("4242"))
		Expect(card.MaskedNumber()).To(Equal("************4242"))
	})

	It("prefers top-level references over the data payload", func() {
		sub, _, err := checkout.ParseSubmission(&checkout.MakePaymentRequest{
			StripeTokenID:    "tok_visa",
			Data:             `{"amount":20,"currency":"USD","reference_doctype":"Old","reference_docname":"OLD-1"}`,
			ReferenceDocType: "Payment Request",
			ReferenceDocName: "PR-0001",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(sub.ReferenceDocType).To(Equal("Payment Request"))
		Expect(sub.ReferenceDocName).To(Equal("PR-0001"))
	})

	It("does not treat other save markers as opt-in", func() {
		sub, _, err := checkout.ParseSubmission(&checkout.MakePaymentRequest{
			StripeTokenID:     "tok_visa",
			Data:              `{"amount":20,"currency":"USD","reference_docname":"PR-0001"}`,
			SavePaymentMethod: "yes",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(sub.SaveCard()).To(BeFalse())
	})
})
