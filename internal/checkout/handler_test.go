package checkout_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/Emolus-Dev/payments/internal"
	"github.com/Emolus-Dev/payments/internal/checkout"
)

type stubCheckoutService struct {
	result       *checkout.CheckoutResult
	err          error
	verifyResult *checkout.CheckoutResult
	pageContext  *checkout.CheckoutContext
	lastRequest  *checkout.MakePaymentRequest
}

func (s *stubCheckoutService) CreateRequest(_ context.Context, req *checkout.MakePaymentRequest) (*checkout.CheckoutResult, error) {
	s.lastRequest = req
	return s.result, s.err
}

func (s *stubCheckoutService) VerifyPayment(_, _ string) *checkout.CheckoutResult {
	return s.verifyResult
}

func (s *stubCheckoutService) PageContext(_ map[string]string, _ string, _ bool) (*checkout.CheckoutContext, *checkout.CheckoutResult, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	if s.verifyResult != nil {
		return nil, s.verifyResult, nil
	}
	return s.pageContext, nil, nil
}

var _ = Describe("CheckoutHandler", func() {
	var (
		service *stubCheckoutService
		handler *checkout.Handler
	)

	BeforeEach(func() {
		service = &stubCheckoutService{}
		handler = checkout.NewHandler(service, "")
	})

	Describe("MakePayment", func() {
		It("accepts a JSON body and returns the redirect", func() {
			service.result = &checkout.CheckoutResult{RedirectTo: "payment-success?doctype=PR&docname=PR-0001", Status: "Completed"}

			body := `{"stripe_token_id":"tok_visa","data":"{\"amount\":20,\"currency\":\"USD\",\"reference_docname\":\"PR-0001\"}"}`
			req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/make-payment", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			handler.MakePayment(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var result checkout.CheckoutResult
			Expect(json.Unmarshal(rec.Body.Bytes(), &result)).To(Succeed())
			Expect(result.RedirectTo).To(Equal("payment-success?doctype=PR&docname=PR-0001"))
			Expect(service.lastRequest.StripeTokenID).To(Equal("tok_visa"))
		})

		It("accepts an urlencoded form body", func() {
			service.result = &checkout.CheckoutResult{RedirectTo: "payment-failed", Status: "Pending"}

			form := url.Values{}
			form.Set("stripe_token_id", "tok_visa")
			form.Set("data", `{"amount":20,"currency":"USD","reference_docname":"PR-0001"}`)
			form.Set("save_payment_method", "OK")
			req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/make-payment", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()

			handler.MakePayment(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(service.lastRequest.SavePaymentMethod).To(Equal("OK"))
		})

		It("maps validation failures to 400", func() {
			service.err = apperrors.NewValidationError("invalid data payload", apperrors.ErrCodeValidationFailed)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/make-payment", strings.NewReader(`{"stripe_token_id":"tok_visa","data":"{}"}`))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			handler.MakePayment(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects an unparseable JSON body", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/make-payment", strings.NewReader("{not json"))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			handler.MakePayment(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("CheckoutPage", func() {
		It("returns the rendering context", func() {
			service.pageContext = &checkout.CheckoutContext{
				Amount:         "USD 20.00",
				PublishableKey: "pk_test_abc",
			}

			req := httptest.NewRequest(http.MethodGet, "/stripe_checkout?amount=20.00&currency=USD", nil)
			rec := httptest.NewRecorder()

			handler.CheckoutPage(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var pageContext checkout.CheckoutContext
			Expect(json.Unmarshal(rec.Body.Bytes(), &pageContext)).To(Succeed())
			Expect(pageContext.PublishableKey).To(Equal("pk_test_abc"))
		})

		It("returns the stored redirect for already-paid documents", func() {
			service.verifyResult = &checkout.CheckoutResult{RedirectTo: "https://pay.stripe.com/receipts/ch_123", Status: "Completed"}

			req := httptest.NewRequest(http.MethodGet, "/stripe_checkout", nil)
			rec := httptest.NewRecorder()

			handler.CheckoutPage(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var result checkout.CheckoutResult
			Expect(json.Unmarshal(rec.Body.Bytes(), &result)).To(Succeed())
			Expect(result.RedirectTo).To(Equal("https://pay.stripe.com/receipts/ch_123"))
		})

		It("maps missing display fields to 400", func() {
			service.err = apperrors.ErrMissingInformation

			req := httptest.NewRequest(http.MethodGet, "/stripe_checkout", nil)
			rec := httptest.NewRecorder()

			handler.CheckoutPage(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("VerifyPayment", func() {
		It("requires doctype and docname", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/checkout/verify-payment?doctype=PR", nil)
			rec := httptest.NewRecorder()

			handler.VerifyPayment(rec, req)

			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("reports Pending for unpaid documents", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/checkout/verify-payment?doctype=PR&docname=PR-0001", nil)
			rec := httptest.NewRecorder()

			handler.VerifyPayment(rec, req)

			Expect(rec.Code).To(Equal(http.StatusOK))
			var result checkout.CheckoutResult
			Expect(json.Unmarshal(rec.Body.Bytes(), &result)).To(Succeed())
			Expect(result.Status).To(Equal("Pending"))
		})
	})
})
