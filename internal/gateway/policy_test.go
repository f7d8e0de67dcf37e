package gateway_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	errors "github.com/Emolus-Dev/payments/internal"
	"github.com/Emolus-Dev/payments/internal/gateway"
)

func TestGateway(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Gateway Suite")
}

var _ = Describe("CurrencyPolicy", func() {
	Describe("ValidateTransactionCurrency", func() {
		It("accepts common supported currencies", func() {
			for _, code := range []string{"USD", "EUR", "GBP", "JPY", "IDR", "SGD"} {
				Expect(gateway.ValidateTransactionCurrency(code)).To(Succeed(), code)
			}
		})

		It("accepts lowercase input", func() {
			Expect(gateway.ValidateTransactionCurrency("usd")).To(Succeed())
		})

		It("rejects unsupported currencies with the currency named", func() {
			err := gateway.ValidateTransactionCurrency("XYZ")
			Expect(err).To(HaveOccurred())

			appErr, ok := errors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(errors.ErrCodeUnsupportedCurrency))
			Expect(appErr.Message).To(ContainSubstring("'XYZ'"))
		})

		It("rejects the empty string", func() {
			Expect(gateway.ValidateTransactionCurrency("")).To(HaveOccurred())
		})
	})

	Describe("ValidateMinimumAmount", func() {
		It("accepts amounts at the per-currency floor", func() {
			Expect(gateway.ValidateMinimumAmount("USD", 0.50)).To(Succeed())
			Expect(gateway.ValidateMinimumAmount("GBP", 0.30)).To(Succeed())
			Expect(gateway.ValidateMinimumAmount("JPY", 50)).To(Succeed())
		})

		It("rejects amounts below the per-currency floor", func() {
			err := gateway.ValidateMinimumAmount("USD", 0.49)
			Expect(err).To(HaveOccurred())

			appErr, ok := errors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(errors.ErrCodeAmountBelowMinimum))
		})

		It("accepts any positive amount for currencies without a floor", func() {
			Expect(gateway.ValidateMinimumAmount("IDR", 0.01)).To(Succeed())
		})

		It("rejects negative amounts regardless of currency", func() {
			Expect(gateway.ValidateMinimumAmount("IDR", -1)).To(HaveOccurred())
			Expect(gateway.ValidateMinimumAmount("USD", -0.01)).To(HaveOccurred())
		})

		It("is case insensitive on the currency code", func() {
			Expect(gateway.ValidateMinimumAmount("jpy", 49)).To(HaveOccurred())
			Expect(gateway.ValidateMinimumAmount("jpy", 50)).To(Succeed())
		})
	})

	Describe("MajorToMinor", func() {
		It("converts major units to cents", func() {
			Expect(gateway.MajorToMinor(20.00)).To(Equal(int64(2000)))
			Expect(gateway.MajorToMinor(0.50)).To(Equal(int64(50)))
		})

		It("rounds instead of truncating", func() {
			// 19.99 is not representable exactly in binary floating point
			Expect(gateway.MajorToMinor(19.99)).To(Equal(int64(1999)))
			Expect(gateway.MajorToMinor(0.1 + 0.2)).To(Equal(int64(30)))
		})

		It("round-trips with MinorToMajor", func() {
			for _, amount := range []float64{0.30, 0.50, 1.00, 19.99, 150.75} {
				Expect(gateway.MinorToMajor(gateway.MajorToMinor(amount))).To(Equal(amount))
			}
		})
	})
})
