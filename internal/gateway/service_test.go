package gateway_test

import (
	"context"
	"errors"
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/Emolus-Dev/payments/internal"
	gatewaymodel "github.com/Emolus-Dev/payments/internal/core/datamodel/gateway"
	"github.com/Emolus-Dev/payments/internal/gateway"
)

// Mock repository for testing
type mockSettingsRepository struct {
	settings    map[string]*gatewaymodel.Settings
	controllers map[string]string
	saveError   error
	savedNames  []string
}

func newMockSettingsRepository() *mockSettingsRepository {
	return &mockSettingsRepository{
		settings:    make(map[string]*gatewaymodel.Settings),
		controllers: make(map[string]string),
	}
}

func (m *mockSettingsRepository) GetByName(name string) (*gatewaymodel.Settings, error) {
	s, ok := m.settings[name]
	if !ok {
		return nil, errors.New("settings not found")
	}
	return s, nil
}

func (m *mockSettingsRepository) Save(settings *gatewaymodel.Settings) error {
	if m.saveError != nil {
		return m.saveError
	}
	m.settings[settings.GatewayName] = settings
	m.savedNames = append(m.savedNames, settings.GatewayName)
	return nil
}

func (m *mockSettingsRepository) EnsureGateway(name, controller string) error {
	m.controllers[name] = controller
	return nil
}

func (m *mockSettingsRepository) ControllerFor(gatewayName string) (string, error) {
	controller, ok := m.controllers[gatewayName]
	if !ok {
		return "", errors.New("gateway not found")
	}
	return controller, nil
}

type mockVerifier struct {
	err    error
	probed []string
}

func (m *mockVerifier) VerifyCredentials(_ context.Context, secretKey string) error {
	m.probed = append(m.probed, secretKey)
	return m.err
}

var _ = Describe("GatewayService", func() {
	var (
		repo     *mockSettingsRepository
		verifier *mockVerifier
		service  *gateway.Service
		ctx      context.Context
	)

	BeforeEach(func() {
		repo = newMockSettingsRepository()
		verifier = &mockVerifier{}
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		service = gateway.NewService(repo, verifier, logger)
		ctx = context.Background()
	})

	Describe("SaveSettings", func() {
		It("probes credentials and persists when the probe passes", func() {
			err := service.SaveSettings(ctx, &gatewaymodel.Settings{
				GatewayName:    "default",
				PublishableKey: "pk_test_abc",
				SecretKey:      "sk_test_abc",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(verifier.probed).To(Equal([]string{"sk_test_abc"}))
			Expect(repo.savedNames).To(Equal([]string{"default"}))
			Expect(repo.controllers).To(HaveKeyWithValue("Stripe-default", "default"))
		})

		It("rejects the save when the probe fails", func() {
			verifier.err = errors.New("401 from provider")

			err := service.SaveSettings(ctx, &gatewaymodel.Settings{
				GatewayName:    "default",
				PublishableKey: "pk_test_abc",
				SecretKey:      "sk_bad",
			})
			Expect(err).To(HaveOccurred())

			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(apperrors.ErrCodeInvalidCredentials))
			Expect(repo.savedNames).To(BeEmpty())
		})

		It("skips the probe when SkipCredentialCheck is set", func() {
			verifier.err = errors.New("401 from provider")

			err := service.SaveSettings(ctx, &gatewaymodel.Settings{
				GatewayName:         "default",
				PublishableKey:      "pk_test_abc",
				SecretKey:           "sk_test_abc",
				SkipCredentialCheck: true,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(verifier.probed).To(BeEmpty())
			Expect(repo.savedNames).To(Equal([]string{"default"}))
		})

		It("skips the probe when either key is missing", func() {
			err := service.SaveSettings(ctx, &gatewaymodel.Settings{
				GatewayName: "default",
				SecretKey:   "sk_test_abc",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(verifier.probed).To(BeEmpty())
		})
	})

	Describe("ControllerSettings", func() {
		BeforeEach(func() {
			Expect(service.SaveSettings(ctx, &gatewaymodel.Settings{
				GatewayName:    "default",
				PublishableKey: "pk_test_abc",
				SecretKey:      "sk_test_abc",
			})).To(Succeed())
		})

		It("resolves settings through the gateway registry", func() {
			settings, err := service.ControllerSettings("Stripe-default")
			Expect(err).NotTo(HaveOccurred())
			Expect(settings.GatewayName).To(Equal("default"))
		})

		It("returns not found for unknown gateway names", func() {
			_, err := service.ControllerSettings("Stripe-missing")
			Expect(err).To(HaveOccurred())

			appErr, ok := apperrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Code).To(Equal(apperrors.ErrCodeGatewayNotFound))
		})
	})

	Describe("PaymentURL", func() {
		It("builds the checkout page URL with encoded params", func() {
			u := service.PaymentURL("https://pay.example.com/", map[string]string{
				"amount":   "20.00",
				"currency": "USD",
				"title":    "Invoice INV-0001",
			})
			Expect(u).To(HavePrefix("https://pay.example.com/stripe_checkout?"))
			Expect(u).To(ContainSubstring("amount=20.00"))
			Expect(u).To(ContainSubstring("title=Invoice+INV-0001"))
		})
	})
})
