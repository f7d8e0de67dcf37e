package checkout_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Emolus-Dev/payments/internal/checkout"
	checkoutmodel "github.com/Emolus-Dev/payments/internal/core/datamodel/checkout"
	documentmodel "github.com/Emolus-Dev/payments/internal/core/datamodel/document"
	gatewaymodel "github.com/Emolus-Dev/payments/internal/core/datamodel/gateway"
	"github.com/Emolus-Dev/payments/internal/core/events"
	"github.com/Emolus-Dev/payments/internal/document"
)

var _ = Describe("Reconciler", func() {
	var (
		provider     *mockProvider
		auditLogs    *mockAuditLogRepository
		responseLogs *mockResponseLogRepository
		docRepo      *mockDocumentRepository
		reconciler   *checkout.Reconciler
		ctx          context.Context
	)

	stalePending := func(chargeID string) {
		payload, _ := json.Marshal(map[string]interface{}{
			"amount":            20.00,
			"currency":          "USD",
			"reference_doctype": "Payment Request",
			"reference_docname": "PR-0001",
		})
		auditLogs.nextID++
		auditLogs.entries = append(auditLogs.entries, &checkoutmodel.AuditLog{
			ID:               auditLogs.nextID,
			RequestID:        "req-stale",
			Status:           checkoutmodel.StatusPending,
			ReferenceDocType: "Payment Request",
			ReferenceDocName: "PR-0001",
			Payload:          payload,
			CreatedAt:        time.Now().Add(-time.Hour),
		})
		if chargeID != "" {
			responseLogs.entries = append(responseLogs.entries, &checkoutmodel.ResponseLog{
				RequestID:         "req-stale",
				PaymentRequestRef: "PR-0001",
				ChargeID:          chargeID,
				Amount:            20.00,
				Currency:          "USD",
			})
		}
	}

	BeforeEach(func() {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		provider = newMockProvider()
		auditLogs = &mockAuditLogRepository{}
		responseLogs = &mockResponseLogRepository{}
		docRepo = &mockDocumentRepository{docs: map[string]*documentmodel.Document{
			docKey("Payment Request", "PR-0001"): {
				DocType:        "Payment Request",
				DocName:        "PR-0001",
				Status:         documentmodel.StatusRequested,
				Party:          "Aulia",
				PaymentGateway: "Stripe-default",
			},
		}}

		resolver := &mockGatewayResolver{settings: map[string]*gatewaymodel.Settings{
			"Stripe-default": {GatewayName: "default", SecretKey: "sk_test_abc"},
		}}

		reconciler = checkout.NewReconciler(
			&mockProviderFactory{provider: provider},
			resolver,
			auditLogs,
			responseLogs,
			document.NewService(docRepo, logger),
			events.NewEventBus(logger),
			logger,
		)
		ctx = context.Background()
	})

	It("replays the completion for a charge that was captured remotely", func() {
		stalePending("ch_stale")
		provider.remoteChargeStates["ch_stale"] = true

		reconciled, err := reconciler.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(reconciled).To(Equal(1))

		Expect(auditLogs.entries[0].Status).To(Equal(checkoutmodel.StatusCompleted))

		doc := docRepo.docs[docKey("Payment Request", "PR-0001")]
		Expect(doc.Status).To(Equal(documentmodel.StatusPaid))
		Expect(doc.SuccessRedirectURL).To(Equal("https://pay.stripe.com/receipts/ch_stale"))
	})

	It("resolves the charge by request id even when a later attempt logged against the same document", func() {
		stalePending("ch_stale")
		provider.remoteChargeStates["ch_stale"] = true

		// a newer failed attempt for the same document
		responseLogs.entries = append(responseLogs.entries, &checkoutmodel.ResponseLog{
			RequestID:         "req-retry",
			PaymentRequestRef: "PR-0001",
			ChargeID:          "ch_declined",
			Amount:            20.00,
			Currency:          "USD",
		})
		provider.remoteChargeStates["ch_declined"] = false

		reconciled, err := reconciler.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(reconciled).To(Equal(1))
		Expect(auditLogs.entries[0].Status).To(Equal(checkoutmodel.StatusCompleted))
	})

	It("leaves attempts pending when the provider reports them unpaid", func() {
		stalePending("ch_stale")
		provider.remoteChargeStates["ch_stale"] = false

		reconciled, err := reconciler.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(reconciled).To(BeZero())
		Expect(auditLogs.entries[0].Status).To(Equal(checkoutmodel.StatusPending))
	})

	It("skips attempts that never produced a charge", func() {
		stalePending("")

		reconciled, err := reconciler.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(reconciled).To(BeZero())
	})

	It("ignores attempts younger than the grace period", func() {
		stalePending("ch_stale")
		auditLogs.entries[0].CreatedAt = time.Now()
		provider.remoteChargeStates["ch_stale"] = true

		reconciled, err := reconciler.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(reconciled).To(BeZero())
	})
})
