package checkout

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	checkoutmodel "github.com/Emolus-Dev/payments/internal/core/datamodel/checkout"
	"github.com/Emolus-Dev/payments/internal/core/events"
)

// Reconciler replays the document side effects for attempts whose charge
// was captured remotely but whose local completion never landed, e.g. when
// the process died between the charge call and the mark-as-paid write.
type Reconciler struct {
	providers    ProviderFactory
	gateways     GatewayResolver
	auditLogs    AuditLogRepository
	responseLogs ResponseLogRepository
	documents    DocumentAPI
	eventBus     *events.EventBus
	logger       *slog.Logger

	// Pending rows younger than GracePeriod are still in-flight attempts
	// and are left alone.
	GracePeriod time.Duration
	BatchSize   int
}

func NewReconciler(
	providers ProviderFactory,
	gateways GatewayResolver,
	auditLogs AuditLogRepository,
	responseLogs ResponseLogRepository,
	documents DocumentAPI,
	eventBus *events.EventBus,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		providers:    providers,
		gateways:     gateways,
		auditLogs:    auditLogs,
		responseLogs: responseLogs,
		documents:    documents,
		eventBus:     eventBus,
		logger:       logger,
		GracePeriod:  15 * time.Minute,
		BatchSize:    100,
	}
}

// Run processes one batch of stale Pending audit-log rows and returns how
// many were reconciled to Completed.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-r.GracePeriod)
	entries, err := r.auditLogs.ListPendingBefore(cutoff, r.BatchSize)
	if err != nil {
		return 0, err
	}

	reconciled := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return reconciled, err
		}
		if r.reconcile(ctx, entry) {
			reconciled++
		}
	}

	r.logger.Info("reconcile pass finished",
		"inspected", len(entries),
		"reconciled", reconciled)
	return reconciled, nil
}

// reconcile resolves one stale Pending row. A charge id is looked up from
// the attempt's response log; when the provider reports the charge paid, the
// completion that never landed is replayed.
func (r *Reconciler) reconcile(ctx context.Context, entry *checkoutmodel.AuditLog) bool {
	log := r.logger.With(
		"request_id", entry.RequestID,
		"reference_docname", entry.ReferenceDocName)

	response, err := r.responseLogs.GetByRequestID(entry.RequestID)
	if err != nil || response == nil || response.ChargeID == "" {
		log.Warn("no charge recorded for pending attempt, leaving as-is", "error", err)
		return false
	}

	var sub PaymentSubmission
	if err := json.Unmarshal(entry.Payload, &sub); err != nil {
		log.Error("unreadable audit log payload", "error", err)
		return false
	}

	doc, err := r.documents.Get(entry.ReferenceDocType, entry.ReferenceDocName)
	if err != nil {
		log.Error("reference document not found", "error", err)
		return false
	}

	settings, err := r.gateways.ControllerSettings(doc.PaymentGateway)
	if err != nil {
		log.Error("gateway settings not resolved", "error", err)
		return false
	}

	paid, receiptURL, err := r.providers.ClientFor(settings).ChargeStatus(ctx, response.ChargeID)
	if err != nil {
		log.Error("charge status lookup failed", "charge_id", response.ChargeID, "error", err)
		return false
	}
	if !paid {
		log.Info("charge not captured remotely, leaving pending", "charge_id", response.ChargeID)
		return false
	}

	if receiptURL == "" {
		receiptURL = DefaultReceiptURL
	}

	if err := r.auditLogs.MarkCompleted(entry.ID); err != nil {
		log.Error("failed to mark audit log completed", "error", err)
		return false
	}
	if err := r.documents.SetSuccessRedirectURL(entry.ReferenceDocType, entry.ReferenceDocName, receiptURL); err != nil {
		log.Error("failed to store success redirect url", "error", err)
	}
	if err := r.documents.MarkAsPaid(ctx, entry.ReferenceDocType, entry.ReferenceDocName); err != nil {
		log.Error("failed to mark document as paid", "error", err)
		return false
	}

	r.eventBus.Publish(ctx, events.NewPaymentCompletedEvent(
		entry.ReferenceDocType, entry.ReferenceDocName,
		response.ChargeID, response.Amount, response.Currency, receiptURL))

	log.Info("stale pending attempt reconciled", "charge_id", response.ChargeID)
	return true
}
