package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	errors "github.com/Emolus-Dev/payments/internal"
	"github.com/Emolus-Dev/payments/internal/core/common/validation"
	checkoutmodel "github.com/Emolus-Dev/payments/internal/core/datamodel/checkout"
	documentmodel "github.com/Emolus-Dev/payments/internal/core/datamodel/document"
	gatewaymodel "github.com/Emolus-Dev/payments/internal/core/datamodel/gateway"
	"github.com/Emolus-Dev/payments/internal/core/events"
	"github.com/Emolus-Dev/payments/internal/gateway"
)

// Customer is a provider-owned customer record.
type Customer struct {
	ID    string
	Email string
}

// PaymentMethod is a provider-owned payment method record.
type PaymentMethod struct {
	ID string
}

// IntentChargeParams are the inputs of a two-step intent-based charge with
// immediate confirmation.
type IntentChargeParams struct {
	CustomerID      string
	PaymentMethodID string
	AmountMinor     int64
	Currency        string
	Description     string
	ReceiptEmail    string
	IdempotencyKey  string
}

// DirectChargeParams are the inputs of a legacy one-step charge against a
// raw token.
type DirectChargeParams struct {
	Token          string
	AmountMinor    int64
	Currency       string
	Description    string
	ReceiptEmail   string
	IdempotencyKey string
}

// ProviderAPI is the remote provider surface the checkout flow consumes.
type ProviderAPI interface {
	FindCustomerByEmail(ctx context.Context, email string) (*Customer, error)
	CreateCustomer(ctx context.Context, email, name, description string) (*Customer, error)
	CreatePaymentMethodFromToken(ctx context.Context, token string) (*PaymentMethod, error)
	ListPaymentMethods(ctx context.Context, customerID string) ([]PaymentMethod, error)
	AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) error
	CreateIntentCharge(ctx context.Context, params IntentChargeParams) (*IntentCharge, error)
	CreateDirectCharge(ctx context.Context, params DirectChargeParams) (*DirectCharge, error)
	ChargeStatus(ctx context.Context, chargeID string) (paid bool, receiptURL string, err error)
}

// ProviderFactory builds a provider client for one gateway configuration.
// Credentials travel with the client; nothing reads them ambiently.
type ProviderFactory interface {
	ClientFor(settings *gatewaymodel.Settings) ProviderAPI
}

// AuditLogRepository persists per-attempt request log rows.
type AuditLogRepository interface {
	Create(entry *checkoutmodel.AuditLog) error
	MarkCompleted(id int64) error
	GetByRequestID(requestID string) (*checkoutmodel.AuditLog, error)
	ListPendingBefore(cutoff time.Time, limit int) ([]*checkoutmodel.AuditLog, error)
}

// ResponseLogRepository persists normalized provider responses.
type ResponseLogRepository interface {
	Create(entry *checkoutmodel.ResponseLog) error
	GetByRequestID(requestID string) (*checkoutmodel.ResponseLog, error)
}

// CardRepository persists attached cards for reuse.
type CardRepository interface {
	Create(card *checkoutmodel.StoredCard) error
}

// AccountRepository is the local party registry.
type AccountRepository interface {
	Exists(name string) (bool, error)
}

// DocumentAPI is the business-document collaborator consumed by the flow.
type DocumentAPI interface {
	Get(docType, docName string) (*documentmodel.Document, error)
	PartyFor(orderID string) (string, error)
	SetSuccessRedirectURL(docType, docName, redirectURL string) error
	MarkAsPaid(ctx context.Context, docType, docName string) error
	OnPaymentAuthorized(ctx context.Context, docType, docName, status string) (string, error)
}

// GatewayResolver resolves the gateway settings controlling a document's
// payment gateway name.
type GatewayResolver interface {
	ControllerSettings(gatewayName string) (*gatewaymodel.Settings, error)
}

// Service drives one payment submission end to end: intake, optional
// payment-method attachment, exactly one charge call, response
// reconciliation and the final redirect.
type Service struct {
	providers    ProviderFactory
	gateways     GatewayResolver
	auditLogs    AuditLogRepository
	responseLogs ResponseLogRepository
	cards        CardRepository
	accounts     AccountRepository
	documents    DocumentAPI
	eventBus     *events.EventBus
	logger       *slog.Logger
}

func NewService(
	providers ProviderFactory,
	gateways GatewayResolver,
	auditLogs AuditLogRepository,
	responseLogs ResponseLogRepository,
	cards CardRepository,
	accounts AccountRepository,
	documents DocumentAPI,
	eventBus *events.EventBus,
	logger *slog.Logger,
) *Service {
	return &Service{
		providers:    providers,
		gateways:     gateways,
		auditLogs:    auditLogs,
		responseLogs: responseLogs,
		cards:        cards,
		accounts:     accounts,
		documents:    documents,
		eventBus:     eventBus,
		logger:       logger,
	}
}

// attempt is the request-scoped state threaded through one submission.
type attempt struct {
	submission      *PaymentSubmission
	card            *CardMetadata
	settings        *gatewaymodel.Settings
	provider        ProviderAPI
	auditLog        *checkoutmodel.AuditLog
	customer        *Customer
	paymentMethod   *PaymentMethod
	outcome         ChargeOutcome
	statusChangedTo string
	receiptURL      string
}

// CreateRequest runs the full charge pipeline for one submission. Validation
// failures surface as an error before any remote call; once the pipeline is
// entered the payer always receives a redirect, never an error.
func (s *Service) CreateRequest(ctx context.Context, req *MakePaymentRequest) (result *CheckoutResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic during payment request", "panic", r)
			result, err = s.serverErrorResult(), nil
		}
	}()

	sub, card, parseErr := ParseSubmission(req)
	if parseErr != nil {
		return nil, parseErr
	}

	if validateErr := sub.Validate(); validateErr != nil {
		return nil, validateErr
	}
	if appErr := gateway.ValidateTransactionCurrency(sub.Currency); appErr != nil {
		return nil, appErr
	}
	if appErr := gateway.ValidateMinimumAmount(sub.Currency, sub.Amount); appErr != nil {
		return nil, appErr
	}

	doc, docErr := s.documents.Get(sub.ReferenceDocType, sub.ReferenceDocName)
	if docErr != nil {
		s.logger.Error("reference document not found",
			"reference_doctype", sub.ReferenceDocType,
			"reference_docname", sub.ReferenceDocName,
			"error", docErr)
		return s.serverErrorResult(), nil
	}

	settings, settingsErr := s.gateways.ControllerSettings(doc.PaymentGateway)
	if settingsErr != nil {
		s.logger.Error("gateway settings not resolved",
			"payment_gateway", doc.PaymentGateway,
			"reference_docname", sub.ReferenceDocName,
			"error", settingsErr)
		return s.serverErrorResult(), nil
	}

	auditLog, auditErr := s.openAuditLog(sub)
	if auditErr != nil {
		s.logger.Error("failed to create audit log entry",
			"reference_docname", sub.ReferenceDocName,
			"error", auditErr)
		return s.serverErrorResult(), nil
	}

	a := &attempt{
		submission: sub,
		card:       card,
		settings:   settings,
		provider:   s.providers.ClientFor(settings),
		auditLog:   auditLog,
	}

	s.executeCharge(ctx, a)
	s.saveProviderResponse(ctx, a)

	return s.finalizeRequest(ctx, a), nil
}

// openAuditLog writes the Pending audit-log row for one attempt.
func (s *Service) openAuditLog(sub *PaymentSubmission) (*checkoutmodel.AuditLog, error) {
	payload, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize submission: %w", err)
	}

	entry := &checkoutmodel.AuditLog{
		RequestID:        uuid.New().String(),
		Service:          "Stripe",
		Status:           checkoutmodel.StatusPending,
		ReferenceDocType: sub.ReferenceDocType,
		ReferenceDocName: sub.ReferenceDocName,
		Payload:          payload,
	}
	if err := s.auditLogs.Create(entry); err != nil {
		return nil, err
	}

	s.logger.Info("audit log entry created",
		"request_id", entry.RequestID,
		"reference_docname", sub.ReferenceDocName)
	return entry, nil
}

// executeCharge performs exactly one remote charge call. When the payer
// asked to save the card and attachment resolved a customer and payment
// method, the intent path is taken; otherwise the legacy one-step charge.
// Remote failures are logged and recorded on the attempt, never returned.
func (s *Service) executeCharge(ctx context.Context, a *attempt) {
	sub := a.submission

	if sub.SaveCard() {
		attached := s.attachPaymentMethod(ctx, a)

		if attached && a.customer != nil && a.paymentMethod != nil {
			intent, err := a.provider.CreateIntentCharge(ctx, IntentChargeParams{
				CustomerID:      a.customer.ID,
				PaymentMethodID: a.paymentMethod.ID,
				AmountMinor:     gateway.MajorToMinor(sub.Amount),
				Currency:        sub.Currency,
				Description:     sub.Description,
				ReceiptEmail:    sub.PayerEmail,
				IdempotencyKey:  idempotencyKey(a.auditLog),
			})
			if err != nil {
				s.logger.Error("stripe payment intent failed",
					"reference_docname", sub.ReferenceDocName,
					"error", err)
				return
			}
			a.outcome = intent
			s.recordChargeResult(a)
			return
		}

		s.logger.Warn("payment method not attached, falling back to one-step charge",
			"reference_docname", sub.ReferenceDocName)
	}

	charge, err := a.provider.CreateDirectCharge(ctx, DirectChargeParams{
		Token:          sub.StripeTokenID,
		AmountMinor:    gateway.MajorToMinor(sub.Amount),
		Currency:       sub.Currency,
		Description:    sub.Description,
		ReceiptEmail:   sub.PayerEmail,
		IdempotencyKey: idempotencyKey(a.auditLog),
	})
	if err != nil {
		s.logger.Error("stripe charge failed",
			"reference_docname", sub.ReferenceDocName,
			"error", err)
		return
	}
	a.outcome = charge
	s.recordChargeResult(a)
}

// recordChargeResult flips the audit log to Completed on a successful
// outcome. Failures leave the row Pending and are only logged.
func (s *Service) recordChargeResult(a *attempt) {
	if a.outcome.Succeeded() {
		if err := s.auditLogs.MarkCompleted(a.auditLog.ID); err != nil {
			s.logger.Error("failed to mark audit log completed",
				"request_id", a.auditLog.RequestID,
				"error", err)
		}
		a.auditLog.Status = checkoutmodel.StatusCompleted
		a.statusChangedTo = checkoutmodel.StatusCompleted
		return
	}

	s.logger.Error("stripe payment not completed",
		"reference_docname", a.submission.ReferenceDocName,
		"charge_id", a.outcome.ChargeID(),
		"failure_message", a.outcome.FailureReason())
}

// attachPaymentMethod binds the tokenized card to a remote customer for
// reuse. It fails closed: every failure path logs and returns false so the
// caller can fall back to the one-step charge.
func (s *Service) attachPaymentMethod(ctx context.Context, a *attempt) bool {
	sub := a.submission

	if !validation.IsValidEmail(sub.PayerEmail) {
		s.logger.Warn("payer email failed validation, skipping attachment",
			"reference_docname", sub.ReferenceDocName)
		return false
	}

	if !a.card.HasCard() {
		s.logger.Warn("no card metadata in submission, skipping attachment",
			"reference_docname", sub.ReferenceDocName)
		return false
	}

	party, err := s.documents.PartyFor(sub.OrderID)
	if err != nil || party == "" {
		s.logger.Warn("no party resolved for order, skipping attachment",
			"order_id", sub.OrderID,
			"error", err)
		return false
	}

	exists, err := s.accounts.Exists(party)
	if err != nil || !exists {
		s.logger.Warn("no local account for party, skipping attachment",
			"party", party,
			"error", err)
		return false
	}

	customer, err := a.provider.FindCustomerByEmail(ctx, sub.PayerEmail)
	if err != nil {
		s.logger.Error("stripe customer lookup failed",
			"reference_docname", sub.ReferenceDocName,
			"error", err)
		return false
	}
	if customer == nil {
		customer, err = a.provider.CreateCustomer(ctx, sub.PayerEmail, party, "Customer created from the payments checkout")
		if err != nil {
			s.logger.Error("stripe customer create failed",
				"reference_docname", sub.ReferenceDocName,
				"error", err)
			return false
		}
	}

	paymentMethod, err := a.provider.CreatePaymentMethodFromToken(ctx, sub.StripeTokenID)
	if err != nil {
		s.logger.Error("stripe payment method create failed",
			"reference_docname", sub.ReferenceDocName,
			"error", err)
		return false
	}

	a.customer = customer
	a.paymentMethod = paymentMethod

	alreadyAttached := s.isPaymentMethodAttached(ctx, a.provider, paymentMethod.ID, customer.ID)
	if alreadyAttached {
		s.logger.Info("payment method already attached to customer",
			"stripe_customer_id", customer.ID,
			"stripe_payment_method_id", paymentMethod.ID)
		return true
	}

	if err := a.provider.AttachPaymentMethod(ctx, paymentMethod.ID, customer.ID); err != nil {
		s.logger.Error("stripe payment method attach failed",
			"reference_docname", sub.ReferenceDocName,
			"error", err)
		return false
	}

	card := &checkoutmodel.StoredCard{
		Party:                 party,
		Email:                 sub.PayerEmail,
		Gateway:               "Stripe",
		IsDefault:             true,
		StripeCustomerID:      customer.ID,
		StripePaymentMethodID: paymentMethod.ID,
		CardNumber:            a.card.MaskedNumber(),
		ExpMonth:              a.card.Token.Card.ExpMonth,
		ExpYear:               a.card.Token.Card.ExpYear,
		CardBrand:             a.card.Token.Card.Brand,
		GatewaySettingName:    a.settings.GatewayName,
	}
	if err := s.cards.Create(card); err != nil {
		s.logger.Error("failed to persist stored card",
			"party", party,
			"error", err)
		return false
	}

	s.eventBus.Publish(ctx, events.NewCardStoredEvent(party, customer.ID, card.CardBrand))

	s.logger.Info("payment method attached and card stored",
		"party", party,
		"stripe_customer_id", customer.ID)
	return true
}

// isPaymentMethodAttached checks the customer's existing payment methods for
// the given id. Lookup failures count as not attached so the flow proceeds
// to an attach call.
func (s *Service) isPaymentMethodAttached(ctx context.Context, provider ProviderAPI, paymentMethodID, customerID string) bool {
	methods, err := provider.ListPaymentMethods(ctx, customerID)
	if err != nil {
		s.logger.Error("stripe payment method list failed",
			"stripe_customer_id", customerID,
			"error", err)
		return false
	}
	for _, m := range methods {
		if m.ID == paymentMethodID {
			return true
		}
	}
	return false
}

// saveProviderResponse persists the normalized response-log row and, on a
// captured charge, drives the document side effects. Returns the receipt URL
// or the failure sentinel.
func (s *Service) saveProviderResponse(ctx context.Context, a *attempt) string {
	sub := a.submission

	if a.outcome == nil {
		s.logger.Error("no charge object to persist, treating attempt as failed",
			"reference_docname", sub.ReferenceDocName)
		s.eventBus.Publish(ctx, events.NewPaymentFailedEvent(
			sub.ReferenceDocType, sub.ReferenceDocName, sub.Amount, sub.Currency, "no provider response"))
		return RedirectPaymentFailed
	}

	entry := a.outcome.ResponseLog(sub.ReferenceDocName)
	entry.RequestID = a.auditLog.RequestID
	if err := s.responseLogs.Create(entry); err != nil {
		s.logger.Error("failed to persist response log",
			"reference_docname", sub.ReferenceDocName,
			"charge_id", a.outcome.ChargeID(),
			"error", err)
		return RedirectPaymentFailed
	}

	if !a.outcome.Succeeded() {
		s.eventBus.Publish(ctx, events.NewPaymentFailedEvent(
			sub.ReferenceDocType, sub.ReferenceDocName, sub.Amount, sub.Currency, a.outcome.FailureReason()))
		return RedirectPaymentFailed
	}

	receiptURL := a.outcome.ReceiptLink()
	a.receiptURL = receiptURL

	if err := s.documents.SetSuccessRedirectURL(sub.ReferenceDocType, sub.ReferenceDocName, receiptURL); err != nil {
		s.logger.Error("failed to store success redirect url",
			"reference_docname", sub.ReferenceDocName,
			"error", err)
	}

	if err := s.documents.MarkAsPaid(ctx, sub.ReferenceDocType, sub.ReferenceDocName); err != nil {
		s.logger.Error("failed to mark document as paid",
			"reference_docname", sub.ReferenceDocName,
			"error", err)
	}

	s.eventBus.Publish(ctx, events.NewPaymentCompletedEvent(
		sub.ReferenceDocType, sub.ReferenceDocName, a.outcome.ChargeID(), entry.Amount, entry.Currency, receiptURL))

	return receiptURL
}

// finalizeRequest computes the final redirect for the payer's browser,
// merging the completion state with caller-supplied redirect hints.
func (s *Service) finalizeRequest(ctx context.Context, a *attempt) *CheckoutResult {
	sub := a.submission
	redirectTo := sub.RedirectTo
	redirectMessage := sub.RedirectMessage
	status := a.auditLog.Status

	var redirectURL string
	if a.statusChangedTo == checkoutmodel.StatusCompleted {
		if sub.ReferenceDocType != "" && sub.ReferenceDocName != "" {
			custom, err := s.documents.OnPaymentAuthorized(ctx, sub.ReferenceDocType, sub.ReferenceDocName, a.statusChangedTo)
			if err != nil {
				s.logger.Error("on_payment_authorized hook failed",
					"reference_docname", sub.ReferenceDocName,
					"error", err)
			} else if custom != "" {
				redirectTo = custom
			}

			redirectURL = fmt.Sprintf("payment-success?doctype=%s&docname=%s",
				url.QueryEscape(sub.ReferenceDocType), url.QueryEscape(sub.ReferenceDocName))
		}
		if a.settings.RedirectURL != "" {
			redirectURL = a.settings.RedirectURL
			redirectTo = ""
		}
	} else {
		redirectURL = RedirectPaymentFailed
	}

	redirectURL = appendHint(redirectURL, "redirect_to", redirectTo)
	redirectURL = appendHint(redirectURL, "redirect_message", redirectMessage)

	return &CheckoutResult{RedirectTo: redirectURL, Status: status}
}

// appendHint appends a query parameter to a URL that may or may not already
// carry a query string. Empty values are dropped.
func appendHint(u, key, value string) string {
	if value == "" {
		return u
	}
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + key + "=" + url.QueryEscape(value)
}

// idempotencyKey derives a deterministic provider idempotency key from the
// audit-log entry so a client-side resubmission of the same attempt cannot
// double charge.
func idempotencyKey(entry *checkoutmodel.AuditLog) string {
	return "attempt-" + entry.RequestID
}

// serverErrorResult is the degraded redirect returned when anything inside
// the pipeline fails before a charge decision could be made.
func (s *Service) serverErrorResult() *CheckoutResult {
	message := "It seems that there is an issue with the server's stripe configuration. " +
		"In case of failure, the amount will get refunded to your account."
	return &CheckoutResult{
		RedirectTo: redirectToMessage("Server Error", message),
		Status:     "401",
	}
}

// redirectToMessage builds the generic message-page redirect target.
func redirectToMessage(title, message string) string {
	values := url.Values{}
	values.Set("title", title)
	values.Set("message", message)
	return "message?" + values.Encode()
}

// VerifyPayment reports whether the referenced document already completed a
// payment; when it did, the stored receipt URL is returned so the page can
// redirect immediately instead of charging twice.
func (s *Service) VerifyPayment(docType, docName string) *CheckoutResult {
	doc, err := s.documents.Get(docType, docName)
	if err != nil {
		s.logger.Error("failed to verify payment state",
			"reference_doctype", docType,
			"reference_docname", docName,
			"error", err)
		return nil
	}
	if doc.Paid() {
		return &CheckoutResult{
			RedirectTo: doc.SuccessRedirectURL,
			Status:     checkoutmodel.StatusCompleted,
		}
	}
	return nil
}

// expectedPageKeys are the display fields the checkout page requires.
var expectedPageKeys = []string{
	"amount",
	"title",
	"description",
	"reference_doctype",
	"reference_docname",
	"payer_name",
	"payer_email",
	"order_id",
	"currency",
}

// PageContext resolves the checkout page's rendering context, or the
// already-paid redirect when the document completed a payment earlier.
func (s *Service) PageContext(params map[string]string, sandboxPublishableKey string, useSandbox bool) (*CheckoutContext, *CheckoutResult, error) {
	for _, key := range expectedPageKeys {
		if params[key] == "" {
			return nil, nil, errors.ErrMissingInformation
		}
	}

	docType := params["reference_doctype"]
	docName := params["reference_docname"]

	if redirect := s.VerifyPayment(docType, docName); redirect != nil {
		return nil, redirect, nil
	}

	doc, err := s.documents.Get(docType, docName)
	if err != nil {
		return nil, nil, errors.ErrDocumentNotFound.WithCause(err)
	}

	settings, err := s.gateways.ControllerSettings(doc.PaymentGateway)
	if err != nil {
		return nil, nil, err
	}

	publishableKey := settings.PublishableKey
	if useSandbox && sandboxPublishableKey != "" {
		publishableKey = sandboxPublishableKey
	}

	amount := fmt.Sprintf("%s %s", params["currency"], params["amount"])
	if doc.IsSubscription && doc.Recurrence != "" {
		amount = amount + " " + doc.Recurrence
	}

	return &CheckoutContext{
		Amount:                amount,
		Title:                 params["title"],
		Description:           params["description"],
		ReferenceDocType:      docType,
		ReferenceDocName:      docName,
		PayerName:             params["payer_name"],
		PayerEmail:            params["payer_email"],
		OrderID:               params["order_id"],
		Currency:              params["currency"],
		PublishableKey:        publishableKey,
		HeaderImage:           settings.HeaderImage,
		IsTokenizationEnabled: settings.EnableTokenization,
	}, nil, nil
}
