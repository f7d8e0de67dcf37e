package document

import (
	"context"
	"log/slog"
	"sync"

	documentmodel "github.com/Emolus-Dev/payments/internal/core/datamodel/document"
)

// Repository is the persistence surface the document service consumes.
type Repository interface {
	Get(docType, docName string) (*documentmodel.Document, error)
	GetByDocName(docName string) (*documentmodel.Document, error)
	SetSuccessRedirectURL(docType, docName, redirectURL string) error
	MarkPaid(docType, docName string) error
}

// AuthorizedHook runs after a document's payment is captured. The returned
// redirect overrides the default success redirect when non-empty.
type AuthorizedHook func(ctx context.Context, docType, docName, status string) (string, error)

// Service exposes business documents to the checkout flow and dispatches
// per-doctype completion hooks.
type Service struct {
	repo   Repository
	logger *slog.Logger

	mu    sync.RWMutex
	hooks map[string]AuthorizedHook
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		hooks:  make(map[string]AuthorizedHook),
	}
}

// RegisterAuthorizedHook installs the completion hook for one doctype.
// Registering again replaces the previous hook.
func (s *Service) RegisterAuthorizedHook(docType string, hook AuthorizedHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[docType] = hook
}

func (s *Service) Get(docType, docName string) (*documentmodel.Document, error) {
	return s.repo.Get(docType, docName)
}

// PartyFor resolves the paying party behind an order id. Orders are keyed by
// document name in this deployment.
func (s *Service) PartyFor(orderID string) (string, error) {
	doc, err := s.repo.GetByDocName(orderID)
	if err != nil {
		return "", err
	}
	return doc.Party, nil
}

func (s *Service) SetSuccessRedirectURL(docType, docName, redirectURL string) error {
	return s.repo.SetSuccessRedirectURL(docType, docName, redirectURL)
}

// MarkAsPaid flips the document to Paid. Already-paid documents are left
// untouched so replays stay idempotent.
func (s *Service) MarkAsPaid(ctx context.Context, docType, docName string) error {
	doc, err := s.repo.Get(docType, docName)
	if err != nil {
		return err
	}
	if doc.Status == documentmodel.StatusPaid {
		s.logger.Info("document already marked paid",
			"doctype", docType,
			"docname", docName)
		return nil
	}
	return s.repo.MarkPaid(docType, docName)
}

// OnPaymentAuthorized dispatches the registered completion hook for the
// document's doctype. Hook errors are returned to the caller for logging
// but must never fail the payment.
func (s *Service) OnPaymentAuthorized(ctx context.Context, docType, docName, status string) (string, error) {
	s.mu.RLock()
	hook, ok := s.hooks[docType]
	s.mu.RUnlock()
	if !ok {
		return "", nil
	}
	return hook(ctx, docType, docName, status)
}
