package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	errors "github.com/Emolus-Dev/payments/internal"
	gatewaymodel "github.com/Emolus-Dev/payments/internal/core/datamodel/gateway"
)

// SettingsRepository persists gateway configurations and the name ->
// controller registry documents reference them through.
type SettingsRepository interface {
	GetByName(name string) (*gatewaymodel.Settings, error)
	Save(settings *gatewaymodel.Settings) error
	EnsureGateway(name, controller string) error
	ControllerFor(gatewayName string) (string, error)
}

// CredentialVerifier performs the lightweight authenticated probe against
// the provider used when a configuration is saved.
type CredentialVerifier interface {
	VerifyCredentials(ctx context.Context, secretKey string) error
}

type Service struct {
	repo     SettingsRepository
	verifier CredentialVerifier
	logger   *slog.Logger
}

func NewService(repo SettingsRepository, verifier CredentialVerifier, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		verifier: verifier,
		logger:   logger,
	}
}

// SaveSettings persists a gateway configuration, registers its
// "Stripe-<name>" gateway entry, and probes the provider when both keys are
// present. A failed probe blocks the save unless SkipCredentialCheck is set.
func (s *Service) SaveSettings(ctx context.Context, settings *gatewaymodel.Settings) error {
	if settings.PublishableKey != "" && settings.SecretKey != "" && !settings.SkipCredentialCheck {
		if err := s.verifier.VerifyCredentials(ctx, settings.SecretKey); err != nil {
			s.logger.Error("stripe credential validation failed",
				"gateway", settings.GatewayName,
				"error", err)
			return errors.ErrInvalidCredentials
		}
	}

	if err := s.repo.Save(settings); err != nil {
		s.logger.Error("failed to save gateway settings", "gateway", settings.GatewayName, "error", err)
		return fmt.Errorf("failed to save gateway settings: %w", err)
	}

	gatewayName := "Stripe-" + settings.GatewayName
	if err := s.repo.EnsureGateway(gatewayName, settings.GatewayName); err != nil {
		s.logger.Error("failed to register payment gateway", "gateway", gatewayName, "error", err)
		return fmt.Errorf("failed to register payment gateway: %w", err)
	}

	s.logger.Info("gateway settings saved", "gateway", settings.GatewayName)
	return nil
}

// ControllerSettings resolves the Settings row controlling a document's
// payment gateway name (e.g. "Stripe-Default").
func (s *Service) ControllerSettings(gatewayName string) (*gatewaymodel.Settings, error) {
	controller, err := s.repo.ControllerFor(gatewayName)
	if err != nil {
		return nil, errors.ErrGatewayNotFound.WithCause(err)
	}
	settings, err := s.repo.GetByName(controller)
	if err != nil {
		return nil, errors.ErrGatewayNotFound.WithCause(err)
	}
	return settings, nil
}

// PaymentURL builds the checkout page URL for a document, with the display
// fields urlencoded into the query string.
func (s *Service) PaymentURL(baseURL string, params map[string]string) string {
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return strings.TrimRight(baseURL, "/") + "/stripe_checkout?" + values.Encode()
}
