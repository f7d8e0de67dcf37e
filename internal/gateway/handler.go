package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	gatewaymodel "github.com/Emolus-Dev/payments/internal/core/datamodel/gateway"
	"github.com/Emolus-Dev/payments/internal/transport"
	"github.com/Emolus-Dev/payments/pkg/logger"
)

type ServiceAPI interface {
	SaveSettings(ctx context.Context, settings *gatewaymodel.Settings) error
	ControllerSettings(gatewayName string) (*gatewaymodel.Settings, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     service,
	}
}

// SettingsDTO is the inbound gateway configuration payload. The secret key
// is write-only; reads never echo it back.
type SettingsDTO struct {
	GatewayName         string `json:"gateway_name"`
	PublishableKey      string `json:"publishable_key"`
	SecretKey           string `json:"secret_key"`
	RedirectURL         string `json:"redirect_url,omitempty"`
	HeaderImage         string `json:"header_img,omitempty"`
	EnableTokenization  bool   `json:"enable_tokenization"`
	SkipCredentialCheck bool   `json:"skip_credential_check"`
}

// SaveSettings validates and stores one gateway configuration, probing the
// credentials against the provider before accepting them.
func (h *Handler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var dto SettingsDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("SaveSettings: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if dto.GatewayName == "" {
		h.WriteError(w, http.StatusBadRequest, "gateway_name is required")
		return
	}

	settings := &gatewaymodel.Settings{
		GatewayName:         dto.GatewayName,
		PublishableKey:      dto.PublishableKey,
		SecretKey:           dto.SecretKey,
		RedirectURL:         dto.RedirectURL,
		HeaderImage:         dto.HeaderImage,
		EnableTokenization:  dto.EnableTokenization,
		SkipCredentialCheck: dto.SkipCredentialCheck,
	}

	if err := h.Service.SaveSettings(r.Context(), settings); err != nil {
		h.Logger.Error("SaveSettings: service error", "gateway_name", dto.GatewayName, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("SaveSettings: gateway settings saved", "gateway_name", dto.GatewayName)
	h.WriteJSON(w, http.StatusOK, map[string]string{"gateway_name": dto.GatewayName, "status": "saved"})
}

// GetSettings returns the public subset of one gateway configuration.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	settings, err := h.Service.ControllerSettings(name)
	if err != nil {
		h.Logger.Error("GetSettings: service error", "gateway_name", name, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, SettingsDTO{
		GatewayName:         settings.GatewayName,
		PublishableKey:      settings.PublishableKey,
		RedirectURL:         settings.RedirectURL,
		HeaderImage:         settings.HeaderImage,
		EnableTokenization:  settings.EnableTokenization,
		SkipCredentialCheck: settings.SkipCredentialCheck,
	})
}
