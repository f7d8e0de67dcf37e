package checkout

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Emolus-Dev/payments/internal/transport"
	"github.com/Emolus-Dev/payments/pkg/logger"
)

type ServiceAPI interface {
	CreateRequest(ctx context.Context, req *MakePaymentRequest) (*CheckoutResult, error)
	VerifyPayment(docType, docName string) *CheckoutResult
	PageContext(params map[string]string, sandboxPublishableKey string, useSandbox bool) (*CheckoutContext, *CheckoutResult, error)
}

type Handler struct {
	*transport.BaseHandler
	Service               ServiceAPI
	SandboxPublishableKey string
}

func NewHandler(service ServiceAPI, sandboxPublishableKey string) *Handler {
	lg := logger.LoggerWrapper()
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		BaseHandler:           transport.NewBaseHandler(lg),
		Service:               service,
		SandboxPublishableKey: sandboxPublishableKey,
	}
}

// MakePayment accepts one payment submission and responds with the redirect
// the payer's browser should follow. The checkout page posts either JSON or
// an urlencoded form, depending on the client integration.
func (h *Handler) MakePayment(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodePaymentRequest(r)
	if err != nil {
		h.Logger.Error("MakePayment: invalid request body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Service.CreateRequest(r.Context(), req)
	if err != nil {
		h.Logger.Error("MakePayment: service error", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.Logger.Info("MakePayment: request processed",
		"status", result.Status,
		"redirect_to", result.RedirectTo)

	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) decodePaymentRequest(r *http.Request) (*MakePaymentRequest, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return &MakePaymentRequest{
			StripeTokenID:     r.PostFormValue("stripe_token_id"),
			Data:              r.PostFormValue("data"),
			ReferenceDocType:  r.PostFormValue("reference_doctype"),
			ReferenceDocName:  r.PostFormValue("reference_docname"),
			SavePaymentMethod: r.PostFormValue("save_payment_method"),
			ResultStripe:      r.PostFormValue("result_stripe"),
		}, nil
	}

	var req MakePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// CheckoutPage resolves the rendering context for the hosted checkout page.
// When the referenced document already completed a payment, the stored
// redirect is returned instead so the payer cannot be charged twice.
func (h *Handler) CheckoutPage(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	params := make(map[string]string, len(expectedPageKeys))
	for _, key := range expectedPageKeys {
		params[key] = query.Get(key)
	}

	useSandbox := h.SandboxPublishableKey != ""
	pageContext, redirect, err := h.Service.PageContext(params, h.SandboxPublishableKey, useSandbox)
	if err != nil {
		h.Logger.Error("CheckoutPage: context resolution failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}
	if redirect != nil {
		h.Logger.Info("CheckoutPage: payment already completed, redirecting",
			"reference_docname", params["reference_docname"])
		h.WriteJSON(w, http.StatusOK, redirect)
		return
	}

	h.WriteJSON(w, http.StatusOK, pageContext)
}

// VerifyPayment reports the completion state of one referenced document.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	docType := r.URL.Query().Get("doctype")
	docName := r.URL.Query().Get("docname")
	if docType == "" || docName == "" {
		h.WriteError(w, http.StatusBadRequest, "doctype and docname are required")
		return
	}

	result := h.Service.VerifyPayment(docType, docName)
	if result == nil {
		h.WriteJSON(w, http.StatusOK, &CheckoutResult{Status: "Pending"})
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}
