package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"

	"github.com/Emolus-Dev/payments/internal/checkout"
	"github.com/Emolus-Dev/payments/internal/gateway"
	"github.com/Emolus-Dev/payments/internal/transport/middleware"
	"github.com/Emolus-Dev/payments/internal/transport/swagger"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, checkoutHandler *checkout.Handler, gatewayHandler *gateway.Handler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	// The checkout page context lives at root to match the hosted page URL
	if checkoutHandler != nil {
		router.Get("/stripe_checkout", checkoutHandler.CheckoutPage)
	}

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		// Health check route
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		if checkoutHandler != nil {
			r.Route("/checkout", func(cr chi.Router) {
				cr.Post("/make-payment", checkoutHandler.MakePayment)
				cr.Get("/verify-payment", checkoutHandler.VerifyPayment)
			})
		}

		if gatewayHandler != nil {
			r.Route("/gateways", func(gr chi.Router) {
				gr.Post("/settings", gatewayHandler.SaveSettings)
				gr.Get("/settings/{name}", gatewayHandler.GetSettings)
			})
		}
	})
}
