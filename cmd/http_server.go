package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Emolus-Dev/payments/internal"
	"github.com/Emolus-Dev/payments/internal/checkout"
	checkoutrepo "github.com/Emolus-Dev/payments/internal/checkout/postgres"
	"github.com/Emolus-Dev/payments/internal/core/events"
	"github.com/Emolus-Dev/payments/internal/document"
	documentrepo "github.com/Emolus-Dev/payments/internal/document/postgres"
	"github.com/Emolus-Dev/payments/internal/gateway"
	gatewayrepo "github.com/Emolus-Dev/payments/internal/gateway/postgres"
	"github.com/Emolus-Dev/payments/internal/paymentgateway"
	"github.com/Emolus-Dev/payments/internal/transport/rest"
	"github.com/Emolus-Dev/payments/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server to handle checkout and gateway API requests`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config          *internal.Config
	DB              *sqlx.DB
	GormDB          *gorm.DB
	Router          *chi.Mux
	CheckoutHandler *checkout.Handler
	GatewayHandler  *gateway.Handler
	Logger          *slog.Logger
}

func startHTTPServer() {
	deps, err := initializeDependencies()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	rest.RegisterAllRoutes(deps.Router, deps.DB.DB, deps.CheckoutHandler, deps.GatewayHandler, deps.Logger)

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	slog.Info("Starting HTTP server", "address", addr)

	server := &http.Server{
		Addr:         addr,
		Handler:      deps.Router,
		ReadTimeout:  deps.Config.Server.ReadTimeout,
		WriteTimeout: deps.Config.Server.WriteTimeout,
		IdleTimeout:  deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
		if err := deps.DB.Close(); err != nil {
			slog.Error("Database close error", "error", err)
		}
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	slog.Info("Server stopped")
}

func initializeDependencies() (*Dependencies, error) {
	config, err := loadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.Init(os.Getenv("APP_ENV"))
	lg := logger.LoggerWrapper()

	db, err := initDB(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gormDB, err := initGormDB(db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orm: %w", err)
	}

	eventBus := events.NewEventBus(lg)

	providerFactory := paymentgateway.NewFactory(config.Stripe.RequestTimeout)

	gatewayService := gateway.NewService(gatewayrepo.NewSettingsRepository(gormDB), providerFactory, lg)
	documentService := document.NewService(documentrepo.NewDocumentRepository(gormDB), lg)

	checkoutService := checkout.NewService(
		providerFactory,
		gatewayService,
		checkoutrepo.NewAuditLogRepository(gormDB),
		checkoutrepo.NewResponseLogRepository(gormDB),
		checkoutrepo.NewCardRepository(gormDB),
		checkoutrepo.NewAccountRepository(gormDB),
		documentService,
		eventBus,
		lg,
	)

	return &Dependencies{
		Config:          config,
		Logger:          lg,
		DB:              db,
		GormDB:          gormDB,
		Router:          chi.NewRouter(),
		CheckoutHandler: checkout.NewHandler(checkoutService, config.Stripe.SandboxPublishableKey),
		GatewayHandler:  gateway.NewHandler(gatewayService),
	}, nil
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)

	// verify connection; close underlying *sql.DB on failure
	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return dbConn, nil
}

// initGormDB layers the ORM over the already-open connection pool so both
// handles share pool limits.
func initGormDB(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: db.DB}), &gorm.Config{})
}
