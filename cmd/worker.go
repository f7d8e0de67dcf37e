package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Emolus-Dev/payments/internal/checkout"
	checkoutrepo "github.com/Emolus-Dev/payments/internal/checkout/postgres"
	"github.com/Emolus-Dev/payments/internal/core/events"
	"github.com/Emolus-Dev/payments/internal/document"
	documentrepo "github.com/Emolus-Dev/payments/internal/document/postgres"
	"github.com/Emolus-Dev/payments/internal/gateway"
	gatewayrepo "github.com/Emolus-Dev/payments/internal/gateway/postgres"
	"github.com/Emolus-Dev/payments/internal/paymentgateway"
	"github.com/Emolus-Dev/payments/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start and manage background workers such as the payment reconciler.`,
}

// Reconcile worker command
var reconcileWorkerCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Start the payment reconcile worker",
	Long:  `Periodically re-queries the provider for stale pending payment attempts and replays their completion.`,
	Run: func(cmd *cobra.Command, args []string) {
		startReconcileWorker()
	},
}

var (
	reconcileInterval    time.Duration
	reconcileGracePeriod time.Duration
	reconcileBatchSize   int
)

func startReconcileWorker() {
	config, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(os.Getenv("APP_ENV"))
	lg := logger.LoggerWrapper()

	db, err := gorm.Open(gormpostgres.Open(config.Database.Source), &gorm.Config{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}

	eventBus := events.NewEventBus(lg)
	providerFactory := paymentgateway.NewFactory(config.Stripe.RequestTimeout)
	gatewayService := gateway.NewService(gatewayrepo.NewSettingsRepository(db), providerFactory, lg)
	documentService := document.NewService(documentrepo.NewDocumentRepository(db), lg)

	reconciler := checkout.NewReconciler(
		providerFactory,
		gatewayService,
		checkoutrepo.NewAuditLogRepository(db),
		checkoutrepo.NewResponseLogRepository(db),
		documentService,
		eventBus,
		lg,
	)
	if reconcileGracePeriod > 0 {
		reconciler.GracePeriod = reconcileGracePeriod
	}
	if reconcileBatchSize > 0 {
		reconciler.BatchSize = reconcileBatchSize
	}

	lg.Info("reconcile worker started",
		"interval", reconcileInterval,
		"grace_period", reconciler.GracePeriod,
		"batch_size", reconciler.BatchSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(reconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := reconciler.Run(ctx); err != nil {
				lg.Error("reconcile pass failed", "error", err)
			}
		case sig := <-sigChan:
			lg.Info("received signal, shutting down reconcile worker", "signal", sig)
			return
		}
	}
}

func init() {
	reconcileWorkerCmd.Flags().DurationVar(&reconcileInterval, "interval", 5*time.Minute, "How often to run a reconcile pass")
	reconcileWorkerCmd.Flags().DurationVar(&reconcileGracePeriod, "grace-period", 0, "Minimum age of pending attempts to inspect (overrides default)")
	reconcileWorkerCmd.Flags().IntVar(&reconcileBatchSize, "batch-size", 0, "Maximum attempts per pass (overrides default)")

	workerCmd.AddCommand(reconcileWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
