package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	checkoutmodel "github.com/Emolus-Dev/payments/internal/core/datamodel/checkout"
	documentmodel "github.com/Emolus-Dev/payments/internal/core/datamodel/document"
	gatewaymodel "github.com/Emolus-Dev/payments/internal/core/datamodel/gateway"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		db, err := gorm.Open(gormpostgres.Open(cfg.Database.Source), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		gatewayName := cfg.Stripe.DefaultGateway
		if gatewayName == "" {
			gatewayName = "default"
		}

		settings := &gatewaymodel.Settings{
			GatewayName:    gatewayName,
			PublishableKey: cfg.Stripe.PublishableKey,
			SecretKey:      cfg.Stripe.SecretKey,
		}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gateway_name"}},
			UpdateAll: true,
		}).Create(settings).Error; err != nil {
			log.Fatalf("failed to seed gateway settings: %v", err)
		}
		fmt.Println("Seeded gateway settings:", gatewayName)

		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&gatewaymodel.PaymentGateway{
			Name:              "Stripe-" + gatewayName,
			GatewayController: gatewayName,
		}).Error; err != nil {
			log.Fatalf("failed to seed payment gateway: %v", err)
		}

		accounts := []checkoutmodel.Account{
			{Name: "Aulia"},
			{Name: "Rizki"},
		}
		for i := range accounts {
			if err := db.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoNothing: true,
			}).Create(&accounts[i]).Error; err != nil {
				log.Fatalf("failed to seed account %s: %v", accounts[i].Name, err)
			}
		}
		fmt.Println("Seeded accounts")

		documents := []documentmodel.Document{
			{
				DocType:        "Payment Request",
				DocName:        "PR-0001",
				Status:         documentmodel.StatusRequested,
				Party:          "Aulia",
				PayerName:      "Aulia",
				PayerEmail:     "aulia@mail.com",
				Title:          "Invoice INV-0001",
				Description:    "Consulting services for August",
				GrandTotal:     150.00,
				Currency:       "USD",
				PaymentGateway: "Stripe-" + gatewayName,
			},
			{
				DocType:        "Payment Request",
				DocName:        "PR-0002",
				Status:         documentmodel.StatusRequested,
				Party:          "Rizki",
				PayerName:      "Rizki",
				PayerEmail:     "rizki@mail.com",
				Title:          "Subscription SUB-0001",
				Description:    "Monthly plan",
				GrandTotal:     25.00,
				Currency:       "USD",
				PaymentGateway: "Stripe-" + gatewayName,
				IsSubscription: true,
				PaymentPlan:    "monthly-basic",
				Recurrence:     "per month",
			},
		}
		for i := range documents {
			if err := db.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "doctype"}, {Name: "docname"}},
				DoNothing: true,
			}).Create(&documents[i]).Error; err != nil {
				log.Fatalf("failed to seed document %s: %v", documents[i].DocName, err)
			}
		}
		fmt.Println("Seeded demo documents")
	},
}
