package postgres

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/Emolus-Dev/payments/internal/checkout"
	checkoutmodel "github.com/Emolus-Dev/payments/internal/core/datamodel/checkout"
)

func TestCheckoutRepositories(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "CheckoutRepositories Suite")
}

type SQLiteAuditLog struct {
	ID               int64     `gorm:"primaryKey"`
	RequestID        string    `gorm:"column:request_id;not null;uniqueIndex"`
	Service          string    `gorm:"column:service"`
	Status           string    `gorm:"column:status;default:Pending"`
	ReferenceDocType string    `gorm:"column:reference_doctype"`
	ReferenceDocName string    `gorm:"column:reference_docname"`
	Payload          []byte    `gorm:"column:payload"`
	CreatedAt        time.Time `gorm:"column:created_at"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (SQLiteAuditLog) TableName() string {
	return "audit_logs"
}

type SQLiteResponseLog struct {
	ID                int64     `gorm:"primaryKey"`
	Gateway           string    `gorm:"column:gateway"`
	RequestID         string    `gorm:"column:request_id;index"`
	PaymentRequestRef string    `gorm:"column:ref_to_payment_request;index"`
	IsPaid            bool      `gorm:"column:payment_stripe_is_paid"`
	ChargeID          string    `gorm:"column:payment_stripe_id"`
	Amount            float64   `gorm:"column:amount"`
	AmountCaptured    float64   `gorm:"column:amount_captured"`
	AmountRefunded    float64   `gorm:"column:amount_refunded"`
	ReceiptEmail      string    `gorm:"column:stripe_receipt_email"`
	ReceiptNumber     string    `gorm:"column:stripe_receipt_number"`
	Currency          string    `gorm:"column:stripe_currency"`
	ReceiptURL        string    `gorm:"column:stripe_receipt_url"`
	RawResponse       []byte    `gorm:"column:stripe_response"`
	CreatedAt         time.Time `gorm:"column:created_at"`
}

func (SQLiteResponseLog) TableName() string {
	return "response_logs"
}

type SQLiteStoredCard struct {
	ID                    int64     `gorm:"primaryKey"`
	Party                 string    `gorm:"column:party;index"`
	Email                 string    `gorm:"column:email"`
	Gateway               string    `gorm:"column:gateway"`
	IsDefault             bool      `gorm:"column:is_default"`
	StripeCustomerID      string    `gorm:"column:stripe_customer_id"`
	StripePaymentMethodID string    `gorm:"column:stripe_payment_method_id;uniqueIndex"`
	CardNumber            string    `gorm:"column:card_number"`
	ExpMonth              int       `gorm:"column:expiration_month"`
	ExpYear               int       `gorm:"column:expiration_year"`
	CardBrand             string    `gorm:"column:card_brand"`
	GatewaySettingName    string    `gorm:"column:gateway_setting_name"`
	CreatedAt             time.Time `gorm:"column:created_at"`
	UpdatedAt             time.Time `gorm:"column:updated_at"`
}

func (SQLiteStoredCard) TableName() string {
	return "stored_cards"
}

type SQLiteAccount struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"column:name;uniqueIndex"`
	Email     string    `gorm:"column:email"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (SQLiteAccount) TableName() string {
	return "accounts"
}

var _ = Describe("CheckoutRepositories", func() {
	var db *gorm.DB

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&SQLiteAuditLog{}, &SQLiteResponseLog{}, &SQLiteStoredCard{}, &SQLiteAccount{})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("AuditLogRepository", func() {
		var repo checkout.AuditLogRepository

		BeforeEach(func() {
			repo = NewAuditLogRepository(db)
		})

		It("creates and fetches entries by request id", func() {
			entry := &checkoutmodel.AuditLog{
				RequestID:        "req-1",
				Service:          "Stripe",
				Status:           checkoutmodel.StatusPending,
				ReferenceDocType: "Payment Request",
				ReferenceDocName: "PR-0001",
				Payload:          []byte(`{"amount":20}`),
			}
			Expect(repo.Create(entry)).To(Succeed())
			Expect(entry.ID).NotTo(BeZero())

			found, err := repo.GetByRequestID("req-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ReferenceDocName).To(Equal("PR-0001"))
			Expect(found.Status).To(Equal(checkoutmodel.StatusPending))
		})

		It("returns not found for unknown request ids", func() {
			_, err := repo.GetByRequestID("req-missing")
			Expect(err).To(HaveOccurred())
		})

		It("marks entries completed", func() {
			entry := &checkoutmodel.AuditLog{RequestID: "req-1", Status: checkoutmodel.StatusPending}
			Expect(repo.Create(entry)).To(Succeed())

			Expect(repo.MarkCompleted(entry.ID)).To(Succeed())

			found, err := repo.GetByRequestID("req-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(found.Status).To(Equal(checkoutmodel.StatusCompleted))
		})

		It("lists only stale pending entries", func() {
			old := &checkoutmodel.AuditLog{RequestID: "req-old", Status: checkoutmodel.StatusPending}
			fresh := &checkoutmodel.AuditLog{RequestID: "req-fresh", Status: checkoutmodel.StatusPending}
			done := &checkoutmodel.AuditLog{RequestID: "req-done", Status: checkoutmodel.StatusPending}
			for _, e := range []*checkoutmodel.AuditLog{old, fresh, done} {
				Expect(repo.Create(e)).To(Succeed())
			}
			Expect(db.Model(&SQLiteAuditLog{}).Where("request_id = ?", "req-old").
				Update("created_at", time.Now().Add(-time.Hour)).Error).To(Succeed())
			Expect(repo.MarkCompleted(done.ID)).To(Succeed())

			entries, err := repo.ListPendingBefore(time.Now().Add(-30*time.Minute), 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].RequestID).To(Equal("req-old"))
		})
	})

	Describe("ResponseLogRepository", func() {
		var repo checkout.ResponseLogRepository

		BeforeEach(func() {
			repo = NewResponseLogRepository(db)
		})

		It("resolves the entry for its attempt's request id", func() {
			first := &checkoutmodel.ResponseLog{RequestID: "req-1", PaymentRequestRef: "PR-0001", ChargeID: "ch_1"}
			second := &checkoutmodel.ResponseLog{RequestID: "req-2", PaymentRequestRef: "PR-0001", ChargeID: "ch_2"}
			Expect(repo.Create(first)).To(Succeed())
			Expect(db.Model(&SQLiteResponseLog{}).Where("payment_stripe_id = ?", "ch_1").
				Update("created_at", time.Now().Add(-time.Minute)).Error).To(Succeed())
			Expect(repo.Create(second)).To(Succeed())

			// a newer attempt against the same document must not shadow it
			found, err := repo.GetByRequestID("req-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ChargeID).To(Equal("ch_1"))
		})

		It("returns nil without error when no entry exists", func() {
			found, err := repo.GetByRequestID("req-none")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeNil())
		})
	})

	Describe("CardRepository", func() {
		It("persists stored cards", func() {
			repo := NewCardRepository(db)
			card := &checkoutmodel.StoredCard{
				Party:                 "Aulia",
				StripeCustomerID:      "cus_1",
				StripePaymentMethodID: "pm_1",
				CardNumber:            "************4242",
			}
			Expect(repo.Create(card)).To(Succeed())
			Expect(card.ID).NotTo(BeZero())
		})
	})

	Describe("AccountRepository", func() {
		It("reports existence by name", func() {
			repo := NewAccountRepository(db)
			Expect(db.Create(&SQLiteAccount{Name: "Aulia"}).Error).To(Succeed())

			exists, err := repo.Exists("Aulia")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())

			exists, err = repo.Exists("Nobody")
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		})
	})
})
