package postgres

import (
	"time"

	"gorm.io/gorm"

	errors "github.com/Emolus-Dev/payments/internal"
	"github.com/Emolus-Dev/payments/internal/checkout"
	checkoutmodel "github.com/Emolus-Dev/payments/internal/core/datamodel/checkout"
)

// AuditLogRepository implements checkout.AuditLogRepository using GORM
type AuditLogRepository struct {
	db *gorm.DB
}

func NewAuditLogRepository(db *gorm.DB) checkout.AuditLogRepository {
	return &AuditLogRepository{db: db}
}

func (r *AuditLogRepository) Create(entry *checkoutmodel.AuditLog) error {
	return r.db.Create(entry).Error
}

// MarkCompleted flips one entry to Completed. UpdateColumn keeps gorm from
// touching updated_at so the row still reflects the original attempt time.
func (r *AuditLogRepository) MarkCompleted(id int64) error {
	return r.db.Model(&checkoutmodel.AuditLog{}).
		Where("id = ?", id).
		UpdateColumn("status", checkoutmodel.StatusCompleted).Error
}

func (r *AuditLogRepository) GetByRequestID(requestID string) (*checkoutmodel.AuditLog, error) {
	var entry checkoutmodel.AuditLog
	err := r.db.Where("request_id = ?", requestID).First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrAuditLogNotFound
		}
		return nil, err
	}
	return &entry, nil
}

func (r *AuditLogRepository) ListPendingBefore(cutoff time.Time, limit int) ([]*checkoutmodel.AuditLog, error) {
	var entries []*checkoutmodel.AuditLog
	err := r.db.Where("status = ? AND created_at < ?", checkoutmodel.StatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// ResponseLogRepository implements checkout.ResponseLogRepository using GORM
type ResponseLogRepository struct {
	db *gorm.DB
}

func NewResponseLogRepository(db *gorm.DB) checkout.ResponseLogRepository {
	return &ResponseLogRepository{db: db}
}

func (r *ResponseLogRepository) Create(entry *checkoutmodel.ResponseLog) error {
	return r.db.Create(entry).Error
}

func (r *ResponseLogRepository) GetByRequestID(requestID string) (*checkoutmodel.ResponseLog, error) {
	var entry checkoutmodel.ResponseLog
	err := r.db.Where("request_id = ?", requestID).
		Order("created_at DESC").
		First(&entry).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// CardRepository implements checkout.CardRepository using GORM
type CardRepository struct {
	db *gorm.DB
}

func NewCardRepository(db *gorm.DB) checkout.CardRepository {
	return &CardRepository{db: db}
}

func (r *CardRepository) Create(card *checkoutmodel.StoredCard) error {
	return r.db.Create(card).Error
}

// AccountRepository implements checkout.AccountRepository using GORM
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) checkout.AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Exists(name string) (bool, error) {
	var count int64
	err := r.db.Model(&checkoutmodel.Account{}).
		Where("name = ?", name).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
