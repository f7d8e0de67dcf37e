package postgres

import (
	"gorm.io/gorm"

	errors "github.com/Emolus-Dev/payments/internal"
	documentmodel "github.com/Emolus-Dev/payments/internal/core/datamodel/document"
	"github.com/Emolus-Dev/payments/internal/document"
)

// DocumentRepository implements document.Repository using GORM
type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) document.Repository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Get(docType, docName string) (*documentmodel.Document, error) {
	var doc documentmodel.Document
	err := r.db.Where("doctype = ? AND docname = ?", docType, docName).First(&doc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepository) GetByDocName(docName string) (*documentmodel.Document, error) {
	var doc documentmodel.Document
	err := r.db.Where("docname = ?", docName).First(&doc).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.ErrDocumentNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepository) SetSuccessRedirectURL(docType, docName, redirectURL string) error {
	return r.db.Model(&documentmodel.Document{}).
		Where("doctype = ? AND docname = ?", docType, docName).
		Update("success_redirect_url", redirectURL).Error
}

func (r *DocumentRepository) MarkPaid(docType, docName string) error {
	return r.db.Model(&documentmodel.Document{}).
		Where("doctype = ? AND docname = ?", docType, docName).
		Update("status", documentmodel.StatusPaid).Error
}
