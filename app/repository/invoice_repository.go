package repository

import (
	"time"

	"github.com/invisifeed/invisifeed/app/models"
	"gorm.io/gorm"
)

// invoiceRepository implements the InvoiceRepository interface.
type invoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository creates a new invoice repository instance.
func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(invoice *models.Invoice) error {
	return r.db.Create(invoice).Error
}

func (r *invoiceRepository) GetByNumber(organizationID uint, number string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.Where("organization_id = ? AND invoice_number = ?", organizationID, number).
		First(&invoice).Error
	if err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) GetByFeedbackToken(token string) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.Where("feedback_token = ?", token).First(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) ListByOrganization(organizationID uint, offset, limit int) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.Where("organization_id = ?", organizationID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&invoices).Error
	return invoices, err
}

func (r *invoiceRepository) CountByOrganization(organizationID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Invoice{}).
		Where("organization_id = ?", organizationID).
		Count(&count).Error
	return count, err
}

// CountByOrganizationSince counts invoices issued at or after the given
// instant. Used for monthly plan quotas.
func (r *invoiceRepository) CountByOrganizationSince(organizationID uint, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&models.Invoice{}).
		Where("organization_id = ? AND created_at >= ?", organizationID, since).
		Count(&count).Error
	return count, err
}

func (r *invoiceRepository) MarkEmailed(id uint, at time.Time) error {
	return r.db.Model(&models.Invoice{}).
		Where("id = ?", id).
		Update("emailed_at", &at).Error
}
