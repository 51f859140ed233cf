package repository

import (
	"github.com/invisifeed/invisifeed/app/models"
	"gorm.io/gorm"
)

// paymentRepository implements the PaymentRepository interface.
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance.
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) Create(p *models.Payment) error {
	return r.db.Create(p).Error
}

func (r *paymentRepository) GetByProviderOrderID(orderID string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.Where("provider_order_id = ?", orderID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepository) ListByOrganization(organizationID uint, offset, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Where("organization_id = ?", organizationID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&payments).Error
	return payments, err
}
