package repository

import (
	"github.com/invisifeed/invisifeed/app/models"
	"gorm.io/gorm"
)

// subscriptionRepository implements the SubscriptionRepository interface.
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance.
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) GetActiveByOrganization(organizationID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("organization_id = ? AND status = ?", organizationID, models.SubscriptionStatusActive).
		Order("start_date DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) ListByOrganization(organizationID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("organization_id = ?", organizationID).
		Order("start_date DESC").
		Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) Create(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}
