package payments

import (
	"time"

	"github.com/invisifeed/invisifeed/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations used by the reconciler. All methods
// operate on whatever handle the repository was built with, so the same
// interface serves both plain reads and transactional bodies: Transact
// hands fn a repository bound to the transaction.
type Repository interface {
	FindCompletedPayment(providerOrderID, providerPaymentID string) (*models.Payment, error)
	FindPaymentByOrderID(providerOrderID string, forUpdate bool) (*models.Payment, error)
	FindPaymentByProviderPaymentID(providerPaymentID string, forUpdate bool) (*models.Payment, error)
	SavePayment(p *models.Payment) error
	GetSubscriptionByID(id uint) (*models.Subscription, error)
	CreateSubscription(sub *models.Subscription) error
	ExpireActiveSubscriptions(organizationID uint) error
	CancelActiveSubscriptions(organizationID uint, at time.Time, reason string) error
	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
	Transact(fn func(Repository) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a reconciliation repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) FindCompletedPayment(providerOrderID, providerPaymentID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.
		Where("provider_order_id = ? AND provider_payment_id = ? AND status = ?",
			providerOrderID, providerPaymentID, models.PaymentStatusCompleted).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) FindPaymentByOrderID(providerOrderID string, forUpdate bool) (*models.Payment, error) {
	var p models.Payment
	q := r.db
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.Where("provider_order_id = ?", providerOrderID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) FindPaymentByProviderPaymentID(providerPaymentID string, forUpdate bool) (*models.Payment, error) {
	var p models.Payment
	q := r.db
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.Where("provider_payment_id = ?", providerPaymentID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) SavePayment(p *models.Payment) error {
	return r.db.Save(p).Error
}

func (r *gormRepository) GetSubscriptionByID(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) CreateSubscription(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *gormRepository) ExpireActiveSubscriptions(organizationID uint) error {
	return r.db.Model(&models.Subscription{}).
		Where("organization_id = ? AND status = ?", organizationID, models.SubscriptionStatusActive).
		Update("status", models.SubscriptionStatusExpired).Error
}

func (r *gormRepository) CancelActiveSubscriptions(organizationID uint, at time.Time, reason string) error {
	return r.db.Model(&models.Subscription{}).
		Where("organization_id = ? AND status = ?", organizationID, models.SubscriptionStatusActive).
		Updates(map[string]interface{}{
			"status":        models.SubscriptionStatusCancelled,
			"cancelled_at":  &at,
			"cancel_reason": reason,
		}).Error
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) Transact(fn func(Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}
