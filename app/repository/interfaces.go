package repository

import (
	"time"

	"github.com/invisifeed/invisifeed/app/models"
	"gorm.io/gorm"
)

// OrganizationRepository defines the interface for organization-related
// database operations.
type OrganizationRepository interface {
	Create(org *models.Organization) error
	GetByID(id uint) (*models.Organization, error)
	GetByEmail(email string) (*models.Organization, error)
	GetByAPIKeyHash(hash string) (*models.Organization, error)
	Update(org *models.Organization) error
	TouchLastActive(id uint) error
}

// InvoiceRepository defines the interface for invoice-related database
// operations.
type InvoiceRepository interface {
	Create(invoice *models.Invoice) error
	GetByNumber(organizationID uint, number string) (*models.Invoice, error)
	GetByFeedbackToken(token string) (*models.Invoice, error)
	ListByOrganization(organizationID uint, offset, limit int) ([]models.Invoice, error)
	CountByOrganization(organizationID uint) (int64, error)
	CountByOrganizationSince(organizationID uint, since time.Time) (int64, error)
	MarkEmailed(id uint, at time.Time) error
}

// FeedbackRepository defines the interface for feedback-related database
// operations.
type FeedbackRepository interface {
	Create(fb *models.Feedback) error
	GetByInvoiceID(invoiceID uint) (*models.Feedback, error)
	ListByOrganization(organizationID uint, offset, limit int) ([]models.Feedback, error)
	CountByOrganization(organizationID uint) (int64, error)
	GetDailyStats(organizationID uint, startDate, endDate time.Time) ([]models.DailyFeedbackStats, error)
	AverageOverallRating(organizationID uint) (float64, error)
	RecentComments(organizationID uint, limit int) ([]string, error)
}

// PaymentRepository defines the simple CRUD surface used by the checkout
// flow. Webhook reconciliation uses its own transaction-aware repository
// in internal/pkg/payments.
type PaymentRepository interface {
	Create(p *models.Payment) error
	GetByProviderOrderID(orderID string) (*models.Payment, error)
	ListByOrganization(organizationID uint, offset, limit int) ([]models.Payment, error)
}

// SubscriptionRepository defines read and trial-creation operations on
// subscriptions. Status transitions driven by provider events belong to
// the reconciler, not here.
type SubscriptionRepository interface {
	GetActiveByOrganization(organizationID uint) (*models.Subscription, error)
	ListByOrganization(organizationID uint) ([]models.Subscription, error)
	Create(sub *models.Subscription) error
}

// Repositories struct holds all repository instances.
type Repositories struct {
	Organization OrganizationRepository
	Invoice      InvoiceRepository
	Feedback     FeedbackRepository
	Payment      PaymentRepository
	Subscription SubscriptionRepository
}

// NewRepositories creates a new instance of all repositories.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Organization: NewOrganizationRepository(db),
		Invoice:      NewInvoiceRepository(db),
		Feedback:     NewFeedbackRepository(db),
		Payment:      NewPaymentRepository(db),
		Subscription: NewSubscriptionRepository(db),
	}
}
