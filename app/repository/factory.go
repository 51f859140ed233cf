package repository

import (
	"sync"

	"gorm.io/gorm"
)

// Factory manages repository instances and ensures they are singletons.
type Factory struct {
	db    *gorm.DB
	repos *Repositories
	once  sync.Once
}

// NewFactory creates a new repository factory.
func NewFactory(db *gorm.DB) *Factory {
	return &Factory{
		db: db,
	}
}

// GetRepositories returns a singleton instance of all repositories.
func (f *Factory) GetRepositories() *Repositories {
	f.once.Do(func() {
		f.repos = NewRepositories(f.db)
	})
	return f.repos
}

// GetOrganizationRepository returns the organization repository instance.
func (f *Factory) GetOrganizationRepository() OrganizationRepository {
	return f.GetRepositories().Organization
}

// GetInvoiceRepository returns the invoice repository instance.
func (f *Factory) GetInvoiceRepository() InvoiceRepository {
	return f.GetRepositories().Invoice
}

// GetFeedbackRepository returns the feedback repository instance.
func (f *Factory) GetFeedbackRepository() FeedbackRepository {
	return f.GetRepositories().Feedback
}

// GetPaymentRepository returns the payment repository instance.
func (f *Factory) GetPaymentRepository() PaymentRepository {
	return f.GetRepositories().Payment
}

// GetSubscriptionRepository returns the subscription repository instance.
func (f *Factory) GetSubscriptionRepository() SubscriptionRepository {
	return f.GetRepositories().Subscription
}

var globalFactory *Factory

// InitializeFactory sets up the global repository factory.
func InitializeFactory(db *gorm.DB) {
	globalFactory = NewFactory(db)
}

// GetGlobalFactory returns the global repository factory instance.
func GetGlobalFactory() *Factory {
	if globalFactory == nil {
		panic("Repository factory not initialized. Call InitializeFactory first.")
	}
	return globalFactory
}

// GetGlobalRepositories returns the global repositories instance.
func GetGlobalRepositories() *Repositories {
	return GetGlobalFactory().GetRepositories()
}
