package models

import "time"

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Payment tracks one provider-side charge attempt. A row is created in
// pending state when a checkout order is initiated and is mutated to
// completed/failed/refunded exclusively by the webhook reconciler.
// Amount is stored in major currency units after minor-unit conversion.
type Payment struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	OrganizationID    uint       `gorm:"not null;index" json:"organization_id"`
	ProviderOrderID   string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"provider_order_id"`
	ProviderPaymentID string     `gorm:"type:varchar(191);default:'';index" json:"provider_payment_id"`
	Status            string     `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	Amount            float64    `gorm:"type:decimal(12,2);not null;default:0" json:"amount"`
	Currency          string     `gorm:"type:varchar(8);not null;default:'INR'" json:"currency"`
	PaidAt            *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	SubscriptionID    *uint      `gorm:"index" json:"subscription_id,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsCompletedFor reports whether this payment already recorded the given
// provider payment id as captured. Used for idempotent webhook replay.
func (p *Payment) IsCompletedFor(providerPaymentID string) bool {
	return p.Status == PaymentStatusCompleted && p.ProviderPaymentID == providerPaymentID
}
