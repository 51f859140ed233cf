package models

import "time"

const (
	PlanFree = "free"
	PlanPro  = "pro"
)

const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusExpired   = "expired"
	SubscriptionStatusCancelled = "cancelled"
)

// ProPlanDuration is the entitlement window granted per captured payment.
const ProPlanDuration = 30 * 24 * time.Hour

// Subscription is an organization's paid-plan entitlement window.
// At most one subscription per organization may be active at any instant;
// the reconciler expires prior active rows in the same transaction that
// activates a new one.
type Subscription struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	OrganizationID uint       `gorm:"not null;index:idx_subscriptions_org_status,priority:1" json:"organization_id"`
	Plan           string     `gorm:"type:varchar(20);not null;default:'free'" json:"plan"`
	Status         string     `gorm:"type:varchar(32);not null;default:'active';index:idx_subscriptions_org_status,priority:2" json:"status"`
	StartDate      time.Time  `gorm:"type:timestamp;not null" json:"start_date"`
	EndDate        *time.Time `gorm:"type:timestamp;default:null" json:"end_date,omitempty"`
	CancelledAt    *time.Time `gorm:"type:timestamp;default:null" json:"cancelled_at,omitempty"`
	CancelReason   string     `gorm:"type:varchar(191);default:''" json:"cancel_reason,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsCurrent reports whether the subscription is active and its window has
// not lapsed at the given instant. Free plans may have no end date.
func (s *Subscription) IsCurrent(now time.Time) bool {
	if s.Status != SubscriptionStatusActive {
		return false
	}
	if s.EndDate == nil {
		return true
	}
	return s.EndDate.After(now)
}
