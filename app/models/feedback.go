package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Feedback is a customer's response to an invoice's feedback link. Ratings
// are 1-5 across fixed categories. When Anonymous is set the customer name
// is discarded before persistence.
type Feedback struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	InvoiceID           uint      `gorm:"not null;uniqueIndex" json:"invoice_id"`
	OrganizationID      uint      `gorm:"not null;index:idx_feedback_org_submitted,priority:1" json:"organization_id"`
	OverallRating       int       `gorm:"not null" json:"overall_rating" validate:"required,min=1,max=5"`
	QualityRating       int       `gorm:"not null" json:"quality_rating" validate:"required,min=1,max=5"`
	CommunicationRating int       `gorm:"not null" json:"communication_rating" validate:"required,min=1,max=5"`
	TimelinessRating    int       `gorm:"not null" json:"timeliness_rating" validate:"required,min=1,max=5"`
	ValueRating         int       `gorm:"not null" json:"value_rating" validate:"required,min=1,max=5"`
	Comment             string    `gorm:"type:text" json:"comment" validate:"max=2000"`
	Anonymous           bool      `gorm:"default:true" json:"anonymous"`
	CustomerName        string    `gorm:"type:varchar(150);default:''" json:"customer_name,omitempty" validate:"max=150"`
	SubmittedAt         time.Time `gorm:"type:timestamp;not null;index:idx_feedback_org_submitted,priority:2" json:"submitted_at"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (f *Feedback) Validate() error {
	v := validator.New()

	return v.Struct(f)
}

// Scrub enforces the anonymity choice before persistence.
func (f *Feedback) Scrub() {
	if f.Anonymous {
		f.CustomerName = ""
	}
}

// DailyFeedbackStats is one dashboard bucket: feedback volume and average
// overall rating for a single day.
type DailyFeedbackStats struct {
	Date          time.Time `json:"date"`
	Count         int64     `json:"count"`
	AverageRating float64   `json:"average_rating"`
}
