package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Invoice is a customer-facing bill issued by an organization. Each invoice
// carries a unique feedback token; the QR code printed on the PDF points at
// the public feedback URL for that token.
type Invoice struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	OrganizationID uint       `gorm:"not null;index" json:"organization_id"`
	InvoiceNumber  string     `gorm:"type:varchar(40);not null;uniqueIndex" json:"invoice_number"`
	CustomerName   string     `gorm:"type:varchar(150);not null" json:"customer_name"`
	CustomerEmail  string     `gorm:"type:varchar(200);default:''" json:"customer_email"`
	AmountDue      float64    `gorm:"type:decimal(12,2);not null;default:0" json:"amount_due"`
	Currency       string     `gorm:"type:varchar(8);not null;default:'INR'" json:"currency"`
	FeedbackToken  string     `gorm:"type:varchar(32);not null;uniqueIndex" json:"feedback_token"`
	ThankYouNote   string     `gorm:"type:text" json:"thank_you_note"`
	PDFObjectKey   string     `gorm:"type:varchar(255);default:''" json:"-"`
	EmailedAt      *time.Time `gorm:"type:timestamp;default:null" json:"emailed_at,omitempty"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewInvoiceNumber derives a short human-readable invoice number from a
// fresh UUID, e.g. "INV-2026-4F9A1C2B".
func NewInvoiceNumber(now time.Time) string {
	id := uuid.NewString()
	short := strings.ToUpper(strings.ReplaceAll(id, "-", "")[:8])
	return fmt.Sprintf("INV-%d-%s", now.Year(), short)
}
