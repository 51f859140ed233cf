package invoicing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/skip2/go-qrcode"

	"github.com/invisifeed/invisifeed/app/models"
	"github.com/invisifeed/invisifeed/app/repository"
	"github.com/invisifeed/invisifeed/internal/pkg/aiinsights"
	"github.com/invisifeed/invisifeed/internal/pkg/entitlements"
	"github.com/invisifeed/invisifeed/internal/pkg/mail"
	"github.com/invisifeed/invisifeed/internal/pkg/storage"
	"github.com/invisifeed/invisifeed/internal/pkg/token"
)

// ErrQuotaExceeded is returned when a free-plan organization has already
// issued its monthly invoice allowance.
var ErrQuotaExceeded = errors.New("monthly invoice quota exceeded")

const qrCodeSizePx = 256

// CreateInvoiceInput carries the caller-provided invoice fields.
type CreateInvoiceInput struct {
	CustomerName  string  `json:"customer_name" validate:"required,min=2,max=150"`
	CustomerEmail string  `json:"customer_email" validate:"omitempty,email"`
	AmountDue     float64 `json:"amount_due" validate:"required,gt=0"`
	Currency      string  `json:"currency" validate:"omitempty,len=3"`
}

// Service issues invoices: it enforces plan quotas, mints the feedback
// token, renders the PDF with its QR code, uploads it and emails the
// customer.
type Service struct {
	invoices     repository.InvoiceRepository
	store        storage.ObjectStore
	storageCfg   *storage.Config
	notes        aiinsights.Generator
	renderer     PDFRenderer
	publicDomain string

	// Injection points for tests.
	sendInvoiceMail func(to, businessName, invoiceNumber, feedbackURL, note string) error
	now             func() time.Time

	validate *validator.Validate
}

// NewService wires an invoicing service from its collaborators.
func NewService(invoices repository.InvoiceRepository, store storage.ObjectStore, storageCfg *storage.Config, notes aiinsights.Generator, renderer PDFRenderer, publicDomain string) *Service {
	return &Service{
		invoices:        invoices,
		store:           store,
		storageCfg:      storageCfg,
		notes:           notes,
		renderer:        renderer,
		publicDomain:    strings.TrimRight(publicDomain, "/"),
		sendInvoiceMail: mail.SendInvoiceMail,
		now:             time.Now,
		validate:        validator.New(),
	}
}

// FeedbackURL returns the public feedback link for a token.
func (s *Service) FeedbackURL(feedbackToken string) string {
	return fmt.Sprintf("%s/f/%s", s.publicDomain, feedbackToken)
}

// CreateInvoice issues a new invoice for the organization. The feedback QR
// code and thank-you note are baked into the PDF before it is stored.
func (s *Service) CreateInvoice(ctx context.Context, org *models.Organization, plan entitlements.Plan, in CreateInvoiceInput) (*models.Invoice, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, err
	}

	now := s.now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	issued, err := s.invoices.CountByOrganizationSince(org.ID, monthStart)
	if err != nil {
		return nil, fmt.Errorf("failed to count invoices for quota: %w", err)
	}
	if !entitlements.WithinInvoiceQuota(plan, issued) {
		return nil, ErrQuotaExceeded
	}

	feedbackToken, err := token.GenerateFeedbackToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate feedback token: %w", err)
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "INR"
	}

	note, err := s.notes.GenerateThankYouNote(ctx, org.Name, in.CustomerName)
	if err != nil {
		log.Printf("thank-you note generation failed, using fallback: %v", err)
		note = fmt.Sprintf("Thank you for your business, %s!", in.CustomerName)
	}

	invoice := &models.Invoice{
		OrganizationID: org.ID,
		InvoiceNumber:  models.NewInvoiceNumber(now),
		CustomerName:   strings.TrimSpace(in.CustomerName),
		CustomerEmail:  strings.TrimSpace(in.CustomerEmail),
		AmountDue:      in.AmountDue,
		Currency:       currency,
		FeedbackToken:  feedbackToken,
		ThankYouNote:   note,
	}

	feedbackURL := s.FeedbackURL(feedbackToken)
	qrPNG, err := qrcode.Encode(feedbackURL, qrcode.Medium, qrCodeSizePx)
	if err != nil {
		return nil, fmt.Errorf("failed to encode feedback QR code: %w", err)
	}

	pdfBytes, err := s.renderer.Render(RenderData{
		BusinessName: org.Name,
		Invoice:      invoice,
		FeedbackURL:  feedbackURL,
		QRCodePNG:    qrPNG,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render invoice PDF: %w", err)
	}

	key := s.storageCfg.InvoiceObjectKey(invoice.InvoiceNumber, now)
	if err := s.store.PutObject(ctx, key, pdfBytes, "application/pdf"); err != nil {
		return nil, fmt.Errorf("failed to store invoice PDF: %w", err)
	}
	invoice.PDFObjectKey = key

	if err := s.invoices.Create(invoice); err != nil {
		return nil, fmt.Errorf("failed to save invoice: %w", err)
	}

	if invoice.CustomerEmail != "" {
		if err := s.sendInvoiceMail(invoice.CustomerEmail, org.Name, invoice.InvoiceNumber, feedbackURL, note); err != nil {
			log.Printf("failed to email invoice %s: %v", invoice.InvoiceNumber, err)
		} else if err := s.invoices.MarkEmailed(invoice.ID, s.now()); err != nil {
			log.Printf("failed to mark invoice %s as emailed: %v", invoice.InvoiceNumber, err)
		}
	}

	return invoice, nil
}

// DownloadURL returns a time-limited link to the stored invoice PDF.
func (s *Service) DownloadURL(ctx context.Context, invoice *models.Invoice) (string, error) {
	if invoice.PDFObjectKey == "" {
		return "", errors.New("invoice has no stored PDF")
	}
	return s.store.PresignGet(ctx, invoice.PDFObjectKey)
}
