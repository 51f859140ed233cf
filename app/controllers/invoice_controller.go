package controllers

import (
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/invisifeed/invisifeed/app/repository"
	"github.com/invisifeed/invisifeed/internal/pkg/entitlements"
	"github.com/invisifeed/invisifeed/internal/pkg/invoicing"
	"github.com/invisifeed/invisifeed/internal/pkg/orgcontext"
)

const defaultPageSize = 25

// HandleCreateInvoice issues an invoice for the authenticated organization.
func HandleCreateInvoice(c *fiber.Ctx) error {
	orgCtx := orgcontext.FromContext(c)
	if !orgCtx.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	var input invoicing.CreateInvoiceInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	org, err := repository.GetGlobalFactory().GetOrganizationRepository().GetByID(orgCtx.OrganizationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load organization"})
	}

	svc := getInvoicingService()
	invoice, err := svc.CreateInvoice(c.UserContext(), org, entitlements.NormalizePlan(orgCtx.Plan), input)
	if err != nil {
		if errors.Is(err, invoicing.ErrQuotaExceeded) {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": "quota_exceeded", "message": "Monthly invoice limit reached. Upgrade to pro for unlimited invoices."})
		}
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
		}
		log.Printf("failed to create invoice for organization %d: %v", orgCtx.OrganizationID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create invoice"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"invoice":      invoice,
		"feedback_url": svc.FeedbackURL(invoice.FeedbackToken),
	})
}

// HandleListInvoices returns the organization's invoices, newest first.
func HandleListInvoices(c *fiber.Ctx) error {
	orgCtx := orgcontext.FromContext(c)
	if !orgCtx.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", defaultPageSize)
	if limit < 1 || limit > 100 {
		limit = defaultPageSize
	}

	repos := repository.GetGlobalFactory()
	invoices, err := repos.GetInvoiceRepository().ListByOrganization(orgCtx.OrganizationID, (page-1)*limit, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list invoices"})
	}
	total, err := repos.GetInvoiceRepository().CountByOrganization(orgCtx.OrganizationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count invoices"})
	}

	return c.JSON(fiber.Map{
		"invoices": invoices,
		"page":     page,
		"limit":    limit,
		"total":    total,
	})
}

// HandleGetInvoice returns one invoice with its feedback status.
func HandleGetInvoice(c *fiber.Ctx) error {
	orgCtx := orgcontext.FromContext(c)
	if !orgCtx.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	number := c.Params("number")
	repos := repository.GetGlobalFactory()
	invoice, err := repos.GetInvoiceRepository().GetByNumber(orgCtx.OrganizationID, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Invoice not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load invoice"})
	}

	feedbackSubmitted := false
	if _, err := repos.GetFeedbackRepository().GetByInvoiceID(invoice.ID); err == nil {
		feedbackSubmitted = true
	}

	return c.JSON(fiber.Map{
		"invoice":            invoice,
		"feedback_url":       getInvoicingService().FeedbackURL(invoice.FeedbackToken),
		"feedback_submitted": feedbackSubmitted,
	})
}

// HandleGetInvoicePDF returns a time-limited download link for an invoice.
func HandleGetInvoicePDF(c *fiber.Ctx) error {
	orgCtx := orgcontext.FromContext(c)
	if !orgCtx.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	number := c.Params("number")
	invoice, err := repository.GetGlobalFactory().GetInvoiceRepository().GetByNumber(orgCtx.OrganizationID, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Invoice not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load invoice"})
	}

	url, err := getInvoicingService().DownloadURL(c.UserContext(), invoice)
	if err != nil {
		log.Printf("failed to presign invoice %s: %v", number, err)
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No stored PDF for this invoice"})
	}

	return c.JSON(fiber.Map{"invoice_number": invoice.InvoiceNumber, "pdf_url": url})
}
