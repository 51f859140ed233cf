package controllers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/invisifeed/invisifeed/app/models"
	"github.com/invisifeed/invisifeed/app/repository"
	"github.com/invisifeed/invisifeed/internal/pkg/hcaptcha"
	"github.com/invisifeed/invisifeed/internal/pkg/orgcontext"
)

type submitFeedbackRequest struct {
	OverallRating       int    `json:"overall_rating"`
	QualityRating       int    `json:"quality_rating"`
	CommunicationRating int    `json:"communication_rating"`
	TimelinessRating    int    `json:"timeliness_rating"`
	ValueRating         int    `json:"value_rating"`
	Comment             string `json:"comment"`
	Anonymous           *bool  `json:"anonymous"`
	CustomerName        string `json:"customer_name"`
	CaptchaToken        string `json:"captcha_token"`
}

// HandleGetFeedbackForm resolves a feedback token to the invoice context a
// feedback page needs. Public, no authentication.
func HandleGetFeedbackForm(c *fiber.Ctx) error {
	invoice, org, status, errResp := resolveFeedbackToken(c)
	if errResp != nil {
		return c.Status(status).JSON(errResp)
	}

	_, err := repository.GetGlobalFactory().GetFeedbackRepository().GetByInvoiceID(invoice.ID)
	alreadySubmitted := err == nil

	return c.JSON(fiber.Map{
		"business_name":     org.Name,
		"invoice_number":    invoice.InvoiceNumber,
		"thank_you_note":    invoice.ThankYouNote,
		"already_submitted": alreadySubmitted,
	})
}

// HandleSubmitFeedback records a customer's response to an invoice. Each
// invoice accepts exactly one submission; anonymity is enforced before the
// row is written.
func HandleSubmitFeedback(c *fiber.Ctx) error {
	invoice, _, status, errResp := resolveFeedbackToken(c)
	if errResp != nil {
		return c.Status(status).JSON(errResp)
	}

	var req submitFeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	if ok, err := hcaptcha.Verify(req.CaptchaToken); !ok {
		log.Printf("feedback captcha rejected for invoice %d: %v", invoice.ID, err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "captcha_failed", "message": "Captcha verification failed"})
	}

	repos := repository.GetGlobalFactory()
	if _, err := repos.GetFeedbackRepository().GetByInvoiceID(invoice.ID); err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Feedback was already submitted for this invoice"})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to check existing feedback"})
	}

	anonymous := true
	if req.Anonymous != nil {
		anonymous = *req.Anonymous
	}

	feedback := &models.Feedback{
		InvoiceID:           invoice.ID,
		OrganizationID:      invoice.OrganizationID,
		OverallRating:       req.OverallRating,
		QualityRating:       req.QualityRating,
		CommunicationRating: req.CommunicationRating,
		TimelinessRating:    req.TimelinessRating,
		ValueRating:         req.ValueRating,
		Comment:             req.Comment,
		Anonymous:           anonymous,
		CustomerName:        req.CustomerName,
		SubmittedAt:         time.Now(),
	}
	feedback.Scrub()

	if err := feedback.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	if err := repos.GetFeedbackRepository().Create(feedback); err != nil {
		log.Printf("failed to save feedback for invoice %d: %v", invoice.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to save feedback"})
	}

	getStatsCollector().Invalidate(invoice.OrganizationID)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"submitted": true})
}

// HandleListFeedback returns the organization's feedback, newest first.
func HandleListFeedback(c *fiber.Ctx) error {
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
	feedback, err := repos.GetFeedbackRepository().ListByOrganization(orgCtx.OrganizationID, (page-1)*limit, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list feedback"})
	}
	total, err := repos.GetFeedbackRepository().CountByOrganization(orgCtx.OrganizationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to count feedback"})
	}

	return c.JSON(fiber.Map{
		"feedback": feedback,
		"page":     page,
		"limit":    limit,
		"total":    total,
	})
}

func resolveFeedbackToken(c *fiber.Ctx) (*models.Invoice, *models.Organization, int, fiber.Map) {
	token := c.Params("token")
	if token == "" {
		return nil, nil, fiber.StatusNotFound, fiber.Map{"error": "not_found", "message": "Unknown feedback link"}
	}

	repos := repository.GetGlobalFactory()
	invoice, err := repos.GetInvoiceRepository().GetByFeedbackToken(token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fiber.StatusNotFound, fiber.Map{"error": "not_found", "message": "Unknown feedback link"}
		}
		return nil, nil, fiber.StatusInternalServerError, fiber.Map{"error": "internal_server_error", "message": "Failed to resolve feedback link"}
	}

	org, err := repos.GetOrganizationRepository().GetByID(invoice.OrganizationID)
	if err != nil {
		return nil, nil, fiber.StatusInternalServerError, fiber.Map{"error": "internal_server_error", "message": "Failed to resolve feedback link"}
	}

	return invoice, org, fiber.StatusOK, nil
}
