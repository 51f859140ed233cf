package controllers

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/invisifeed/invisifeed/app/models"
	"github.com/invisifeed/invisifeed/app/repository"
	"github.com/invisifeed/invisifeed/internal/pkg/entitlements"
	"github.com/invisifeed/invisifeed/internal/pkg/orgcontext"
)

const mysqlErrDuplicateEntry = 1062

type registerOrganizationRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegisterOrganization creates a new organization account. The raw
// API key is returned exactly once; only its hash is stored.
func HandleRegisterOrganization(c *fiber.Ctx) error {
	var req registerOrganizationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "Invalid request body"})
	}

	org, rawKey, err := models.CreateOrganization(
		strings.TrimSpace(req.Name),
		strings.TrimSpace(strings.ToLower(req.Email)),
		req.Password,
	)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "validation_failed", "message": err.Error()})
	}

	if err := repository.GetGlobalFactory().GetOrganizationRepository().Create(org); err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlErrDuplicateEntry {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Email is already registered"})
		}
		log.Printf("failed to create organization: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to create organization"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"organization": fiber.Map{
			"id":         org.PublicID,
			"name":       org.Name,
			"email":      org.Email,
			"created_at": org.CreatedAt,
		},
		"api_key": rawKey,
		"notice":  "Store this API key now. It cannot be retrieved again.",
	})
}

// HandleGetOrganization returns the authenticated organization's profile
// and effective plan.
func HandleGetOrganization(c *fiber.Ctx) error {
	orgCtx := orgcontext.FromContext(c)
	if !orgCtx.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	org, err := repository.GetGlobalFactory().GetOrganizationRepository().GetByID(orgCtx.OrganizationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "Organization not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load organization"})
	}

	plan := entitlements.NormalizePlan(orgCtx.Plan)
	limit := entitlements.MonthlyInvoiceLimit(plan)

	monthStart := monthStartNow()
	issued, err := repository.GetGlobalFactory().GetInvoiceRepository().CountByOrganizationSince(org.ID, monthStart)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load invoice usage"})
	}

	resp := fiber.Map{
		"id":         org.PublicID,
		"name":       org.Name,
		"email":      org.Email,
		"status":     org.Status,
		"plan":       plan,
		"created_at": org.CreatedAt,
		"usage": fiber.Map{
			"invoices_this_month": issued,
		},
	}
	if limit != entitlements.UnlimitedInvoices {
		resp["usage"].(fiber.Map)["monthly_invoice_limit"] = limit
	}
	return c.JSON(resp)
}

func monthStartNow() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}
