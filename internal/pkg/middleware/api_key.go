package middleware

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/invisifeed/invisifeed/app/models"
	"github.com/invisifeed/invisifeed/app/repository"
	"github.com/invisifeed/invisifeed/internal/pkg/database"
	"github.com/invisifeed/invisifeed/internal/pkg/entitlements"
	"github.com/invisifeed/invisifeed/internal/pkg/orgcontext"
)

// APIKeyAuthMiddleware authenticates requests carrying an organization API key.
func APIKeyAuthMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := extractAPIKeyFromHeader(c)
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing API key"})
		}

		if database.GetDB() == nil {
			log.Print("api key middleware: database unavailable")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Database unavailable"})
		}

		hash := models.HashAPIKey(apiKey)
		repos := repository.GetGlobalFactory()
		org, err := repos.GetOrganizationRepository().GetByAPIKeyHash(hash)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid API key"})
			}
			log.Printf("api key lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "API key verification failed"})
		}

		if org.Status != models.STATUS_ACTIVE {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Organization inactive"})
		}

		plan := entitlements.PlanFree
		if sub, err := repos.GetSubscriptionRepository().GetActiveByOrganization(org.ID); err == nil {
			plan = entitlements.PlanFor(sub, time.Now())
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("subscription lookup failed for organization %d: %v", org.ID, err)
		}

		// Refresh last-used timestamp best-effort.
		if err := repos.GetOrganizationRepository().TouchLastActive(org.ID); err != nil {
			log.Printf("failed to update api key usage timestamp for organization %d: %v", org.ID, err)
		}

		orgcontext.Set(c, orgcontext.OrgContext{
			OrganizationID:  org.ID,
			PublicID:        org.PublicID,
			Name:            org.Name,
			Plan:            string(plan),
			IsAuthenticated: true,
		})

		return c.Next()
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	apiKey := strings.TrimSpace(c.Get("X-API-Key"))
	if apiKey != "" {
		return apiKey
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
