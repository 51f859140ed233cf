package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/invisifeed/invisifeed/app/models"
	"github.com/invisifeed/invisifeed/app/repository"
	"github.com/invisifeed/invisifeed/internal/pkg/entitlements"
	"github.com/invisifeed/invisifeed/internal/pkg/orgcontext"
)

// HandleGetSubscription returns the organization's current subscription
// state and its effective plan.
func HandleGetSubscription(c *fiber.Ctx) error {
	orgCtx := orgcontext.FromContext(c)
	if !orgCtx.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	sub, err := repository.GetGlobalFactory().GetSubscriptionRepository().GetActiveByOrganization(orgCtx.OrganizationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.JSON(fiber.Map{"plan": entitlements.PlanFree, "subscription": nil})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load subscription"})
	}

	return c.JSON(fiber.Map{
		"plan":         entitlements.PlanFor(sub, time.Now()),
		"subscription": sub,
	})
}

// TrialDuration is the pro window granted to first-time organizations.
const TrialDuration = 7 * 24 * time.Hour

// HandleStartTrial grants a one-time pro trial. Organizations that ever
// held a subscription, trial or paid, are not eligible again.
func HandleStartTrial(c *fiber.Ctx) error {
	orgCtx := orgcontext.FromContext(c)
	if !orgCtx.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	repo := repository.GetGlobalFactory().GetSubscriptionRepository()
	existing, err := repo.ListByOrganization(orgCtx.OrganizationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to check subscription history"})
	}
	if len(existing) > 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Trial is only available to organizations without prior subscriptions"})
	}

	now := time.Now()
	end := now.Add(TrialDuration)
	sub := &models.Subscription{
		OrganizationID: orgCtx.OrganizationID,
		Plan:           models.PlanPro,
		Status:         models.SubscriptionStatusActive,
		StartDate:      now,
		EndDate:        &end,
	}
	if err := repo.Create(sub); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to start trial"})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"plan":         models.PlanPro,
		"subscription": sub,
	})
}

// HandleListSubscriptions returns the organization's subscription history,
// newest first.
func HandleListSubscriptions(c *fiber.Ctx) error {
	orgCtx := orgcontext.FromContext(c)
	if !orgCtx.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	subs, err := repository.GetGlobalFactory().GetSubscriptionRepository().ListByOrganization(orgCtx.OrganizationID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to list subscriptions"})
	}

	return c.JSON(fiber.Map{"subscriptions": subs})
}
