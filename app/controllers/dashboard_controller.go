package controllers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/invisifeed/invisifeed/app/repository"
	"github.com/invisifeed/invisifeed/internal/pkg/entitlements"
	"github.com/invisifeed/invisifeed/internal/pkg/orgcontext"
)

const insightsCommentSample = 20

// HandleGetDashboardMetrics serves the organization's dashboard metrics.
func HandleGetDashboardMetrics(c *fiber.Ctx) error {
	orgCtx := orgcontext.FromContext(c)
	if !orgCtx.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	metrics, err := getStatsCollector().GetDashboardMetrics(orgCtx.OrganizationID)
	if err != nil {
		log.Printf("failed to compute dashboard metrics for organization %d: %v", orgCtx.OrganizationID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to compute dashboard metrics"})
	}

	return c.JSON(fiber.Map{
		"plan":    entitlements.NormalizePlan(orgCtx.Plan),
		"metrics": metrics,
	})
}

// HandleGetDashboardInsights serves an AI summary of recent feedback
// comments. Pro only.
func HandleGetDashboardInsights(c *fiber.Ctx) error {
	orgCtx := orgcontext.FromContext(c)
	if !orgCtx.IsAuthenticated {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing or invalid authentication"})
	}

	plan := entitlements.NormalizePlan(orgCtx.Plan)
	if !entitlements.AllowsAIInsights(plan) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "AI insights require the pro plan"})
	}

	comments, err := repository.GetGlobalFactory().GetFeedbackRepository().RecentComments(orgCtx.OrganizationID, insightsCommentSample)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Failed to load feedback comments"})
	}
	if len(comments) == 0 {
		return c.JSON(fiber.Map{"summary": "", "comment_count": 0})
	}

	summary, err := getInsightsGenerator().SummarizeFeedback(c.UserContext(), comments)
	if err != nil {
		log.Printf("AI feedback summary failed for organization %d: %v", orgCtx.OrganizationID, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "provider_error", "message": "Failed to generate feedback summary"})
	}

	return c.JSON(fiber.Map{"summary": summary, "comment_count": len(comments)})
}
