package router

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/invisifeed/invisifeed/app/controllers"
	"github.com/invisifeed/invisifeed/internal/pkg/constants"
	"github.com/invisifeed/invisifeed/internal/pkg/env"
	"github.com/invisifeed/invisifeed/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	// The webhook endpoint lives outside the rate limiter: the provider
	// retries on any non-2xx and must never be throttled into redelivery
	// storms.
	app.Post(constants.WebhookRazorpayRoute, controllers.HandleRazorpayWebhook)

	api := app.Group(constants.APIRoute, limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		Storage:    newLimiterStorage(),
	}))
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "InvisiFeed API",
		})
	})

	v1 := api.Group("/v1")

	// Account creation is the only unauthenticated API operation.
	v1.Post("/organizations", controllers.HandleRegisterOrganization)

	authed := v1.Group("", middleware.APIKeyAuthMiddleware())
	authed.Get("/organization", controllers.HandleGetOrganization)

	authed.Post("/invoices", controllers.HandleCreateInvoice)
	authed.Get("/invoices", controllers.HandleListInvoices)
	authed.Get("/invoices/:number", controllers.HandleGetInvoice)
	authed.Get("/invoices/:number/pdf", controllers.HandleGetInvoicePDF)

	authed.Get("/feedback", controllers.HandleListFeedback)
	authed.Get("/dashboard/metrics", controllers.HandleGetDashboardMetrics)
	authed.Get("/dashboard/insights", controllers.HandleGetDashboardInsights)

	authed.Post("/checkout/orders", controllers.HandleCreateCheckout)
	authed.Get("/payments", controllers.HandleListPayments)
	authed.Get("/subscription", controllers.HandleGetSubscription)
	authed.Post("/subscription/trial", controllers.HandleStartTrial)
	authed.Get("/subscription/history", controllers.HandleListSubscriptions)
}

// newLimiterStorage backs the rate limiter with Redis so limits hold across
// instances. Falls back to the in-memory default when Redis is unreachable.
func newLimiterStorage() fiber.Storage {
	port, err := strconv.Atoi(env.GetEnv("CACHE_PORT", "6379"))
	if err != nil {
		log.Printf("invalid CACHE_PORT, using 6379: %v", err)
		port = 6379
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("redis limiter storage unavailable: %v", r)
		}
	}()

	return redisstorage.New(redisstorage.Config{
		Host:     env.GetEnv("CACHE_HOST", "localhost"),
		Port:     port,
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		Database: 1,
	})
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
