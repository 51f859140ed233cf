package router

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/invisifeed/invisifeed/app/controllers"
	"github.com/invisifeed/invisifeed/internal/pkg/constants"
)

type PublicRouter struct {
}

func (h PublicRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Feedback short-links are public and unauthenticated; a per-IP limit
	// keeps token scanning expensive.
	feedback := app.Group(constants.FeedbackRoute, limiter.New(limiter.Config{
		Max:        30,
		Expiration: 1 * time.Minute,
		Storage:    newLimiterStorage(),
	}))
	feedback.Get("/:token", controllers.HandleGetFeedbackForm)
	feedback.Post("/:token", controllers.HandleSubmitFeedback)
}

func NewPublicRouter() *PublicRouter {
	return &PublicRouter{}
}
