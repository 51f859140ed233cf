package router

import (
	"github.com/gofiber/fiber/v2"
)

// Router installs a set of routes on the app.
type Router interface {
	InstallRouter(app *fiber.App)
}

func InstallRouter(app *fiber.App) {
	// Public routes first so the feedback short-links are matched before
	// the API group's middleware.
	setup(app, NewPublicRouter(), NewApiRouter())
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
