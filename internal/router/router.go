package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/essaypilot/essaypilot-api/internal/config"
	"github.com/essaypilot/essaypilot-api/internal/handler"
	"github.com/essaypilot/essaypilot-api/internal/middleware"
	"github.com/essaypilot/essaypilot-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EssayHandler   *handler.EssayHandler
	BillingHandler *handler.BillingHandler
	AdminHandler   *handler.AdminHandler
	JWTMiddleware  fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	api.Get("/metrics", observability.MetricsHandler())

	if deps.EssayHandler != nil {
		essays := api.Group("/essays", middleware.RateLimit("essays", 10, time.Minute))
		deps.EssayHandler.Register(essays)
	}

	if deps.BillingHandler != nil {
		billing := api.Group("/billing")
		deps.BillingHandler.Register(billing)
	}

	if deps.AdminHandler != nil {
		jwtMiddleware := deps.JWTMiddleware
		if jwtMiddleware == nil {
			jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
		}
		admin := api.Group("/admin", jwtMiddleware)
		deps.AdminHandler.Register(admin)
	}
}
