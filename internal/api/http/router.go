package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/nailsalon/admin-gate/internal/api/http/handlers"
	"github.com/nailsalon/admin-gate/internal/auth"
)

// ProxyPath is where the admin web app sends proxy commands.
const ProxyPath = "/functions/v1/admin-db-proxy"

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Proxy          *handlers.ProxyHandler
	AuthMiddleware *auth.APIKeyMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	chain := []fiber.Handler{cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "POST, OPTIONS",
		AllowHeaders: "authorization, x-client-info, apikey, content-type",
	})}
	if cfg.AuthMiddleware != nil {
		chain = append(chain, cfg.AuthMiddleware.Handle)
	}
	fn := app.Group(ProxyPath, chain...)
	fn.Options("", cfg.Proxy.Preflight)
	fn.Post("", cfg.Proxy.Execute)
	fn.All("", cfg.Proxy.MethodNotAllowed)
}
