package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-sync/internal/api/http/handlers"
	"github.com/spec-kit/ticket-sync/internal/auth"
	"github.com/spec-kit/ticket-sync/internal/observability"
	"github.com/spec-kit/ticket-sync/internal/service"
)

// ServerDeps bundles what the desk API needs.
type ServerDeps struct {
	Name    string
	Version string
	Timeout time.Duration
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Tokens  *auth.TokenManager
	Desk    *service.DeskService
	Redis   handlers.Pinger
}

// NewApp builds the fiber app with middlewares and routes registered.
func NewApp(deps ServerDeps) *fiber.App {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	app := fiber.New(fiber.Config{
		AppName:               deps.Name,
		DisableStartupMessage: true,
	})
	RegisterMiddlewares(app, deps.Logger, deps.Metrics, deps.Timeout)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler(deps.Name, deps.Version, deps.Redis),
		Tickets:        handlers.NewTicketsHandler(deps.Desk),
		Desk:           handlers.NewDeskHandler(deps.Desk),
		AuthMiddleware: auth.NewAuthMiddleware(deps.Tokens),
	})
	return app
}
