package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-sync/internal/api/http/handlers"
	"github.com/spec-kit/ticket-sync/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Desk           *handlers.DeskHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api/support", cfg.AuthMiddleware.Handle)
	api.Get("/tickets", cfg.Tickets.ListTickets)
	api.Post("/tickets", cfg.Tickets.CreateTicket)
	api.Get("/tickets/:id", cfg.Tickets.GetTicket)
	api.Post("/tickets/:id/replies", cfg.Tickets.AddReply)

	desk := api.Group("/desk", auth.RequireStaff())
	desk.Get("/tickets", cfg.Desk.ListTickets)
	desk.Get("/tickets/:id", cfg.Desk.GetTicket)
	desk.Post("/tickets/:id/replies", cfg.Desk.AddReply)
	desk.Patch("/tickets/:id", cfg.Desk.UpdateTicket)
}
