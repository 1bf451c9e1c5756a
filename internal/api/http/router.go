package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/field-service/internal/api/http/handlers"
	"github.com/fieldops/field-service/internal/auth"
	"github.com/fieldops/field-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Attendance     *handlers.AttendanceHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Ticket creation and reads take an
// optional token; every transition requires one.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/register",
		cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleManager), cfg.Auth.Register)

	tickets := app.Group("/tickets")
	tickets.Post("/", cfg.AuthMiddleware.HandleOptional, cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.AuthMiddleware.Handle, cfg.Tickets.ListTickets)
	tickets.Get("/available", cfg.AuthMiddleware.Handle, cfg.Tickets.ListAvailable)
	tickets.Get("/mine", cfg.AuthMiddleware.Handle, cfg.Tickets.ListMine)
	tickets.Get("/summary",
		cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleManager), cfg.Tickets.Summary)
	tickets.Get("/:id", cfg.AuthMiddleware.HandleOptional, cfg.Tickets.GetTicket)
	tickets.Patch("/:id", cfg.AuthMiddleware.Handle, cfg.Tickets.UpdateTicket)
	tickets.Post("/:id/assign", cfg.AuthMiddleware.Handle, cfg.Tickets.AssignTicket)
	tickets.Post("/:id/unassign", cfg.AuthMiddleware.Handle, cfg.Tickets.UnassignTicket)
	tickets.Patch("/:id/status", cfg.AuthMiddleware.Handle, cfg.Tickets.UpdateStatus)
	tickets.Post("/:id/complete", cfg.AuthMiddleware.Handle, cfg.Tickets.CompleteTicket)
	tickets.Post("/:id/close", cfg.AuthMiddleware.Handle, cfg.Tickets.CloseTicket)
	tickets.Post("/:id/auto-assign",
		cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleManager), cfg.Tickets.AutoAssign)
	tickets.Get("/:id/suggested-engineers",
		cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleManager), cfg.Tickets.SuggestedEngineers)

	attendance := app.Group("/attendance", cfg.AuthMiddleware.Handle)
	attendance.Post("/check-in", cfg.Attendance.CheckIn)
	attendance.Post("/check-out", cfg.Attendance.CheckOut)
	attendance.Get("/status", cfg.Attendance.Status)
	attendance.Get("/history", cfg.Attendance.History)
	attendance.Get("/stats", cfg.Attendance.Stats)
}
