package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/estate-ops/internal/api/http/handlers"
	"github.com/spec-kit/estate-ops/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Requests       *handlers.RequestsHandler
	Staff          *handlers.StaffHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/residents/register", cfg.Auth.RegisterResident)
	authGroup.Post("/residents/login", cfg.Auth.LoginResident)
	authGroup.Post("/staff/login", cfg.Auth.LoginStaff)

	protectedAuth := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	protectedAuth.Post("/password/change", cfg.Auth.ChangePassword)

	api := app.Group("/api", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())

	requests := api.Group("/requests")
	requests.Post("", auth.RequireResident(), cfg.Requests.Create)
	requests.Get("", cfg.Requests.List)
	requests.Get("/:id", cfg.Requests.Get)
	requests.Post("/:id/transition", cfg.Requests.Transition)
	requests.Post("/:id/assign", cfg.Requests.Assign)
	requests.Get("/:id/candidates", cfg.Requests.Candidates)
	requests.Get("/:id/audit", cfg.Requests.Audit)
	requests.Get("/:id/assignments", cfg.Requests.Assignments)
	requests.Post("/:id/feedback", auth.RequireResident(), cfg.Requests.Feedback)

	staff := api.Group("/staff")
	staff.Get("/:id/workload", cfg.Staff.Workload)
	staff.Put("/:id/reporting", cfg.Staff.SetReporting)
}
