package routes

import (
	"github.com/eventdeck/gatehouse/internal/handlers"
	"github.com/eventdeck/gatehouse/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	adminHandler *handlers.AdminHandler,
	loginRequestsPerMinute int,
	operatorToken string,
) {
	rateLimitConfig := middleware.RateLimitConfig{RequestsPerMinute: loginRequestsPerMinute}

	// Public routes - consumed by the console UI
	router.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/auth/login", authHandler.Login)
	router.Post("/auth/logout", authHandler.Logout)
	router.Post("/auth/heartbeat", authHandler.Heartbeat)

	// Operator console routes
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireOperator(operatorToken))

		r.Get("/admin/sessions", adminHandler.ListSessions)
		r.Get("/admin/users/{userID}/sessions", adminHandler.ListUserSessions)
		r.Post("/admin/sessions/{token}/terminate", adminHandler.ForceLogout)
		r.Get("/admin/audit", adminHandler.QueryAuditLog)
		r.Get("/admin/audit/statistics", adminHandler.GetStatistics)
	})
}
