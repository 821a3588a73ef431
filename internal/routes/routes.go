package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SmakGames/Companion/internal/handlers"
	"github.com/SmakGames/Companion/internal/middleware"
)

// SetupRoutes registers all HTTP endpoints. requireAuth wraps the routes that
// need a valid session.
func SetupRoutes(r *chi.Mux, requireAuth func(http.Handler) http.Handler) {
	// Public auth routes
	r.Post("/api/auth/signup", handlers.Signup)
	r.Post("/api/auth/signin", handlers.Signin)
	r.Post("/api/auth/reset-password", handlers.ResetPassword)

	// Session-protected routes
	r.Group(func(g chi.Router) {
		g.Use(requireAuth)

		g.Get("/api/auth/me", handlers.Me)
		g.Post("/api/auth/signout", handlers.Signout)
		g.Post("/api/auth/security-answer", handlers.SetSecurityAnswer)

		g.Get("/api/account/status", handlers.AccountStatus)
		g.Get("/api/profile", handlers.Profile)
		g.Put("/api/profile", handlers.UpdateProfile)

		g.Get("/api/chat/history", handlers.History)
		g.Post("/api/chat/context", handlers.BuildContext)

		// Talk gets its own per-IP limiter on top of the global one
		g.With(middleware.TalkRateLimit).Post("/api/talk", handlers.Talk)
	})

	// WebSocket talk endpoint authenticates itself from the token
	r.Get("/ws/talk", handlers.TalkWebSocket)
}
