package handler

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/domain"
)

// Routes is what RegisterRoutes mounts. AuthLimiter and Metrics are optional.
type Routes struct {
	Auth        *AuthHandler
	Accounts    *AccountHandler
	AuthLimiter fiber.Handler
	Metrics     http.Handler
}

func RegisterRoutes(app *fiber.App, r Routes) {
	h := r.Auth

	app.Get("/healthz", h.Health)
	if r.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(r.Metrics))
	}

	auth := app.Group("/auth")
	if r.AuthLimiter != nil {
		auth.Use(r.AuthLimiter)
	}
	auth.Post("/login", h.Login)
	auth.Post("/refresh", h.Refresh)
	auth.Post("/logout", h.RequireAuth(), h.Logout)
	auth.Get("/me", h.RequireAuth(), h.Me)
	if h.auth.GoogleEnabled() {
		auth.Get("/google/url", h.GoogleAuthURL)
		auth.Post("/google", h.GoogleLogin)
	}

	if r.Accounts == nil {
		return
	}
	a := r.Accounts
	accounts := app.Group("/accounts", h.RequireAuth())
	accounts.Post("/", h.RequirePermission(domain.PermUsersCreate), a.Create)
	accounts.Get("/", h.RequirePermission(domain.PermUsersRead), a.List)
	accounts.Patch("/:id/role", h.RequirePermission(domain.PermUsersUpdate), a.UpdateRole)
	accounts.Patch("/:id/deactivate", h.RequirePermission(domain.PermUsersUpdate), a.Deactivate)
	accounts.Patch("/:id/activate", h.RequirePermission(domain.PermUsersUpdate), a.Activate)
	accounts.Get("/:id/sessions", h.RequirePermission(domain.PermUsersRead), a.ListSessions)
	accounts.Delete("/:id/sessions", h.RequirePermission(domain.PermUsersUpdate), a.RevokeSessions)
}
