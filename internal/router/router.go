// Package router wires handlers and middleware onto an echo instance.
package router

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/innovatube/innovatube-api/internal/handler"
	"github.com/innovatube/innovatube-api/internal/middleware"
	"github.com/innovatube/innovatube-api/internal/service"
)

// RegisterRoutes registers the unauthenticated service endpoints.
func RegisterRoutes(e *echo.Echo, env string) {
	e.GET("/", handler.Index)
	e.GET("/health", handler.Health(env))
}

// RegisterAuth mounts the /auth group.  limiter wraps every route of the
// group; on logout and me it runs after SessionAuth so per-user key
// strategies see the resolved user.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, r *handler.ResetHandler, sessions middleware.SessionResolver, limiter echo.MiddlewareFunc) {
	g := e.Group("/auth")
	g.POST("/register", a.Register, limiter)
	g.POST("/login", a.Login, limiter)

	authed := middleware.SessionAuth(sessions, isInvalidSession)
	g.POST("/logout", a.Logout, authed, limiter)
	g.GET("/me", a.Me, authed, limiter)

	pr := g.Group("/password-reset", limiter)
	pr.POST("/request", r.Request)
	pr.POST("/verify", r.Verify)
	pr.POST("/confirm", r.Confirm)
}

func isInvalidSession(err error) bool {
	return errors.Is(err, service.ErrInvalidSession)
}
