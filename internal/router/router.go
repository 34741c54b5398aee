// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/localtours/booking-backend/internal/handler"
	"github.com/localtours/booking-backend/internal/middleware"
)

// RegisterRoutes registers routes that require no authentication.
// Currently only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication surface. Register, login,
// refresh and logout live under /v1/auth and need no session;
// /v1/me and /v1/auth/logout-all require a valid token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/logout-all", a.LogoutAll, middleware.JWTAuth(jwtSecret))

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}
