package v1

import (
	"github.com/labstack/echo/v4"

	"github.com/mhawash/polar/internal/adapters/http/api/v1/handlers"
)

type Router struct {
	handlers *handlers.OAuthHandler
	authMW   echo.MiddlewareFunc
}

func NewRouter(h *handlers.OAuthHandler, authMW echo.MiddlewareFunc) *Router {
	return &Router{handlers: h, authMW: authMW}
}

func (r *Router) Register(g *echo.Group) {
	auth := g.Group("/auth")
	auth.GET("/:platform/login", r.handlers.Login)
	auth.GET("/:platform/callback", r.handlers.Callback)
	auth.POST("/refresh", r.handlers.Refresh)
	auth.POST("/revoke", r.handlers.Revoke)
	auth.POST("/verify", r.handlers.VerifyToken)

	protected := g.Group("", r.authMW)
	protected.POST("/auth/:platform/link", r.handlers.StartLink)
	protected.GET("/me", r.handlers.Me)
	protected.POST("/accounts/:id/under-review", r.handlers.AccountUnderReview)
	protected.POST("/accounts/:id/reviewed", r.handlers.AccountReviewed)
}
