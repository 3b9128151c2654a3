package http

import (
	"github.com/fasthttp/router"
)

// Router registers account routes
type Router struct {
	handler *Handler
}

// NewRouter creates a new account router
func NewRouter(handler *Handler) *Router {
	return &Router{handler: handler}
}

// RegisterRoutes registers health and account routes
func (r *Router) RegisterRoutes(rt *router.Router) {
	rt.GET("/health", r.handler.Health)
	rt.GET("/accounts", r.handler.ListAccounts)
}
