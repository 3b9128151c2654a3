package http

import (
	"github.com/fasthttp/router"
)

// Router registers session routes
type Router struct {
	handler *SessionHandler
}

// NewRouter creates a new session router
func NewRouter(handler *SessionHandler) *Router {
	return &Router{handler: handler}
}

// RegisterRoutes registers all session routes
func (r *Router) RegisterRoutes(rt *router.Router) {
	group := rt.Group("/session")
	group.POST("/init", r.handler.Init)
	group.POST("/complete", r.handler.Complete)
	group.GET("/status/{phone}", r.handler.Status)
	group.POST("/logout/{phone}", r.handler.Logout)
}
