package http

import (
	"github.com/fasthttp/router"
)

// Router registers listener control routes
type Router struct {
	handler *ListenerHandler
}

// NewRouter creates a new listener router
func NewRouter(handler *ListenerHandler) *Router {
	return &Router{handler: handler}
}

// RegisterRoutes registers all listener routes
func (r *Router) RegisterRoutes(rt *router.Router) {
	rt.POST("/start_listener", r.handler.StartListener)
	rt.POST("/stop_listener/{accountId}", r.handler.StopListener)
	rt.GET("/get_data/{accountId}", r.handler.GetData)
	rt.GET("/listener_status/{accountId}", r.handler.ListenerStatus)
}
