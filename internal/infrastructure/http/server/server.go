package server

import (
	"context"
	"fmt"
	"time"

	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/Conte777/NewsFlow/services/listener-service/pkg/httputil"
)

// Server represents fasthttp server
type Server struct {
	server *fasthttp.Server
	Router *router.Router
	addr   string
	logger zerolog.Logger
}

// NewServer creates a new fasthttp server.
// Start and stop requests may wait for a listener grace period, so the write
// timeout has to stay above it.
func NewServer(name, port string, logger zerolog.Logger) *Server {
	r := router.New()
	r.PanicHandler = func(ctx *fasthttp.RequestCtx, v interface{}) {
		logger.Error().Interface("panic", v).Str("path", string(ctx.Path())).Msg("router panic")
		httputil.WriteErrorResponse(ctx, fasthttp.StatusInternalServerError, "internal server error")
	}

	s := &Server{
		Router: r,
		addr:   fmt.Sprintf(":%s", port),
		logger: logger,
	}

	s.server = &fasthttp.Server{
		Handler: httputil.Chain(r.Handler,
			httputil.Recover(logger),
			httputil.AccessLog(logger),
		),
		Name:         name,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Handler returns the request handler including middleware
func (s *Server) Handler() fasthttp.RequestHandler {
	return s.server.Handler
}

// RegisterMetrics registers Prometheus metrics endpoint
func (s *Server) RegisterMetrics() {
	// Adapt promhttp.Handler to fasthttp
	prometheusHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	s.Router.GET("/metrics", prometheusHandler)
}

// Start starts the HTTP server in a separate goroutine
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.addr).
		Msg("Starting HTTP server")

	go func() {
		if err := s.server.ListenAndServe(s.addr); err != nil {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")

	if err := s.server.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped gracefully")
	return nil
}
