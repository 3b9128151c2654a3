package httputil

import (
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// Middleware is a function that wraps a handler
type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

// Chain applies middleware to handler, the first one being the outermost
func Chain(handler fasthttp.RequestHandler, middleware ...Middleware) fasthttp.RequestHandler {
	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}
	return handler
}

// Recover turns handler panics into 500 responses
func Recover(logger zerolog.Logger) Middleware {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().
						Interface("panic", r).
						Str("stack", string(debug.Stack())).
						Str("path", string(ctx.Path())).
						Msg("HTTP handler panic recovered")
					WriteErrorResponse(ctx, fasthttp.StatusInternalServerError, "internal server error")
				}
			}()
			next(ctx)
		}
	}
}

// AccessLog logs every request at debug level
func AccessLog(logger zerolog.Logger) Middleware {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			start := time.Now()
			next(ctx)
			logger.Debug().
				Str("method", string(ctx.Method())).
				Str("path", string(ctx.Path())).
				Int("status", ctx.Response.StatusCode()).
				Dur("duration", time.Since(start)).
				Msg("request served")
		}
	}
}
