package errors

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// Mapper maps domain errors to HTTP status codes
type Mapper struct {
	logger zerolog.Logger
}

// NewMapper creates a new error mapper
func NewMapper(logger zerolog.Logger) *Mapper {
	return &Mapper{logger: logger}
}

// MapErrorToHTTP maps an error to HTTP status code and a client-facing message
func (m *Mapper) MapErrorToHTTP(err error) (int, string) {
	if err == nil {
		return fasthttp.StatusOK, ""
	}

	var typed *Error
	if errors.As(err, &typed) {
		switch typed.Kind() {
		case KindValidation:
			return fasthttp.StatusBadRequest, typed.Message()
		case KindUnauthorized:
			return fasthttp.StatusUnauthorized, typed.Message()
		case KindNotFound:
			return fasthttp.StatusNotFound, typed.Message()
		case KindConflict:
			return fasthttp.StatusConflict, typed.Message()
		case KindServiceUnavailable:
			return fasthttp.StatusServiceUnavailable, typed.Message()
		default:
			m.logger.Error().Err(err).Msg("internal server error")
			return fasthttp.StatusInternalServerError, typed.Message()
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fasthttp.StatusGatewayTimeout, "request timed out"
	}

	m.logger.Error().Err(err).Msg("unknown error")
	return fasthttp.StatusInternalServerError, "internal server error"
}
