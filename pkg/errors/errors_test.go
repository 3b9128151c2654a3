package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/valyala/fasthttp"
)

func TestError_WrapKeepsIdentity(t *testing.T) {
	sentinel := NewInternalError("write failed")
	cause := errors.New("disk full")

	wrapped := fmt.Errorf("append: %w", sentinel.Wrap(cause))

	assert.True(t, errors.Is(wrapped, sentinel))
	assert.True(t, errors.Is(wrapped, cause))
	assert.Equal(t, "append: write failed: disk full", wrapped.Error())
}

func TestError_DifferentSentinelsDoNotMatch(t *testing.T) {
	a := NewValidationError("a")
	b := NewValidationError("b")

	assert.False(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, NewNotFoundError("a")))
}

func TestMapper_MapErrorToHTTP(t *testing.T) {
	m := NewMapper(zerolog.Nop())

	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"nil", nil, fasthttp.StatusOK, ""},
		{"validation", NewValidationError("bad input"), fasthttp.StatusBadRequest, "bad input"},
		{"unauthorized", NewUnauthorizedError("nope"), fasthttp.StatusUnauthorized, "nope"},
		{"not found", fmt.Errorf("lookup: %w", NewNotFoundError("missing")), fasthttp.StatusNotFound, "missing"},
		{"conflict", NewConflictError("busy"), fasthttp.StatusConflict, "busy"},
		{"unavailable", NewServiceUnavailableError("down"), fasthttp.StatusServiceUnavailable, "down"},
		{"internal hides cause", NewInternalError("write failed").Wrap(errors.New("/secret/path")), fasthttp.StatusInternalServerError, "write failed"},
		{"deadline", context.DeadlineExceeded, fasthttp.StatusGatewayTimeout, "request timed out"},
		{"unknown", errors.New("boom"), fasthttp.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := m.MapErrorToHTTP(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.message, msg)
		})
	}
}
