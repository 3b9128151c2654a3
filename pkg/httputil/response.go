package httputil

import (
	"encoding/json"

	"github.com/valyala/fasthttp"

	pkgerrors "github.com/Conte777/NewsFlow/services/listener-service/pkg/errors"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusResponse is the body of control operations that report a status string
type StatusResponse struct {
	Status string `json:"status"`
}

// WriteJSON writes data as a JSON body with the given status
func WriteJSON(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		ctx.SetContentType("application/json")
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBody([]byte(`{"error":"failed to marshal response"}`))
		return
	}

	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}

// WriteStatus writes {"status": status} with HTTP 200
func WriteStatus(ctx *fasthttp.RequestCtx, status string) {
	WriteJSON(ctx, fasthttp.StatusOK, StatusResponse{Status: status})
}

// WriteErrorResponse writes an error JSON response
func WriteErrorResponse(ctx *fasthttp.RequestCtx, status int, message string) {
	WriteJSON(ctx, status, ErrorResponse{Error: message})
}

// WriteError maps err through mapper and writes the error response
func WriteError(ctx *fasthttp.RequestCtx, mapper *pkgerrors.Mapper, err error) {
	status, message := mapper.MapErrorToHTTP(err)
	WriteErrorResponse(ctx, status, message)
}

// DecodeJSON unmarshals the request body into v
func DecodeJSON(ctx *fasthttp.RequestCtx, v interface{}) error {
	body := ctx.PostBody()
	if len(body) == 0 {
		return pkgerrors.NewValidationError("request body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return pkgerrors.NewValidationErrorf("invalid request body: %v", err)
	}
	return nil
}

// PathParam returns a router path parameter as string
func PathParam(ctx *fasthttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}
