package http

import (
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/session/dto"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/session/usecase/business"
	pkgerrors "github.com/Conte777/NewsFlow/services/listener-service/pkg/errors"
	"github.com/Conte777/NewsFlow/services/listener-service/pkg/httputil"
)

// SessionHandler handles session establishment HTTP requests
type SessionHandler struct {
	useCase *business.UseCase
	mapper  *pkgerrors.Mapper
	logger  zerolog.Logger
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(useCase *business.UseCase, mapper *pkgerrors.Mapper, logger zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		useCase: useCase,
		mapper:  mapper,
		logger:  logger.With().Str("handler", "session").Logger(),
	}
}

// Init handles POST /session/init
func (h *SessionHandler) Init(ctx *fasthttp.RequestCtx) {
	var req dto.InitRequest
	if err := httputil.DecodeJSON(ctx, &req); err != nil {
		httputil.WriteError(ctx, h.mapper, err)
		return
	}

	status, err := h.useCase.Init(ctx, req.Phone, int(req.APIID), req.APIHash)
	if err != nil {
		httputil.WriteError(ctx, h.mapper, err)
		return
	}

	httputil.WriteStatus(ctx, status)
}

// Complete handles POST /session/complete
func (h *SessionHandler) Complete(ctx *fasthttp.RequestCtx) {
	var req dto.CompleteRequest
	if err := httputil.DecodeJSON(ctx, &req); err != nil {
		httputil.WriteError(ctx, h.mapper, err)
		return
	}

	status, err := h.useCase.Complete(ctx, req.Phone, req.Code, req.Password)
	if err != nil {
		httputil.WriteError(ctx, h.mapper, err)
		return
	}

	httputil.WriteStatus(ctx, status)
}

// Status handles GET /session/status/{phone}
func (h *SessionHandler) Status(ctx *fasthttp.RequestCtx) {
	hasSession, err := h.useCase.HasSession(ctx, httputil.PathParam(ctx, "phone"))
	if err != nil {
		httputil.WriteError(ctx, h.mapper, err)
		return
	}

	httputil.WriteJSON(ctx, fasthttp.StatusOK, dto.StatusResponse{HasSession: hasSession})
}

// Logout handles POST /session/logout/{phone}
func (h *SessionHandler) Logout(ctx *fasthttp.RequestCtx) {
	status, err := h.useCase.Logout(ctx, httputil.PathParam(ctx, "phone"))
	if err != nil {
		httputil.WriteError(ctx, h.mapper, err)
		return
	}

	httputil.WriteStatus(ctx, status)
}
