package http

import (
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/dto"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/listener/usecase/business"
	pkgerrors "github.com/Conte777/NewsFlow/services/listener-service/pkg/errors"
	"github.com/Conte777/NewsFlow/services/listener-service/pkg/httputil"
	"github.com/Conte777/NewsFlow/services/listener-service/pkg/phone"
)

// ListenerHandler handles listener control HTTP requests
type ListenerHandler struct {
	useCase *business.UseCase
	mapper  *pkgerrors.Mapper
	logger  zerolog.Logger
}

// NewListenerHandler creates a new listener handler
func NewListenerHandler(useCase *business.UseCase, mapper *pkgerrors.Mapper, logger zerolog.Logger) *ListenerHandler {
	return &ListenerHandler{
		useCase: useCase,
		mapper:  mapper,
		logger:  logger.With().Str("handler", "listener").Logger(),
	}
}

// StartListener handles POST /start_listener
func (h *ListenerHandler) StartListener(ctx *fasthttp.RequestCtx) {
	var req dto.StartListenerRequest
	if err := httputil.DecodeJSON(ctx, &req); err != nil {
		httputil.WriteError(ctx, h.mapper, err)
		return
	}

	accountID := req.Account()
	if accountID == "" {
		httputil.WriteErrorResponse(ctx, fasthttp.StatusBadRequest, "accountId is required")
		return
	}

	status, err := h.useCase.Start(ctx, accountID, req.Groups)
	if err != nil {
		h.logger.Warn().Err(err).Str("phone", phone.Mask(accountID)).Msg("failed to start listener")
		httputil.WriteError(ctx, h.mapper, err)
		return
	}

	httputil.WriteStatus(ctx, status)
}

// StopListener handles POST /stop_listener/{accountId}
func (h *ListenerHandler) StopListener(ctx *fasthttp.RequestCtx) {
	accountID := httputil.PathParam(ctx, "accountId")

	status, err := h.useCase.Stop(ctx, accountID)
	if err != nil {
		httputil.WriteError(ctx, h.mapper, err)
		return
	}

	httputil.WriteStatus(ctx, status)
}

// GetData handles GET /get_data/{accountId}
func (h *ListenerHandler) GetData(ctx *fasthttp.RequestCtx) {
	accountID := httputil.PathParam(ctx, "accountId")

	messages, err := h.useCase.GetData(ctx, accountID)
	if err != nil {
		httputil.WriteError(ctx, h.mapper, err)
		return
	}

	httputil.WriteJSON(ctx, fasthttp.StatusOK, messages)
}

// ListenerStatus handles GET /listener_status/{accountId}
func (h *ListenerHandler) ListenerStatus(ctx *fasthttp.RequestCtx) {
	accountID := httputil.PathParam(ctx, "accountId")
	if !phone.IsValidAccountID(accountID) {
		httputil.WriteErrorResponse(ctx, fasthttp.StatusBadRequest, "invalid account id")
		return
	}

	httputil.WriteJSON(ctx, fasthttp.StatusOK, dto.NewListenerStatusResponse(h.useCase.Status(accountID)))
}
