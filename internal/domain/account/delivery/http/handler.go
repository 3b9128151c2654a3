package http

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"

	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/account/deps"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/domain/account/dto"
	pkgerrors "github.com/Conte777/NewsFlow/services/listener-service/pkg/errors"
	"github.com/Conte777/NewsFlow/services/listener-service/pkg/httputil"
)

const healthCheckTimeout = 5 * time.Second

// Handler serves the health check and the account overview
type Handler struct {
	accounts  deps.AccountLister
	listeners deps.ListenerStatusReader
	mapper    *pkgerrors.Mapper
	logger    zerolog.Logger
}

// NewHandler creates a new account handler
func NewHandler(
	accounts deps.AccountLister,
	listeners deps.ListenerStatusReader,
	mapper *pkgerrors.Mapper,
	logger zerolog.Logger,
) *Handler {
	return &Handler{
		accounts:  accounts,
		listeners: listeners,
		mapper:    mapper,
		logger:    logger.With().Str("handler", "account").Logger(),
	}
}

// Health handles GET /health
func (h *Handler) Health(ctx *fasthttp.RequestCtx) {
	checkCtx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	components := h.checkComponents(checkCtx)
	status := determineOverallStatus(components)

	response := dto.HealthResponse{
		Status:           status,
		Timestamp:        time.Now().UTC(),
		RunningListeners: h.listeners.Running(),
		Components:       components,
	}

	statusCode := fasthttp.StatusOK
	if status == dto.HealthStatusUnhealthy {
		statusCode = fasthttp.StatusServiceUnavailable
	}

	logEvent := h.logger.Debug()
	if status == dto.HealthStatusUnhealthy {
		logEvent = h.logger.Warn()
	} else if status == dto.HealthStatusDegraded {
		logEvent = h.logger.Info()
	}
	logEvent.
		Str("status", string(status)).
		Int("status_code", statusCode).
		Interface("components", components).
		Msg("Health check completed")

	httputil.WriteJSON(ctx, statusCode, response)
}

func (h *Handler) checkComponents(ctx context.Context) []dto.ComponentHealth {
	components := make([]dto.ComponentHealth, 0, 2)

	accounts, err := h.accounts.List(ctx)
	if err != nil {
		components = append(components, dto.ComponentHealth{
			Name:    "account_store",
			Healthy: false,
			Message: err.Error(),
		})
		return components
	}
	components = append(components, dto.ComponentHealth{Name: "account_store", Healthy: true})

	failed := 0
	for _, acc := range accounts {
		st := h.listeners.Status(acc.AccountID)
		if !st.Running && st.LastError != "" {
			failed++
		}
	}
	listeners := dto.ComponentHealth{Name: "listeners", Healthy: failed == 0}
	if failed > 0 {
		listeners.Message = fmt.Sprintf("%d listener(s) exited with an error", failed)
	}
	components = append(components, listeners)

	return components
}

// determineOverallStatus: a broken store makes the service unhealthy, failed listeners degrade it
func determineOverallStatus(components []dto.ComponentHealth) dto.HealthStatus {
	status := dto.HealthStatusHealthy
	for _, c := range components {
		if c.Healthy {
			continue
		}
		if c.Name == "account_store" {
			return dto.HealthStatusUnhealthy
		}
		status = dto.HealthStatusDegraded
	}
	return status
}

// ListAccounts handles GET /accounts
func (h *Handler) ListAccounts(ctx *fasthttp.RequestCtx) {
	accounts, err := h.accounts.List(ctx)
	if err != nil {
		httputil.WriteError(ctx, h.mapper, err)
		return
	}

	result := make([]dto.AccountSummary, 0, len(accounts))
	for i := range accounts {
		acc := &accounts[i]
		st := h.listeners.Status(acc.AccountID)

		summary := dto.AccountSummary{
			AccountID:  acc.AccountID,
			HasSession: acc.HasSession(),
			Groups:     acc.Refs(),
			Listener: dto.ListenerSummary{
				Running:   st.Running,
				State:     string(st.State),
				TaskID:    st.TaskID,
				LastError: st.LastError,
			},
		}
		if !acc.UpdatedAt.IsZero() {
			t := acc.UpdatedAt
			summary.UpdatedAt = &t
		}
		result = append(result, summary)
	}

	httputil.WriteJSON(ctx, fasthttp.StatusOK, result)
}
