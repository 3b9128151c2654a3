package infrastructure

import (
	"go.uber.org/fx"

	httpfx "github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure/http"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure/kafka"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure/logger"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure/metrics"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure/s3"
	"github.com/Conte777/NewsFlow/services/listener-service/internal/infrastructure/telegram"
)

// Module aggregates all infrastructure modules.
// The database is opened by the listener module only when the postgres store is selected.
var Module = fx.Module("infrastructure",
	logger.Module,
	metrics.Module,
	telegram.Module,
	kafka.Module,
	s3.Module,
	httpfx.Module,
)
