package di

import (
	"wisdom-backend/application/queries"
	"wisdom-backend/infrastructure/config"
	"wisdom-backend/infrastructure/graphdb"
	"wisdom-backend/infrastructure/observability"
	"wisdom-backend/infrastructure/telemetry"
	"wisdom-backend/interfaces/http/rest"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config    *config.Config
	Logger    *zap.Logger
	Provider  *graphdb.Provider
	Executor  *graphdb.Executor
	Recorder  *telemetry.Recorder
	Collector *observability.Collector
	Tracing   *observability.TracerProvider
	Content   *queries.ContentService
	Router    *rest.Router
	Watcher   *config.TelemetryWatcher
}
