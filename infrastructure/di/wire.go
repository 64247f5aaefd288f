//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"wisdom-backend/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideSlowQuerySink,
	ProvideRecorder,
	ProvideCollector,
	ProvideTracerProvider,
	ProvideConnector,
	ProvideSessionProvider,
	ProvideRetryPolicy,
	ProvideExecutor,
	ProvideContentService,
	ProvideRouter,
	ProvideTelemetryWatcher,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container. The cleanup releases
// resources in reverse order of creation.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
