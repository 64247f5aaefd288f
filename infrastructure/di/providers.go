package di

import (
	"context"
	"fmt"
	"time"

	"wisdom-backend/application/queries"
	"wisdom-backend/infrastructure/config"
	"wisdom-backend/infrastructure/graphdb"
	"wisdom-backend/infrastructure/observability"
	"wisdom-backend/infrastructure/telemetry"
	"wisdom-backend/interfaces/http/rest"
	"wisdom-backend/pkg/logging"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return logger, func() { _ = logger.Sync() }, nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideSlowQuerySink opens the durable slow query log selected by
// telemetry.sink. "none" returns a nil sink.
func ProvideSlowQuerySink(ctx context.Context, cfg *config.Config, logger *zap.Logger) (telemetry.Sink, error) {
	switch cfg.Telemetry.Sink {
	case "none":
		return nil, nil
	case "dynamodb":
		awsCfg, err := ProvideAWSConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		ttl := time.Duration(cfg.Telemetry.RecordTTLDays) * 24 * time.Hour
		return telemetry.NewDynamoDBSink(ProvideDynamoDBClient(awsCfg), cfg.Telemetry.DynamoDBTable, ttl, logger)
	default:
		return telemetry.NewFileSink(cfg.Telemetry.LogFile, logger)
	}
}

// ProvideRecorder creates the process-wide telemetry recorder. The cleanup
// flushes pending sink writes.
func ProvideRecorder(cfg *config.Config, sink telemetry.Sink, logger *zap.Logger) (*telemetry.Recorder, func()) {
	t := cfg.Telemetry
	var opts []telemetry.Option
	if sink != nil {
		opts = append(opts, telemetry.WithSink(sink))
	}
	recorder := telemetry.NewRecorder(telemetry.Config{
		SlowThreshold:   t.SlowThreshold(),
		LogAllQueries:   t.LogAllQueries,
		RedactFields:    t.RedactFields,
		IncludeParams:   t.IncludeParams,
		Capacity:        t.Capacity,
		RetentionWindow: t.RetentionWindow(),
		SinkBuffer:      t.SinkBuffer,
	}, logger, opts...)

	return recorder, func() {
		if err := recorder.Close(); err != nil {
			logger.Warn("Failed to close telemetry recorder", zap.Error(err))
		}
	}
}

// ProvideCollector creates the Prometheus collector, or nil with metrics
// disabled.
func ProvideCollector(cfg *config.Config, recorder *telemetry.Recorder) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCollector("wisdom", recorder.Dropped)
}

// ProvideTracerProvider installs the global tracer provider.
func ProvideTracerProvider(cfg *config.Config, logger *zap.Logger) (*observability.TracerProvider, func(), error) {
	tp, err := observability.InitTracing(observability.TracingConfig{
		Enabled:     cfg.EnableTracing,
		ServiceName: "wisdom-backend",
		Environment: cfg.Environment,
		Endpoint:    cfg.TracingEndpoint,
	})
	if err != nil {
		return nil, nil, err
	}
	return tp, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Failed to shut down tracer provider", zap.Error(err))
		}
	}, nil
}

// ProvideConnector creates the Neo4j connector
func ProvideConnector(cfg *config.Config) (graphdb.Connector, error) {
	return graphdb.NewNeo4jConnector(graphdb.Neo4jConfig{
		URI:                          cfg.Neo4j.URI,
		Username:                     cfg.Neo4j.Username,
		Password:                     cfg.Neo4j.Password,
		MaxConnectionPoolSize:        cfg.Neo4j.MaxConnectionPoolSize,
		ConnectionAcquisitionTimeout: time.Duration(cfg.Neo4j.ConnectTimeoutMs) * time.Millisecond,
	})
}

// ProvideSessionProvider creates the session provider. It connects lazily;
// the cleanup closes the driver.
func ProvideSessionProvider(connector graphdb.Connector, cfg *config.Config, logger *zap.Logger) (*graphdb.Provider, func()) {
	provider := graphdb.NewProvider(connector, graphdb.ProviderConfig{
		Database:       cfg.Neo4j.Database,
		ConnectTimeout: time.Duration(cfg.Neo4j.ConnectTimeoutMs) * time.Millisecond,
	}, logger)

	return provider, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Close(ctx); err != nil {
			logger.Warn("Failed to close graph database driver", zap.Error(err))
		}
	}
}

// ProvideRetryPolicy creates the retry policy
func ProvideRetryPolicy(cfg *config.Config) *graphdb.RetryPolicy {
	return graphdb.NewRetryPolicy(graphdb.RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseBackoffMs) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
	})
}

// ProvideExecutor creates the query executor
func ProvideExecutor(
	cfg *config.Config,
	provider *graphdb.Provider,
	policy *graphdb.RetryPolicy,
	recorder *telemetry.Recorder,
	collector *observability.Collector,
	tp *observability.TracerProvider,
	logger *zap.Logger,
) *graphdb.Executor {
	opts := []graphdb.ExecutorOption{
		graphdb.WithRecorder(recorder),
		graphdb.WithTracer(tp.Tracer()),
		graphdb.WithRedactFields(func() []string { return recorder.Config().RedactFields }),
	}
	if cfg.Neo4j.QueryTimeoutMs > 0 {
		opts = append(opts, graphdb.WithAttemptTimeout(time.Duration(cfg.Neo4j.QueryTimeoutMs)*time.Millisecond))
	}
	if collector != nil {
		opts = append(opts, graphdb.WithObserver(collector))
	}
	return graphdb.NewExecutor(provider, policy, logger, opts...)
}

// ProvideContentService creates the content query service
func ProvideContentService(executor *graphdb.Executor, logger *zap.Logger) *queries.ContentService {
	return queries.NewContentService(executor, logger)
}

// ProvideRouter creates the HTTP router
func ProvideRouter(
	cfg *config.Config,
	service *queries.ContentService,
	recorder *telemetry.Recorder,
	collector *observability.Collector,
	tp *observability.TracerProvider,
	logger *zap.Logger,
) *rest.Router {
	var metrics rest.MetricsCollector
	if collector != nil {
		metrics = collector
	}
	routerConfig := rest.RouterConfig{
		EnableCORS:  cfg.EnableCORS,
		CORSOrigins: cfg.CORSOrigins,
		Debug:       cfg.IsDevelopment(),
	}
	return rest.NewRouter(routerConfig, service, recorder, metrics, tp.Tracer(), logger)
}

// ProvideTelemetryWatcher hot-reloads the telemetry section of the config
// file into the recorder. Without a config file there is nothing to watch
// and it returns nil.
func ProvideTelemetryWatcher(cfg *config.Config, recorder *telemetry.Recorder, logger *zap.Logger) (*config.TelemetryWatcher, func(), error) {
	if cfg.ConfigFile == "" || cfg.IsLambda {
		return nil, func() {}, nil
	}

	watcher, err := config.NewTelemetryWatcher(cfg.ConfigFile, cfg.Telemetry, logger)
	if err != nil {
		return nil, nil, err
	}
	watcher.OnChange(func(t config.TelemetryConfig) {
		recorder.UpdateConfig(t.SlowThreshold(), t.LogAllQueries, t.RedactFields, t.RetentionWindow())
	})
	watcher.Start()

	return watcher, watcher.Stop, nil
}
