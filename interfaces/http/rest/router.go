package rest

import (
	"net/http"
	"time"

	"wisdom-backend/domain/graph"
	"wisdom-backend/interfaces/http/rest/handlers"
	"wisdom-backend/interfaces/http/rest/middleware"
	"wisdom-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RouterConfig holds the HTTP surface settings
type RouterConfig struct {
	EnableCORS   bool
	CORSOrigins  []string
	Debug        bool
	ReadyTimeout time.Duration
}

// MetricsCollector measures requests and serves the scrape endpoint.
type MetricsCollector interface {
	middleware.HTTPObserver
	Handler() http.Handler
}

// Router creates and configures the HTTP router
type Router struct {
	config       RouterConfig
	content      handlers.ContentQueries
	stats        handlers.SlowQueryStats
	metrics      MetricsCollector
	tracer       trace.Tracer
	logger       *zap.Logger
	errorHandler *errors.ErrorHandler
}

// NewRouter creates a new router instance. metrics and tracer may be nil.
func NewRouter(
	config RouterConfig,
	content handlers.ContentQueries,
	stats handlers.SlowQueryStats,
	metrics MetricsCollector,
	tracer trace.Tracer,
	logger *zap.Logger,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		config:       config,
		content:      content,
		stats:        stats,
		metrics:      metrics,
		tracer:       tracer,
		logger:       logger,
		errorHandler: errors.NewErrorHandler(logger, config.Debug, ClassifyGraphError),
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() *chi.Mux {
	router := chi.NewRouter()

	// Global middleware
	router.Use(middleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))
	if rt.tracer != nil {
		router.Use(middleware.Tracing(rt.tracer))
	}
	if rt.metrics != nil {
		router.Use(middleware.Metrics(rt.metrics))
	}
	router.Use(middleware.QueryContext)

	if rt.config.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.config.CORSOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
			ExposedHeaders: []string{middleware.RequestIDHeader},
			MaxAge:         300,
		}))
	}

	health := handlers.NewHealthHandler(rt.content, rt.config.ReadyTimeout, rt.logger)
	router.Get("/health", health.Live)
	router.Get("/ready", health.Ready)

	if rt.metrics != nil {
		router.Handle("/metrics", rt.metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		content := handlers.NewContentHandler(rt.content, rt.logger, rt.errorHandler)
		r.Get("/thoughts", content.ListItems(graph.TypeThought))
		r.Get("/topics", content.ListItems(graph.TypeTopic))
		r.Get("/quotes", content.ListItems(graph.TypeQuote))
		r.Get("/passages", content.ListItems(graph.TypePassage))
		r.Get("/items/{type}/{id}", content.GetItem)
		r.Get("/search", content.Search)
		r.Get("/tags", content.Tags)
		r.Get("/tags/{tag}", content.ItemsByTag)
		r.Get("/graph", content.Graph)

		r.Route("/admin", func(r chi.Router) {
			admin := handlers.NewAdminHandler(rt.stats, rt.logger, rt.errorHandler)
			r.Get("/slow-queries", admin.SlowQueries)
		})
	})

	return router
}
