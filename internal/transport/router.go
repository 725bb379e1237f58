package transport

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lk-keep-fighting/jsonpage/internal/action"
	"github.com/lk-keep-fighting/jsonpage/internal/config"
	"github.com/lk-keep-fighting/jsonpage/internal/observability"
	"github.com/lk-keep-fighting/jsonpage/internal/query"
	"github.com/lk-keep-fighting/jsonpage/internal/schema"
	"github.com/lk-keep-fighting/jsonpage/internal/source"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config      *config.Config
	Logger      *zap.Logger
	Registry    *schema.Registry
	Engine      *query.Engine
	Executor    *action.Executor
	Metrics     *observability.Metrics
	Controllers *source.Manager

	// PromRegistry backs the /metrics endpoint. Nil disables it.
	PromRegistry *prometheus.Registry

	// StoreChecker, when set, is probed by the readiness endpoint.
	StoreChecker observability.HealthChecker
}

// Server carries the handler state behind the router.
type Server struct {
	cfg         *config.Config
	log         *zap.Logger
	registry    *schema.Registry
	engine      *query.Engine
	executor    *action.Executor
	metrics     *observability.Metrics
	controllers *source.Manager
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// authentication middleware.
func NewRouter(deps Dependencies) chi.Router {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	controllers := deps.Controllers
	if controllers == nil {
		controllers = source.NewManager()
	}
	s := &Server{
		cfg:         deps.Config,
		log:         log,
		registry:    deps.Registry,
		engine:      deps.Engine,
		executor:    deps.Executor,
		metrics:     deps.Metrics,
		controllers: controllers,
	}

	r := chi.NewRouter()

	// Global middleware, applied to all routes including health.
	r.Use(Recovery(log))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	// Public routes that bypass authentication.
	r.Get("/ui/health", observability.HandleHealth())
	r.Get("/ui/ready", observability.HandleReady(observability.ReadinessChecks{
		PagesLoaded:      func() bool { return deps.Registry.Len() > 0 },
		IdempotencyStore: deps.StoreChecker,
	}))
	if deps.Config.Observability.Metrics.Enabled && deps.PromRegistry != nil {
		r.Get(deps.Config.Observability.Metrics.Path, promhttp.HandlerFor(
			deps.PromRegistry, promhttp.HandlerOpts{},
		).ServeHTTP)
	}

	// Authenticated routes carry the full middleware chain.
	r.Group(func(r chi.Router) {
		r.Use(Authenticator(deps.Config.Auth))
		r.Use(BuildRequestContext)
		r.Use(observability.TracingMiddleware)
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(log))
		r.Use(MetricsRecording(deps.Metrics))

		r.Get("/ui/pages", s.handleListPages)
		r.Get("/ui/pages/{pageId}", s.handleGetPage)
		r.Get("/ui/pages/{pageId}/data", s.handleGetPageData)
		r.Get("/ui/pages/{pageId}/snapshot", s.handleGetPageSnapshot)
		r.Post("/ui/pages/{pageId}/actions/{actionId}/form", s.handleOpenActionForm)
		r.Post("/ui/pages/{pageId}/actions/{actionId}", s.handleExecuteAction)
	})

	return r
}
