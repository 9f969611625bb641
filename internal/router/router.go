package router

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muandane/estatic/internal/handlers"
	"github.com/muandane/estatic/internal/middleware"
)

type Options struct {
	Static       *handlers.StaticHandler
	Stats        handlers.StatsSource
	HealthChecks map[string]handlers.HealthCheck
	RateLimit    float64
	RateBurst    int
	AccessLog    bool
}

type Router struct {
	engine *gin.Engine
	logger *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	// Static paths are resolved by the file handler, not by redirects.
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	return &Router{
		engine: engine,
		logger: logger,
	}
}

func (r *Router) Setup(opts Options) http.Handler {
	validationConfig := middleware.ValidationConfig{
		ExcludedPaths: []string{
			"/health",
			"/metrics",
			"/stats",
		},
	}

	metricsMiddleware := middleware.NewMetricsMiddleware()
	health := gin.WrapH(handlers.NewHealthHandler(r.logger, opts.HealthChecks))

	// Register routes
	r.engine.GET("/health", health)
	r.engine.HEAD("/health", health)
	r.engine.GET("/metrics", gin.WrapH(metricsMiddleware))
	if opts.Stats != nil {
		r.engine.Any("/stats", gin.WrapH(handlers.NewStatsHandler(opts.Stats, r.logger)))
	}
	r.engine.NoRoute(opts.Static.Gin())

	chain := []func(http.Handler) http.Handler{
		middleware.WithValidation(validationConfig),
		middleware.WithRateLimit(opts.RateLimit, opts.RateBurst, r.logger),
		metricsMiddleware.WithMetrics,
	}
	if opts.AccessLog {
		chain = append(chain, middleware.WithLogging(r.logger))
	}
	chain = append(chain, middleware.WithRequestID)

	return middleware.Chain(r.engine, chain...)
}
