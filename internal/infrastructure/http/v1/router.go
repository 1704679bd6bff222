// Package v1 provides HTTP API version 1.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockbridge/internal/infrastructure/http/v1/handlers"
	"stockbridge/internal/infrastructure/http/v1/middleware"
	"stockbridge/internal/infrastructure/ratelimit"
	"stockbridge/pkg/logger"
)

// Vault is the endpoint store the setup and health routes use.
type Vault interface {
	handlers.EndpointInitializer
	handlers.ReadinessChecker
}

// Metrics records requests and serves the exposition endpoint.
type Metrics interface {
	middleware.RequestRecorder
	Handler() http.Handler
}

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Documents runs the document pipeline
	Documents handlers.DocumentProcessor

	// Vault seals and opens the CRM endpoint
	Vault Vault

	// SetupLimiter guards the setup route, per client IP
	SetupLimiter ratelimit.Limiter

	// Metrics is optional
	Metrics Metrics

	// Development enables gin debug mode
	Development bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		router.Use(middleware.Metrics(cfg.Metrics))
	}
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Vault)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	base := handlers.NewBaseHandler()
	v1 := router.Group("/api/v1")
	{
		setupHandler := handlers.NewSetupHandler(base, cfg.Vault)
		setup := v1.Group("/setup")
		if cfg.SetupLimiter != nil {
			setup.Use(middleware.RateLimit(cfg.SetupLimiter, middleware.ClientIPKey))
		}
		setup.GET("", setupHandler.Setup)
		setup.POST("", setupHandler.Setup)

		handlers.NewDocumentsHandler(base, cfg.Documents).RegisterRoutes(v1.Group("/documents"))
	}

	return router
}
