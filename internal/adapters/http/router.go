package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jsamuelsen/go-ambient/internal/adapters/http/handlers"
	"github.com/jsamuelsen/go-ambient/internal/adapters/http/middleware"
	"github.com/jsamuelsen/go-ambient/internal/domain"
	"github.com/jsamuelsen/go-ambient/internal/platform/config"
	"github.com/jsamuelsen/go-ambient/internal/platform/telemetry"
)

// DefaultRequestTimeout is the default timeout for API requests.
const DefaultRequestTimeout = 30 * time.Second

// RouterConfig contains configuration for setting up the router.
type RouterConfig struct {
	// Logger is the structured logger for request logging. It should carry
	// logging.AmbientHandler so request logs include the ambient ids.
	Logger *slog.Logger

	// AppConfig contains application configuration.
	AppConfig *config.AppConfig

	// AmbientConfig names the headers carrying ambient ids.
	AmbientConfig *config.AmbientConfig

	// HealthHandler handles health check endpoints.
	HealthHandler *handlers.HealthHandler

	// ContextHandler echoes the ambient values of a request.
	ContextHandler *handlers.ContextHandler

	// JobHandler handles job endpoints.
	JobHandler *handlers.JobHandler

	// Timeout is the default request timeout.
	Timeout time.Duration
}

// SetupRouter configures all routes and middleware on the Gin engine.
// Middleware is applied in the following order (first to last):
//  1. Recovery - catch panics first
//  2. Request ID - generate/extract request ID
//  3. Correlation ID - handle distributed tracing correlation
//  4. OpenTelemetry tracing - start the server span
//  5. Ambient - attach trace id, tenant and deadline
//  6. OpenTelemetry metrics - tagged with the ambient tenant
//  7. Logging - request logging (skips health endpoints)
//  8. Timeout - request deadline on /api/v1
//
// Every middleware from 2 on runs the rest of the chain inside its ambient
// scope, so handlers and anything they call read ids from ambient storage.
//
// Route groups:
//   - /-/ (internal): Health endpoints, no timeout
//   - /api/v1/ (public API): Business endpoints
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	headers := cfg.AmbientConfig
	if headers == nil {
		headers = &config.AmbientConfig{}
	}

	engine.Use(
		middleware.Recovery(cfg.Logger),
		middleware.RequestID(headers.RequestHeader),
		middleware.CorrelationID(headers.CorrelationHeader),
		telemetry.TracingMiddleware(cfg.AppConfig.Name),
		middleware.Ambient(middleware.AmbientConfig{
			TraceHeader:  headers.TraceHeader,
			TenantHeader: headers.TenantHeader,
		}),
		telemetry.Middleware(tenantAttribute),
		middleware.Logging(cfg.Logger),
	)

	// Register health endpoints (no timeout for probes)
	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutesOnEngine(engine)
	}

	apiV1 := engine.Group("/api/v1")
	if cfg.Timeout > 0 {
		apiV1.Use(middleware.Timeout(cfg.Timeout))
	}

	setupAPIRoutes(apiV1, cfg)
}

// setupAPIRoutes registers business API routes.
func setupAPIRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.ContextHandler != nil {
		cfg.ContextHandler.RegisterContextRoutes(rg)
	}

	if cfg.JobHandler != nil {
		cfg.JobHandler.RegisterJobRoutes(rg)
	}
}

// SetupMinimalRouter sets up a minimal router with just health endpoints.
// Useful for testing or lightweight deployments.
func SetupMinimalRouter(engine *gin.Engine, logger *slog.Logger, healthHandler *handlers.HealthHandler) {
	engine.Use(
		middleware.Recovery(logger),
		middleware.RequestID(""),
	)

	if healthHandler != nil {
		healthHandler.RegisterHealthRoutesOnEngine(engine)
	}
}

// NewDefaultRouterConfig creates a RouterConfig with sensible defaults.
func NewDefaultRouterConfig(
	logger *slog.Logger,
	appCfg *config.AppConfig,
	ambientCfg *config.AmbientConfig,
	healthHandler *handlers.HealthHandler,
) RouterConfig {
	return RouterConfig{
		Logger:         logger,
		AppConfig:      appCfg,
		AmbientConfig:  ambientCfg,
		HealthHandler:  healthHandler,
		ContextHandler: handlers.NewContextHandler(0),
		Timeout:        DefaultRequestTimeout,
	}
}

func tenantAttribute() attribute.KeyValue {
	return attribute.String("tenant", string(domain.Tenants.Current()))
}
