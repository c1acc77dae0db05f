// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/microgrid-sizing/backend/internal/config"
	"github.com/microgrid-sizing/backend/internal/logger"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Runner     Runner
	Workspaces WorkspaceOpener
	Live       RunStatus
	// History is optional.
	History RunHistory
	// Metrics serves the Prometheus exposition when set.
	Metrics     http.Handler
	MetricsPath string
	Version     string
	Engine      string
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Optimize OptimizeHandler
	Files    FilesHandler
	Runs     RunsHandler

	metrics     http.Handler
	metricsPath string
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:      NewHealthHandler(deps.Version, deps.Engine),
		Optimize:    NewOptimizeHandler(deps.Runner),
		Files:       NewFilesHandler(deps.Workspaces),
		Runs:        NewRunsHandler(deps.Live, deps.History),
		metrics:     deps.Metrics,
		metricsPath: deps.MetricsPath,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/health", handlers.Health.HandleHealth)

	// Optimizer workflows
	optimize := e.Group("/optimize")
	optimize.POST("/deterministic", handlers.Optimize.HandleDeterministic)
	optimize.POST("/multiyear", handlers.Optimize.HandleMultiyear)

	// Reports
	e.GET("/download/:filename", handlers.Files.HandleDownload)

	// Runs
	runs := e.Group("/runs")
	runs.GET("", handlers.Runs.HandleListRuns)
	runs.GET("/:runId", handlers.Runs.HandleGetRun)
	runs.GET("/:runId/files/:filename", handlers.Files.HandleRunFile)

	if handlers.metrics != nil {
		path := handlers.metricsPath
		if path == "" {
			path = "/metrics"
		}
		e.GET(path, echo.WrapHandler(handlers.metrics))
	}
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg config.ServerConfig, log logger.Logger) {
	e.HTTPErrorHandler = ErrorHandler(log)

	if cfg.EnableRequestLogging {
		e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				return path == "/health" || strings.HasPrefix(path, "/metrics")
			},
			LogMethod:   true,
			LogURI:      true,
			LogStatus:   true,
			LogLatency:  true,
			LogRemoteIP: true,
			LogError:    true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				fields := map[string]any{
					"method":     v.Method,
					"uri":        v.URI,
					"status":     v.Status,
					"latency_ms": v.Latency.Milliseconds(),
					"remote_ip":  v.RemoteIP,
				}
				if v.Error != nil {
					fields["error"] = v.Error.Error()
				}
				log.Debugw("request", fields)
				return nil
			},
		}))
	}

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	if cfg.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.CompressionLevel,
			Skipper: func(c echo.Context) bool {
				return strings.HasPrefix(c.Request().URL.Path, "/download") ||
					strings.Contains(c.Request().URL.Path, "/files/")
			},
		}))
	}

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if cfg.EnableCORS {
		origins := cfg.AllowOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     origins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
			AllowCredentials: true,
			MaxAge:           int((12 * time.Hour).Seconds()),
		}))
	}
}
