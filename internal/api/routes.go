// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Jobs     JobSubmitter
	Progress ProgressSource
	Uploads  UploadStore
	Outputs  OutputStore
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
	Version  string
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	CSV      CSVHandler
	Progress ProgressHandler
	Download DownloadHandler
	Metrics  http.Handler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	h := &Handlers{
		Health:   NewHealthHandler(deps.Version),
		CSV:      NewCSVHandler(deps.Jobs, deps.Uploads, deps.Logger),
		Progress: NewProgressHandler(deps.Progress),
		Download: NewDownloadHandler(deps.Outputs),
	}
	if deps.Gatherer != nil {
		h.Metrics = promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})
	}
	return h
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/ping", handlers.Health.HandlePing)
	e.GET("/download/:filename", handlers.Download.HandleDownload)
	if handlers.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(handlers.Metrics))
	}

	apiGroup := e.Group("/api")
	apiGroup.GET("/health", handlers.Health.HandleHealth)
	apiGroup.POST("/csv", handlers.CSV.HandleSubmitCSV)
	apiGroup.GET("/progress/:taskId", handlers.Progress.HandleProgress)
	apiGroup.GET("/progress/:taskId/stream", handlers.Progress.HandleProgressStream)
}

// MiddlewareConfig carries the server settings the middleware chain needs.
type MiddlewareConfig struct {
	AllowOrigins   []string
	BodyLimit      string
	RequestLogging bool
	ShowDetails    bool
	Logger         *zap.Logger
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e.HTTPErrorHandler = NewErrorHandler(logger, cfg.ShowDetails)

	reqLog := logger.Named("http")
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			if !cfg.RequestLogging {
				return true
			}
			path := c.Request().URL.Path
			return strings.HasPrefix(path, "/api/progress/") ||
				path == "/api/health" ||
				path == "/ping" ||
				path == "/metrics"
		},
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency.Round(time.Microsecond)),
			}
			if v.Error != nil {
				reqLog.Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			reqLog.Info("request", fields...)
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("handler panicked",
				zap.String("path", c.Request().URL.Path),
				zap.Error(err),
				zap.ByteString("stack", stack))
			return err
		},
	}))

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	origins := cfg.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))
}

// NewServer builds an echo instance with middleware and routes installed.
func NewServer(deps *Dependencies, cfg MiddlewareConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if cfg.Logger == nil {
		cfg.Logger = deps.Logger
	}
	SetupMiddleware(e, cfg)
	RegisterRoutes(e, NewHandlers(deps))
	return e
}
