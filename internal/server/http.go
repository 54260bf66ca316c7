package server

import (
	"context"
	"log/slog"
	"net/http"
	"path"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"opsgate/internal/gateway"
	"opsgate/internal/store"
	"opsgate/internal/team"
)

// DefaultBodySizeLimit is the maximum accepted request body in bytes
const DefaultBodySizeLimit int64 = 10 << 20

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	MetricsEnabled  bool   // Whether to expose Prometheus metrics endpoint
	MetricsEndpoint string // HTTP path for metrics endpoint (default: /metrics)
	BodySizeLimit   int64  // Max request body size in bytes (default: 10MB)
}

// New creates a new HTTP server
func New(svc *gateway.Service, tm *team.Team, st *store.Store, cfg *Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	handler := NewHandler(svc, tm, st)

	// Global middleware stack (order matters)
	e.Use(requestLogger())
	e.Use(middleware.Recover())

	bodySizeLimit := DefaultBodySizeLimit
	if cfg != nil && cfg.BodySizeLimit > 0 {
		bodySizeLimit = cfg.BodySizeLimit
	}
	e.Use(middleware.BodyLimit(strconv.FormatInt(bodySizeLimit, 10)))

	if cfg != nil && cfg.MetricsEnabled {
		e.Use(metricsMiddleware())
		metricsPath := "/metrics"
		if cfg.MetricsEndpoint != "" {
			// Normalize path to prevent traversal attacks
			metricsPath = path.Clean(cfg.MetricsEndpoint)
		}
		e.GET(metricsPath, echo.WrapHandler(promhttp.Handler()))
	}

	// Public routes
	e.GET("/health", handler.Health)

	// API routes
	api := e.Group("/api")
	api.GET("/", handler.Overview)
	api.GET("/ai/models", handler.ListModels)
	api.GET("/ai/providers", handler.ListProviders)
	api.POST("/ai/generate", handler.Generate)
	api.POST("/ai/stream", handler.Stream)
	api.POST("/ai/team/generate", handler.TeamGenerate)
	api.POST("/config/generate", handler.GenerateConfig)
	api.POST("/config/save", handler.SaveConfig)

	api.GET("/tasks", handler.ListTasks)
	api.POST("/tasks", handler.CreateTask)
	api.GET("/tasks/:id", handler.GetTask)
	api.PUT("/tasks/:id", handler.UpdateTask)
	api.DELETE("/tasks/:id", handler.DeleteTask)

	api.GET("/config-snippets", handler.ListSnippets)
	api.GET("/config-snippets/:id", handler.GetSnippet)
	api.DELETE("/config-snippets/:id", handler.DeleteSnippet)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

// requestLogger logs one structured line per request
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
				slog.Error("request", attrs...)
				return nil
			}
			slog.Info("request", attrs...)
			return nil
		},
	})
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
