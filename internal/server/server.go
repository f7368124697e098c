// Package server exposes the REST API: the chat assistant endpoint, the
// job-log listing and metric endpoints, health, and Prometheus metrics.
package server

import (
	"context"
	"strconv"
	"time"

	"joblog-insights/internal/chat"
	"joblog-insights/internal/common/config"
	"joblog-insights/internal/common/logger"
	"joblog-insights/internal/common/metrics"
	"joblog-insights/internal/joblogs"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ChatPipeline is the orchestrator capability the chat handler depends on.
type ChatPipeline interface {
	Ask(ctx context.Context, question string) (*chat.Answer, error)
}

// LogStore is the query capability the dashboard handlers depend on.
type LogStore interface {
	List(ctx context.Context, p joblogs.ListParams) (*joblogs.ListResult, error)
	General(ctx context.Context, p joblogs.MetricParams) ([]map[string]interface{}, error)
	Delta(ctx context.Context, p joblogs.MetricParams) ([]map[string]interface{}, error)
}

// HealthCheck reports readiness of a backing dependency.
type HealthCheck func(ctx context.Context) error

// Handler carries the dependencies of all HTTP handlers.
type Handler struct {
	pipeline ChatPipeline
	store    LogStore
	cache    *joblogs.MetricsCache
	health   HealthCheck
	cfg      *config.Config
	logger   logger.Logger
}

func NewHandler(pipeline ChatPipeline, store LogStore, cache *joblogs.MetricsCache, health HealthCheck, cfg *config.Config, log logger.Logger) *Handler {
	return &Handler{
		pipeline: pipeline,
		store:    store,
		cache:    cache,
		health:   health,
		cfg:      cfg,
		logger: log.WithFields(map[string]interface{}{
			"component": "server",
		}),
	}
}

// New builds the echo server with all routes and middleware registered.
func New(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(requestLogging(h.logger))

	api := e.Group("/api")
	api.POST("/chat", h.HandleChat)
	api.GET("/joblogs", h.HandleJobLogs)
	api.GET("/metrics/general", h.HandleGeneralMetrics)
	api.GET("/metrics/delta", h.HandleDeltaMetrics)

	e.GET("/health", h.HandleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}

// requestLogging attaches a request ID, logs each request, and records the
// Prometheus duration histogram.
func requestLogging(log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := uuid.NewString()
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			status := c.Response().Status
			metrics.HTTPRequestDuration.
				WithLabelValues(c.Path(), c.Request().Method, strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())

			log.Info("request handled", map[string]interface{}{
				"requestId":  requestID,
				"method":     c.Request().Method,
				"path":       c.Request().URL.Path,
				"status":     status,
				"durationMs": time.Since(start).Milliseconds(),
			})
			return nil
		}
	}
}
