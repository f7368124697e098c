package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	apperrors "joblog-insights/internal/common/errors"
	"joblog-insights/internal/joblogs"

	"github.com/labstack/echo/v4"
)

// ChatRequest is the inbound payload of the assistant endpoint.
type ChatRequest struct {
	Question string `json:"question"`
}

// ErrorResponse is the uniform failure body: a summary plus the detail of
// the underlying failure. Callers never receive a bare stack trace or an
// empty body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// HealthStatus is the health check payload.
type HealthStatus struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// HandleChat runs the natural-language query pipeline for one question.
func (h *Handler) HandleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, apperrors.NewMissingQuestionError())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(),
		time.Duration(h.cfg.Chat.RequestTimeout)*time.Millisecond)
	defer cancel()

	answer, err := h.pipeline.Ask(ctx, req.Question)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, answer)
}

// HandleJobLogs serves the filtered, paginated record listing.
func (h *Handler) HandleJobLogs(c echo.Context) error {
	params := joblogs.ListParams{
		StartDate: parseDateParam(c.QueryParam("startDate")),
		EndDate:   parseDateParam(c.QueryParam("endDate")),
		Client:    c.QueryParam("client"),
		Country:   c.QueryParam("country"),
		Page:      parseIntParam(c.QueryParam("page"), 1),
		Limit:     parseIntParam(c.QueryParam("limit"), 20),
		SortField: c.QueryParam("sortField"),
		SortOrder: c.QueryParam("sortOrder"),
	}

	result, err := h.store.List(c.Request().Context(), params)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// HandleGeneralMetrics serves per-group averages or totals of one progress
// counter.
func (h *Handler) HandleGeneralMetrics(c echo.Context) error {
	return h.handleMetrics(c, "general", h.store.General)
}

// HandleDeltaMetrics serves the per-group first/last change of one progress
// counter.
func (h *Handler) HandleDeltaMetrics(c echo.Context) error {
	return h.handleMetrics(c, "delta", h.store.Delta)
}

func (h *Handler) handleMetrics(c echo.Context, kind string, query func(context.Context, joblogs.MetricParams) ([]map[string]interface{}, error)) error {
	field := c.QueryParam("field")
	if field == "" {
		return writeError(c, apperrors.NewMissingFieldError("field"))
	}

	params := joblogs.MetricParams{
		Field:     field,
		GroupBy:   c.QueryParam("groupBy"),
		StartDate: parseDateParam(c.QueryParam("startDate")),
		EndDate:   parseDateParam(c.QueryParam("endDate")),
		Client:    c.QueryParam("client"),
		Country:   c.QueryParam("country"),
		Agg:       c.QueryParam("agg"),
	}
	params.ApplyDefaults()

	ctx := c.Request().Context()
	key := params.CacheKey(kind)

	var cached []map[string]interface{}
	if h.cache.Get(ctx, key, &cached) {
		return c.JSON(http.StatusOK, cached)
	}

	results, err := query(ctx, params)
	if err != nil {
		return writeError(c, err)
	}
	h.cache.Set(ctx, key, results)

	return c.JSON(http.StatusOK, results)
}

// HandleHealth reports service and store health.
func (h *Handler) HandleHealth(c echo.Context) error {
	status := HealthStatus{
		Status:    "ok",
		Service:   h.cfg.App.Name,
		Version:   h.cfg.App.Version,
		Timestamp: time.Now().UTC(),
	}

	if h.health != nil {
		if err := h.health(c.Request().Context()); err != nil {
			status.Status = "degraded"
			return c.JSON(http.StatusServiceUnavailable, status)
		}
	}
	return c.JSON(http.StatusOK, status)
}

// writeError maps any failure to exactly one taxonomy kind and its status.
func writeError(c echo.Context, err error) error {
	stdErr := apperrors.Normalize(err)
	return c.JSON(apperrors.HTTPStatus(stdErr.Code), ErrorResponse{
		Error:   stdErr.Message,
		Details: stdErr.Details,
	})
}

func parseDateParam(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func parseIntParam(raw string, fallback int64) int64 {
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}
