// Package handlers holds the echo handlers for the stagehop API: the
// events map endpoints and the deploy webhook.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/OmerS16/stagehop-backend/internal/deploy"
	"github.com/OmerS16/stagehop-backend/internal/store"
)

const (
	defaultLimit  = 10
	maxLimit      = 20
	deployTimeout = 30 * time.Minute
	todayFallback = 3 // days to widen the window when today is empty
)

// Deployer runs the configured deploy sequence once.
type Deployer interface {
	Deploy(ctx context.Context) (deploy.Report, error)
}

// Handlers wires the store and the deployer into the router.
type Handlers struct {
	Store    *store.Store
	Deployer Deployer
	Log      *zap.Logger

	deploying sync.Mutex
}

// Ping is the health-check endpoint.
func (h *Handlers) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// TodayEvents returns today's events as GeoJSON; when today is empty it
// falls back to the next three days.
func (h *Handlers) TodayEvents(c echo.Context) error {
	now := time.Now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := endOfDay(start)

	events, err := h.Store.EventsBetween(c.Request().Context(), start, end)
	if err != nil {
		h.Log.Warn("failed to query today's events", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	if len(events) == 0 {
		events, err = h.Store.EventsBetween(c.Request().Context(), start, start.AddDate(0, 0, todayFallback))
		if err != nil {
			h.Log.Warn("failed to query fallback events", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
	}

	return c.JSON(http.StatusOK, toGeoJSON(events))
}

// Events returns events filtered by optional date range and venue name,
// paginated, as GeoJSON.
func (h *Handlers) Events(c echo.Context) error {
	var filter store.EventFilter

	if raw := c.QueryParam("date_from"); raw != "" {
		from, err := parseTime(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid date_from"})
		}
		filter.From = &from
	}
	if raw := c.QueryParam("date_to"); raw != "" {
		to, err := parseTime(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid date_to"})
		}
		filter.To = &to
	}

	// date_from without date_to means "that whole day"
	if filter.From != nil && filter.To == nil {
		to := endOfDay(*filter.From)
		filter.To = &to
	}

	filter.VenueName = c.QueryParam("venue_name")
	filter.Limit = clampLimit(c.QueryParam("limit"))
	if offset, err := strconv.Atoi(c.QueryParam("offset")); err == nil && offset > 0 {
		filter.Offset = offset
	}

	events, err := h.Store.Events(c.Request().Context(), filter)
	if err != nil {
		h.Log.Warn("failed to query events", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, toGeoJSON(events))
}

// Venues returns all venues.
func (h *Handlers) Venues(c echo.Context) error {
	venues, err := h.Store.Venues(c.Request().Context())
	if err != nil {
		h.Log.Warn("failed to query venues", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, venues)
}

// Deploy runs the deploy sequence against the configured target and
// returns the report. Only one deploy runs at a time.
func (h *Handlers) Deploy(c echo.Context) error {
	if h.Deployer == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "deploy target not configured"})
	}
	if !h.deploying.TryLock() {
		return c.JSON(http.StatusConflict, map[string]string{"error": "a deploy is already running"})
	}
	defer h.deploying.Unlock()

	ctx, cancel := context.WithTimeout(c.Request().Context(), deployTimeout)
	defer cancel()

	report, err := h.Deployer.Deploy(ctx)
	h.record(report)

	if err != nil {
		h.Log.Warn("deploy failed", zap.String("run_id", report.RunID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, report)
	}

	return c.JSON(http.StatusOK, report)
}

// Deployments lists recent deploy reports, newest first.
func (h *Handlers) Deployments(c echo.Context) error {
	deployments, err := h.Store.Deployments(c.Request().Context(), clampLimit(c.QueryParam("limit")))
	if err != nil {
		h.Log.Warn("failed to query deployments", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, deployments)
}

func (h *Handlers) record(report deploy.Report) {
	// recording is best effort; the report still goes back to the caller
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := h.Store.RecordDeployment(ctx, &store.Deployment{
		RunID:   report.RunID,
		Address: report.Address,
		Service: report.Service,
		Status:  report.Status,
		Message: report.Message,
		Success: report.Success,
	})
	if err != nil {
		h.Log.Warn("failed to record deployment", zap.String("run_id", report.RunID), zap.Error(err))
	}
}

func parseTime(raw string) (time.Time, error) {
	var lastErr error
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

func clampLimit(raw string) int {
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return defaultLimit
	}
	if limit < 1 {
		return 1
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
