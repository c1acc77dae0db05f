// handlers_runs.go - Run status and history handlers
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/microgrid-sizing/backend/internal/history"
	"github.com/microgrid-sizing/backend/internal/models"
)

// RunsHandlerImpl implements the RunsHandler interface
type RunsHandlerImpl struct {
	live    RunStatus
	history RunHistory
}

// NewRunsHandler creates a new runs handler. history may be nil when the
// persistent log is disabled; listings then come from the live tracker.
func NewRunsHandler(live RunStatus, hist RunHistory) RunsHandler {
	return &RunsHandlerImpl{live: live, history: hist}
}

// HandleListRuns returns the most recent runs, newest first
func (h *RunsHandlerImpl) HandleListRuns(c echo.Context) error {
	limit := history.DefaultLimit
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return NewBadRequestError("limit must be a positive integer", err)
		}
		limit = n
	}

	if h.history == nil {
		runs := h.live.List()
		if len(runs) > limit {
			runs = runs[:limit]
		}
		return c.JSON(http.StatusOK, runs)
	}

	records, err := h.history.Recent(c.Request().Context(), limit)
	if err != nil {
		return NewInternalError("failed to read run history", err)
	}
	if records == nil {
		records = []models.RunRecord{}
	}
	return c.JSON(http.StatusOK, records)
}

// HandleGetRun returns the live state of a run, falling back to its history
// record once the tracker has forgotten it.
func (h *RunsHandlerImpl) HandleGetRun(c echo.Context) error {
	id := c.Param("runId")
	if run, ok := h.live.Get(id); ok {
		return c.JSON(http.StatusOK, run)
	}
	if h.history == nil {
		return NewNotFoundError("run", id)
	}

	rec, err := h.history.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrRunNotFound) {
			return NewNotFoundError("run", id)
		}
		return NewInternalError("failed to read run history", err)
	}
	return c.JSON(http.StatusOK, rec)
}
