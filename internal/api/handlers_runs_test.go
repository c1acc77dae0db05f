// handlers_runs_test.go - Tests for run status handlers
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microgrid-sizing/backend/internal/logger"
	"github.com/microgrid-sizing/backend/internal/models"
	"github.com/microgrid-sizing/backend/internal/runs"
)

type fakeHistory struct {
	records []models.RunRecord
	err     error
	limit   int
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]models.RunRecord, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	if len(f.records) > limit {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f *fakeHistory) Get(_ context.Context, id string) (*models.RunRecord, error) {
	for _, r := range f.records {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", models.ErrRunNotFound, id)
}

func TestRunsHandler_List(t *testing.T) {
	hist := &fakeHistory{records: []models.RunRecord{
		{ID: "b", Mode: models.ModeMultiyear, Status: models.RunStatusComplete, StartedAt: time.Now()},
		{ID: "a", Mode: models.ModeDeterministic, Status: models.RunStatusError, Error: "boom"},
	}}
	e := newTestServer(&Dependencies{Live: runs.NewTracker(logger.NopLogger{}), History: hist})

	rec := get(e, "/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	var out []models.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out, 2)
	assert.Equal(t, 20, hist.limit)

	rec = get(e, "/runs?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Len(t, out, 1)
	assert.Equal(t, "b", out[0].ID)

	rec = get(e, "/runs?limit=zero")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	hist.err = errors.New("database is locked")
	rec = get(e, "/runs")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRunsHandler_ListWithoutHistory(t *testing.T) {
	tracker := runs.NewTracker(logger.NopLogger{})
	tracker.Start("r1", models.ModeDeterministic, "/tmp/r1")
	e := newTestServer(&Dependencies{Live: tracker})

	rec := get(e, "/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	var out []models.RunSession
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "r1", out[0].ID)
}

func TestRunsHandler_Get(t *testing.T) {
	tracker := runs.NewTracker(logger.NopLogger{})
	tracker.Start("live", models.ModeDeterministic, "/tmp/live")
	tracker.SetStage("live", runs.StageOptimizing)
	hist := &fakeHistory{records: []models.RunRecord{{ID: "old", Status: models.RunStatusComplete}}}
	e := newTestServer(&Dependencies{Live: tracker, History: hist})

	rec := get(e, "/runs/live")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stage":"optimizing"`)

	rec = get(e, "/runs/old")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"old"`)

	rec = get(e, "/runs/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decodeError(t, rec).Code)
}
