// handlers_files_test.go - Tests for report download handlers
package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/microgrid-sizing/backend/internal/logger"
	"github.com/microgrid-sizing/backend/internal/workspace"
)

func get(e *echo.Echo, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestContentType(t *testing.T) {
	tests := map[string]string{
		"temp-plot.html": "text/html",
		"index.HTM":      "text/html",
		"chart.png":      "image/png",
		"photo.jpg":      "image/jpeg",
		"photo.jpeg":     "image/jpeg",
		"Results.xlsx":   MIMESpreadsheet,
		"legacy.xls":     MIMESpreadsheet,
		"data.csv":       echo.MIMEOctetStream,
		"noext":          echo.MIMEOctetStream,
	}
	for name, want := range tests {
		assert.Equal(t, want, ContentType(name), name)
	}
}

func TestFilesHandler_SharedWorkspace(t *testing.T) {
	root := t.TempDir()
	ws, err := workspace.NewManager(root, false, logger.NopLogger{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "chart.png"), []byte("\x89PNG"), 0644))
	e := newTestServer(&Dependencies{Workspaces: ws})

	rec := get(e, "/download/chart.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "attachment")
	assert.Equal(t, "\x89PNG", rec.Body.String())

	rec = get(e, "/download/missing.png")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, CodeNotFound, decodeError(t, rec).Code)

	rec = get(e, "/download/..%2Fchart.png")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFilesHandler_RunWorkspace(t *testing.T) {
	root := t.TempDir()
	ws, err := workspace.NewManager(root, true, logger.NopLogger{})
	require.NoError(t, err)
	run, err := ws.Create()
	require.NoError(t, err)
	_, err = run.Store.SaveBytes("Results.xlsx", []byte("xlsx"))
	require.NoError(t, err)
	ws.Release(run)
	e := newTestServer(&Dependencies{Workspaces: ws})

	rec := get(e, "/download/Results.xlsx?run="+run.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MIMESpreadsheet, rec.Header().Get(echo.HeaderContentType))

	rec = get(e, "/runs/"+run.ID+"/files/Results.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "xlsx", rec.Body.String())

	// without a run the newest finished run holding the file serves it
	rec = get(e, "/download/Results.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "xlsx", rec.Body.String())

	rec = get(e, "/download/other.html")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(e, "/download/..%2FResults.xlsx")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(e, "/runs/not-a-run/files/Results.xlsx")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(e, "/runs/"+run.ID+"/files/other.html")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
