// handlers_optimize_test.go - Tests for optimize handlers
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/microgrid-sizing/backend/internal/augment"
	"github.com/microgrid-sizing/backend/internal/config"
	"github.com/microgrid-sizing/backend/internal/logger"
	"github.com/microgrid-sizing/backend/internal/models"
	"github.com/microgrid-sizing/backend/internal/pipeline"
	"github.com/microgrid-sizing/backend/internal/testutil"
	"github.com/microgrid-sizing/backend/internal/workspace"
)

type upload struct {
	field, name, content string
}

func defaultUploads() []upload {
	return []upload{
		{FieldInstance, testutil.InstanceFile, testutil.InstanceJSON},
		{FieldParameters, testutil.ParametersFile, testutil.ParametersJSON},
		{FieldDemand, testutil.DemandFile, testutil.DemandCSV(testutil.DemandProfile)},
		{FieldForecast, testutil.ForecastFile, testutil.ForecastCSV(len(testutil.DemandProfile))},
	}
}

// multipartBody builds a form. Files with an empty name are written with a
// bare filename="" disposition.
func multipartBody(t *testing.T, uploads []upload, scalars map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	for _, u := range uploads {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, u.field, u.name))
		h.Set("Content-Type", "application/octet-stream")
		part, err := writer.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(u.content))
		require.NoError(t, err)
	}
	for k, v := range scalars {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []*pipeline.Request
	names []string
	resp  *pipeline.Response
	err   error
}

func (f *fakeRunner) Run(_ context.Context, req *pipeline.Request) (*pipeline.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, req)
	for _, a := range []io.Reader{req.Instance.Body, req.Parameters.Body, req.Demand.Body, req.Forecast.Body} {
		if _, err := io.ReadAll(a); err != nil {
			return nil, err
		}
	}
	f.names = []string{req.Instance.Name, req.Parameters.Name, req.Demand.Name, req.Forecast.Name}
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func newTestServer(deps *Dependencies) *echo.Echo {
	e := echo.New()
	SetupMiddleware(e, config.ServerConfig{}, logger.NopLogger{})
	RegisterRoutes(e, NewHandlers(deps))
	return e
}

func postForm(e *echo.Echo, path string, body *bytes.Buffer, contentType, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set(echo.HeaderContentType, contentType)
	if accept != "" {
		req.Header.Set(echo.HeaderAccept, accept)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func TestOptimizeHandler_PassesFormThrough(t *testing.T) {
	runner := &fakeRunner{resp: &pipeline.Response{Message: pipeline.MessageDeterministic, RunID: "r1"}}
	e := newTestServer(&Dependencies{Runner: runner})

	body, ct := multipartBody(t, defaultUploads(), map[string]string{
		"years":          "12",
		"demand_covered": "0.7",
	})
	rec := postForm(e, "/optimize/deterministic", body, ct, "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, runner.calls, 1)
	call := runner.calls[0]
	assert.Equal(t, models.ModeDeterministic, call.Mode)
	assert.Equal(t, map[string]string{"years": "12", "demand_covered": "0.7"}, call.Scalars)
	assert.Equal(t, []string{testutil.InstanceFile, testutil.ParametersFile, testutil.DemandFile, testutil.ForecastFile}, runner.names)
	assert.Equal(t, FieldForecast, call.Forecast.Field)
}

func TestOptimizeHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		uploads    []upload
		runErr     error
		wantStatus int
		wantCode   string
		wantCalls  int
	}{
		{
			name:       "missing forecast",
			uploads:    defaultUploads()[:3],
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidArtifact,
		},
		{
			name:       "empty file name",
			uploads:    append(defaultUploads()[:3], upload{FieldForecast, "", "t,gh\n"}),
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidArtifact,
		},
		{
			name:       "config error",
			uploads:    defaultUploads(),
			runErr:     fmt.Errorf("%w: years must be >= 1", models.ErrConfig),
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeConfig,
			wantCalls:  1,
		},
		{
			name:       "missing auxiliary",
			uploads:    defaultUploads(),
			runErr:     fmt.Errorf("%w: [fiscal_incentive.json]", models.ErrMissingAuxiliaryConfig),
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeMissingAuxiliary,
			wantCalls:  1,
		},
		{
			name:       "optimizer failure",
			uploads:    defaultUploads(),
			runErr:     fmt.Errorf("%w: exit status 1", models.ErrOptimizerFailure),
			wantStatus: http.StatusInternalServerError,
			wantCode:   CodeOptimizerFailure,
			wantCalls:  1,
		},
		{
			name:       "malformed demand",
			uploads:    defaultUploads(),
			runErr:     fmt.Errorf("%w: demand.csv: no demand column", models.ErrInputFormat),
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInputFormat,
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{err: tt.runErr, resp: &pipeline.Response{}}
			e := newTestServer(&Dependencies{Runner: runner})

			body, ct := multipartBody(t, tt.uploads, nil)
			rec := postForm(e, "/optimize/deterministic", body, ct, "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Code)
			assert.Len(t, runner.calls, tt.wantCalls)
		})
	}
}

func TestOptimizeHandler_Msgpack(t *testing.T) {
	runner := &fakeRunner{resp: &pipeline.Response{
		Message: pipeline.MessageMultiyear,
		RunID:   "r2",
		Summary: models.ReportSummary{models.KeyLCOE: 0.3},
		Reports: []string{"Results.xlsx"},
	}}
	e := newTestServer(&Dependencies{Runner: runner})

	body, ct := multipartBody(t, defaultUploads(), nil)
	rec := postForm(e, "/optimize/multiyear", body, ct, "application/msgpack;q=1, application/json;q=0.5")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MIMEMsgpack, rec.Header().Get(echo.HeaderContentType))

	var out map[string]any
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, pipeline.MessageMultiyear, out["message"])
	assert.Equal(t, "r2", out["run_id"])
	require.Len(t, runner.calls, 1)
	assert.Equal(t, models.ModeMultiyear, runner.calls[0].Mode)
}

func TestWantsMsgpack(t *testing.T) {
	assert.True(t, wantsMsgpack("application/msgpack"))
	assert.True(t, wantsMsgpack("text/html, application/x-msgpack;q=0.9"))
	assert.False(t, wantsMsgpack("application/json"))
	assert.False(t, wantsMsgpack(""))
}

func TestOptimizeDeterministic_EndToEnd(t *testing.T) {
	root := t.TempDir()
	ws, err := workspace.NewManager(root, true, logger.NopLogger{})
	require.NoError(t, err)
	engine := testutil.NewFakeEngine()
	svc := pipeline.New(ws, engine, nil, nil, pipeline.Options{
		Auxiliary: testutil.WriteAuxiliary(t, t.TempDir(), false),
		Defaults:  augment.DefaultOverrides(),
	}, nil, logger.NopLogger{})
	e := newTestServer(&Dependencies{Runner: svc, Workspaces: ws, Live: svc.Tracker()})

	body, ct := multipartBody(t, defaultUploads(), map[string]string{"years": "15", "demand_covered": "0.5"})
	rec := postForm(e, "/optimize/deterministic", body, ct, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Message          string             `json:"message"`
		RunID            string             `json:"run_id"`
		Summary          map[string]float64 `json:"summary"`
		Percent          []map[string]any   `json:"percent"`
		Energy           []map[string]any   `json:"energy"`
		InstanceDataUsed map[string]any     `json:"instance_data_used"`
		Reports          []string           `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, pipeline.MessageDeterministic, resp.Message)
	assert.Equal(t, float64(15), resp.InstanceDataUsed["years"])
	assert.Equal(t, 0.5, resp.InstanceDataUsed["demand_covered"])
	assert.Equal(t, []string{"Results.xlsx", "temp-plot.html"}, resp.Reports)
	assert.LessOrEqual(t, len(resp.Summary), 8)
	assert.Equal(t, 0.42, resp.Summary["lcoe"])
	assert.Len(t, resp.Percent, 1)
	assert.NotNil(t, resp.Energy)
	assert.Empty(t, resp.Energy)

	// the report is downloadable from the run workspace
	req := httptest.NewRequest(http.MethodGet, "/runs/"+resp.RunID+"/files/temp-plot.html", nil)
	dl := httptest.NewRecorder()
	e.ServeHTTP(dl, req)
	assert.Equal(t, http.StatusOK, dl.Code)
	assert.Equal(t, "text/html", dl.Header().Get(echo.HeaderContentType))

	// every listed report is reachable by name alone
	for _, name := range resp.Reports {
		dl := get(e, "/download/"+name)
		assert.Equal(t, http.StatusOK, dl.Code, name)
		assert.Equal(t, ContentType(name), dl.Header().Get(echo.HeaderContentType), name)
	}
	assert.Equal(t, http.StatusNotFound, get(e, "/download/"+testutil.DemandFile+".missing").Code)

	// status is available from the tracker
	req = httptest.NewRequest(http.MethodGet, "/runs/"+resp.RunID, nil)
	st := httptest.NewRecorder()
	e.ServeHTTP(st, req)
	assert.Equal(t, http.StatusOK, st.Code)
	assert.Contains(t, st.Body.String(), `"status":"complete"`)
}

func TestOptimizeDeterministic_MissingFiscal(t *testing.T) {
	root := t.TempDir()
	ws, err := workspace.NewManager(root, true, logger.NopLogger{})
	require.NoError(t, err)
	engine := testutil.NewFakeEngine()
	aux := testutil.WriteAuxiliary(t, t.TempDir(), false)
	require.NoError(t, os.Remove(aux.Fiscal))
	svc := pipeline.New(ws, engine, nil, nil, pipeline.Options{
		Auxiliary: aux,
		Defaults:  augment.DefaultOverrides(),
	}, nil, logger.NopLogger{})
	e := newTestServer(&Dependencies{Runner: svc, Workspaces: ws, Live: svc.Tracker()})

	uploads := defaultUploads()
	uploads[2].content = "garbage that would fail demand parsing"
	body, ct := multipartBody(t, uploads, nil)
	rec := postForm(e, "/optimize/deterministic", body, ct, "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, CodeMissingAuxiliary, decodeError(t, rec).Code)
	assert.Empty(t, engine.Calls())
}
