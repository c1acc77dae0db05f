package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/microgrid-sizing/backend/internal/config"
	"github.com/microgrid-sizing/backend/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *models.RunRecord {
	return &models.RunRecord{
		ID:         "run-1",
		Mode:       models.ModeDeterministic,
		Status:     models.RunStatusComplete,
		StartedAt:  time.Unix(1700000000, 0),
		DurationMs: 2500,
		Summary:    models.ReportSummary{models.KeyLCOE: 0.31234, models.KeyArea: 120},
		Reports:    []string{"Results.xlsx"},
	}
}

type recordSink struct {
	count int
	err   error
}

func (r *recordSink) RecordRun(context.Context, *models.RunRecord) error {
	r.count++
	return r.err
}

func TestMultiSink(t *testing.T) {
	boom := errors.New("boom")
	s1 := &recordSink{err: boom}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2)

	err := m.RecordRun(context.Background(), sampleRecord())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, s1.count)
	assert.Equal(t, 1, s2.count, "later sinks still receive the record")
}

func TestPromSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg, reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordRun(context.Background(), sampleRecord()))
	failed := sampleRecord()
	failed.Status = models.RunStatusError
	require.NoError(t, sink.RecordRun(context.Background(), failed))

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.runs.WithLabelValues("deterministic", "complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.runs.WithLabelValues("deterministic", "error")))
	assert.Equal(t, 0.31234, testutil.ToFloat64(sink.kpi.WithLabelValues("deterministic", "lcoe")))

	// A second registration reuses the collectors.
	again, err := NewPromSinkWithRegistry(reg, reg)
	require.NoError(t, err)
	assert.Same(t, sink.runs, again.runs)

	rec := httptest.NewRecorder()
	sink.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "microgrid_runs_total")
}

func TestInfluxSink_RecordRun(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	rec := sampleRecord()
	require.NoError(t, sink.RecordRun(context.Background(), rec))

	p := write.NewPointWithMeasurement("optimization_run").
		AddTag("run_id", "run-1").
		AddTag("mode", "deterministic").
		AddTag("status", "complete").
		AddField("duration_ms", int64(2500)).
		AddField("reports", 1).
		AddField("lcoe", 0.312).
		AddField("area", 120.0).
		SetTime(rec.StartedAt)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	assert.Equal(t, expected, strings.TrimSpace(body))
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	_, isInflux := sink.(*InfluxSink)
	assert.False(t, isInflux, "expected NopSink on failing health check")
	assert.True(t, called)
}

func TestFromConfig(t *testing.T) {
	reg := prometheus.NewRegistry()

	sink, prom, err := FromConfig(config.MetricsConfig{}, reg, reg)
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, sink)
	assert.Nil(t, prom)

	sink, prom, err = FromConfig(config.MetricsConfig{PrometheusEnabled: true}, reg, reg)
	require.NoError(t, err)
	assert.NotNil(t, prom)
	assert.Same(t, prom, sink)
}
