package metrics

import (
	"context"
	"net/http"

	"github.com/microgrid-sizing/backend/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromSink records runs in Prometheus metrics.
type PromSink struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	kpi      *prometheus.GaugeVec
	gatherer prometheus.Gatherer
}

// NewPromSink registers run metrics on the default registry.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// NewPromSinkWithRegistry registers metrics on reg and serves them from
// gatherer. Nil arguments fall back to the default registry.
func NewPromSinkWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "microgrid_runs_total",
		Help: "Total number of optimization runs by mode and outcome",
	}, []string{"mode", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "microgrid_run_duration_seconds",
		Help:    "Wall time of optimization runs",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
	}, []string{"mode"})
	kpi := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "microgrid_last_run_kpi",
		Help: "KPI values of the last successful run",
	}, []string{"mode", "kpi"})

	if err := reg.Register(runs); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			runs = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(kpi); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			kpi = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{runs: runs, duration: duration, kpi: kpi, gatherer: gatherer}, nil
}

func (s *PromSink) RecordRun(_ context.Context, rec *models.RunRecord) error {
	mode := string(rec.Mode)
	s.runs.WithLabelValues(mode, string(rec.Status)).Inc()
	s.duration.WithLabelValues(mode).Observe(float64(rec.DurationMs) / 1000)
	if rec.Status == models.RunStatusComplete {
		for k, v := range rec.Summary {
			s.kpi.WithLabelValues(mode, k).Set(v)
		}
	}
	return nil
}

// Handler serves the metrics exposition.
func (s *PromSink) Handler() http.Handler {
	return promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
}
