// Package metrics exports run telemetry to Prometheus and InfluxDB.
package metrics

import (
	"context"

	"github.com/microgrid-sizing/backend/internal/models"
)

// Sink records finished runs.
type Sink interface {
	RecordRun(ctx context.Context, rec *models.RunRecord) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordRun(context.Context, *models.RunRecord) error { return nil }

// MultiSink fans records out to several sinks.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRun forwards the record to every sink and returns the first error
// encountered. Later sinks still receive the record.
func (m *MultiSink) RecordRun(ctx context.Context, rec *models.RunRecord) error {
	var first error
	for _, s := range m.Sinks {
		if err := s.RecordRun(ctx, rec); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Close closes every sink that holds a connection.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
