package metrics

import (
	"github.com/microgrid-sizing/backend/internal/config"
	"github.com/prometheus/client_golang/prometheus"
)

// FromConfig builds the configured sinks. The PromSink is returned separately
// so its handler can be mounted; it is nil when Prometheus is disabled.
func FromConfig(cfg config.MetricsConfig, reg prometheus.Registerer, gatherer prometheus.Gatherer) (Sink, *PromSink, error) {
	var (
		sinks []Sink
		prom  *PromSink
	)
	if cfg.PrometheusEnabled {
		p, err := NewPromSinkWithRegistry(reg, gatherer)
		if err != nil {
			return nil, nil, err
		}
		prom = p
		sinks = append(sinks, p)
	}
	if cfg.Influx.Enabled {
		sinks = append(sinks, NewInfluxSinkWithFallback(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket))
	}

	switch len(sinks) {
	case 0:
		return NopSink{}, nil, nil
	case 1:
		return sinks[0], prom, nil
	}
	return NewMultiSink(sinks...), prom, nil
}
