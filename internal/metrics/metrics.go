// Package metrics exposes the engine's own drift and health state as
// Prometheus collectors. This is additive observability over data the
// engine already computes; nothing in the engine reads metrics back.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every collector the engine updates. Construct one with
// New and register it on whatever registry the embedding process uses.
type Metrics struct {
	DriftResetTotal    *prometheus.CounterVec
	MaxDriftMs         *prometheus.GaugeVec
	QueueDepth         prometheus.Gauge
	QueueDroppedTotal  prometheus.Counter
	HeartbeatTotal     prometheus.Counter
	ConnectionStatus   *prometheus.GaugeVec
}

func New() *Metrics {
	return &Metrics{
		DriftResetTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oiduna_loop",
			Name:      "loop_drift_reset_total",
			Help:      "Count of non-suppressed drift resets, by loop.",
		}, []string{"loop"}),
		MaxDriftMs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "oiduna_loop",
			Name:      "loop_max_drift_ms",
			Help:      "Maximum observed absolute drift in milliseconds, by loop.",
		}, []string{"loop"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "oiduna_loop",
			Name:      "telemetry_queue_depth",
			Help:      "Current number of queued telemetry events.",
		}),
		QueueDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oiduna_loop",
			Name:      "telemetry_queue_dropped_total",
			Help:      "Cumulative telemetry events dropped for overflow.",
		}),
		HeartbeatTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oiduna_loop",
			Name:      "heartbeat_total",
			Help:      "Cumulative heartbeat ticks published.",
		}),
		ConnectionStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "oiduna_loop",
			Name:      "connection_status",
			Help:      "1 if the sender is connected, 0 otherwise, by sender id.",
		}, []string{"sender"}),
	}
}

// Collectors returns every collector for bulk registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.DriftResetTotal, m.MaxDriftMs, m.QueueDepth,
		m.QueueDroppedTotal, m.HeartbeatTotal, m.ConnectionStatus,
	}
}
