package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsRegisterWithoutConflict(t *testing.T) {
	m := New()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(m.DriftResetTotal))
	for _, c := range []prometheus.Collector{m.MaxDriftMs, m.QueueDepth, m.QueueDroppedTotal, m.HeartbeatTotal, m.ConnectionStatus} {
		require.NoError(t, reg.Register(c))
	}
}

func TestDriftResetTotalIncrementsPerLoopLabel(t *testing.T) {
	m := New()
	m.DriftResetTotal.WithLabelValues("step").Inc()
	m.DriftResetTotal.WithLabelValues("step").Inc()
	m.DriftResetTotal.WithLabelValues("clock").Inc()

	var metric dto.Metric
	require.NoError(t, m.DriftResetTotal.WithLabelValues("step").Write(&metric))
	assert.Equal(t, 2.0, metric.Counter.GetValue())
}

func TestConnectionStatusGaugePerSender(t *testing.T) {
	m := New()
	m.ConnectionStatus.WithLabelValues("drums").Set(1)
	m.ConnectionStatus.WithLabelValues("synth").Set(0)

	var metric dto.Metric
	require.NoError(t, m.ConnectionStatus.WithLabelValues("drums").Write(&metric))
	assert.Equal(t, 1.0, metric.Gauge.GetValue())
}
