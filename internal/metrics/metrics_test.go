package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestCollector_CountsByLabel(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveTurn("generator", "ok")
	m.ObserveTurn("generator", "ok")
	m.ObserveTurn("lead", "ok")
	m.ObserveLeadCapture(false)
	m.ObserveSinkDelivery("webhook-1", true)
	m.ObserveSinkDelivery("webhook-1", false)
	m.ObserveBookingIntent("confirmed", "website")
	m.ObserveSecurityFlag("Spam content detected")

	require.Equal(t, 2.0, counterValue(t, m.turnsTotal.WithLabelValues("generator", "ok")))
	require.Equal(t, 1.0, counterValue(t, m.turnsTotal.WithLabelValues("lead", "ok")))
	require.Equal(t, 1.0, counterValue(t, m.leadCaptures.WithLabelValues("false")))
	require.Equal(t, 1.0, counterValue(t, m.sinkDeliveries.WithLabelValues("webhook-1", "error")))
	require.Equal(t, 1.0, counterValue(t, m.bookingIntents.WithLabelValues("confirmed", "website")))
	require.Equal(t, 1.0, counterValue(t, m.securityFlags.WithLabelValues("Spam content detected")))
}

func TestCollector_NilSafe(t *testing.T) {
	var m *Collector
	require.NotPanics(t, func() {
		m.ObserveTurn("lead", "ok")
		m.ObserveLeadCapture(true)
		m.ObserveSinkDelivery("x", true)
		m.ObserveGeneration("ok", 0.1)
		m.ObserveBookingIntent("suggest", "website")
		m.ObserveSecurityFlag("r")
	})
}

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveGeneration("ok", 0.25)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["sales_assistant_assistant_generation_latency_seconds"])
}
