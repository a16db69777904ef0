package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes counters and histograms for chat turns, lead capture and
// booking flows. A nil *Collector is valid and records nothing.
type Collector struct {
	turnsTotal        *prometheus.CounterVec
	leadCaptures      *prometheus.CounterVec
	sinkDeliveries    *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec
	bookingIntents    *prometheus.CounterVec
	securityFlags     *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Collector {
	m := &Collector{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sales_assistant",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Completed chat turns by path and outcome",
		}, []string{"path", "outcome"}),
		leadCaptures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sales_assistant",
			Subsystem: "lead",
			Name:      "captures_total",
			Help:      "Captured leads by delivery result",
		}, []string{"delivered"}),
		sinkDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sales_assistant",
			Subsystem: "lead",
			Name:      "sink_deliveries_total",
			Help:      "Lead deliveries per sink",
		}, []string{"sink", "status"}),
		generationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sales_assistant",
			Subsystem: "assistant",
			Name:      "generation_latency_seconds",
			Help:      "Latency of response generation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		bookingIntents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sales_assistant",
			Subsystem: "booking",
			Name:      "intents_total",
			Help:      "Booking tags seen in assistant replies",
		}, []string{"kind", "service"}),
		securityFlags: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sales_assistant",
			Subsystem: "assistant",
			Name:      "security_flags_total",
			Help:      "User messages flagged by the security rules or moderation",
		}, []string{"reason"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.leadCaptures, m.sinkDeliveries, m.generationLatency, m.bookingIntents, m.securityFlags)
	return m
}

func (m *Collector) ObserveTurn(path, outcome string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(path, outcome).Inc()
}

func (m *Collector) ObserveLeadCapture(delivered bool) {
	if m == nil {
		return
	}
	m.leadCaptures.WithLabelValues(boolLabel(delivered)).Inc()
}

func (m *Collector) ObserveSinkDelivery(sink string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.sinkDeliveries.WithLabelValues(sink, status).Inc()
}

func (m *Collector) ObserveGeneration(status string, seconds float64) {
	if m == nil {
		return
	}
	m.generationLatency.WithLabelValues(status).Observe(seconds)
}

func (m *Collector) ObserveBookingIntent(kind, service string) {
	if m == nil {
		return
	}
	m.bookingIntents.WithLabelValues(kind, service).Inc()
}

func (m *Collector) ObserveSecurityFlag(reason string) {
	if m == nil {
		return
	}
	m.securityFlags.WithLabelValues(reason).Inc()
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
