package metrics

import "github.com/prometheus/client_golang/prometheus"

// IntakeMetrics exposes counters/histograms for the report intake flow.
type IntakeMetrics struct {
	turnsTotal     *prometheus.CounterVec
	turnLatency    *prometheus.HistogramVec
	reportsTotal   prometheus.Counter
	mediaFetches   *prometheus.CounterVec
	webhooksTotal  *prometheus.CounterVec
	webhookLatency prometheus.Histogram
}

func NewIntakeMetrics(reg prometheus.Registerer) *IntakeMetrics {
	m := &IntakeMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "potholematic",
			Subsystem: "intake",
			Name:      "turns_total",
			Help:      "Conversation turns by starting state, outcome and status",
		}, []string{"state", "outcome", "status"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "potholematic",
			Subsystem: "intake",
			Name:      "turn_latency_seconds",
			Help:      "Latency of a full conversation turn",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		reportsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "potholematic",
			Subsystem: "intake",
			Name:      "reports_created_total",
			Help:      "Finalized pothole reports",
		}),
		mediaFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "potholematic",
			Subsystem: "intake",
			Name:      "media_fetch_total",
			Help:      "Photo downloads by result",
		}, []string{"result"}),
		webhooksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "potholematic",
			Subsystem: "messaging",
			Name:      "inbound_webhook_total",
			Help:      "Inbound Twilio webhooks by status",
		}, []string{"status"}),
		webhookLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "potholematic",
			Subsystem: "messaging",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of Twilio webhook processing",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnLatency, m.reportsTotal, m.mediaFetches, m.webhooksTotal, m.webhookLatency)
	return m
}

func (m *IntakeMetrics) ObserveTurn(state, outcome, status string, seconds float64) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "none"
	}
	m.turnsTotal.WithLabelValues(state, outcome, status).Inc()
	m.turnLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *IntakeMetrics) ObserveReportCreated() {
	if m == nil {
		return
	}
	m.reportsTotal.Inc()
}

func (m *IntakeMetrics) ObserveMediaFetch(result string) {
	if m == nil {
		return
	}
	m.mediaFetches.WithLabelValues(result).Inc()
}

func (m *IntakeMetrics) ObserveWebhook(status string, seconds float64) {
	if m == nil {
		return
	}
	m.webhooksTotal.WithLabelValues(status).Inc()
	m.webhookLatency.Observe(seconds)
}
