package supervisor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var allStatuses = []Status{StatusTerminated, StatusLoading, StatusIdle, StatusProcessing}

// metrics holds the supervisor collectors. They are always live; registration
// is up to the caller via Config.Registerer.
type metrics struct {
	queueDepth      prometheus.Gauge
	status          *prometheus.GaugeVec
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	loadsTotal      *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "llamad",
			Subsystem: "supervisor",
			Name:      "queue_depth",
			Help:      "Requests waiting for the model",
		}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "llamad",
			Subsystem: "supervisor",
			Name:      "status",
			Help:      "1 for the current session status, 0 otherwise",
		}, []string{"status"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llamad",
			Subsystem: "supervisor",
			Name:      "requests_total",
			Help:      "Settled requests by outcome",
		}, []string{"outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "llamad",
			Subsystem: "supervisor",
			Name:      "request_duration_seconds",
			Help:      "Time from enqueue to settlement",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"outcome"}),
		loadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llamad",
			Subsystem: "supervisor",
			Name:      "loads_total",
			Help:      "Model load attempts by result",
		}, []string{"result"}),
	}
	m.setStatus(StatusTerminated)
	if reg != nil {
		reg.MustRegister(m.queueDepth, m.status, m.requestsTotal, m.requestDuration, m.loadsTotal)
	}
	return m
}

func (m *metrics) setStatus(s Status) {
	for _, st := range allStatuses {
		v := 0.0
		if st == s {
			v = 1
		}
		m.status.WithLabelValues(string(st)).Set(v)
	}
}

func (m *metrics) observe(r *request, outcome string) {
	m.requestsTotal.WithLabelValues(outcome).Inc()
	m.requestDuration.WithLabelValues(outcome).Observe(time.Since(r.enqueued).Seconds())
}
