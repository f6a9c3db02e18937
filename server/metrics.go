package server

import (
	"time"

	"github.com/mbocsi/hostbridge/owner"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the bridge's prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	commands    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	connections *prometheus.GaugeVec
	writeErrors *prometheus.CounterVec
	registerer  prometheus.Registerer
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		registerer: reg,
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostbridge",
			Name:      "commands_total",
			Help:      "Commands dispatched, by command name and response status.",
		}, []string{"command", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hostbridge",
			Name:      "command_duration_seconds",
			Help:      "Time from dispatch to response, including owner thread queueing.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"command"}),
		connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hostbridge",
			Name:      "connections_active",
			Help:      "Open client connections per transport.",
		}, []string{"transport"}),
		writeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hostbridge",
			Name:      "response_write_errors_total",
			Help:      "Responses that could not be written because the peer was gone.",
		}, []string{"transport"}),
	}
	reg.MustRegister(m.commands, m.duration, m.connections, m.writeErrors)
	return m
}

// TrackExecutor exports the owner queue depth and completed work count.
func (m *Metrics) TrackExecutor(e *owner.Executor) {
	if m == nil || e == nil {
		return
	}
	m.registerer.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "hostbridge",
			Name:      "owner_queue_depth",
			Help:      "Work items waiting for the owner thread.",
		}, func() float64 { return float64(e.Len()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "hostbridge",
			Name:      "owner_executed_total",
			Help:      "Work items completed on the owner thread.",
		}, func() float64 { return float64(e.Executed()) }),
	)
}

func (m *Metrics) observeCommand(name, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(name, status).Inc()
	m.duration.WithLabelValues(name).Observe(d.Seconds())
}

func (m *Metrics) connOpened(transport string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(transport).Inc()
}

func (m *Metrics) connClosed(transport string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(transport).Dec()
}

func (m *Metrics) writeFailed(transport string) {
	if m == nil {
		return
	}
	m.writeErrors.WithLabelValues(transport).Inc()
}
