// Package metrics counts message traffic for the /metrics endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Aziz-Madhi/nafsy-sub001/pkg/notify"
)

// Metrics is a notify.Notifier that counts sent, failed and received
// messages per channel on its own registry.
type Metrics struct {
	reg      *prometheus.Registry
	sent     *prometheus.CounterVec
	failed   *prometheus.CounterVec
	received *prometheus.CounterVec
}

var _ notify.Notifier = (*Metrics)(nil)

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nafsy",
			Name:      "messages_sent_total",
			Help:      "Messages the backend accepted.",
		}, []string{"channel"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nafsy",
			Name:      "messages_failed_total",
			Help:      "Messages whose write failed.",
		}, []string{"channel"}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nafsy",
			Name:      "messages_received_total",
			Help:      "Assistant messages that arrived on a live subscription.",
		}, []string{"channel"}),
	}
	m.reg.MustRegister(m.sent, m.failed, m.received)
	m.reg.MustRegister(collectors.NewGoCollector())
	return m
}

// Notify implements notify.Notifier.
func (m *Metrics) Notify(e notify.Event) {
	if m == nil {
		return
	}
	switch e.Kind {
	case notify.KindSent:
		m.sent.WithLabelValues(e.Channel).Inc()
	case notify.KindFailed:
		m.failed.WithLabelValues(e.Channel).Inc()
	case notify.KindReceived:
		m.received.WithLabelValues(e.Channel).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
