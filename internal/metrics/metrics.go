// Package metrics holds the Prometheus collectors for the realtime layer.
// All methods are safe on a nil *Metrics so components can run without it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Deliveries  *prometheus.CounterVec
	Pruned      prometheus.Counter
	Pushes      *prometheus.CounterVec
	Retries     prometheus.Counter
	Likes       *prometheus.CounterVec
	Messages    prometheus.Counter
	Reaped      prometheus.Counter
	Connections prometheus.Gauge
}

// New creates the collectors and registers them with reg. A nil reg
// registers with the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spark_deliveries_total",
			Help: "Live deliveries by result (delivered, undelivered)",
		}, []string{"result"}),
		Pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spark_connections_pruned_total",
			Help: "Connections removed after the transport reported them gone",
		}),
		Pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spark_push_total",
			Help: "Push fallback sends by result (ok, blocked, error, skipped)",
		}, []string{"result"}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spark_tx_retries_total",
			Help: "Transaction retries after a transient store failure",
		}),
		Likes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spark_likes_total",
			Help: "Likes recorded by outcome (like, match)",
		}, []string{"outcome"}),
		Messages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spark_messages_total",
			Help: "Chat messages persisted",
		}),
		Reaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spark_connections_reaped_total",
			Help: "Stale connections removed by the presence reaper",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "spark_ws_connections",
			Help: "Open websocket connections on this process",
		}),
	}
	reg.MustRegister(m.Deliveries, m.Pruned, m.Pushes, m.Retries, m.Likes, m.Messages, m.Reaped, m.Connections)
	return m
}

func (m *Metrics) Delivery(delivered bool) {
	if m == nil {
		return
	}
	if delivered {
		m.Deliveries.WithLabelValues("delivered").Inc()
		return
	}
	m.Deliveries.WithLabelValues("undelivered").Inc()
}

func (m *Metrics) Prune() {
	if m == nil {
		return
	}
	m.Pruned.Inc()
}

// Push records a push fallback result: ok, blocked, error or skipped.
func (m *Metrics) Push(result string) {
	if m == nil {
		return
	}
	m.Pushes.WithLabelValues(result).Inc()
}

func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}

func (m *Metrics) Like(match bool) {
	if m == nil {
		return
	}
	if match {
		m.Likes.WithLabelValues("match").Inc()
		return
	}
	m.Likes.WithLabelValues("like").Inc()
}

func (m *Metrics) Message() {
	if m == nil {
		return
	}
	m.Messages.Inc()
}

func (m *Metrics) Reap(n int64) {
	if m == nil {
		return
	}
	m.Reaped.Add(float64(n))
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.Connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.Connections.Dec()
}
