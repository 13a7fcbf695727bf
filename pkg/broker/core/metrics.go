package core

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes counters and gauges describing governor activity.
// Every endpoint registers its own set on its own registry.
type Metrics struct {
	Published       prometheus.Counter
	Forwarded       prometheus.Counter
	Delivered       prometheus.Counter
	BatchesEmitted  prometheus.Counter
	BatchesReceived prometheus.Counter
	Buffered        prometheus.Gauge
	Peers           prometheus.Gauge
}

// NewMetrics builds the governor metric set and registers it on the
// given registerer. A nil registerer leaves the metrics unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "broker",
			Name:      "messages_published_total",
			Help:      "Messages published by local producers.",
		}),
		Forwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "broker",
			Name:      "messages_forwarded_total",
			Help:      "Messages forwarded to remote peers.",
		}),
		Delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "broker",
			Name:      "messages_delivered_total",
			Help:      "Messages delivered to local consumers.",
		}),
		BatchesEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "broker",
			Name:      "batches_emitted_total",
			Help:      "Batches emitted on downstream paths.",
		}),
		BatchesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "broker",
			Name:      "batches_received_total",
			Help:      "Batches received on upstream paths.",
		}),
		Buffered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "broker",
			Name:      "messages_buffered",
			Help:      "Messages currently buffered across downstream lanes.",
		}),
		Peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "broker",
			Name:      "connected_peers",
			Help:      "Peers currently in the peer map.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Published, m.Forwarded, m.Delivered,
			m.BatchesEmitted, m.BatchesReceived, m.Buffered, m.Peers)
	}
	return m
}
