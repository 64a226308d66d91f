// Package metric contains the bot's prometheus collectors. The client updates
// them unconditionally, so New always returns a usable set; registering it
// with a registry is up to the caller.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all connection-level metrics.
type Metrics struct {
	Connected      prometheus.Gauge
	SendQueueDepth prometheus.Gauge

	LinesSent     prometheus.Counter
	LinesReceived prometheus.Counter
	Reconnects    prometheus.Counter
	KarmaUpdates  prometheus.Counter
}

// New creates a new Metrics instance with all collectors.
func New() *Metrics {
	return &Metrics{
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tally",
			Subsystem: "connection",
			Name:      "connected",
			Help:      "Whether the client currently has a connection (0 or 1)",
		}),

		SendQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tally",
			Subsystem: "connection",
			Name:      "send_queue_depth",
			Help:      "Number of lines waiting in the outbound queue",
		}),

		LinesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tally",
			Subsystem: "connection",
			Name:      "lines_sent_total",
			Help:      "Total number of lines written to the server",
		}),

		LinesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tally",
			Subsystem: "connection",
			Name:      "lines_received_total",
			Help:      "Total number of lines parsed from the server",
		}),

		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tally",
			Subsystem: "connection",
			Name:      "reconnects_total",
			Help:      "Total number of times the connection was lost and a reconnect was scheduled",
		}),

		KarmaUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tally",
			Subsystem: "karma",
			Name:      "updates_total",
			Help:      "Total number of karma increments and decrements applied",
		}),
	}
}

// Register registers all collectors with the registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.Connected,
		m.SendQueueDepth,
		m.LinesSent,
		m.LinesReceived,
		m.Reconnects,
		m.KarmaUpdates,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			return err
		}
	}

	return nil
}
