package raknet

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the narrow set of prometheus counters the reliability
// core updates. No HTTP exposition happens here — a host process wires
// these into its own registry and serves them, per spec.md §1's stated
// Non-goal of serving the metrics endpoint from inside this module.
type Metrics struct {
	PacketsIn    prometheus.Counter
	PacketsOut   prometheus.Counter
	Retransmits  prometheus.Counter
	AcksSent     prometheus.Counter
	NaksReceived prometheus.Counter
	Malformed    prometheus.Counter
}

// NewMetrics constructs counters registered under the raknet subsystem.
// Passing a nil registerer skips registration, which is useful in tests
// that construct many sessions and don't want collisions.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PacketsIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bedrockd", Subsystem: "raknet", Name: "packets_in_total",
			Help: "Inbound datagrams processed across all sessions.",
		}),
		PacketsOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bedrockd", Subsystem: "raknet", Name: "packets_out_total",
			Help: "Outbound datagrams sent across all sessions.",
		}),
		Retransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bedrockd", Subsystem: "raknet", Name: "retransmits_total",
			Help: "Frame sets resent in response to a NAK.",
		}),
		AcksSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bedrockd", Subsystem: "raknet", Name: "acks_sent_total",
			Help: "Coalesced ACK datagrams sent.",
		}),
		NaksReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bedrockd", Subsystem: "raknet", Name: "naks_received_total",
			Help: "NAK datagrams received from peers.",
		}),
		Malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bedrockd", Subsystem: "raknet", Name: "malformed_total",
			Help: "Datagrams dropped for failing to decode.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.PacketsIn, m.PacketsOut, m.Retransmits, m.AcksSent, m.NaksReceived, m.Malformed)
	}
	return m
}

// noopMetrics is used wherever a Session or Listener is constructed
// without an explicit *Metrics, so call sites never need a nil check.
func noopMetrics() *Metrics {
	return &Metrics{
		PacketsIn:    prometheus.NewCounter(prometheus.CounterOpts{Name: "noop_in"}),
		PacketsOut:   prometheus.NewCounter(prometheus.CounterOpts{Name: "noop_out"}),
		Retransmits:  prometheus.NewCounter(prometheus.CounterOpts{Name: "noop_retx"}),
		AcksSent:     prometheus.NewCounter(prometheus.CounterOpts{Name: "noop_ack"}),
		NaksReceived: prometheus.NewCounter(prometheus.CounterOpts{Name: "noop_nak"}),
		Malformed:    prometheus.NewCounter(prometheus.CounterOpts{Name: "noop_malformed"}),
	}
}
