// Package metrics exports the prometheus collectors a production eigrpd
// would back its `show ip eigrp` introspection with: per-interface packet
// counters, per-neighbor state-change counters, and topology gauges. Every
// counter here is touched from a place §4.3/§4.5 already mutates a queue
// or fires an FSM transition — nothing is collected speculatively.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles every collector the instance registers once at boot.
type Registry struct {
	PacketsSent     *prometheus.CounterVec // labels: interface, opcode
	PacketsReceived *prometheus.CounterVec // labels: interface, opcode
	WireErrors      *prometheus.CounterVec // labels: interface, kind
	AuthFailures    *prometheus.CounterVec // labels: interface
	NeighborChanges *prometheus.CounterVec // labels: interface, to_state
	ActivePrefixes  prometheus.Gauge
	ActivePhases    prometheus.Gauge
	RetransQueueDepth *prometheus.GaugeVec // labels: neighbor
	Sequence        prometheus.Gauge
}

// New constructs and registers a Registry against reg. Pass
// prometheus.NewRegistry() in tests, or prometheus.DefaultRegisterer in
// production.
func New(reg prometheus.Registerer) *Registry {
	r := &Registry{
		PacketsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eigrp_packets_sent_total",
			Help: "EIGRP packets transmitted, by interface and opcode.",
		}, []string{"interface", "opcode"}),
		PacketsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eigrp_packets_received_total",
			Help: "EIGRP packets accepted for processing, by interface and opcode.",
		}, []string{"interface", "opcode"}),
		WireErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eigrp_wire_errors_total",
			Help: "Packets dropped for a wire-level reason, by interface and error kind.",
		}, []string{"interface", "kind"}),
		AuthFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eigrp_auth_failures_total",
			Help: "Packets dropped for authentication failure, by interface.",
		}, []string{"interface"}),
		NeighborChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "eigrp_neighbor_state_changes_total",
			Help: "Neighbor session transitions, by interface and destination state.",
		}, []string{"interface", "to_state"}),
		ActivePrefixes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eigrp_active_prefixes",
			Help: "Prefixes currently in any Active-k DUAL state.",
		}),
		ActivePhases: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eigrp_active_phases_total",
			Help: "Cumulative count of prefixes that have entered Active since boot.",
		}),
		RetransQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "eigrp_retransmit_queue_depth",
			Help: "Depth of a neighbor's reliable-unicast retransmit queue.",
		}, []string{"neighbor"}),
		Sequence: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "eigrp_sequence_number",
			Help: "Current instance-wide outbound sequence counter.",
		}),
	}
	for _, c := range []prometheus.Collector{
		r.PacketsSent, r.PacketsReceived, r.WireErrors, r.AuthFailures,
		r.NeighborChanges, r.ActivePrefixes, r.ActivePhases,
		r.RetransQueueDepth, r.Sequence,
	} {
		reg.MustRegister(c)
	}
	return r
}
