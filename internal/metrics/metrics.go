// Package metrics holds the Prometheus collectors exported by the relay.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "callrelay"

// Drop reasons used with EventsDropped.
const (
	ReasonMalformed      = "malformed"
	ReasonUnregistered   = "unregistered"
	ReasonCallerMismatch = "caller_mismatch"
	ReasonUnauthorized   = "unauthorized"
	ReasonCalleeOffline  = "callee_offline"
	ReasonRateLimited    = "rate_limited"
	ReasonSendFailed     = "send_failed"
)

var (
	EventsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_received_total",
		Help:      "Client events decoded, by type.",
	}, []string{"type"})

	EventsRelayed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_relayed_total",
		Help:      "Server events queued for delivery, by type.",
	}, []string{"type"})

	EventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dropped_total",
		Help:      "Events dropped by the relay, by reason.",
	}, []string{"reason"})

	GateDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_decisions_total",
		Help:      "Call authorization outcomes.",
	}, []string{"result"})

	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections",
		Help:      "Open signaling connections.",
	})

	Sessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "registered_sessions",
		Help:      "Users currently present in the connection registry.",
	})

	Probes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "liveness_probes_total",
		Help:      "Liveness probe broadcasts sent.",
	})
)

func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		EventsReceived, EventsRelayed, EventsDropped, GateDecisions,
		Connections, Sessions, Probes,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
