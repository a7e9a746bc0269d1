// Package metrics exposes operation counters over Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"quantapay/internal/domain"
)

type PrometheusSink struct {
	operations *prometheus.CounterVec
}

// NewPrometheusSink registers the counters on the given registry and
// returns a sink the crypto paths can emit to. Registering the same
// registry twice panics, matching prometheus conventions.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	sink := &PrometheusSink{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quantapay",
			Subsystem: "crypto",
			Name:      "operations_total",
			Help:      "Cryptographic operations by kind, outcome, and algorithm.",
		}, []string{"operation", "status", "algorithm"}),
	}
	reg.MustRegister(sink.operations)
	return sink
}

func (s *PrometheusSink) Observe(op domain.Operation, status domain.OperationStatus, algorithm string) {
	s.operations.WithLabelValues(string(op), string(status), algorithm).Inc()
}
