package domain

type Operation string

const (
	OperationSign    Operation = "sign"
	OperationVerify  Operation = "verify"
	OperationEncrypt Operation = "encrypt"
	OperationDecrypt Operation = "decrypt"
)

type OperationStatus string

const (
	StatusSuccess OperationStatus = "success"
	StatusFailure OperationStatus = "failure"
)

// MetricsSink receives per-operation counters. The core only emits; a nil
// or no-op sink is always acceptable.
type MetricsSink interface {
	Observe(op Operation, status OperationStatus, algorithm string)
}

type NopMetrics struct{}

func (NopMetrics) Observe(Operation, OperationStatus, string) {}
