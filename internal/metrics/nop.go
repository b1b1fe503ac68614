// Package metrics provides types.MetricsCollector implementations.
package metrics

import "github.com/arloliu/busbench/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. Useful for testing or when external
// metrics collection is used.
type NopMetrics struct{}

// Compile-time assertion that NopMetrics implements MetricsCollector.
var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Example:
//
//	packer := batch.NewPacker(1<<20, batch.WithMetrics(metrics.NewNop()))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// PackerMetrics implementation

// RecordBatchDispatched discards the dispatched batch metric.
func (n *NopMetrics) RecordBatchDispatched(_ /* events */, _ /* sizeBytes */ int, _ /* success */ bool) {
	// No-op
}

// RecorderMetrics implementation

// RecordDelivery discards the delivery metric.
func (n *NopMetrics) RecordDelivery(_ /* partitionID */ string, _ /* producedToReceived */ float64) {
	// No-op
}

// RecordRejectedDelivery discards the rejected delivery metric.
func (n *NopMetrics) RecordRejectedDelivery(_ /* state */ types.RecorderState) {
	// No-op
}

// TransportMetrics implementation

// RecordSendDuration discards the send duration metric.
func (n *NopMetrics) RecordSendDuration(_ /* transport */ string, _ /* duration */ float64) {
	// No-op
}

// RecordReceiveError discards the receive error metric.
func (n *NopMetrics) RecordReceiveError(_ /* transport */ string) {
	// No-op
}
