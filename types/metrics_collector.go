package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and thread-safe: recorder metrics
// are reported from per-partition delivery goroutines.
//
// This interface composes smaller, domain-focused interfaces.
type MetricsCollector interface {
	PackerMetrics
	RecorderMetrics
	TransportMetrics
}

// PackerMetrics defines metrics for batch packing.
type PackerMetrics interface {
	// RecordBatchDispatched records a dispatched batch.
	//
	// Parameters:
	//   - events: Number of events in the batch
	//   - sizeBytes: Summed event size of the batch
	//   - success: true if the send succeeded
	RecordBatchDispatched(events, sizeBytes int, success bool)
}

// RecorderMetrics defines metrics for latency recording.
type RecorderMetrics interface {
	// RecordDelivery records an observed delivery.
	//
	// Parameters:
	//   - partitionID: Partition the event was delivered from
	//   - producedToReceived: End-to-end latency in seconds
	RecordDelivery(partitionID string, producedToReceived float64)

	// RecordRejectedDelivery records a delivery rejected by the recorder state.
	//
	// Parameters:
	//   - state: Recorder state at the time of rejection
	RecordRejectedDelivery(state RecorderState)
}

// TransportMetrics defines metrics for bus transports.
type TransportMetrics interface {
	// RecordSendDuration records how long a batch send took.
	//
	// Parameters:
	//   - transport: Transport name ("jetstream", "kafka", "memory")
	//   - duration: Time taken in seconds
	RecordSendDuration(transport string, duration float64)

	// RecordReceiveError records a receive-side error.
	//
	// Parameters:
	//   - transport: Transport name
	RecordReceiveError(transport string)
}
