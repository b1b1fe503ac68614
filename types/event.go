package types

import "time"

// EventOverheadBytes is the fixed per-event framing cost added to every event size.
//
// It approximates the bus framing of a single event inside a batch so that
// batches sized by Size never exceed the broker's own limit.
const EventOverheadBytes = 32

// DefaultPartitionKey is the key events without an explicit partition key are grouped under.
const DefaultPartitionKey = ""

// OutboundEvent is an event prepared for publishing.
type OutboundEvent struct {
	// ID uniquely identifies the event. It is echoed back on delivery as the correlation id.
	ID string

	// Payload is the encoded event body.
	Payload []byte

	// PartitionKey routes the event to a partition. Empty means the default partition.
	PartitionKey string

	// Properties are application properties attached to the event.
	Properties map[string]string

	// SequenceIndex is the position of the event in the produced sequence (1-based).
	SequenceIndex int
}

// Size returns the number of bytes the event occupies inside a batch.
//
// Returns:
//   - int: payload, partition key, id and properties plus EventOverheadBytes
func (e *OutboundEvent) Size() int {
	size := len(e.Payload) + len(e.PartitionKey) + len(e.ID) + EventOverheadBytes
	for k, v := range e.Properties {
		size += len(k) + len(v)
	}

	return size
}

// ReceivedEvent is a delivery observed by the latency recorder.
type ReceivedEvent struct {
	// PartitionID identifies the partition the event was delivered from.
	PartitionID string

	// SequenceNumber is the broker-assigned sequence number within the partition.
	SequenceNumber int64

	// CorrelationID is the id of the originating OutboundEvent.
	CorrelationID string

	// ProducedAt is the wall-clock time the producer created the event.
	ProducedAt time.Time

	// EnqueuedAt is the broker-assigned time the event was accepted.
	EnqueuedAt time.Time

	// ReceivedAt is the wall-clock time the consumer observed the event.
	ReceivedAt time.Time
}

// ProducedToEnqueued returns the latency from production to broker acceptance.
func (e *ReceivedEvent) ProducedToEnqueued() time.Duration {
	return e.EnqueuedAt.Sub(e.ProducedAt)
}

// EnqueuedToReceived returns the latency from broker acceptance to observation.
func (e *ReceivedEvent) EnqueuedToReceived() time.Duration {
	return e.ReceivedAt.Sub(e.EnqueuedAt)
}

// ProducedToReceived returns the end-to-end latency.
func (e *ReceivedEvent) ProducedToReceived() time.Duration {
	return e.ReceivedAt.Sub(e.ProducedAt)
}
