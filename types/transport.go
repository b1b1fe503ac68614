package types

import (
	"context"
	"time"
)

// DefaultConsumerGroup is the consumer group every topic subscription implicitly has.
const DefaultConsumerGroup = "$Default"

// Sender publishes batches to a topic.
type Sender interface {
	// Send publishes every event of the batch and returns once the bus accepted them.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - batch: Sealed batch to publish
	//
	// Returns:
	//   - error: Non-nil if any event of the batch was not accepted
	Send(ctx context.Context, batch *Batch) error
}

// Delivery is a single event handed to a DeliveryHandler.
type Delivery struct {
	// PartitionID identifies the partition the event was delivered from.
	PartitionID string

	// SequenceNumber is the broker-assigned sequence number within the partition.
	SequenceNumber int64

	// EnqueuedAt is the broker-assigned acceptance time.
	EnqueuedAt time.Time

	// Body is the event payload.
	Body []byte

	// Properties are the application properties attached by the producer.
	Properties map[string]string
}

// DeliveryHandler processes one delivery.
//
// Calls for the same partition are sequential; calls for different partitions
// run concurrently.
type DeliveryHandler func(ctx context.Context, delivery Delivery) error

// ErrorHandler receives receive-side errors that do not stop delivery.
type ErrorHandler func(partitionID string, err error)

// DeliveryOptions configures where and how delivery starts.
type DeliveryOptions struct {
	// ConsumerGroup names the subscription to receive from. Empty means DefaultConsumerGroup.
	ConsumerGroup string

	// StartTime is the earliest enqueue time to deliver from.
	StartTime time.Time
}

// DeliveryHandle controls a running delivery.
type DeliveryHandle interface {
	// Stop stops fetching and waits for in-flight handler calls to return.
	//
	// Parameters:
	//   - ctx: Bounds the wait for in-flight handlers
	//
	// Returns:
	//   - error: ctx error if handlers did not finish in time
	Stop(ctx context.Context) error
}

// Receiver delivers events from every partition of a topic.
type Receiver interface {
	// StartDelivery begins delivering events, one goroutine per partition.
	//
	// Parameters:
	//   - ctx: Context for setup; delivery itself runs until Stop
	//   - opts: Consumer group and start position
	//   - handler: Called for every delivery
	//   - onError: Called for receive errors that do not stop delivery (may be nil)
	//
	// Returns:
	//   - DeliveryHandle: Handle used to stop delivery
	//   - error: Setup failure
	StartDelivery(ctx context.Context, opts DeliveryOptions, handler DeliveryHandler, onError ErrorHandler) (DeliveryHandle, error)
}

// Transport combines the publish and receive sides of a bus binding.
type Transport interface {
	Sender
	Receiver

	// Close releases the underlying connection.
	Close() error
}
