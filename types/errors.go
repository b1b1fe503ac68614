package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the busbench library.
//
// Callers check them with errors.Is() and errors.As(). External errors are
// wrapped with context using fmt.Errorf("%s: %w", msg, err).

// Token signing errors.
var (
	// ErrInvalidKey is returned when the shared access key or its name is empty.
	ErrInvalidKey = errors.New("invalid shared access key")

	// ErrInvalidResource is returned when the resource URI is empty or not an absolute URI with a host.
	ErrInvalidResource = errors.New("invalid resource URI")

	// ErrInvalidValidity is returned when the token validity is not positive.
	ErrInvalidValidity = errors.New("token validity must be positive")
)

// Batch packing errors.
var (
	// ErrOversizedEvent is returned when a single event exceeds the batch capacity.
	ErrOversizedEvent = errors.New("event exceeds batch capacity")

	// ErrSendFailed is returned when dispatching a batch to the bus fails.
	ErrSendFailed = errors.New("batch send failed")

	// ErrBatchSealed is returned when adding to a batch that was already dispatched.
	ErrBatchSealed = errors.New("batch is sealed")
)

// Latency recorder errors.
var (
	// ErrAggregateOnOpenStore is returned when Aggregate is called before the recorder is closed.
	ErrAggregateOnOpenStore = errors.New("aggregate requires a closed recorder")

	// ErrRecorderClosed is returned when Record is called after the recorder was closed.
	ErrRecorderClosed = errors.New("recorder closed")

	// ErrNotRecording is returned when Record is called before Start.
	ErrNotRecording = errors.New("recorder not started")

	// ErrInvalidTransition is returned when a recorder lifecycle call is made out of order.
	ErrInvalidTransition = errors.New("invalid recorder state transition")
)

// Transport and administration errors.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEntityNotFound is returned when a topic or subscription does not exist.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrEntityExists is returned when creating a topic or subscription that already exists.
	ErrEntityExists = errors.New("entity already exists")

	// ErrInvalidEntityPath is returned when an entity path cannot be parsed.
	ErrInvalidEntityPath = errors.New("invalid entity path")

	// ErrDeliveryStopped is returned when Stop is called on a delivery that already stopped.
	ErrDeliveryStopped = errors.New("delivery already stopped")
)

// OversizedEventError reports the event that could never fit in a batch.
type OversizedEventError struct {
	// Index is the position of the event in the input sequence.
	Index int
	// EventID is the identifier of the offending event.
	EventID string
	// Size is the computed size of the event in bytes.
	Size int
	// Capacity is the batch capacity in bytes.
	Capacity int
}

func (e *OversizedEventError) Error() string {
	return fmt.Sprintf("event %d (%s) is %d bytes, batch capacity is %d bytes: %v",
		e.Index, e.EventID, e.Size, e.Capacity, ErrOversizedEvent)
}

// Is reports whether target is ErrOversizedEvent.
func (e *OversizedEventError) Is(target error) bool {
	return target == ErrOversizedEvent
}

// SendError reports a failed dispatch together with the batches that were sent before it.
type SendError struct {
	// Dispatched is the number of batches successfully sent before the failure.
	Dispatched int
	// Sent holds the batches successfully sent before the failure.
	Sent []*Batch
	// Err is the underlying failure.
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("%v after %d dispatched batches: %v", ErrSendFailed, e.Dispatched, e.Err)
}

// Unwrap returns the underlying failure.
func (e *SendError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrSendFailed.
func (e *SendError) Is(target error) bool {
	return target == ErrSendFailed
}
