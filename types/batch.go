package types

// Batch is an ordered group of events bound for a single partition.
//
// A batch is mutable while the packer fills it and sealed once dispatched.
// Sealed batches reject further additions.
type Batch struct {
	partitionKey  string
	capacityBytes int
	maxEvents     int
	sizeBytes     int
	events        []*OutboundEvent
	sealed        bool
}

// NewBatch creates an empty batch.
//
// Parameters:
//   - partitionKey: Partition key shared by every event in the batch
//   - capacityBytes: Upper bound on the summed event sizes
//   - maxEvents: Upper bound on the event count (0 = unlimited)
//
// Returns:
//   - *Batch: Empty, unsealed batch
func NewBatch(partitionKey string, capacityBytes, maxEvents int) *Batch {
	return &Batch{
		partitionKey:  partitionKey,
		capacityBytes: capacityBytes,
		maxEvents:     maxEvents,
	}
}

// TryAdd appends the event if it fits within the remaining capacity.
//
// Parameters:
//   - event: Event to append
//
// Returns:
//   - bool: true if the event was appended, false if it does not fit or the batch is sealed
func (b *Batch) TryAdd(event *OutboundEvent) bool {
	if b.sealed || b.Full() {
		return false
	}
	size := event.Size()
	if b.sizeBytes+size > b.capacityBytes {
		return false
	}
	b.events = append(b.events, event)
	b.sizeBytes += size

	return true
}

// Full reports whether the batch reached its event count limit.
func (b *Batch) Full() bool {
	return b.maxEvents > 0 && len(b.events) >= b.maxEvents
}

// Seal marks the batch immutable.
func (b *Batch) Seal() {
	b.sealed = true
}

// Sealed reports whether the batch was sealed.
func (b *Batch) Sealed() bool {
	return b.sealed
}

// Len returns the number of events in the batch.
func (b *Batch) Len() int {
	return len(b.events)
}

// SizeBytes returns the summed size of the events in the batch.
func (b *Batch) SizeBytes() int {
	return b.sizeBytes
}

// CapacityBytes returns the batch capacity in bytes.
func (b *Batch) CapacityBytes() int {
	return b.capacityBytes
}

// PartitionKey returns the partition key shared by the events.
func (b *Batch) PartitionKey() string {
	return b.partitionKey
}

// Events returns a copy of the events in insertion order.
func (b *Batch) Events() []*OutboundEvent {
	out := make([]*OutboundEvent, len(b.events))
	copy(out, b.events)

	return out
}
