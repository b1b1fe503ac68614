// Package batch packs outbound events into size- and count-bounded batches.
package batch

import (
	"context"
	"time"

	"github.com/arloliu/busbench/internal/logging"
	"github.com/arloliu/busbench/internal/metrics"
	"github.com/arloliu/busbench/types"
)

// DefaultCapacityBytes is the batch capacity used when none is configured (1 MiB).
const DefaultCapacityBytes = 1 << 20

// SendFunc dispatches one sealed batch. The packer waits for it to return
// before building the next batch.
type SendFunc func(ctx context.Context, batch *types.Batch) error

// Packer greedily packs events into batches and dispatches them in order.
//
// A Packer holds no per-call state and is safe for concurrent use; each Pack
// call is its own ordered stream.
type Packer struct {
	capacityBytes int
	maxEvents     int
	logger        types.Logger
	metrics       types.PackerMetrics
}

// Option configures a Packer.
type Option func(*Packer)

// WithMaxEvents bounds the number of events per batch (0 = unlimited).
func WithMaxEvents(n int) Option {
	return func(p *Packer) {
		p.maxEvents = n
	}
}

// WithLogger sets the packer logger.
func WithLogger(logger types.Logger) Option {
	return func(p *Packer) {
		p.logger = logger
	}
}

// WithMetrics sets the packer metrics.
func WithMetrics(m types.PackerMetrics) Option {
	return func(p *Packer) {
		p.metrics = m
	}
}

// NewPacker creates a Packer.
//
// Parameters:
//   - capacityBytes: Byte capacity of every batch (DefaultCapacityBytes if <= 0)
//   - opts: Optional event count bound, logger and metrics
//
// Returns:
//   - *Packer: Configured packer
//
// Example:
//
//	packer := batch.NewPacker(256*1024, batch.WithMaxEvents(10))
//	sent, err := packer.Pack(ctx, events, transport.Send)
func NewPacker(capacityBytes int, opts ...Option) *Packer {
	if capacityBytes <= 0 {
		capacityBytes = DefaultCapacityBytes
	}
	p := &Packer{capacityBytes: capacityBytes}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxEvents < 0 {
		p.maxEvents = 0
	}
	if p.logger == nil {
		p.logger = logging.NewNop()
	}
	if p.metrics == nil {
		p.metrics = metrics.NewNop()
	}

	return p
}

// CapacityBytes returns the batch byte capacity.
func (p *Packer) CapacityBytes() int {
	return p.capacityBytes
}

// MaxEvents returns the per-batch event bound (0 = unlimited).
func (p *Packer) MaxEvents() int {
	return p.maxEvents
}

// Pack partitions events into batches and dispatches each through send.
//
// Packing rules:
//   - Events are taken in input order; each goes into the open batch of its partition key
//   - An event that does not fit its open batch closes and dispatches that batch first
//   - A batch that reaches the event count bound is dispatched immediately
//   - Remaining open batches are dispatched in the order they were opened
//
// Every event is checked against the capacity before anything is sent, so an
// oversized event fails the call with zero dispatched batches.
//
// Parameters:
//   - ctx: Checked before every dispatch and passed to send
//   - events: Events to pack; each appears in exactly one batch
//   - send: Dispatch function, called synchronously
//
// Returns:
//   - []*types.Batch: Dispatched batches in dispatch order
//   - error: *types.OversizedEventError or *types.SendError
func (p *Packer) Pack(ctx context.Context, events []*types.OutboundEvent, send SendFunc) ([]*types.Batch, error) {
	for i, e := range events {
		if size := e.Size(); size > p.capacityBytes {
			err := &types.OversizedEventError{Index: i, EventID: e.ID, Size: size, Capacity: p.capacityBytes}
			p.logger.Error("event exceeds batch capacity", "index", i, "event_id", e.ID, "size", size,
				"capacity", p.capacityBytes)

			return nil, err
		}
	}

	run := &packRun{packer: p, ctx: ctx, send: send, open: make(map[string]*types.Batch)}
	for _, e := range events {
		if err := run.add(e); err != nil {
			return run.sent, err
		}
	}
	if err := run.flush(); err != nil {
		return run.sent, err
	}

	p.logger.Debug("packed events", "events", len(events), "batches", len(run.sent))

	return run.sent, nil
}

// packRun holds the state of one Pack call.
type packRun struct {
	packer *Packer
	ctx    context.Context //nolint:containedctx // scoped to a single Pack call
	send   SendFunc
	open   map[string]*types.Batch
	order  []string
	sent   []*types.Batch
}

func (r *packRun) add(e *types.OutboundEvent) error {
	key := e.PartitionKey
	b := r.openBatch(key)
	if !b.TryAdd(e) {
		if err := r.dispatch(key); err != nil {
			return err
		}
		b = r.openBatch(key)
		// The pre-pass guarantees a single event fits an empty batch.
		b.TryAdd(e)
	}
	if b.Full() {
		return r.dispatch(key)
	}

	return nil
}

func (r *packRun) openBatch(key string) *types.Batch {
	if b, ok := r.open[key]; ok {
		return b
	}
	b := types.NewBatch(key, r.packer.capacityBytes, r.packer.maxEvents)
	r.open[key] = b
	r.order = append(r.order, key)

	return b
}

func (r *packRun) flush() error {
	for len(r.order) > 0 {
		if err := r.dispatch(r.order[0]); err != nil {
			return err
		}
	}

	return nil
}

// dispatch seals and sends the open batch for key and removes it from the open set.
func (r *packRun) dispatch(key string) error {
	b := r.open[key]
	delete(r.open, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if b == nil || b.Len() == 0 {
		return nil
	}
	b.Seal()

	if err := r.ctx.Err(); err != nil {
		r.packer.metrics.RecordBatchDispatched(b.Len(), b.SizeBytes(), false)

		return &types.SendError{Dispatched: len(r.sent), Sent: r.sent, Err: err}
	}

	start := time.Now()
	err := r.send(r.ctx, b)
	r.packer.metrics.RecordBatchDispatched(b.Len(), b.SizeBytes(), err == nil)
	if err != nil {
		r.packer.logger.Error("batch send failed", "partition_key", key, "events", b.Len(),
			"dispatched", len(r.sent), "error", err)

		return &types.SendError{Dispatched: len(r.sent), Sent: r.sent, Err: err}
	}

	r.packer.logger.Debug("batch dispatched", "partition_key", key, "events", b.Len(),
		"size_bytes", b.SizeBytes(), "duration", time.Since(start))
	r.sent = append(r.sent, b)

	return nil
}
