package testing

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/busbench/internal/hash"
	"github.com/arloliu/busbench/types"
)

// MemoryBus is an in-process bus implementing types.Transport and types.Admin.
//
// It models the properties the latency benchmark relies on:
//   - events are spread across a fixed number of partitions by partition key
//   - the bus assigns every event an enqueue time and a per-partition sequence number
//   - delivery runs one goroutine per partition, in partition order
//
// The transport side is bound to a single topic; the admin side manages any
// number of topics and subscriptions.
type MemoryBus struct {
	topic       string
	partitioner *hash.Partitioner
	partitions  []*memPartition
	now         func() time.Time

	mu         sync.Mutex
	entities   map[string]types.EntityOptions
	sendErr    error
	sendDelay  time.Duration
	sentEvents int
	closed     bool
}

// Compile-time assertions that MemoryBus implements Transport and Admin.
var (
	_ types.Transport = (*MemoryBus)(nil)
	_ types.Admin     = (*MemoryBus)(nil)
)

// MemoryBusOption configures a MemoryBus.
type MemoryBusOption func(*MemoryBus)

// WithBusClock sets the clock used for enqueue times.
func WithBusClock(now func() time.Time) MemoryBusOption {
	return func(b *MemoryBus) {
		b.now = now
	}
}

// WithSendDelay delays every Send by d, simulating broker round trips.
func WithSendDelay(d time.Duration) MemoryBusOption {
	return func(b *MemoryBus) {
		b.sendDelay = d
	}
}

// NewMemoryBus creates an in-memory bus for topic with the given partition count.
//
// Parameters:
//   - topic: Topic the transport side publishes to and receives from
//   - partitions: Number of partitions (values < 1 are treated as 1)
//   - opts: Optional clock and send delay
//
// Returns:
//   - *MemoryBus: Ready-to-use bus; the topic itself is not created until CreateEntity
//
// Example:
//
//	bus := bustest.NewMemoryBus("orders", 4)
//	bench, _ := busbench.NewBenchmark(cfg, bus, busbench.WithAdmin(bus))
func NewMemoryBus(topic string, partitions int, opts ...MemoryBusOption) *MemoryBus {
	if partitions < 1 {
		partitions = 1
	}
	b := &MemoryBus{
		topic:       topic,
		partitioner: hash.NewPartitioner(partitions, 0),
		partitions:  make([]*memPartition, partitions),
		now:         time.Now,
		entities:    make(map[string]types.EntityOptions),
	}
	for i := range b.partitions {
		b.partitions[i] = newMemPartition(strconv.Itoa(i))
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

// FailSends makes every following Send return err (nil restores normal sends).
func (b *MemoryBus) FailSends(err error) {
	b.mu.Lock()
	b.sendErr = err
	b.mu.Unlock()
}

// SentEvents returns the number of events accepted by Send.
func (b *MemoryBus) SentEvents() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.sentEvents
}

// PartitionFor returns the partition id an event with key would be placed in.
//
// Only meaningful for non-empty keys; unkeyed events are spread round-robin.
func (b *MemoryBus) PartitionFor(key string) string {
	return b.partitions[b.partitioner.Partition(key)].id
}

// Send appends every event of the batch to its partition.
func (b *MemoryBus) Send(ctx context.Context, batch *types.Batch) error {
	b.mu.Lock()
	sendErr, delay, closed := b.sendErr, b.sendDelay, b.closed
	b.mu.Unlock()

	if closed {
		return errors.New("memory bus closed")
	}
	if sendErr != nil {
		return sendErr
	}
	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// A batch targets a single partition, as on a real bus.
	p := b.partitions[b.partitioner.Partition(batch.PartitionKey())]
	for _, e := range batch.Events() {
		p.append(memEntry{
			enqueuedAt: b.now(),
			body:       slices.Clone(e.Payload),
			properties: maps.Clone(e.Properties),
		})
	}

	b.mu.Lock()
	b.sentEvents += batch.Len()
	b.mu.Unlock()

	return nil
}

// StartDelivery starts one delivery goroutine per partition.
func (b *MemoryBus) StartDelivery(
	_ context.Context,
	opts types.DeliveryOptions,
	handler types.DeliveryHandler,
	onError types.ErrorHandler,
) (types.DeliveryHandle, error) {
	group := opts.ConsumerGroup
	if group == "" {
		group = types.DefaultConsumerGroup
	}
	if group != types.DefaultConsumerGroup {
		exists, err := b.EntityExists(context.Background(), types.SubscriptionPath(b.topic, group))
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: subscription %s", types.ErrEntityNotFound, group)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &memHandle{cancel: cancel}
	for _, p := range b.partitions {
		h.wg.Go(func() {
			p.deliver(ctx, opts.StartTime, handler, onError)
		})
	}

	return h, nil
}

// Close stops accepting sends.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	return nil
}

// EntityExists reports whether the topic or subscription was created.
func (b *MemoryBus) EntityExists(_ context.Context, path types.EntityPath) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, ok := b.entities[path.String()]

	return ok, nil
}

// CreateEntity records the entity. Subscriptions require their topic.
func (b *MemoryBus) CreateEntity(_ context.Context, opts types.EntityOptions) error {
	if err := opts.Path.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := opts.Path.String()
	if _, ok := b.entities[key]; ok {
		return fmt.Errorf("%w: %s", types.ErrEntityExists, key)
	}
	if opts.Path.Kind() == types.EntitySubscription {
		if _, ok := b.entities[opts.Path.Topic]; !ok {
			return fmt.Errorf("%w: topic %s", types.ErrEntityNotFound, opts.Path.Topic)
		}
	}
	b.entities[key] = opts

	return nil
}

// ListEntities lists topics, or the subscriptions of topic when it is non-empty.
func (b *MemoryBus) ListEntities(_ context.Context, topic string) ([]types.EntityPath, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []types.EntityPath
	for _, opts := range b.entities {
		switch {
		case topic == "" && opts.Path.Kind() == types.EntityTopic:
			out = append(out, opts.Path)
		case topic != "" && opts.Path.Kind() == types.EntitySubscription && opts.Path.Topic == topic:
			out = append(out, opts.Path)
		}
	}
	slices.SortFunc(out, func(x, y types.EntityPath) int {
		return strings.Compare(x.String(), y.String())
	})

	return out, nil
}

// DeleteEntity removes the entity; deleting a topic removes its subscriptions.
func (b *MemoryBus) DeleteEntity(_ context.Context, path types.EntityPath) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := path.String()
	if _, ok := b.entities[key]; !ok {
		return fmt.Errorf("%w: %s", types.ErrEntityNotFound, key)
	}
	delete(b.entities, key)
	if path.Kind() == types.EntityTopic {
		for k, opts := range b.entities {
			if opts.Path.Topic == path.Topic {
				delete(b.entities, k)
			}
		}
	}

	return nil
}

// Entity returns the options an entity was created with.
func (b *MemoryBus) Entity(path types.EntityPath) (types.EntityOptions, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts, ok := b.entities[path.String()]

	return opts, ok
}

type memEntry struct {
	sequence   int64
	enqueuedAt time.Time
	body       []byte
	properties map[string]string
}

// memPartition is an append-only log with a broadcast channel for new entries.
type memPartition struct {
	id      string
	mu      sync.Mutex
	entries []memEntry
	notify  chan struct{}
}

func newMemPartition(id string) *memPartition {
	return &memPartition{id: id, notify: make(chan struct{})}
}

func (p *memPartition) append(e memEntry) {
	p.mu.Lock()
	e.sequence = int64(len(p.entries) + 1)
	p.entries = append(p.entries, e)
	close(p.notify)
	p.notify = make(chan struct{})
	p.mu.Unlock()
}

// next returns entry idx, or a channel closed once more entries arrive.
func (p *memPartition) next(idx int) (memEntry, bool, <-chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx < len(p.entries) {
		return p.entries[idx], true, nil
	}

	return memEntry{}, false, p.notify
}

func (p *memPartition) deliver(
	ctx context.Context,
	start time.Time,
	handler types.DeliveryHandler,
	onError types.ErrorHandler,
) {
	for idx := 0; ; {
		entry, ok, wait := p.next(idx)
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-wait:
				continue
			}
		}
		idx++
		if entry.enqueuedAt.Before(start) {
			continue
		}

		err := handler(ctx, types.Delivery{
			PartitionID:    p.id,
			SequenceNumber: entry.sequence,
			EnqueuedAt:     entry.enqueuedAt,
			Body:           entry.body,
			Properties:     entry.properties,
		})
		if err != nil && onError != nil {
			onError(p.id, err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// memHandle stops the per-partition delivery goroutines.
type memHandle struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func (h *memHandle) Stop(ctx context.Context) error {
	stopped := false
	h.once.Do(func() {
		stopped = true
		h.cancel()
	})
	if !stopped {
		return types.ErrDeliveryStopped
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
