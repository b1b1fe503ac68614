package kafka

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/arloliu/busbench/types"
)

// partitionQueueSize bounds records buffered per partition worker.
const partitionQueueSize = 256

// StartDelivery starts a consumer client for the topic and returns a handle to stop it.
//
// Records are fanned out to one worker goroutine per partition, created when
// the partition first yields records. The default consumer group consumes
// without a group, starting at opts.StartTime (the beginning when zero). A
// named group must already exist as a subscription and resumes from its
// committed offsets.
func (t *Transport) StartDelivery(
	ctx context.Context,
	opts types.DeliveryOptions,
	handler types.DeliveryHandler,
	onError types.ErrorHandler,
) (types.DeliveryHandle, error) {
	if handler == nil {
		return nil, errors.New("delivery handler is required")
	}

	group := opts.ConsumerGroup
	if group == "" {
		group = types.DefaultConsumerGroup
	}

	kopts, err := clientOpts(t.opts)
	if err != nil {
		return nil, err
	}
	kopts = append(kopts, kgo.ConsumeTopics(t.topic))

	if group == types.DefaultConsumerGroup {
		offset := kgo.NewOffset().AtStart()
		if !opts.StartTime.IsZero() {
			offset = kgo.NewOffset().AfterMilli(opts.StartTime.UnixMilli())
		}
		kopts = append(kopts, kgo.ConsumeResetOffset(offset))
	} else {
		exists, err := groupHasOffsets(ctx, kadm.NewClient(t.client), group, t.topic)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, fmt.Errorf("%w: subscription %s", types.ErrEntityNotFound, group)
		}
		kopts = append(kopts, kgo.ConsumerGroup(group))
	}

	consumer, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, fmt.Errorf("new kafka consumer: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	r := newRouter(runCtx, handler, t.reportError(onError))
	h := &deliveryHandle{cancel: cancel, consumer: consumer, router: r}
	h.pollDone.Go(func() {
		t.poll(runCtx, consumer, r)
	})

	t.logger.Info("delivery started", "topic", t.topic, "group", group)

	return h, nil
}

func (t *Transport) poll(ctx context.Context, consumer *kgo.Client, r *router) {
	for {
		fetches := consumer.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			r.onError(strconv.Itoa(int(partition)), fmt.Errorf("fetch %s: %w", topic, err))
		})
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			r.dispatch(p.Partition, p.Records)
		})
	}
}

func (t *Transport) reportError(onError types.ErrorHandler) types.ErrorHandler {
	return func(partitionID string, err error) {
		t.metrics.RecordReceiveError(transportName)
		t.logger.Warn("delivery error", "topic", t.topic, "partition", partitionID, "error", err)
		if onError != nil {
			onError(partitionID, err)
		}
	}
}

// toDelivery converts a consumed record.
func toDelivery(r *kgo.Record) types.Delivery {
	d := types.Delivery{
		PartitionID:    strconv.Itoa(int(r.Partition)),
		SequenceNumber: r.Offset,
		EnqueuedAt:     r.Timestamp,
		Body:           r.Value,
	}
	if len(r.Headers) > 0 {
		d.Properties = make(map[string]string, len(r.Headers))
		for _, h := range r.Headers {
			d.Properties[h.Key] = string(h.Value)
		}
	}

	return d
}

// router owns one worker goroutine per partition.
type router struct {
	ctx     context.Context
	handler types.DeliveryHandler
	onError types.ErrorHandler

	mu      sync.Mutex
	workers map[int32]chan *kgo.Record
	wg      sync.WaitGroup
}

func newRouter(ctx context.Context, handler types.DeliveryHandler, onError types.ErrorHandler) *router {
	return &router{
		ctx:     ctx,
		handler: handler,
		onError: onError,
		workers: make(map[int32]chan *kgo.Record),
	}
}

// dispatch queues records on their partition worker, blocking while the
// worker is behind. Records still queued when the context ends are dropped.
func (r *router) dispatch(partition int32, records []*kgo.Record) {
	if len(records) == 0 {
		return
	}
	ch := r.worker(partition)
	for _, rec := range records {
		select {
		case ch <- rec:
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *router) worker(partition int32) chan *kgo.Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.workers[partition]
	if ok {
		return ch
	}
	ch = make(chan *kgo.Record, partitionQueueSize)
	r.workers[partition] = ch
	r.wg.Go(func() {
		for rec := range ch {
			if r.ctx.Err() != nil {
				continue
			}
			d := toDelivery(rec)
			if err := r.handler(r.ctx, d); err != nil {
				r.onError(d.PartitionID, err)
			}
		}
	})

	return ch
}

// close stops accepting records and waits for the workers to finish.
// It must not run concurrently with dispatch.
func (r *router) close() {
	r.mu.Lock()
	for p, ch := range r.workers {
		close(ch)
		delete(r.workers, p)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// deliveryHandle stops one consumer and its partition workers.
type deliveryHandle struct {
	cancel   context.CancelFunc
	consumer *kgo.Client
	router   *router
	pollDone sync.WaitGroup
	once     sync.Once
}

// Stop cancels polling, waits for in-flight handlers and closes the consumer.
func (h *deliveryHandle) Stop(ctx context.Context) error {
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
		h.pollDone.Wait()
		h.router.close()
		h.consumer.Close()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
