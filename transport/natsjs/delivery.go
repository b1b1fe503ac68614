package natsjs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/busbench/internal/backoff"
	"github.com/arloliu/busbench/internal/natsutil"
	"github.com/arloliu/busbench/types"
)

// ConsumerName returns the durable consumer serving partition n of a subscription.
func ConsumerName(subscription string, n int) string {
	return natsutil.SanitizeName(subscription + "-p" + strconv.Itoa(n))
}

// StartDelivery starts one pull loop per partition and returns a handle to stop them.
//
// With the default consumer group every partition gets an ordered consumer
// positioned at opts.StartTime (all retained messages when zero). With a named
// group the subscription's durable consumers must exist; messages are acked
// after the handler returns nil and nak'ed otherwise.
//
// Parameters:
//   - ctx: Context for consumer setup only; loops run until Stop
//   - opts: Consumer group and start position
//   - handler: Called from the partition's goroutine for every message
//   - onError: Optional, receives handler and iterator errors
//
// Returns:
//   - types.DeliveryHandle: Stops the loops and waits for in-flight handlers
//   - error: ErrEntityNotFound when the subscription is missing, or setup failure
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
	durable := group != types.DefaultConsumerGroup

	consumers := make([]jetstream.Consumer, t.Partitions())
	for n := range consumers {
		cons, err := t.openConsumer(ctx, n, group, durable, opts.StartTime)
		if err != nil {
			return nil, err
		}
		consumers[n] = cons
	}

	runCtx, cancel := context.WithCancel(context.Background())
	h := &deliveryHandle{cancel: cancel}
	for n, cons := range consumers {
		loop := &pullLoop{
			transport:   t,
			partitionID: strconv.Itoa(n),
			consumer:    cons,
			ack:         durable,
			handler:     handler,
			onError:     onError,
		}
		h.wg.Go(func() {
			loop.run(runCtx)
		})
	}

	t.logger.Info("delivery started", "stream", t.stream, "group", group, "partitions", len(consumers))

	return h, nil
}

func (t *Transport) openConsumer(
	ctx context.Context,
	n int,
	group string,
	durable bool,
	start time.Time,
) (jetstream.Consumer, error) {
	if durable {
		name := ConsumerName(group, n)
		cons, err := t.js.Consumer(ctx, t.stream, name)
		if err != nil {
			if errors.Is(err, jetstream.ErrConsumerNotFound) || errors.Is(err, jetstream.ErrStreamNotFound) {
				return nil, fmt.Errorf("%w: subscription %s (consumer %s)", types.ErrEntityNotFound, group, name)
			}

			return nil, fmt.Errorf("failed to bind consumer %s: %w", name, err)
		}

		return cons, nil
	}

	cfg := jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{t.stream + "." + strconv.Itoa(n)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	}
	if !start.IsZero() {
		startTime := start
		cfg.DeliverPolicy = jetstream.DeliverByStartTimePolicy
		cfg.OptStartTime = &startTime
	}

	cons, err := t.js.OrderedConsumer(ctx, t.stream, cfg)
	if err != nil {
		if errors.Is(err, jetstream.ErrStreamNotFound) {
			return nil, fmt.Errorf("%w: topic stream %s", types.ErrEntityNotFound, t.stream)
		}

		return nil, fmt.Errorf("failed to create ordered consumer for partition %d: %w", n, err)
	}

	return cons, nil
}

// pullLoop drives one partition's consumer.
type pullLoop struct {
	transport   *Transport
	partitionID string
	consumer    jetstream.Consumer
	ack         bool
	handler     types.DeliveryHandler
	onError     types.ErrorHandler
}

func (l *pullLoop) run(ctx context.Context) {
	t := l.transport
	retry := backoff.New(t.opts.retry)
	t.logger.Debug("starting pull loop", "stream", t.stream, "partition", l.partitionID)

	for {
		iter, err := l.consumer.Messages(
			jetstream.PullMaxMessages(t.opts.fetchBatch),
			jetstream.PullExpiry(t.opts.fetchExpiry),
			jetstream.PullHeartbeat(t.opts.fetchExpiry/2),
		)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.reportError(fmt.Errorf("failed to create message iterator: %w", err))
			if retry.Wait(ctx) != nil {
				return
			}

			continue
		}

		// Next blocks, so Stop the iterator on cancellation to unblock it.
		stop := context.AfterFunc(ctx, iter.Stop)
		recreate := l.drain(ctx, iter, retry)
		stop()
		iter.Stop()

		if !recreate || ctx.Err() != nil {
			return
		}
	}
}

// drain handles messages until the iterator fails. It reports whether the
// iterator should be recreated.
func (l *pullLoop) drain(ctx context.Context, iter jetstream.MessagesContext, retry *backoff.Backoff) bool {
	t := l.transport

	for {
		msg, err := iter.Next()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, jetstream.ErrMsgIteratorClosed) {
				return false
			}
			if errors.Is(err, jetstream.ErrNoHeartbeat) {
				t.logger.Warn("pull loop: no heartbeat, recreating iterator", "partition", l.partitionID)

				return true
			}

			l.reportError(fmt.Errorf("message iterator: %w", err))

			return retry.Wait(ctx) == nil
		}
		retry.Reset()

		delivery := types.Delivery{PartitionID: l.partitionID, Body: msg.Data()}
		if md, err := msg.Metadata(); err == nil {
			delivery.SequenceNumber = int64(md.Sequence.Stream) //nolint:gosec // stream sequences fit in int64
			delivery.EnqueuedAt = md.Timestamp
		}
		if hdr := msg.Headers(); len(hdr) > 0 {
			delivery.Properties = make(map[string]string, len(hdr))
			for k := range hdr {
				delivery.Properties[k] = hdr.Get(k)
			}
		}

		herr := l.handler(ctx, delivery)
		if herr != nil && l.onError != nil {
			l.onError(l.partitionID, herr)
		}
		if l.ack {
			if herr != nil {
				_ = msg.Nak()
			} else {
				_ = msg.Ack()
			}
		}
	}
}

func (l *pullLoop) reportError(err error) {
	t := l.transport
	t.metrics.RecordReceiveError(transportName)
	t.logger.Warn("pull loop error", "stream", t.stream, "partition", l.partitionID, "error", err)
	if l.onError != nil {
		l.onError(l.partitionID, err)
	}
}

// deliveryHandle stops the pull loops of one StartDelivery call.
type deliveryHandle struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Stop cancels the pull loops and waits for in-flight handlers to return.
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
