package natsjs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/busbench/internal/hash"
	"github.com/arloliu/busbench/internal/logging"
	"github.com/arloliu/busbench/internal/metrics"
	"github.com/arloliu/busbench/internal/natsutil"
	"github.com/arloliu/busbench/types"
)

// Transport publishes batches to and receives deliveries from one topic stream.
type Transport struct {
	js          jetstream.JetStream
	stream      string
	partitioner *hash.Partitioner
	opts        options
	logger      types.Logger
	metrics     types.MetricsCollector
}

// Compile-time assertion that Transport implements types.Transport.
var _ types.Transport = (*Transport)(nil)

// New creates a JetStream transport for topic on an established connection.
//
// The topic stream is not created here; use Admin.CreateEntity (or the
// benchmark's ensure step) first. The connection stays owned by the caller.
//
// Parameters:
//   - nc: Connected NATS client
//   - topic: Topic name (sanitized into the stream name)
//   - opts: Optional partition count, fetch tuning, logger and metrics
//
// Returns:
//   - *Transport: Ready-to-use transport
//   - error: Invalid arguments or JetStream context failure
//
// Example:
//
//	tr, err := natsjs.New(nc, "orders", natsjs.WithPartitions(4))
//	if err != nil {
//	    return err
//	}
//	defer tr.Close()
func New(nc *nats.Conn, topic string, opts ...Option) (*Transport, error) {
	if nc == nil {
		return nil, errors.New("nats connection is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("%w: empty topic", types.ErrInvalidEntityPath)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	t := &Transport{
		js:          js,
		stream:      StreamName(topic),
		partitioner: hash.NewPartitioner(o.partitions, 0),
		opts:        o,
		logger:      o.logger,
		metrics:     o.metrics,
	}
	if t.logger == nil {
		t.logger = logging.NewNop()
	}
	if t.metrics == nil {
		t.metrics = metrics.NewNop()
	}

	return t, nil
}

// StreamName returns the stream backing topic.
func StreamName(topic string) string {
	return natsutil.SanitizeName(topic)
}

// PartitionSubject returns the subject of partition n of topic.
func PartitionSubject(topic string, n int) string {
	return StreamName(topic) + "." + strconv.Itoa(n)
}

// Partitions returns the configured partition count.
func (t *Transport) Partitions() int {
	return t.partitioner.Count()
}

// PartitionFor returns the partition index a non-empty key routes to.
func (t *Transport) PartitionFor(key string) int {
	return t.partitioner.Partition(key)
}

// Send publishes every event of the batch to the batch's partition subject
// and waits until all of them are acknowledged.
//
// The event id is used as the Nats-Msg-Id so redelivered publishes are
// de-duplicated by the stream. Any publish or ack failure fails the batch.
func (t *Transport) Send(ctx context.Context, batch *types.Batch) error {
	start := time.Now()
	subject := t.stream + "." + strconv.Itoa(t.partitioner.Partition(batch.PartitionKey()))

	events := batch.Events()
	futures := make([]jetstream.PubAckFuture, 0, len(events))
	for _, e := range events {
		msg := nats.NewMsg(subject)
		msg.Data = e.Payload
		for k, v := range e.Properties {
			msg.Header.Set(k, v)
		}

		var pubOpts []jetstream.PublishOpt
		if e.ID != "" {
			pubOpts = append(pubOpts, jetstream.WithMsgID(e.ID))
		}

		f, err := t.js.PublishMsgAsync(msg, pubOpts...)
		if err != nil {
			return fmt.Errorf("failed to publish event %q to %s: %w", e.ID, subject, err)
		}
		futures = append(futures, f)
	}

	ackCtx, cancel := context.WithTimeout(ctx, t.opts.ackTimeout)
	defer cancel()

	for _, f := range futures {
		select {
		case <-f.Ok():
		case err := <-f.Err():
			if natsutil.IsConnectivityError(err) {
				t.logger.Warn("publish ack failed on connectivity", "subject", subject, "error", err)
			}

			return fmt.Errorf("publish to %s not acknowledged: %w", subject, err)
		case <-ackCtx.Done():
			return fmt.Errorf("waiting for publish acks on %s: %w", subject, ackCtx.Err())
		}
	}

	t.metrics.RecordSendDuration(transportName, time.Since(start).Seconds())
	t.logger.Debug("batch published", "subject", subject, "events", len(events))

	return nil
}

// Close releases transport resources. The NATS connection is left open.
func (t *Transport) Close() error {
	select {
	case <-t.js.PublishAsyncComplete():
	case <-time.After(t.opts.ackTimeout):
		return errors.New("timed out waiting for pending publishes")
	}

	return nil
}
