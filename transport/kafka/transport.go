package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/arloliu/busbench/internal/hash"
	"github.com/arloliu/busbench/internal/logging"
	"github.com/arloliu/busbench/internal/metrics"
	"github.com/arloliu/busbench/types"
)

// Transport produces batches to and consumes deliveries from one Kafka topic.
type Transport struct {
	topic       string
	client      *kgo.Client
	partitioner *hash.Partitioner
	opts        options
	logger      types.Logger
	metrics     types.MetricsCollector
}

// Compile-time assertion that Transport implements types.Transport.
var _ types.Transport = (*Transport)(nil)

// New creates a Kafka transport for topic.
//
// The producer client is created immediately; brokers are contacted lazily.
// Records are placed on partitions by the transport itself so that a batch
// always lands on a single partition.
//
// Parameters:
//   - topic: Kafka topic name
//   - opts: Brokers (required), auth, partition count, logger and metrics
//
// Returns:
//   - *Transport: Ready-to-use transport; Close releases the producer
//   - error: Missing topic or brokers, or invalid client options
//
// Example:
//
//	tr, err := kafka.New("orders",
//	    kafka.WithBrokers("ns.example.net:9093"),
//	    kafka.WithSAS(signer, "ns.example.net"),
//	)
func New(topic string, opts ...Option) (*Transport, error) {
	if topic == "" {
		return nil, fmt.Errorf("%w: empty topic", types.ErrInvalidEntityPath)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	kopts, err := clientOpts(o)
	if err != nil {
		return nil, err
	}
	kopts = append(kopts,
		kgo.DefaultProduceTopic(topic),
		kgo.RecordPartitioner(kgo.ManualPartitioner()),
	)

	client, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, fmt.Errorf("new kafka producer: %w", err)
	}

	t := &Transport{
		topic:       topic,
		client:      client,
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

// Partitions returns the configured partition count.
func (t *Transport) Partitions() int {
	return t.partitioner.Count()
}

// Send produces every event of the batch to one partition and waits for all acks.
func (t *Transport) Send(ctx context.Context, batch *types.Batch) error {
	start := time.Now()
	records := t.buildRecords(batch)

	if err := t.client.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return fmt.Errorf("produce %d records to %s: %w", len(records), t.topic, err)
	}

	t.metrics.RecordSendDuration(transportName, time.Since(start).Seconds())
	t.logger.Debug("batch produced", "topic", t.topic, "records", len(records))

	return nil
}

// buildRecords converts a batch into records targeting the batch's partition.
func (t *Transport) buildRecords(batch *types.Batch) []*kgo.Record {
	partition := int32(t.partitioner.Partition(batch.PartitionKey())) //nolint:gosec // partition count is small

	var key []byte
	if k := batch.PartitionKey(); k != "" {
		key = []byte(k)
	}

	events := batch.Events()
	records := make([]*kgo.Record, 0, len(events))
	for _, e := range events {
		r := &kgo.Record{
			Topic:     t.topic,
			Partition: partition,
			Key:       key,
			Value:     e.Payload,
		}
		if e.ID != "" {
			r.Headers = append(r.Headers, kgo.RecordHeader{Key: HeaderEventID, Value: []byte(e.ID)})
		}
		for k, v := range e.Properties {
			r.Headers = append(r.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
		}
		records = append(records, r)
	}

	return records
}

// HeaderEventID carries the event id on produced records.
const HeaderEventID = "busbench-event-id"

// Close flushes and closes the producer client.
func (t *Transport) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := t.client.Flush(ctx)
	t.client.Close()
	if err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}

	return nil
}
