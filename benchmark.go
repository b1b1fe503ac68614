package busbench

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/busbench/batch"
	"github.com/arloliu/busbench/internal/logging"
	"github.com/arloliu/busbench/internal/metrics"
	"github.com/arloliu/busbench/latency"
	"github.com/arloliu/busbench/types"
)

// stopTimeout bounds how long stopping delivery may take after the window.
const stopTimeout = 30 * time.Second

// Result is the outcome of a benchmark run.
type Result struct {
	// Report holds the recorded deliveries and latency statistics.
	Report *latency.Report

	// ReportPath is the CSV file the report was written to.
	ReportPath string

	// GameID is the partition key all events were sent with.
	GameID string

	// Sent is the number of events published.
	Sent int

	// Batches is the number of batches dispatched.
	Batches int

	// Elapsed runs from the first send until the observation window closed.
	Elapsed time.Duration
}

// Benchmark publishes a burst of events through a transport and records
// produced → enqueued → received latency for every delivery.
type Benchmark struct {
	cfg       Config
	transport types.Transport
	admin     types.Admin
	packer    *batch.Packer
	logger    types.Logger
	metrics   types.MetricsCollector
	now       func() time.Time
}

// NewBenchmark creates a benchmark for one transport.
//
// Parameters:
//   - cfg: Configuration; defaults are applied to a copy and the result validated
//   - transport: Bus to publish to and receive from
//   - opts: Optional admin, logger, metrics and clock
//
// Returns:
//   - *Benchmark: Ready-to-run benchmark
//   - error: ErrTransportRequired or an ErrInvalidConfig violation
//
// Example:
//
//	tr, _ := natsjs.New(nc, cfg.Topic, natsjs.WithPartitions(cfg.Partitions))
//	admin, _ := natsjs.NewAdmin(nc)
//	bench, err := busbench.NewBenchmark(cfg, tr, busbench.WithAdmin(admin))
//	if err != nil {
//	    return err
//	}
//	result, err := bench.Run(ctx)
func NewBenchmark(cfg Config, transport types.Transport, opts ...Option) (*Benchmark, error) {
	if transport == nil {
		return nil, ErrTransportRequired
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := benchmarkOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewNop()
	}
	if o.metrics == nil {
		o.metrics = metrics.NewNop()
	}
	if o.now == nil {
		o.now = time.Now
	}

	if cfg.Latency.ConsumerGroup != types.DefaultConsumerGroup && o.admin == nil {
		return nil, fmt.Errorf("%w: consumer group %q", ErrAdminRequired, cfg.Latency.ConsumerGroup)
	}

	return &Benchmark{
		cfg:       cfg,
		transport: transport,
		admin:     o.admin,
		packer: batch.NewPacker(cfg.Latency.BatchCapacityBytes,
			batch.WithMaxEvents(cfg.Latency.MaxEventsPerBatch),
			batch.WithLogger(o.logger),
			batch.WithMetrics(o.metrics),
		),
		logger:  o.logger,
		metrics: o.metrics,
		now:     o.now,
	}, nil
}

// Config returns the effective configuration.
func (b *Benchmark) Config() Config {
	return b.cfg
}

// Run executes one latency run.
//
// Steps:
//  1. Ensure the topic exists, and the subscription for a named consumer group
//  2. Start the recorder and delivery positioned StartBackdate before now
//  3. Build and pack NumEvents events sharing one partition key, sending each batch
//  4. Wait out the observation window
//  5. Stop delivery, close the recorder and aggregate
//  6. Write the CSV report and optionally delete a subscription this run created
//
// Parameters:
//   - ctx: Cancels the run; a cancelled run returns ctx.Err() without a report
//
// Returns:
//   - *Result: Report, report path and counters
//   - error: Setup, send, aggregation or write failure
func (b *Benchmark) Run(ctx context.Context) (*Result, error) {
	lc := b.cfg.Latency

	createdSub, err := b.ensureEntities(ctx)
	if err != nil {
		return nil, err
	}
	if createdSub && lc.Cleanup {
		defer b.deleteSubscription()
	}

	recorder := latency.NewRecorder(latency.WithLogger(b.logger), latency.WithMetrics(b.metrics))
	if err := recorder.Start(); err != nil {
		return nil, err
	}

	handle, err := b.transport.StartDelivery(ctx, types.DeliveryOptions{
		ConsumerGroup: lc.ConsumerGroup,
		StartTime:     b.now().Add(-lc.StartBackdate),
	}, b.deliveryHandler(recorder), b.deliveryErrorHandler)
	if err != nil {
		_ = recorder.Stop()
		_ = recorder.Close()

		return nil, fmt.Errorf("failed to start delivery: %w", err)
	}

	factory := NewEventFactory(lc.PartitionKey, b.now)
	b.logger.Info("sending events", "count", lc.NumEvents, "game_id", factory.GameID(), "topic", b.cfg.Topic)

	start := b.now()
	batches, sendErr := b.publish(ctx, factory)
	if sendErr == nil {
		sendErr = b.observe(ctx)
	}

	// Draining, then stop delivery so no handler is in flight, then close.
	_ = recorder.Stop()
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	stopErr := handle.Stop(stopCtx)
	cancel()
	_ = recorder.Close()
	elapsed := b.now().Sub(start)

	if sendErr != nil {
		return nil, sendErr
	}
	if stopErr != nil {
		return nil, fmt.Errorf("failed to stop delivery: %w", stopErr)
	}

	report, err := recorder.Aggregate()
	if err != nil {
		return nil, err
	}

	b.logger.Info(fmt.Sprintf("sent and received %d events in %.3f seconds", report.Count(), elapsed.Seconds()),
		"sent", lc.NumEvents,
		"batches", len(batches),
		"partitions", report.Partitions,
		"produced_received_mean", report.ProducedReceived.Mean,
		"produced_received_p99", report.ProducedReceived.P99,
	)
	if report.Count() < lc.NumEvents {
		b.logger.Warn("not every event was received within the observation window",
			"sent", lc.NumEvents, "received", report.Count())
	}

	path, err := latency.SaveReport(lc.ResultsDir, b.now(), report)
	if err != nil {
		return nil, err
	}
	b.logger.Info("report written", "path", path)

	return &Result{
		Report:     report,
		ReportPath: path,
		GameID:     factory.GameID(),
		Sent:       lc.NumEvents,
		Batches:    len(batches),
		Elapsed:    elapsed,
	}, nil
}

// ensureEntities creates the topic and subscription when missing. It reports
// whether the subscription was created by this call.
func (b *Benchmark) ensureEntities(ctx context.Context) (bool, error) {
	if b.admin == nil {
		return false, nil
	}

	topic := types.TopicPath(b.cfg.Topic)
	if err := b.ensure(ctx, types.EntityOptions{Path: topic, Partitions: b.cfg.Partitions}); err != nil {
		return false, err
	}

	group := b.cfg.Latency.ConsumerGroup
	if group == types.DefaultConsumerGroup {
		return false, nil
	}

	sub := types.SubscriptionPath(b.cfg.Topic, group)
	exists, err := b.admin.EntityExists(ctx, sub)
	if err != nil {
		return false, fmt.Errorf("failed to check subscription %s: %w", sub, err)
	}
	if exists {
		return false, nil
	}
	if err := b.ensure(ctx, types.EntityOptions{Path: sub}); err != nil {
		return false, err
	}

	return true, nil
}

func (b *Benchmark) ensure(ctx context.Context, opts types.EntityOptions) error {
	exists, err := b.admin.EntityExists(ctx, opts.Path)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", opts.Path, err)
	}
	if exists {
		return nil
	}

	err = b.admin.CreateEntity(ctx, opts)
	if err != nil && !errors.Is(err, types.ErrEntityExists) {
		return fmt.Errorf("failed to create %s: %w", opts.Path, err)
	}
	b.logger.Info("entity ready", "path", opts.Path.String(), "kind", opts.Path.Kind().String())

	return nil
}

func (b *Benchmark) deleteSubscription() {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	sub := types.SubscriptionPath(b.cfg.Topic, b.cfg.Latency.ConsumerGroup)
	if err := b.admin.DeleteEntity(ctx, sub); err != nil {
		b.logger.Warn("failed to delete subscription", "path", sub.String(), "error", err)
		return
	}
	b.logger.Info("subscription deleted", "path", sub.String())
}

func (b *Benchmark) publish(ctx context.Context, factory *EventFactory) ([]*types.Batch, error) {
	events, err := factory.Build(b.cfg.Latency.NumEvents)
	if err != nil {
		return nil, err
	}

	batches, err := b.packer.Pack(ctx, events, b.transport.Send)
	if err != nil {
		return batches, fmt.Errorf("failed to publish events: %w", err)
	}

	return batches, nil
}

// observe waits for the observation window or cancellation.
func (b *Benchmark) observe(ctx context.Context) error {
	timer := time.NewTimer(b.cfg.Latency.ObservationWindow)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Benchmark) deliveryHandler(recorder *latency.Recorder) types.DeliveryHandler {
	return func(_ context.Context, d types.Delivery) error {
		received, err := ReceivedFrom(d, b.now())
		if err != nil {
			return err
		}

		return recorder.Record(received)
	}
}

func (b *Benchmark) deliveryErrorHandler(partitionID string, err error) {
	b.logger.Warn("delivery error", "partition", partitionID, "error", err)
}
