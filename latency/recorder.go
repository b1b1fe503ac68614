// Package latency records per-partition deliveries and reports
// produced → enqueued → received latency.
package latency

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/busbench/internal/logging"
	"github.com/arloliu/busbench/internal/metrics"
	"github.com/arloliu/busbench/types"
)

// partitionLog holds the deliveries of one partition in arrival order.
type partitionLog struct {
	mu     sync.Mutex
	events []types.ReceivedEvent
}

func (l *partitionLog) append(e types.ReceivedEvent) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *partitionLog) snapshot() []types.ReceivedEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]types.ReceivedEvent, len(l.events))
	copy(out, l.events)

	return out
}

// Recorder collects deliveries from many partitions concurrently.
//
// Deliveries for different partitions never contend on a shared lock: the
// partition map is lock-free and each partition has its own log. Deliveries
// for one partition keep their arrival order.
//
// Lifecycle: Start → Record* → Stop → Record* (draining) → Close → Aggregate.
type Recorder struct {
	state      atomic.Int32
	partitions *xsync.Map[string, *partitionLog]
	logger     types.Logger
	metrics    types.RecorderMetrics
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the recorder logger.
func WithLogger(logger types.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithMetrics sets the recorder metrics.
func WithMetrics(m types.RecorderMetrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// NewRecorder creates an idle recorder.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{partitions: xsync.NewMap[string, *partitionLog]()}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logging.NewNop()
	}
	if r.metrics == nil {
		r.metrics = metrics.NewNop()
	}

	return r
}

// State returns the current lifecycle state.
func (r *Recorder) State() types.RecorderState {
	return types.RecorderState(r.state.Load())
}

// Start begins accepting deliveries (Idle → Recording).
func (r *Recorder) Start() error {
	return r.transition(types.RecorderIdle, types.RecorderRecording)
}

// Stop ends the observation window (Recording → Draining).
//
// Deliveries already in flight are still accepted until Close.
func (r *Recorder) Stop() error {
	return r.transition(types.RecorderRecording, types.RecorderDraining)
}

// Close stops accepting deliveries (Draining or Recording → Closed).
//
// Closing an already closed recorder is a no-op.
func (r *Recorder) Close() error {
	for {
		cur := r.State()
		switch cur {
		case types.RecorderClosed:
			return nil
		case types.RecorderRecording, types.RecorderDraining:
			if r.state.CompareAndSwap(int32(cur), int32(types.RecorderClosed)) {
				r.logger.Debug("recorder closed", "from", cur.String(), "partitions", r.partitions.Size())

				return nil
			}
		default:
			return fmt.Errorf("%w: %s → %s", types.ErrInvalidTransition, cur, types.RecorderClosed)
		}
	}
}

func (r *Recorder) transition(from, to types.RecorderState) error {
	if !r.state.CompareAndSwap(int32(from), int32(to)) {
		return fmt.Errorf("%w: %s → %s (current %s)", types.ErrInvalidTransition, from, to, r.State())
	}
	r.logger.Debug("recorder state changed", "from", from.String(), "to", to.String())

	return nil
}

// Record stores a delivery under its partition.
//
// Safe for concurrent use from any number of delivery goroutines.
//
// Parameters:
//   - event: Observed delivery
//
// Returns:
//   - error: ErrNotRecording before Start, ErrRecorderClosed after Close
func (r *Recorder) Record(event types.ReceivedEvent) error {
	state := r.State()
	if !state.AcceptsDeliveries() {
		r.metrics.RecordRejectedDelivery(state)
		if state == types.RecorderClosed {
			r.logger.Error("delivery recorded after close", "partition", event.PartitionID,
				"sequence", event.SequenceNumber, "correlation_id", event.CorrelationID)

			return types.ErrRecorderClosed
		}

		return types.ErrNotRecording
	}

	log, ok := r.partitions.Load(event.PartitionID)
	if !ok {
		log, _ = r.partitions.LoadOrStore(event.PartitionID, &partitionLog{})
	}
	log.append(event)
	r.metrics.RecordDelivery(event.PartitionID, event.ProducedToReceived().Seconds())

	return nil
}

// Len returns the number of recorded deliveries.
func (r *Recorder) Len() int {
	n := 0
	r.partitions.Range(func(_ string, log *partitionLog) bool {
		log.mu.Lock()
		n += len(log.events)
		log.mu.Unlock()

		return true
	})

	return n
}

// Aggregate builds the latency report.
//
// Returns:
//   - *Report: Rows ordered by partition then arrival, with averages and percentiles
//   - error: ErrAggregateOnOpenStore unless the recorder is Closed
func (r *Recorder) Aggregate() (*Report, error) {
	if state := r.State(); state != types.RecorderClosed {
		return nil, fmt.Errorf("%w: state is %s", types.ErrAggregateOnOpenStore, state)
	}

	byPartition := make(map[string][]types.ReceivedEvent, r.partitions.Size())
	r.partitions.Range(func(id string, log *partitionLog) bool {
		byPartition[id] = log.snapshot()

		return true
	})

	report := buildReport(byPartition)
	if report.PartitionSkew {
		r.logger.Warn("events were delivered from more than one partition",
			"partitions", report.Partitions, "events", len(report.Rows))
	}

	return report, nil
}
