package latency

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/busbench/types"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func received(partition string, seq int64, produced, enqueued, receivedAt time.Duration) types.ReceivedEvent {
	return types.ReceivedEvent{
		PartitionID:    partition,
		SequenceNumber: seq,
		CorrelationID:  fmt.Sprintf("evt-%s-%d", partition, seq),
		ProducedAt:     base.Add(produced),
		EnqueuedAt:     base.Add(enqueued),
		ReceivedAt:     base.Add(receivedAt),
	}
}

func startedRecorder(t *testing.T) *Recorder {
	t.Helper()
	r := NewRecorder()
	require.NoError(t, r.Start())

	return r
}

func TestRecorder_Lifecycle(t *testing.T) {
	r := NewRecorder()
	require.Equal(t, types.RecorderIdle, r.State())

	require.ErrorIs(t, r.Record(received("0", 1, 0, 0, 0)), types.ErrNotRecording)
	require.ErrorIs(t, r.Stop(), types.ErrInvalidTransition)
	require.ErrorIs(t, r.Close(), types.ErrInvalidTransition)

	require.NoError(t, r.Start())
	require.Equal(t, types.RecorderRecording, r.State())
	require.ErrorIs(t, r.Start(), types.ErrInvalidTransition)
	require.NoError(t, r.Record(received("0", 1, 0, 0, 0)))

	require.NoError(t, r.Stop())
	require.Equal(t, types.RecorderDraining, r.State())
	require.NoError(t, r.Record(received("0", 2, 0, 0, 0)), "draining must still accept in-flight deliveries")

	require.NoError(t, r.Close())
	require.Equal(t, types.RecorderClosed, r.State())
	require.NoError(t, r.Close(), "close is idempotent")
	require.Equal(t, 2, r.Len())
}

func TestRecorder_RecordAfterCloseFails(t *testing.T) {
	r := startedRecorder(t)
	require.NoError(t, r.Close())

	err := r.Record(received("0", 1, 0, 0, 0))
	require.ErrorIs(t, err, types.ErrRecorderClosed)
	require.Zero(t, r.Len())
}

func TestRecorder_AggregateRequiresClosed(t *testing.T) {
	r := NewRecorder()
	_, err := r.Aggregate()
	require.ErrorIs(t, err, types.ErrAggregateOnOpenStore)

	require.NoError(t, r.Start())
	_, err = r.Aggregate()
	require.ErrorIs(t, err, types.ErrAggregateOnOpenStore)

	require.NoError(t, r.Stop())
	_, err = r.Aggregate()
	require.ErrorIs(t, err, types.ErrAggregateOnOpenStore)

	require.NoError(t, r.Close())
	report, err := r.Aggregate()
	require.NoError(t, err)
	require.Zero(t, report.Count())
	require.Equal(t, Stats{}, report.ProducedReceived)
}

func TestRecorder_AggregateExactLatencies(t *testing.T) {
	r := startedRecorder(t)
	ms := time.Millisecond
	require.NoError(t, r.Record(received("0", 1, 0, 10*ms, 30*ms)))
	require.NoError(t, r.Record(received("0", 2, 5*ms, 25*ms, 65*ms)))
	require.NoError(t, r.Record(received("0", 3, 10*ms, 40*ms, 100*ms)))
	require.NoError(t, r.Close())

	report, err := r.Aggregate()
	require.NoError(t, err)
	require.Len(t, report.Rows, 3)

	wantPE := []time.Duration{10 * ms, 20 * ms, 30 * ms}
	wantER := []time.Duration{20 * ms, 40 * ms, 60 * ms}
	wantPR := []time.Duration{30 * ms, 60 * ms, 90 * ms}
	for i, row := range report.Rows {
		require.Equal(t, i+1, row.Index)
		require.Equal(t, int64(i+1), row.SequenceNumber)
		require.Equal(t, wantPE[i], row.ProducedEnqueued)
		require.Equal(t, wantER[i], row.EnqueuedReceived)
		require.Equal(t, wantPR[i], row.ProducedReceived)
	}

	require.Equal(t, 20*ms, report.ProducedEnqueued.Mean)
	require.Equal(t, 40*ms, report.EnqueuedReceived.Mean)
	require.Equal(t, 60*ms, report.ProducedReceived.Mean)
	require.Equal(t, 30*ms, report.ProducedReceived.Min)
	require.Equal(t, 90*ms, report.ProducedReceived.Max)
	require.Equal(t, 60*ms, report.ProducedReceived.P50)
	require.Equal(t, 90*ms, report.ProducedReceived.P99)
	require.Equal(t, 1, report.Partitions)
	require.False(t, report.PartitionSkew)
}

func TestRecorder_MeanKeepsSubMillisecondPrecision(t *testing.T) {
	r := startedRecorder(t)
	require.NoError(t, r.Record(received("0", 1, 0, 0, 1*time.Microsecond)))
	require.NoError(t, r.Record(received("0", 2, 0, 0, 2*time.Microsecond)))
	require.NoError(t, r.Close())

	report, err := r.Aggregate()
	require.NoError(t, err)
	require.Equal(t, 1500*time.Nanosecond, report.ProducedReceived.Mean)
}

func TestRecorder_OrdersByPartitionThenArrival(t *testing.T) {
	r := startedRecorder(t)
	require.NoError(t, r.Record(received("10", 7, 0, 0, 0)))
	require.NoError(t, r.Record(received("2", 9, 0, 0, 0)))
	require.NoError(t, r.Record(received("10", 3, 0, 0, 0)))
	require.NoError(t, r.Record(received("2", 1, 0, 0, 0)))
	require.NoError(t, r.Close())

	report, err := r.Aggregate()
	require.NoError(t, err)

	got := make([]string, 0, len(report.Rows))
	for _, row := range report.Rows {
		got = append(got, fmt.Sprintf("%s/%d", row.PartitionID, row.SequenceNumber))
	}
	require.Equal(t, []string{"2/9", "2/1", "10/7", "10/3"}, got)
	require.Equal(t, 2, report.Partitions)
	require.True(t, report.PartitionSkew)
}

func TestRecorder_ConcurrentPartitions(t *testing.T) {
	r := startedRecorder(t)
	const partitions = 16
	const perPartition = 500

	var wg sync.WaitGroup
	for p := range partitions {
		wg.Go(func() {
			id := fmt.Sprintf("%d", p)
			for seq := range perPartition {
				if err := r.Record(received(id, int64(seq), 0, 0, 0)); err != nil {
					t.Errorf("record failed: %v", err)
					return
				}
			}
		})
	}
	wg.Wait()
	require.NoError(t, r.Stop())
	require.NoError(t, r.Close())

	report, err := r.Aggregate()
	require.NoError(t, err)
	require.Len(t, report.Rows, partitions*perPartition)
	require.Equal(t, partitions, report.Partitions)

	// Within a partition, arrival order equals the per-goroutine send order.
	last := make(map[string]int64)
	for _, row := range report.Rows {
		prev, ok := last[row.PartitionID]
		if ok {
			require.Equal(t, prev+1, row.SequenceNumber)
		} else {
			require.Zero(t, row.SequenceNumber)
		}
		last[row.PartitionID] = row.SequenceNumber
	}
}

func TestRecorder_ConcurrentFirstInsertSamePartition(t *testing.T) {
	r := startedRecorder(t)
	const writers = 32

	var wg sync.WaitGroup
	for i := range writers {
		wg.Go(func() {
			_ = r.Record(received("0", int64(i), 0, 0, 0))
		})
	}
	wg.Wait()
	require.NoError(t, r.Close())

	require.Equal(t, writers, r.Len())
}

func TestPercentile(t *testing.T) {
	values := make([]time.Duration, 0, 100)
	for i := 1; i <= 100; i++ {
		values = append(values, time.Duration(i))
	}

	require.Equal(t, time.Duration(50), percentile(values, 50))
	require.Equal(t, time.Duration(90), percentile(values, 90))
	require.Equal(t, time.Duration(99), percentile(values, 99))
	require.Equal(t, time.Duration(7), percentile([]time.Duration{7}, 99))
}
