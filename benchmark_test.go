package busbench

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	bustest "github.com/arloliu/busbench/testing"
	"github.com/arloliu/busbench/types"
)

func benchConfig(t *testing.T) Config {
	t.Helper()

	cfg := DefaultConfig()
	cfg.Topic = "orders"
	cfg.Latency.NumEvents = 10
	cfg.Latency.ObservationWindow = 200 * time.Millisecond
	cfg.Latency.ResultsDir = t.TempDir()

	return cfg
}

func TestNewBenchmark_Validation(t *testing.T) {
	_, err := NewBenchmark(DefaultConfig(), nil)
	require.ErrorIs(t, err, ErrTransportRequired)

	cfg := DefaultConfig()
	cfg.Latency.ConsumerGroup = "audit"
	_, err = NewBenchmark(cfg, bustest.NewMemoryBus("orders", 1))
	require.ErrorIs(t, err, ErrAdminRequired)

	cfg = DefaultConfig()
	cfg.Latency.NumEvents = -1
	_, err = NewBenchmark(cfg, bustest.NewMemoryBus("orders", 1))
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestBenchmark_RunDefaultGroup(t *testing.T) {
	cfg := benchConfig(t)
	cfg.Latency.MaxEventsPerBatch = 3
	bus := bustest.NewMemoryBus("orders", 4)

	bench, err := NewBenchmark(cfg, bus, WithAdmin(bus), WithLogger(bustest.NewTestLogger(t)))
	require.NoError(t, err)

	result, err := bench.Run(t.Context())
	require.NoError(t, err)

	require.Equal(t, 10, result.Sent)
	require.Equal(t, 4, result.Batches)
	require.Equal(t, 10, result.Report.Count())
	require.Equal(t, 1, result.Report.Partitions)
	require.False(t, result.Report.PartitionSkew)
	require.Equal(t, 10, bus.SentEvents())

	want := bus.PartitionFor(result.GameID)
	for i, row := range result.Report.Rows {
		require.Equal(t, i+1, row.Index)
		require.Equal(t, want, row.PartitionID)
		require.Equal(t, int64(i+1), row.SequenceNumber)
		require.GreaterOrEqual(t, row.ProducedReceived, row.ProducedEnqueued)
	}

	exists, err := bus.EntityExists(t.Context(), types.TopicPath("orders"))
	require.NoError(t, err)
	require.True(t, exists)
	opts, ok := bus.Entity(types.TopicPath("orders"))
	require.True(t, ok)
	require.Equal(t, cfg.Partitions, opts.Partitions)

	data, err := os.ReadFile(result.ReportPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 11)
}

func TestBenchmark_NamedGroupCreatesAndCleansUpSubscription(t *testing.T) {
	cfg := benchConfig(t)
	cfg.Latency.ConsumerGroup = "audit"
	cfg.Latency.Cleanup = true
	cfg.Latency.PartitionKey = "game-42"
	bus := bustest.NewMemoryBus("orders", 2)

	bench, err := NewBenchmark(cfg, bus, WithAdmin(bus))
	require.NoError(t, err)

	result, err := bench.Run(t.Context())
	require.NoError(t, err)
	require.Equal(t, "game-42", result.GameID)
	require.Equal(t, 10, result.Report.Count())

	exists, err := bus.EntityExists(t.Context(), types.SubscriptionPath("orders", "audit"))
	require.NoError(t, err)
	require.False(t, exists)
}

func TestBenchmark_ExistingSubscriptionIsKept(t *testing.T) {
	cfg := benchConfig(t)
	cfg.Latency.ConsumerGroup = "audit"
	cfg.Latency.Cleanup = true
	bus := bustest.NewMemoryBus("orders", 2)
	ctx := t.Context()
	require.NoError(t, bus.CreateEntity(ctx, types.EntityOptions{Path: types.TopicPath("orders")}))
	require.NoError(t, bus.CreateEntity(ctx, types.EntityOptions{Path: types.SubscriptionPath("orders", "audit")}))

	bench, err := NewBenchmark(cfg, bus, WithAdmin(bus))
	require.NoError(t, err)
	_, err = bench.Run(ctx)
	require.NoError(t, err)

	exists, err := bus.EntityExists(ctx, types.SubscriptionPath("orders", "audit"))
	require.NoError(t, err)
	require.True(t, exists)
}

func TestBenchmark_SendFailure(t *testing.T) {
	bus := bustest.NewMemoryBus("orders", 1)
	bus.FailSends(errors.New("throttled"))

	bench, err := NewBenchmark(benchConfig(t), bus)
	require.NoError(t, err)

	_, err = bench.Run(t.Context())
	require.ErrorIs(t, err, ErrSendFailed)
}

func TestBenchmark_OversizedEvent(t *testing.T) {
	cfg := benchConfig(t)
	cfg.Latency.BatchCapacityBytes = 100
	bus := bustest.NewMemoryBus("orders", 1)

	bench, err := NewBenchmark(cfg, bus)
	require.NoError(t, err)

	_, err = bench.Run(t.Context())
	require.ErrorIs(t, err, ErrOversizedEvent)
	require.Zero(t, bus.SentEvents())
}

func TestBenchmark_Cancelled(t *testing.T) {
	cfg := benchConfig(t)
	cfg.Latency.ObservationWindow = time.Hour
	bus := bustest.NewMemoryBus("orders", 1)

	bench, err := NewBenchmark(cfg, bus)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	_, err = bench.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
