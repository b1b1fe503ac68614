//go:build integration

package integration_test

import (
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/busbench"
	bustest "github.com/arloliu/busbench/testing"
	"github.com/arloliu/busbench/test/testutil"
	"github.com/arloliu/busbench/transport/natsjs"
	"github.com/arloliu/busbench/types"
)

func latencyConfig(t *testing.T, topic string) busbench.Config {
	t.Helper()

	cfg := busbench.DefaultConfig()
	cfg.Topic = topic
	cfg.Partitions = 4
	cfg.Latency.NumEvents = 200
	cfg.Latency.MaxEventsPerBatch = 25
	cfg.Latency.ObservationWindow = 3 * time.Second
	cfg.Latency.ResultsDir = t.TempDir()

	return cfg
}

func newJetStreamBench(t *testing.T, srv *testutil.ExternalNATS, cfg busbench.Config) (*busbench.Benchmark, *natsjs.Admin) {
	t.Helper()

	logger := bustest.NewTestLogger(t)
	tr, err := natsjs.New(srv.Conn, cfg.Topic, natsjs.WithPartitions(cfg.Partitions), natsjs.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })

	admin, err := natsjs.NewAdmin(srv.Conn, natsjs.WithPartitions(cfg.Partitions))
	require.NoError(t, err)

	bench, err := busbench.NewBenchmark(cfg, tr, busbench.WithAdmin(admin), busbench.WithLogger(logger))
	require.NoError(t, err)

	return bench, admin
}

func TestLatency_JetStreamDefaultGroup(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	srv := testutil.StartExternalNATS(t)
	cfg := latencyConfig(t, "latency-default")
	bench, _ := newJetStreamBench(t, srv, cfg)

	result, err := bench.Run(t.Context())
	require.NoError(t, err)

	r := result.Report
	require.Equal(t, 200, r.Count())
	require.Equal(t, 8, result.Batches)
	require.Equal(t, 1, r.Partitions)
	require.False(t, r.PartitionSkew)

	// All events share the game id key, so they land in one partition in order.
	tr, err := natsjs.New(srv.Conn, cfg.Topic, natsjs.WithPartitions(cfg.Partitions))
	require.NoError(t, err)
	want := strconv.Itoa(tr.PartitionFor(result.GameID))
	for i, row := range r.Rows {
		require.Equal(t, want, row.PartitionID)
		require.Equal(t, int64(i+1), row.SequenceNumber)
		require.False(t, row.EnqueuedAt.Before(row.ProducedAt.Add(-time.Second)))
	}
	require.Positive(t, r.ProducedReceived.Mean)
	require.LessOrEqual(t, r.ProducedReceived.P50, r.ProducedReceived.P99)

	_, err = os.Stat(result.ReportPath)
	require.NoError(t, err)
}

func TestLatency_JetStreamNamedGroupCleanup(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	srv := testutil.StartExternalNATS(t)
	cfg := latencyConfig(t, "latency-named")
	cfg.Latency.ConsumerGroup = "audit"
	cfg.Latency.Cleanup = true
	bench, admin := newJetStreamBench(t, srv, cfg)

	result, err := bench.Run(t.Context())
	require.NoError(t, err)
	require.Equal(t, 200, result.Report.Count())

	exists, err := admin.EntityExists(t.Context(), types.SubscriptionPath(cfg.Topic, "audit"))
	require.NoError(t, err)
	require.False(t, exists)

	exists, err = admin.EntityExists(t.Context(), types.TopicPath(cfg.Topic))
	require.NoError(t, err)
	require.True(t, exists)
}

func TestLatency_RepeatedRunsOnOneTopic(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	srv := testutil.StartExternalNATS(t)
	cfg := latencyConfig(t, "latency-repeat")
	cfg.Latency.NumEvents = 50
	cfg.Latency.ObservationWindow = 2 * time.Second
	cfg.Latency.StartBackdate = 0

	for range 2 {
		bench, _ := newJetStreamBench(t, srv, cfg)
		result, err := bench.Run(t.Context())
		require.NoError(t, err)

		// A zero backdate starts at the run, so earlier runs are not replayed.
		require.Equal(t, 50, result.Report.Count())
	}
}
