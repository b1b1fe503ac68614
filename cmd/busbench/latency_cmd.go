package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/arloliu/busbench"
	"github.com/arloliu/busbench/internal/metrics"
	"github.com/arloliu/busbench/types"
)

type latencyFlags struct {
	numEvents     int
	maxPerBatch   int
	batchBytes    int
	window        time.Duration
	consumerGroup string
	startBackdate time.Duration
	partitionKey  string
	resultsDir    string
	cleanup       bool
	natsURL       string
	brokers       []string
	metrics       bool
	metricsAddr   string
}

func newLatencyCmd(g *globalFlags) *cobra.Command {
	f := &latencyFlags{}

	cmd := &cobra.Command{
		Use:     "latency",
		Aliases: []string{"lat"},
		Short:   "Run a latency test: send N events, receive them and record the timings",
		Long: `Publishes a burst of events sharing one partition key, receives them through
the configured consumer group and writes one CSV row per received event with
produced-to-enqueued, enqueued-to-received and produced-to-received latency.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.loadConfig(cmd)
			if err != nil {
				return err
			}
			f.apply(cmd, &cfg)

			busbench.ApplyDefaults(&cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			result, err := runLatency(cmd.Context(), cmd, cfg)
			if err != nil {
				return err
			}

			r := result.Report
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Sent %d events in %d batches, received %d in %.3fs\n",
				result.Sent, result.Batches, r.Count(), result.Elapsed.Seconds())
			fmt.Fprintf(out, "produced->received  mean %v  p50 %v  p99 %v  max %v\n",
				r.ProducedReceived.Mean, r.ProducedReceived.P50, r.ProducedReceived.P99, r.ProducedReceived.Max)
			fmt.Fprintf(out, "Report: %s\n", result.ReportPath)

			return nil
		},
	}

	fl := cmd.Flags()
	fl.IntVarP(&f.numEvents, "num-messages", "m", 0, "number of events to send (default 20)")
	fl.IntVarP(&f.maxPerBatch, "max-batch-events", "b", 0, "maximum events per batch, 0 for no limit")
	fl.IntVar(&f.batchBytes, "batch-bytes", 0, "batch capacity in bytes (default 1 MiB)")
	fl.DurationVarP(&f.window, "window", "w", 0, "how long to receive after sending (default 10s)")
	fl.StringVarP(&f.consumerGroup, "consumer-group", "g", "", "consumer group to receive with (default $Default)")
	fl.DurationVar(&f.startBackdate, "start-backdate", 0, "start receiving this long before the run (default 5s)")
	fl.StringVar(&f.partitionKey, "partition-key", "", "partition key of every event (random when empty)")
	fl.StringVar(&f.resultsDir, "results-dir", "", "directory the CSV report is written to")
	fl.BoolVar(&f.cleanup, "cleanup", false, "delete a subscription this run created")
	fl.StringVar(&f.natsURL, "nats-url", "", "NATS server URL for the jetstream transport")
	fl.StringSliceVar(&f.brokers, "brokers", nil, "seed brokers for the kafka transport")
	fl.BoolVar(&f.metrics, "metrics", false, "serve Prometheus metrics during the run")
	fl.StringVar(&f.metricsAddr, "metrics-addr", "", "metrics listen address")

	return cmd
}

// apply overrides cfg with the flags the user set.
func (f *latencyFlags) apply(cmd *cobra.Command, cfg *busbench.Config) {
	fl := cmd.Flags()
	if fl.Changed("num-messages") {
		cfg.Latency.NumEvents = f.numEvents
	}
	if fl.Changed("max-batch-events") {
		cfg.Latency.MaxEventsPerBatch = f.maxPerBatch
	}
	if fl.Changed("batch-bytes") {
		cfg.Latency.BatchCapacityBytes = f.batchBytes
	}
	if fl.Changed("window") {
		cfg.Latency.ObservationWindow = f.window
	}
	if fl.Changed("consumer-group") {
		cfg.Latency.ConsumerGroup = f.consumerGroup
	}
	if fl.Changed("start-backdate") {
		cfg.Latency.StartBackdate = f.startBackdate
	}
	if fl.Changed("partition-key") {
		cfg.Latency.PartitionKey = f.partitionKey
	}
	if fl.Changed("results-dir") {
		cfg.Latency.ResultsDir = f.resultsDir
	}
	if fl.Changed("cleanup") {
		cfg.Latency.Cleanup = f.cleanup
	}
	if fl.Changed("nats-url") {
		cfg.NATS.URL = f.natsURL
	}
	if fl.Changed("brokers") {
		cfg.Kafka.Brokers = f.brokers
	}
	if fl.Changed("metrics") {
		cfg.Metrics.Enabled = f.metrics
	}
	if fl.Changed("metrics-addr") {
		cfg.Metrics.Addr = f.metricsAddr
	}
}

func runLatency(ctx context.Context, cmd *cobra.Command, cfg busbench.Config) (*busbench.Result, error) {
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	var collector types.MetricsCollector = metrics.NewNop()
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		collector = metrics.NewPrometheus(reg, cfg.Metrics.Namespace)
		server := metrics.NewServer(cfg.Metrics.Addr, reg, logger)
		if err := server.Start(); err != nil {
			return nil, err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	bus, err := openBus(cfg, logger, collector)
	if err != nil {
		return nil, err
	}
	defer bus.Close()

	bench, err := busbench.NewBenchmark(cfg, bus.transport,
		busbench.WithAdmin(bus.admin),
		busbench.WithLogger(logger),
		busbench.WithMetrics(collector),
	)
	if err != nil {
		return nil, err
	}

	return bench.Run(ctx)
}
