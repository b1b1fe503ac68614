package busbench

import (
	"time"

	"github.com/arloliu/busbench/types"
)

// Option configures a Benchmark with optional dependencies.
type Option func(*benchmarkOptions)

// benchmarkOptions holds optional Benchmark configuration.
type benchmarkOptions struct {
	admin   types.Admin
	logger  types.Logger
	metrics types.MetricsCollector
	now     func() time.Time
}

// WithAdmin sets the admin used to ensure the topic and subscription exist.
//
// Without an admin the topic must already exist and only the default
// consumer group can be used.
//
// Parameters:
//   - admin: Admin implementation for the same bus as the transport
//
// Returns:
//   - Option: Functional option for NewBenchmark
//
// Example:
//
//	admin, _ := natsjs.NewAdmin(nc)
//	bench, _ := busbench.NewBenchmark(cfg, tr, busbench.WithAdmin(admin))
func WithAdmin(admin types.Admin) Option {
	return func(o *benchmarkOptions) {
		o.admin = admin
	}
}

// WithMetrics sets a metrics collector.
//
// Parameters:
//   - metrics: MetricsCollector implementation
//
// Returns:
//   - Option: Functional option for NewBenchmark
func WithMetrics(metrics types.MetricsCollector) Option {
	return func(o *benchmarkOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Parameters:
//   - logger: Logger implementation
//
// Returns:
//   - Option: Functional option for NewBenchmark
//
// Example:
//
//	logger := logging.NewSlogDefault()
//	bench, _ := busbench.NewBenchmark(cfg, tr, busbench.WithLogger(logger))
func WithLogger(logger types.Logger) Option {
	return func(o *benchmarkOptions) {
		o.logger = logger
	}
}

// WithClock sets the clock used for produced and received timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *benchmarkOptions) {
		o.now = now
	}
}
