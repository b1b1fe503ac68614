package natsjs

import (
	"time"

	"github.com/arloliu/busbench/internal/backoff"
	"github.com/arloliu/busbench/types"
)

const (
	// DefaultPartitions is the partition count used when none is configured.
	DefaultPartitions = 4

	// DefaultFetchBatch is the maximum number of messages buffered per pull.
	DefaultFetchBatch = 64

	// DefaultFetchExpiry is how long a single pull request waits on the server.
	DefaultFetchExpiry = 5 * time.Second

	// DefaultAckTimeout bounds how long Send waits for publish acknowledgements.
	DefaultAckTimeout = 10 * time.Second

	transportName = "jetstream"
)

// Option configures a Transport or an Admin.
type Option func(*options)

type options struct {
	partitions  int
	fetchBatch  int
	fetchExpiry time.Duration
	ackTimeout  time.Duration
	retry       backoff.Policy
	logger      types.Logger
	metrics     types.MetricsCollector
}

func defaultOptions() options {
	return options{
		partitions:  DefaultPartitions,
		fetchBatch:  DefaultFetchBatch,
		fetchExpiry: DefaultFetchExpiry,
		ackTimeout:  DefaultAckTimeout,
		retry:       backoff.Policy{},
	}
}

// WithPartitions sets the number of partitions of the topic.
func WithPartitions(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.partitions = n
		}
	}
}

// WithFetchBatch sets the pull batch size.
func WithFetchBatch(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.fetchBatch = n
		}
	}
}

// WithFetchExpiry sets the pull request expiry. Heartbeats are half of it.
func WithFetchExpiry(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fetchExpiry = d
		}
	}
}

// WithAckTimeout bounds the wait for publish acknowledgements in Send.
func WithAckTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.ackTimeout = d
		}
	}
}

// WithRetryPolicy sets the backoff used when a pull loop has to recreate its iterator.
func WithRetryPolicy(p backoff.Policy) Option {
	return func(o *options) {
		o.retry = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger types.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m types.MetricsCollector) Option {
	return func(o *options) {
		o.metrics = m
	}
}
