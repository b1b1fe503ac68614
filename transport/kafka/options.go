package kafka

import (
	"crypto/tls"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/arloliu/busbench/sas"
	"github.com/arloliu/busbench/types"
)

const (
	// DefaultPartitions is the partition count used for records and new topics.
	DefaultPartitions = 4

	// DefaultReplicationFactor is used when creating topics (-1 = broker default).
	DefaultReplicationFactor int16 = -1

	// DefaultClientID identifies busbench clients to the broker.
	DefaultClientID = "busbench"

	// DefaultFetchMaxWait bounds how long a fetch waits for records.
	DefaultFetchMaxWait = 500 * time.Millisecond

	transportName = "kafka"
)

// Option configures a Transport or an Admin.
type Option func(*options)

type options struct {
	brokers           []string
	clientID          string
	partitions        int
	replicationFactor int16
	fetchMaxWait      time.Duration
	signer            *sas.Signer
	namespace         string
	tlsConfig         *tls.Config
	extra             []kgo.Opt
	logger            types.Logger
	metrics           types.MetricsCollector
}

func defaultOptions() options {
	return options{
		clientID:          DefaultClientID,
		partitions:        DefaultPartitions,
		replicationFactor: DefaultReplicationFactor,
		fetchMaxWait:      DefaultFetchMaxWait,
	}
}

// WithBrokers sets the seed brokers ("host:port").
func WithBrokers(brokers ...string) Option {
	return func(o *options) {
		o.brokers = append(o.brokers[:0], brokers...)
	}
}

// WithClientID sets the Kafka client id.
func WithClientID(id string) Option {
	return func(o *options) {
		if id != "" {
			o.clientID = id
		}
	}
}

// WithPartitions sets the partition count records are spread over and new
// topics are created with.
func WithPartitions(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.partitions = n
		}
	}
}

// WithReplicationFactor sets the replication factor of new topics.
func WithReplicationFactor(rf int16) Option {
	return func(o *options) {
		o.replicationFactor = rf
	}
}

// WithFetchMaxWait bounds how long a fetch waits on the broker.
func WithFetchMaxWait(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.fetchMaxWait = d
		}
	}
}

// WithSAS authenticates with SASL/PLAIN using tokens signed for namespace.
//
// TLS is enabled as well when no TLS configuration was set.
func WithSAS(signer *sas.Signer, namespace string) Option {
	return func(o *options) {
		o.signer = signer
		o.namespace = namespace
		if o.tlsConfig == nil {
			o.tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
	}
}

// WithTLS dials brokers over TLS with cfg (nil uses a TLS 1.2 minimum default).
func WithTLS(cfg *tls.Config) Option {
	return func(o *options) {
		if cfg == nil {
			cfg = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		o.tlsConfig = cfg
	}
}

// WithClientOpts appends raw franz-go options, applied last.
func WithClientOpts(opts ...kgo.Opt) Option {
	return func(o *options) {
		o.extra = append(o.extra, opts...)
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
