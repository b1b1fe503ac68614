package busbench

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/busbench/batch"
	"github.com/arloliu/busbench/internal/logging"
	"github.com/arloliu/busbench/latency"
	"github.com/arloliu/busbench/sas"
	"github.com/arloliu/busbench/types"
)

// Supported transports.
const (
	TransportJetStream = "jetstream"
	TransportKafka     = "kafka"
)

// AuthConfig holds the shared access rule tokens are signed with.
type AuthConfig struct {
	// KeyName is the shared access rule name. Required when Key is set.
	KeyName string `yaml:"keyName"`

	// Key is the shared access key. Its bytes are used as the HMAC key as-is.
	// Empty disables token authentication.
	Key string `yaml:"key"`

	// Validity is how long signed tokens remain valid.
	Validity time.Duration `yaml:"validity"`
}

// Enabled reports whether tokens should be signed.
func (a AuthConfig) Enabled() bool {
	return a.Key != ""
}

// NATSConfig configures the JetStream transport.
type NATSConfig struct {
	// URL is the server URL list, comma separated.
	URL string `yaml:"url"`

	// FetchBatch is the maximum number of messages pulled at once per partition.
	FetchBatch int `yaml:"fetchBatch"`

	// FetchExpiry is how long a pull request waits on the server.
	FetchExpiry time.Duration `yaml:"fetchExpiry"`

	// AckTimeout bounds the wait for publish acknowledgements.
	AckTimeout time.Duration `yaml:"ackTimeout"`
}

// KafkaConfig configures the Kafka transport.
type KafkaConfig struct {
	// Brokers are the seed brokers ("host:port"). Required for the kafka transport.
	Brokers []string `yaml:"brokers"`

	// ClientID identifies the client to the brokers.
	ClientID string `yaml:"clientId"`

	// ReplicationFactor is used when creating the topic (-1 = broker default).
	ReplicationFactor int16 `yaml:"replicationFactor"`

	// TLS dials brokers over TLS. Always on when auth is enabled.
	TLS bool `yaml:"tls"`
}

// LatencyConfig controls a latency run.
type LatencyConfig struct {
	// NumEvents is the number of events to publish.
	NumEvents int `yaml:"numEvents"`

	// MaxEventsPerBatch caps events per batch (0 = unlimited).
	MaxEventsPerBatch int `yaml:"maxEventsPerBatch"`

	// BatchCapacityBytes is the size limit of one batch.
	BatchCapacityBytes int `yaml:"batchCapacityBytes"`

	// ObservationWindow is how long to keep receiving after publishing.
	ObservationWindow time.Duration `yaml:"observationWindow"`

	// ConsumerGroup receives the events. "$Default" needs no subscription.
	ConsumerGroup string `yaml:"consumerGroup"`

	// StartBackdate moves the receive start position this far before the run
	// starts, so events published while the receivers connect are not missed.
	StartBackdate time.Duration `yaml:"startBackdate"`

	// PartitionKey routes all events of a run (random per run when empty).
	PartitionKey string `yaml:"partitionKey"`

	// ResultsDir is where the CSV report is written.
	ResultsDir string `yaml:"resultsDir"`

	// Cleanup deletes a subscription the run created once it finishes.
	Cleanup bool `yaml:"cleanup"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled starts the metrics server during a run.
	Enabled bool `yaml:"enabled"`

	// Addr is the listen address of the metrics server.
	Addr string `yaml:"addr"`

	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace"`
}

// LogConfig controls logging output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// Config is the configuration of a benchmark run.
//
// All duration fields accept standard Go duration strings like "30s", "5m", "1h".
type Config struct {
	// Transport selects the bus implementation: "jetstream" or "kafka".
	Transport string `yaml:"transport"`

	// Namespace is the fully qualified namespace host tokens are scoped to.
	Namespace string `yaml:"namespace"`

	// Topic is the topic events are published to.
	Topic string `yaml:"topic"`

	// Partitions is the partition count of the topic.
	Partitions int `yaml:"partitions"`

	Auth    AuthConfig    `yaml:"auth"`
	NATS    NATSConfig    `yaml:"nats"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Latency LatencyConfig `yaml:"latency"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// DefaultConfig returns a Config with sensible defaults.
//
// Returns:
//   - Config: Configuration with default values
func DefaultConfig() Config {
	return Config{
		Transport:  TransportJetStream,
		Topic:      "busbench",
		Partitions: 4,
		Auth: AuthConfig{
			Validity: sas.DefaultValidity,
		},
		NATS: NATSConfig{
			URL:         "nats://127.0.0.1:4222",
			FetchBatch:  64,
			FetchExpiry: 5 * time.Second,
			AckTimeout:  10 * time.Second,
		},
		Kafka: KafkaConfig{
			ClientID:          "busbench",
			ReplicationFactor: -1,
		},
		Latency: LatencyConfig{
			NumEvents:          20,
			MaxEventsPerBatch:  0,
			BatchCapacityBytes: batch.DefaultCapacityBytes,
			ObservationWindow:  10 * time.Second,
			ConsumerGroup:      types.DefaultConsumerGroup,
			StartBackdate:      5 * time.Second,
			ResultsDir:         latency.DefaultResultsDir,
		},
		Metrics: MetricsConfig{
			Addr:      ":9090",
			Namespace: "busbench",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ApplyDefaults fills in missing configuration values with defaults.
//
// Zero values that are meaningful (MaxEventsPerBatch = 0, StartBackdate = 0,
// Cleanup = false) are left untouched.
//
// Parameters:
//   - cfg: Config to apply defaults to (modified in place)
func ApplyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Transport == "" {
		cfg.Transport = defaults.Transport
	}
	if cfg.Topic == "" {
		cfg.Topic = defaults.Topic
	}
	if cfg.Partitions == 0 {
		cfg.Partitions = defaults.Partitions
	}
	if cfg.Auth.Validity == 0 {
		cfg.Auth.Validity = defaults.Auth.Validity
	}
	if cfg.NATS.URL == "" {
		cfg.NATS.URL = defaults.NATS.URL
	}
	if cfg.NATS.FetchBatch == 0 {
		cfg.NATS.FetchBatch = defaults.NATS.FetchBatch
	}
	if cfg.NATS.FetchExpiry == 0 {
		cfg.NATS.FetchExpiry = defaults.NATS.FetchExpiry
	}
	if cfg.NATS.AckTimeout == 0 {
		cfg.NATS.AckTimeout = defaults.NATS.AckTimeout
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = defaults.Kafka.ClientID
	}
	if cfg.Kafka.ReplicationFactor == 0 {
		cfg.Kafka.ReplicationFactor = defaults.Kafka.ReplicationFactor
	}
	if cfg.Latency.NumEvents == 0 {
		cfg.Latency.NumEvents = defaults.Latency.NumEvents
	}
	if cfg.Latency.BatchCapacityBytes == 0 {
		cfg.Latency.BatchCapacityBytes = defaults.Latency.BatchCapacityBytes
	}
	if cfg.Latency.ObservationWindow == 0 {
		cfg.Latency.ObservationWindow = defaults.Latency.ObservationWindow
	}
	if cfg.Latency.ConsumerGroup == "" {
		cfg.Latency.ConsumerGroup = defaults.Latency.ConsumerGroup
	}
	if cfg.Latency.ResultsDir == "" {
		cfg.Latency.ResultsDir = defaults.Latency.ResultsDir
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = defaults.Metrics.Addr
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = defaults.Metrics.Namespace
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaults.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = defaults.Log.Format
	}
}

// Validate checks configuration constraints.
//
// Returns:
//   - error: All violations joined, each wrapping ErrInvalidConfig; nil if valid
func (cfg *Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{types.ErrInvalidConfig}, args...)...))
	}

	if !slices.Contains([]string{TransportJetStream, TransportKafka}, cfg.Transport) {
		invalid("transport must be %q or %q, got %q", TransportJetStream, TransportKafka, cfg.Transport)
	}
	if cfg.Topic == "" {
		invalid("topic is required")
	}
	if cfg.Partitions < 1 {
		invalid("partitions must be >= 1, got %d", cfg.Partitions)
	}

	if cfg.Auth.Enabled() {
		if cfg.Auth.KeyName == "" {
			invalid("auth.keyName is required when auth.key is set")
		}
		if cfg.Namespace == "" {
			invalid("namespace is required when auth.key is set")
		}
	}
	if cfg.Auth.Validity <= 0 {
		invalid("auth.validity must be > 0, got %v", cfg.Auth.Validity)
	}

	if cfg.Transport == TransportKafka && len(cfg.Kafka.Brokers) == 0 {
		invalid("kafka.brokers is required for the kafka transport")
	}

	l := cfg.Latency
	if l.NumEvents < 1 {
		invalid("latency.numEvents must be >= 1, got %d", l.NumEvents)
	}
	if l.MaxEventsPerBatch < 0 {
		invalid("latency.maxEventsPerBatch must be >= 0, got %d", l.MaxEventsPerBatch)
	}
	if l.BatchCapacityBytes < 1 {
		invalid("latency.batchCapacityBytes must be >= 1, got %d", l.BatchCapacityBytes)
	}
	if l.ObservationWindow <= 0 {
		invalid("latency.observationWindow must be > 0, got %v", l.ObservationWindow)
	}
	if l.StartBackdate < 0 {
		invalid("latency.startBackdate must be >= 0, got %v", l.StartBackdate)
	}

	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		invalid("log.level: %v", err)
	}
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		invalid("log.format must be text or json, got %q", cfg.Log.Format)
	}

	return errors.Join(errs...)
}

// LoadConfig loads configuration from a YAML file.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded configuration with defaults applied and validated
//   - error: Error if file cannot be read, parsed or validated
//
// Example:
//
//	cfg, err := busbench.LoadConfig("busbench.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
