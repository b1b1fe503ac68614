package natsjs

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/busbench/internal/logging"
	"github.com/arloliu/busbench/internal/natsutil"
	"github.com/arloliu/busbench/types"
)

// Stream and consumer metadata keys recording the busbench entity behind them.
const (
	metaPartitions   = "busbench.partitions"
	metaTopic        = "busbench.topic"
	metaSubscription = "busbench.subscription"

	ensureRetries = 5
)

// Admin manages topic streams and subscription consumers.
type Admin struct {
	js     jetstream.JetStream
	opts   options
	logger types.Logger
}

// Compile-time assertion that Admin implements types.Admin.
var _ types.Admin = (*Admin)(nil)

// NewAdmin creates an Admin on an established connection.
//
// WithPartitions sets the partition count used when a topic is created
// without an explicit count.
func NewAdmin(nc *nats.Conn, opts ...Option) (*Admin, error) {
	if nc == nil {
		return nil, errors.New("nats connection is required")
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	a := &Admin{js: js, opts: o, logger: o.logger}
	if a.logger == nil {
		a.logger = logging.NewNop()
	}

	return a, nil
}

// EntityExists reports whether the topic stream or the subscription's consumers exist.
func (a *Admin) EntityExists(ctx context.Context, path types.EntityPath) (bool, error) {
	if err := path.Validate(); err != nil {
		return false, err
	}

	if path.Kind() == types.EntityTopic {
		_, err := a.js.Stream(ctx, StreamName(path.Topic))
		if errors.Is(err, jetstream.ErrStreamNotFound) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to look up stream for %s: %w", path, err)
		}

		return true, nil
	}

	_, err := a.js.Consumer(ctx, StreamName(path.Topic), ConsumerName(path.Subscription, 0))
	if errors.Is(err, jetstream.ErrConsumerNotFound) || errors.Is(err, jetstream.ErrStreamNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up consumer for %s: %w", path, err)
	}

	return true, nil
}

// CreateEntity creates a topic stream or a subscription's durable consumers.
//
// Returns ErrEntityExists when the entity is already present and
// ErrEntityNotFound when a subscription's topic is missing.
func (a *Admin) CreateEntity(ctx context.Context, opts types.EntityOptions) error {
	exists, err := a.EntityExists(ctx, opts.Path)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", types.ErrEntityExists, opts.Path)
	}

	if opts.Path.Kind() == types.EntityTopic {
		return a.createTopic(ctx, opts)
	}

	return a.createSubscription(ctx, opts)
}

func (a *Admin) createTopic(ctx context.Context, opts types.EntityOptions) error {
	partitions := opts.Partitions
	if partitions <= 0 {
		partitions = a.opts.partitions
	}

	name := StreamName(opts.Path.Topic)
	_, err := natsutil.EnsureStreamWithRetry(ctx, a.js, jetstream.StreamConfig{
		Name:     name,
		Subjects: []string{name + ".*"},
		Metadata: map[string]string{
			metaTopic:      opts.Path.Topic,
			metaPartitions: strconv.Itoa(partitions),
		},
	}, ensureRetries)
	if err != nil {
		return err
	}

	a.logger.Info("topic stream created", "topic", opts.Path.Topic, "stream", name, "partitions", partitions)

	return nil
}

func (a *Admin) createSubscription(ctx context.Context, opts types.EntityOptions) error {
	streamName := StreamName(opts.Path.Topic)
	stream, err := a.js.Stream(ctx, streamName)
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("%w: topic %s", types.ErrEntityNotFound, opts.Path.Topic)
	}
	if err != nil {
		return fmt.Errorf("failed to look up stream %s: %w", streamName, err)
	}

	partitions := streamPartitions(stream.CachedInfo(), a.opts.partitions)
	for n := range partitions {
		cfg := jetstream.ConsumerConfig{
			Durable:           ConsumerName(opts.Path.Subscription, n),
			FilterSubject:     streamName + "." + strconv.Itoa(n),
			DeliverPolicy:     jetstream.DeliverNewPolicy,
			AckPolicy:         jetstream.AckExplicitPolicy,
			MaxDeliver:        opts.MaxDeliveryCount,
			InactiveThreshold: opts.AutoDeleteOnIdle,
			Metadata: map[string]string{
				metaSubscription: opts.Path.Subscription,
			},
		}
		if cfg.MaxDeliver <= 0 {
			cfg.MaxDeliver = -1
		}

		if _, err := stream.CreateConsumer(ctx, cfg); err != nil {
			return fmt.Errorf("failed to create consumer %s: %w", cfg.Durable, err)
		}
	}

	a.logger.Info("subscription created", "path", opts.Path.String(), "partitions", partitions)

	return nil
}

// streamPartitions reads the partition count recorded on the stream.
func streamPartitions(info *jetstream.StreamInfo, fallback int) int {
	if info != nil {
		if n, err := strconv.Atoi(info.Config.Metadata[metaPartitions]); err == nil && n > 0 {
			return n
		}
	}

	return fallback
}

// ListEntities lists topics, or the subscriptions of topic when it is non-empty.
//
// Only streams and consumers created by this package are reported.
func (a *Admin) ListEntities(ctx context.Context, topic string) ([]types.EntityPath, error) {
	var out []types.EntityPath

	if topic == "" {
		lister := a.js.ListStreams(ctx)
		for info := range lister.Info() {
			if name, ok := info.Config.Metadata[metaTopic]; ok {
				out = append(out, types.TopicPath(name))
			}
		}
		if err := lister.Err(); err != nil {
			return nil, fmt.Errorf("failed to list streams: %w", err)
		}
	} else {
		stream, err := a.js.Stream(ctx, StreamName(topic))
		if errors.Is(err, jetstream.ErrStreamNotFound) {
			return nil, fmt.Errorf("%w: topic %s", types.ErrEntityNotFound, topic)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up stream for %s: %w", topic, err)
		}

		seen := make(map[string]struct{})
		lister := stream.ListConsumers(ctx)
		for info := range lister.Info() {
			name, ok := info.Config.Metadata[metaSubscription]
			if !ok {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, types.SubscriptionPath(topic, name))
		}
		if err := lister.Err(); err != nil {
			return nil, fmt.Errorf("failed to list consumers of %s: %w", topic, err)
		}
	}

	slices.SortFunc(out, func(x, y types.EntityPath) int {
		return strings.Compare(x.String(), y.String())
	})

	return out, nil
}

// DeleteEntity deletes a topic stream (and with it every subscription) or a
// subscription's consumers.
func (a *Admin) DeleteEntity(ctx context.Context, path types.EntityPath) error {
	if err := path.Validate(); err != nil {
		return err
	}

	streamName := StreamName(path.Topic)
	if path.Kind() == types.EntityTopic {
		err := a.js.DeleteStream(ctx, streamName)
		if errors.Is(err, jetstream.ErrStreamNotFound) {
			return fmt.Errorf("%w: %s", types.ErrEntityNotFound, path)
		}
		if err != nil {
			return fmt.Errorf("failed to delete stream %s: %w", streamName, err)
		}
		a.logger.Info("topic stream deleted", "topic", path.Topic)

		return nil
	}

	stream, err := a.js.Stream(ctx, streamName)
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("%w: %s", types.ErrEntityNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("failed to look up stream %s: %w", streamName, err)
	}

	partitions := streamPartitions(stream.CachedInfo(), a.opts.partitions)
	deleted := 0
	for n := range partitions {
		err := stream.DeleteConsumer(ctx, ConsumerName(path.Subscription, n))
		if errors.Is(err, jetstream.ErrConsumerNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to delete consumer %s: %w", ConsumerName(path.Subscription, n), err)
		}
		deleted++
	}
	if deleted == 0 {
		return fmt.Errorf("%w: %s", types.ErrEntityNotFound, path)
	}
	a.logger.Info("subscription deleted", "path", path.String())

	return nil
}
