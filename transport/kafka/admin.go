package kafka

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/arloliu/busbench/internal/logging"
	"github.com/arloliu/busbench/types"
)

// topicConfigs makes record timestamps the broker's append time, which the
// latency report reads as the enqueue time.
var topicConfigs = map[string]*string{
	"message.timestamp.type": kadm.StringPtr("LogAppendTime"),
}

// Admin manages Kafka topics and the consumer groups backing subscriptions.
type Admin struct {
	client *kgo.Client
	adm    *kadm.Client
	opts   options
	logger types.Logger
}

// Compile-time assertion that Admin implements types.Admin.
var _ types.Admin = (*Admin)(nil)

// NewAdmin creates an admin client. Close releases it.
func NewAdmin(opts ...Option) (*Admin, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	kopts, err := clientOpts(o)
	if err != nil {
		return nil, err
	}
	client, err := kgo.NewClient(kopts...)
	if err != nil {
		return nil, fmt.Errorf("new kafka admin client: %w", err)
	}

	a := &Admin{client: client, adm: kadm.NewClient(client), opts: o, logger: o.logger}
	if a.logger == nil {
		a.logger = logging.NewNop()
	}

	return a, nil
}

// Close releases the admin client.
func (a *Admin) Close() {
	a.adm.Close()
}

// EntityExists reports whether the topic exists, or whether the subscription's
// consumer group has offsets for its topic.
func (a *Admin) EntityExists(ctx context.Context, path types.EntityPath) (bool, error) {
	if err := path.Validate(); err != nil {
		return false, err
	}
	if path.Kind() == types.EntityTopic {
		return a.topicExists(ctx, path.Topic)
	}

	return groupHasOffsets(ctx, a.adm, path.Subscription, path.Topic)
}

func (a *Admin) topicExists(ctx context.Context, topic string) (bool, error) {
	details, err := a.adm.ListTopics(ctx, topic)
	if err != nil {
		return false, fmt.Errorf("list topic %s: %w", topic, err)
	}
	detail, ok := details[topic]
	if !ok || errors.Is(detail.Err, kerr.UnknownTopicOrPartition) {
		return false, nil
	}
	if detail.Err != nil {
		return false, fmt.Errorf("describe topic %s: %w", topic, detail.Err)
	}

	return true, nil
}

// groupHasOffsets reports whether group committed offsets for topic.
func groupHasOffsets(ctx context.Context, adm *kadm.Client, group, topic string) (bool, error) {
	resps, err := adm.FetchOffsets(ctx, group)
	if err != nil {
		if errors.Is(err, kerr.GroupIDNotFound) {
			return false, nil
		}

		return false, fmt.Errorf("fetch offsets of group %s: %w", group, err)
	}

	return len(resps[topic]) > 0, nil
}

// CreateEntity creates a topic, or a subscription by committing the topic's
// end offsets for the consumer group.
func (a *Admin) CreateEntity(ctx context.Context, opts types.EntityOptions) error {
	if err := opts.Path.Validate(); err != nil {
		return err
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

	topic := opts.Path.Topic
	resps, err := a.adm.CreateTopics(ctx, int32(partitions), a.opts.replicationFactor, topicConfigs, topic) //nolint:gosec // partition count is small
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, r := range resps {
		if errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("%w: %s", types.ErrEntityExists, topic)
		}
		if r.Err != nil {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}

	a.logger.Info("topic created", "topic", topic, "partitions", partitions)

	return nil
}

func (a *Admin) createSubscription(ctx context.Context, opts types.EntityOptions) error {
	topic, group := opts.Path.Topic, opts.Path.Subscription

	ok, err := a.topicExists(ctx, topic)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: topic %s", types.ErrEntityNotFound, topic)
	}

	exists, err := groupHasOffsets(ctx, a.adm, group, topic)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", types.ErrEntityExists, opts.Path)
	}

	ends, err := a.adm.ListEndOffsets(ctx, topic)
	if err != nil {
		return fmt.Errorf("list end offsets of %s: %w", topic, err)
	}
	if err := ends.Error(); err != nil {
		return fmt.Errorf("list end offsets of %s: %w", topic, err)
	}

	resps, err := a.adm.CommitOffsets(ctx, group, ends.Offsets())
	if err != nil {
		return fmt.Errorf("commit offsets of group %s: %w", group, err)
	}
	if err := resps.Error(); err != nil {
		return fmt.Errorf("commit offsets of group %s: %w", group, err)
	}

	if opts.MaxDeliveryCount > 0 || opts.AutoDeleteOnIdle > 0 {
		a.logger.Debug("consumer groups ignore delivery count and idle expiry", "path", opts.Path.String())
	}
	a.logger.Info("subscription created", "path", opts.Path.String())

	return nil
}

// ListEntities lists topics, or the subscriptions of topic when it is non-empty.
func (a *Admin) ListEntities(ctx context.Context, topic string) ([]types.EntityPath, error) {
	var out []types.EntityPath

	if topic == "" {
		details, err := a.adm.ListTopics(ctx)
		if err != nil {
			return nil, fmt.Errorf("list topics: %w", err)
		}
		for name, d := range details {
			if d.Err == nil && !d.IsInternal {
				out = append(out, types.TopicPath(name))
			}
		}
	} else {
		ok, err := a.topicExists(ctx, topic)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: topic %s", types.ErrEntityNotFound, topic)
		}

		groups, err := a.adm.ListGroups(ctx)
		if err != nil {
			return nil, fmt.Errorf("list groups: %w", err)
		}
		for _, group := range groups.Groups() {
			has, err := groupHasOffsets(ctx, a.adm, group, topic)
			if err != nil {
				return nil, err
			}
			if has {
				out = append(out, types.SubscriptionPath(topic, group))
			}
		}
	}

	slices.SortFunc(out, func(x, y types.EntityPath) int {
		return strings.Compare(x.String(), y.String())
	})

	return out, nil
}

// DeleteEntity deletes a topic or a subscription's consumer group.
func (a *Admin) DeleteEntity(ctx context.Context, path types.EntityPath) error {
	if err := path.Validate(); err != nil {
		return err
	}

	if path.Kind() == types.EntityTopic {
		resps, err := a.adm.DeleteTopics(ctx, path.Topic)
		if err != nil {
			return fmt.Errorf("delete topic %s: %w", path.Topic, err)
		}
		r := resps[path.Topic]
		if errors.Is(r.Err, kerr.UnknownTopicOrPartition) {
			return fmt.Errorf("%w: %s", types.ErrEntityNotFound, path)
		}
		if r.Err != nil {
			return fmt.Errorf("delete topic %s: %w", path.Topic, r.Err)
		}
		a.logger.Info("topic deleted", "topic", path.Topic)

		return nil
	}

	exists, err := groupHasOffsets(ctx, a.adm, path.Subscription, path.Topic)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", types.ErrEntityNotFound, path)
	}

	resps, err := a.adm.DeleteGroups(ctx, path.Subscription)
	if err != nil {
		return fmt.Errorf("delete group %s: %w", path.Subscription, err)
	}
	if r := resps[path.Subscription]; r.Err != nil {
		return fmt.Errorf("delete group %s: %w", path.Subscription, r.Err)
	}
	a.logger.Info("subscription deleted", "path", path.String())

	return nil
}
