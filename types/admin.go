package types

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// EntityKind identifies a bus entity type.
type EntityKind int

const (
	// EntityTopic is a topic that events are published to.
	EntityTopic EntityKind = iota

	// EntitySubscription is a named consumer group on a topic.
	EntitySubscription
)

// String returns the string representation of the entity kind.
func (k EntityKind) String() string {
	switch k {
	case EntityTopic:
		return "Topic"
	case EntitySubscription:
		return "Subscription"
	default:
		return "Unknown"
	}
}

// subscriptionsSegment separates a topic from its subscription in an entity path.
const subscriptionsSegment = "/subscriptions/"

// EntityPath names a topic or one of its subscriptions.
type EntityPath struct {
	Topic        string
	Subscription string
}

// Kind returns the entity kind the path refers to.
func (p EntityPath) Kind() EntityKind {
	if p.Subscription != "" {
		return EntitySubscription
	}

	return EntityTopic
}

// String returns the path in "topic" or "topic/subscriptions/name" form.
func (p EntityPath) String() string {
	if p.Subscription == "" {
		return p.Topic
	}

	return p.Topic + subscriptionsSegment + p.Subscription
}

// Validate checks that the path names a topic and, optionally, a subscription
// without path separators.
func (p EntityPath) Validate() error {
	if p.Topic == "" || strings.Contains(p.Topic, "/") || strings.Contains(p.Subscription, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidEntityPath, p.String())
	}

	return nil
}

// TopicPath returns the entity path of a topic.
func TopicPath(topic string) EntityPath {
	return EntityPath{Topic: topic}
}

// SubscriptionPath returns the entity path of a subscription.
func SubscriptionPath(topic, subscription string) EntityPath {
	return EntityPath{Topic: topic, Subscription: subscription}
}

// ParseEntityPath parses "topic" or "topic/subscriptions/name".
//
// Parameters:
//   - path: Entity path string
//
// Returns:
//   - EntityPath: Parsed path
//   - error: ErrInvalidEntityPath if the path is empty or malformed
func ParseEntityPath(path string) (EntityPath, error) {
	path = strings.Trim(path, "/")
	if path == "" {
		return EntityPath{}, ErrInvalidEntityPath
	}

	topic, sub, found := strings.Cut(path, subscriptionsSegment)
	if !found {
		if strings.Contains(path, "/") {
			return EntityPath{}, fmt.Errorf("%w: %q", ErrInvalidEntityPath, path)
		}

		return TopicPath(path), nil
	}
	if topic == "" || sub == "" || strings.Contains(sub, "/") {
		return EntityPath{}, fmt.Errorf("%w: %q", ErrInvalidEntityPath, path)
	}

	return SubscriptionPath(topic, sub), nil
}

// EntityOptions describes an entity to create.
type EntityOptions struct {
	// Path names the entity.
	Path EntityPath

	// Partitions is the topic partition count. Ignored for subscriptions.
	Partitions int

	// MaxDeliveryCount bounds redelivery attempts of a subscription (0 = bus default).
	MaxDeliveryCount int

	// AutoDeleteOnIdle removes the subscription after this much inactivity (0 = never).
	AutoDeleteOnIdle time.Duration
}

// Admin manages topics and subscriptions.
type Admin interface {
	// EntityExists reports whether the entity exists.
	EntityExists(ctx context.Context, path EntityPath) (bool, error)

	// CreateEntity creates the entity described by opts.
	CreateEntity(ctx context.Context, opts EntityOptions) error

	// ListEntities lists topics (empty topic) or the subscriptions of a topic.
	ListEntities(ctx context.Context, topic string) ([]EntityPath, error)

	// DeleteEntity deletes the entity. Deleting a missing entity returns ErrEntityNotFound.
	DeleteEntity(ctx context.Context, path EntityPath) error
}
