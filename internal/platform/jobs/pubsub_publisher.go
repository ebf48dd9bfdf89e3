package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	domain "github.com/orchidcart/api/internal/domain"
	"github.com/orchidcart/api/internal/services"
)

// PubSubJobPublisher publishes background job messages to a Pub/Sub topic.
type PubSubJobPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

var _ services.JobPublisher = (*PubSubJobPublisher)(nil)

// NewPubSubJobPublisher constructs a Pub/Sub backed job publisher.
func NewPubSubJobPublisher(topic *pubsub.Topic) (*PubSubJobPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub job publisher: topic is required")
	}
	return &PubSubJobPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishJob enqueues a job message on the configured topic.
func (p *PubSubJobPublisher) PublishJob(ctx context.Context, message services.JobMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub job publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal job message: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "jobId", message.ID)
	setAttr(attrs, "kind", message.Kind)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish job message: %w", err)
	}
	return id, nil
}

// Close stops the topic's publish goroutines after flushing pending messages.
func (p *PubSubJobPublisher) Close(_ context.Context) error {
	if p == nil || p.topic == nil {
		return nil
	}
	p.topic.Stop()
	return nil
}

// PubSubEventPublisher mirrors lifecycle and broadcast events onto a Pub/Sub
// topic as a durable side-channel next to the in-process realtime hub.
type PubSubEventPublisher struct {
	topic   *pubsub.Topic
	clock   func() time.Time
	marshal func(any) ([]byte, error)
}

// NewPubSubEventPublisher constructs a Pub/Sub backed event publisher.
func NewPubSubEventPublisher(topic *pubsub.Topic, clock func() time.Time) (*PubSubEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub event publisher: topic is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &PubSubEventPublisher{
		topic:   topic,
		clock:   clock,
		marshal: json.Marshal,
	}, nil
}

type eventEnvelope struct {
	Event       string    `json:"event"`
	Payload     any       `json:"payload"`
	PublishedAt time.Time `json:"publishedAt"`
}

// PublishOrderEvent mirrors an order lifecycle event.
func (p *PubSubEventPublisher) PublishOrderEvent(ctx context.Context, name string, event domain.OrderEvent) error {
	attrs := map[string]string{}
	setAttr(attrs, "event", name)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "userId", event.UserID)
	return p.publish(ctx, eventEnvelope{
		Event:       name,
		Payload:     event,
		PublishedAt: p.clock().UTC(),
	}, attrs)
}

// PublishGlobalEvent mirrors a global broadcast.
func (p *PubSubEventPublisher) PublishGlobalEvent(ctx context.Context, name string, payload any) error {
	attrs := map[string]string{}
	setAttr(attrs, "event", name)
	return p.publish(ctx, eventEnvelope{
		Event:       name,
		Payload:     payload,
		PublishedAt: p.clock().UTC(),
	}, attrs)
}

func (p *PubSubEventPublisher) publish(ctx context.Context, envelope eventEnvelope, attrs map[string]string) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub event publisher: not initialised")
	}

	data, err := p.marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
