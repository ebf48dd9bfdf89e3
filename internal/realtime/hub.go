package realtime

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	domain "github.com/orchidcart/api/internal/domain"
)

const defaultSubscriberBuffer = 16

// Event is one server-initiated push message.
type Event struct {
	Name    string    `json:"event"`
	Payload any       `json:"payload"`
	SentAt  time.Time `json:"sentAt"`
}

// Topic names. Order- and user-scoped topics carry lifecycle events for one
// order or one user; global events reach every connected subscriber.
func OrderTopic(orderID string) string { return "order:" + orderID }
func UserTopic(userID string) string   { return "user:" + userID }

// Subscription is one connected client's event feed. Events returns a channel
// closed when the subscription is cancelled; delivery is at-most-once and
// events pushed while the subscriber's buffer is full are dropped.
type Subscription struct {
	hub    *Hub
	id     uint64
	events chan Event

	mu     sync.Mutex
	topics map[string]struct{}
}

// Events exposes the receive channel.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// join adds an order- or user-scoped topic to the subscription. Topics are
// fixed at connect time; the transport verifies ownership before subscribing.
func (s *Subscription) join(topic string) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return
	}
	s.mu.Lock()
	s.topics[topic] = struct{}{}
	s.mu.Unlock()
}

func (s *Subscription) subscribed(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.topics[topic]
	return ok
}

// Hub fans events out to connected subscribers. There is no persistence or
// replay: a subscriber only sees events pushed while it is connected.
type Hub struct {
	clock func() time.Time

	// Incremented under the publish read lock, so it must be atomic.
	dropped atomic.Uint64

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*Subscription
	closed bool
}

// HubOption customises hub construction.
type HubOption func(*Hub)

// WithHubClock injects a custom clock, primarily for tests.
func WithHubClock(clock func() time.Time) HubOption {
	return func(h *Hub) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHub constructs an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		clock: time.Now,
		subs:  make(map[uint64]*Subscription),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a new subscriber on the given topics. The returned
// cancel func detaches the subscriber and closes its channel; it is safe to
// call more than once.
func (h *Hub) Subscribe(topics ...string) (*Subscription, func()) {
	sub := &Subscription{
		hub:    h,
		events: make(chan Event, defaultSubscriberBuffer),
		topics: make(map[string]struct{}, len(topics)),
	}
	for _, topic := range topics {
		sub.join(topic)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.events)
		return sub, func() {}
	}
	h.nextID++
	sub.id = h.nextID
	h.subs[sub.id] = sub
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if _, ok := h.subs[sub.id]; ok {
				delete(h.subs, sub.id)
				close(sub.events)
			}
			h.mu.Unlock()
		})
	}
	return sub, cancel
}

// Publish delivers the event to every subscriber of any of the topics.
func (h *Hub) Publish(event Event, topics ...string) {
	if event.SentAt.IsZero() {
		event.SentAt = h.clock().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for _, sub := range h.subs {
		for _, topic := range topics {
			if sub.subscribed(topic) {
				h.deliver(sub, event)
				break
			}
		}
	}
}

// Broadcast delivers the event to every connected subscriber regardless of
// topic membership.
func (h *Hub) Broadcast(event Event) {
	if event.SentAt.IsZero() {
		event.SentAt = h.clock().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for _, sub := range h.subs {
		h.deliver(sub, event)
	}
}

func (h *Hub) deliver(sub *Subscription, event Event) {
	select {
	case sub.events <- event:
	default:
		// Slow consumer; at-most-once delivery drops instead of blocking.
		h.dropped.Add(1)
	}
}

// DroppedCount reports how many events were discarded because a subscriber's
// buffer was full.
func (h *Hub) DroppedCount() uint64 {
	return h.dropped.Load()
}

// SubscriberCount reports currently connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close detaches every subscriber and rejects further publishes.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.events)
	}
}

// PublishOrderEvent pushes an order lifecycle event to the order-scoped and
// user-scoped topics. Implements the order service's publisher contract.
func (h *Hub) PublishOrderEvent(_ context.Context, name string, event domain.OrderEvent) error {
	if h == nil {
		return errors.New("realtime: hub is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = domain.EventOrderStatusUpdated
	}

	topics := make([]string, 0, 2)
	if event.OrderID != "" {
		topics = append(topics, OrderTopic(event.OrderID))
	}
	if event.UserID != "" {
		topics = append(topics, UserTopic(event.UserID))
	}
	if len(topics) == 0 {
		return errors.New("realtime: order event without order or user id")
	}

	h.Publish(Event{Name: name, Payload: orderEventPayload(event)}, topics...)
	return nil
}

// PublishGlobalEvent broadcasts to every connected subscriber. Implements the
// marketing service's publisher contract.
func (h *Hub) PublishGlobalEvent(_ context.Context, name string, payload any) error {
	if h == nil {
		return errors.New("realtime: hub is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("realtime: event name is required")
	}
	h.Broadcast(Event{Name: name, Payload: payload})
	return nil
}

// orderEventPayload flattens the event onto the wire shape pushed to clients.
func orderEventPayload(event domain.OrderEvent) map[string]any {
	payload := map[string]any{
		"orderId":     event.OrderID,
		"orderStatus": string(event.OrderStatus),
		"updatedAt":   event.UpdatedAt,
	}
	if event.OrderNumber != "" {
		payload["orderNumber"] = event.OrderNumber
	}
	if event.PaymentStatus != nil {
		payload["paymentStatus"] = string(*event.PaymentStatus)
	}
	if event.CancellationStatus != nil {
		payload["cancellationStatus"] = string(*event.CancellationStatus)
	}
	if event.RefundStatus != nil {
		payload["refundStatus"] = string(*event.RefundStatus)
	}
	if len(event.TrackingHistory) > 0 {
		payload["trackingHistory"] = event.TrackingHistory
	}
	return payload
}
