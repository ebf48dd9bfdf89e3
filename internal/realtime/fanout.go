package realtime

import (
	"context"
	"errors"

	domain "github.com/orchidcart/api/internal/domain"
)

// OrderEventSink receives order lifecycle events.
type OrderEventSink interface {
	PublishOrderEvent(ctx context.Context, name string, event domain.OrderEvent) error
}

// GlobalEventSink receives global broadcast events.
type GlobalEventSink interface {
	PublishGlobalEvent(ctx context.Context, name string, payload any) error
}

// Fanout mirrors events onto several sinks, typically the in-process hub and
// the durable Pub/Sub side-channel. Every sink is attempted; errors are joined.
type Fanout struct {
	orderSinks  []OrderEventSink
	globalSinks []GlobalEventSink
}

// NewFanout builds a fanout over the given sinks. A sink implementing both
// interfaces is registered for both event kinds.
func NewFanout(sinks ...any) (*Fanout, error) {
	f := &Fanout{}
	for _, sink := range sinks {
		matched := false
		if s, ok := sink.(OrderEventSink); ok {
			f.orderSinks = append(f.orderSinks, s)
			matched = true
		}
		if s, ok := sink.(GlobalEventSink); ok {
			f.globalSinks = append(f.globalSinks, s)
			matched = true
		}
		if !matched {
			return nil, errors.New("realtime: sink implements no event interface")
		}
	}
	if len(f.orderSinks) == 0 && len(f.globalSinks) == 0 {
		return nil, errors.New("realtime: at least one sink is required")
	}
	return f, nil
}

// PublishOrderEvent delivers to every order sink.
func (f *Fanout) PublishOrderEvent(ctx context.Context, name string, event domain.OrderEvent) error {
	var errs []error
	for _, sink := range f.orderSinks {
		if err := sink.PublishOrderEvent(ctx, name, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishGlobalEvent delivers to every global sink.
func (f *Fanout) PublishGlobalEvent(ctx context.Context, name string, payload any) error {
	var errs []error
	for _, sink := range f.globalSinks {
		if err := sink.PublishGlobalEvent(ctx, name, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
