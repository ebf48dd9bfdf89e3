package realtime

import (
	"context"
	"errors"

	domain "github.com/orchidcart/api/internal/domain"
)

// DispatchFunc queues one background job. Kind is the event name; the payload
// is the serialisable event body.
type DispatchFunc func(ctx context.Context, kind string, payload map[string]any) error

// JobSink mirrors events onto the background job queue so lifecycle
// notifications survive beyond in-process subscribers. Delivery is
// best-effort: the caller decides whether errors are logged or surfaced.
type JobSink struct {
	dispatch DispatchFunc
}

// NewJobSink constructs a sink over the supplied dispatch function.
func NewJobSink(dispatch DispatchFunc) (*JobSink, error) {
	if dispatch == nil {
		return nil, errors.New("realtime: dispatch function is required")
	}
	return &JobSink{dispatch: dispatch}, nil
}

var (
	_ OrderEventSink  = (*JobSink)(nil)
	_ GlobalEventSink = (*JobSink)(nil)
)

// PublishOrderEvent queues the lifecycle event as a background job.
func (s *JobSink) PublishOrderEvent(ctx context.Context, name string, event domain.OrderEvent) error {
	payload := map[string]any{
		"orderId":     event.OrderID,
		"orderNumber": event.OrderNumber,
		"userId":      event.UserID,
		"orderStatus": string(event.OrderStatus),
		"updatedAt":   event.UpdatedAt,
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
	return s.dispatch(ctx, name, payload)
}

// PublishGlobalEvent queues the broadcast as a background job.
func (s *JobSink) PublishGlobalEvent(ctx context.Context, name string, payload any) error {
	return s.dispatch(ctx, name, map[string]any{"event": payload})
}
