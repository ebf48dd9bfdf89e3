package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/orchidcart/api/internal/domain"
)

func TestJobSinkPublishOrderEvent(t *testing.T) {
	var gotKind string
	var gotPayload map[string]any
	sink, err := NewJobSink(func(_ context.Context, kind string, payload map[string]any) error {
		gotKind = kind
		gotPayload = payload
		return nil
	})
	if err != nil {
		t.Fatalf("NewJobSink: %v", err)
	}

	payment := domain.PaymentStatusCompleted
	event := domain.OrderEvent{
		OrderID:       "ord_1",
		OrderNumber:   "ORD-2025-0001",
		UserID:        "user-1",
		OrderStatus:   domain.OrderStatusConfirmed,
		PaymentStatus: &payment,
		UpdatedAt:     time.Date(2025, 6, 12, 8, 0, 0, 0, time.UTC),
	}
	if err := sink.PublishOrderEvent(context.Background(), domain.EventOrderStatusUpdated, event); err != nil {
		t.Fatalf("PublishOrderEvent: %v", err)
	}

	if gotKind != domain.EventOrderStatusUpdated {
		t.Fatalf("kind = %q, want %q", gotKind, domain.EventOrderStatusUpdated)
	}
	if gotPayload["orderId"] != "ord_1" {
		t.Fatalf("payload orderId = %v", gotPayload["orderId"])
	}
	if gotPayload["paymentStatus"] != string(domain.PaymentStatusCompleted) {
		t.Fatalf("payload paymentStatus = %v", gotPayload["paymentStatus"])
	}
	if _, present := gotPayload["refundStatus"]; present {
		t.Fatal("refundStatus should be omitted when unset")
	}
}

func TestJobSinkPropagatesDispatchError(t *testing.T) {
	wantErr := errors.New("queue down")
	sink, err := NewJobSink(func(context.Context, string, map[string]any) error {
		return wantErr
	})
	if err != nil {
		t.Fatalf("NewJobSink: %v", err)
	}
	if err := sink.PublishGlobalEvent(context.Background(), domain.EventNewCoupon, "payload"); !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}
}

func TestNewJobSinkRequiresDispatch(t *testing.T) {
	if _, err := NewJobSink(nil); err == nil {
		t.Fatal("expected error for nil dispatch")
	}
}
