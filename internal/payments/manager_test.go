package payments

import (
	"context"
	"errors"
	"testing"

	domain "github.com/orchidcart/api/internal/domain"
)

type fakeProvider struct {
	gateway   domain.PaymentGateway
	lastOp    string
	order     GatewayOrder
	payment   PaymentDetails
	event     WebhookEvent
	verifyErr error
	err       error
}

func (f *fakeProvider) Gateway() domain.PaymentGateway {
	return f.gateway
}

func (f *fakeProvider) CreateOrder(ctx context.Context, req GatewayOrderRequest) (GatewayOrder, error) {
	f.lastOp = "create"
	return f.order, f.err
}

func (f *fakeProvider) VerifyPayment(ctx context.Context, req VerifyRequest) (PaymentDetails, error) {
	f.lastOp = "verify"
	return f.payment, f.err
}

func (f *fakeProvider) VerifyWebhookSignature(body []byte, signature string) error {
	f.lastOp = "verify_webhook"
	return f.verifyErr
}

func (f *fakeProvider) ParseWebhook(body []byte) (WebhookEvent, error) {
	f.lastOp = "parse"
	return f.event, f.err
}

func (f *fakeProvider) LookupPayment(ctx context.Context, paymentID string) (PaymentDetails, error) {
	f.lastOp = "lookup"
	return f.payment, f.err
}

func TestManagerResolvesByGateway(t *testing.T) {
	ctx := context.Background()
	razorpay := &fakeProvider{gateway: domain.GatewayRazorpay, order: GatewayOrder{GatewayOrderID: "order_rzp"}}
	cashfree := &fakeProvider{gateway: domain.GatewayCashfree, order: GatewayOrder{GatewayOrderID: "order_cf"}}

	mgr, err := NewManager([]Provider{razorpay, cashfree})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	order, err := mgr.CreateOrder(ctx, domain.GatewayCashfree, GatewayOrderRequest{Amount: 1000})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.GatewayOrderID != "order_cf" || order.Gateway != domain.GatewayCashfree {
		t.Fatalf("unexpected order: %+v", order)
	}
	if cashfree.lastOp != "create" || razorpay.lastOp != "" {
		t.Fatalf("wrong provider invoked: razorpay=%q cashfree=%q", razorpay.lastOp, cashfree.lastOp)
	}
}

func TestManagerDefaultsToRazorpay(t *testing.T) {
	ctx := context.Background()
	razorpay := &fakeProvider{gateway: domain.GatewayRazorpay, order: GatewayOrder{GatewayOrderID: "order_rzp"}}
	cashfree := &fakeProvider{gateway: domain.GatewayCashfree}

	mgr, err := NewManager([]Provider{razorpay, cashfree})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	order, err := mgr.CreateOrder(ctx, "", GatewayOrderRequest{Amount: 1000})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.GatewayOrderID != "order_rzp" {
		t.Fatalf("expected razorpay order, got %+v", order)
	}
}

func TestManagerRejectsUnknownGateway(t *testing.T) {
	mgr, err := NewManager([]Provider{&fakeProvider{gateway: domain.GatewayRazorpay}})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	_, err = mgr.CreateOrder(context.Background(), "paypal", GatewayOrderRequest{Amount: 1000})
	if !errors.Is(err, ErrUnsupportedGateway) {
		t.Fatalf("error = %v, want ErrUnsupportedGateway", err)
	}
}

func TestManagerHandleWebhookRejectsBeforeParsing(t *testing.T) {
	provider := &fakeProvider{
		gateway:   domain.GatewayRazorpay,
		verifyErr: ErrSignatureMismatch,
		event:     WebhookEvent{EventType: EventPaymentCaptured, Known: true},
	}
	mgr, err := NewManager([]Provider{provider})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	_, err = mgr.HandleWebhook(context.Background(), domain.GatewayRazorpay, []byte(`{}`), "bad")
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("error = %v, want ErrSignatureMismatch", err)
	}
	if provider.lastOp != "verify_webhook" {
		t.Fatalf("payload parsed despite signature mismatch, last op %q", provider.lastOp)
	}
}

func TestManagerHandleWebhookStampsGateway(t *testing.T) {
	provider := &fakeProvider{
		gateway: domain.GatewayCashfree,
		event:   WebhookEvent{EventType: EventPaymentFailed, GatewayOrderID: "order_cf", Known: true},
	}
	mgr, err := NewManager([]Provider{provider})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	event, err := mgr.HandleWebhook(context.Background(), domain.GatewayCashfree, []byte(`{}`), "sig")
	if err != nil {
		t.Fatalf("handle webhook: %v", err)
	}
	if event.Gateway != domain.GatewayCashfree || !event.Known {
		t.Fatalf("unexpected event: %+v", event)
	}
}
