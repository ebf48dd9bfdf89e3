package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/orchidcart/api/internal/domain"
	"github.com/orchidcart/api/internal/payments"
	"github.com/orchidcart/api/internal/services"
)

type stubProvider struct {
	gateway         domain.PaymentGateway
	createOrderFn   func(context.Context, payments.GatewayOrderRequest) (payments.GatewayOrder, error)
	verifyPaymentFn func(context.Context, payments.VerifyRequest) (payments.PaymentDetails, error)
	verifySigFn     func([]byte, string) error
	parseWebhookFn  func([]byte) (payments.WebhookEvent, error)
	lookupFn        func(context.Context, string) (payments.PaymentDetails, error)
}

func (p *stubProvider) Gateway() domain.PaymentGateway {
	return p.gateway
}

func (p *stubProvider) CreateOrder(ctx context.Context, req payments.GatewayOrderRequest) (payments.GatewayOrder, error) {
	if p.createOrderFn != nil {
		return p.createOrderFn(ctx, req)
	}
	return payments.GatewayOrder{}, payments.ErrInvalidPayload
}

func (p *stubProvider) VerifyPayment(ctx context.Context, req payments.VerifyRequest) (payments.PaymentDetails, error) {
	if p.verifyPaymentFn != nil {
		return p.verifyPaymentFn(ctx, req)
	}
	return payments.PaymentDetails{}, payments.ErrSignatureMismatch
}

func (p *stubProvider) VerifyWebhookSignature(body []byte, signature string) error {
	if p.verifySigFn != nil {
		return p.verifySigFn(body, signature)
	}
	return payments.ErrSignatureMismatch
}

func (p *stubProvider) ParseWebhook(body []byte) (payments.WebhookEvent, error) {
	if p.parseWebhookFn != nil {
		return p.parseWebhookFn(body)
	}
	return payments.WebhookEvent{}, payments.ErrInvalidPayload
}

func (p *stubProvider) LookupPayment(ctx context.Context, paymentID string) (payments.PaymentDetails, error) {
	if p.lookupFn != nil {
		return p.lookupFn(ctx, paymentID)
	}
	return payments.PaymentDetails{}, payments.ErrInvalidPayload
}

var _ payments.Provider = (*stubProvider)(nil)

func newPaymentManager(t *testing.T, providers ...payments.Provider) *payments.Manager {
	t.Helper()
	manager, err := payments.NewManager(providers)
	if err != nil {
		t.Fatalf("failed to build manager: %v", err)
	}
	return manager
}

func newPaymentRouter(manager *payments.Manager, orders services.OrderService) chi.Router {
	handler := NewPaymentHandlers(nil, manager, orders)
	router := chi.NewRouter()
	router.Route("/payments", handler.Routes)
	return router
}

func TestPaymentHandlersCreateGatewayOrder(t *testing.T) {
	var captured payments.GatewayOrderRequest
	provider := &stubProvider{
		gateway: domain.GatewayRazorpay,
		createOrderFn: func(ctx context.Context, req payments.GatewayOrderRequest) (payments.GatewayOrder, error) {
			captured = req
			return payments.GatewayOrder{
				GatewayOrderID: "order_rzp_1",
				Amount:         req.Amount,
				Currency:       req.Currency,
			}, nil
		},
	}

	router := newPaymentRouter(newPaymentManager(t, provider), &stubOrderService{})
	rr := httptest.NewRecorder()
	body := `{"gateway":"razorpay","amount":2900,"currency":"INR","receipt":"OC-2025-000001"}`
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/payments/orders", body, "user-1"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Amount != 2900 || captured.Currency != "INR" {
		t.Fatalf("unexpected gateway request %#v", captured)
	}
	if captured.Notes["userId"] != "user-1" {
		t.Fatalf("expected requester stamped in notes, got %#v", captured.Notes)
	}

	var payload gatewayOrderPayload
	decodeEnvelope(t, rr.Body.Bytes(), &payload)
	if payload.OrderID != "order_rzp_1" || payload.Gateway != "razorpay" {
		t.Fatalf("unexpected payload %#v", payload)
	}
}

func TestPaymentHandlersCreateGatewayOrderRejectsZeroAmount(t *testing.T) {
	router := newPaymentRouter(newPaymentManager(t, &stubProvider{gateway: domain.GatewayRazorpay}), &stubOrderService{})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/payments/orders", `{"gateway":"razorpay","amount":0}`, "user-1"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestPaymentHandlersCreateGatewayOrderUnknownGateway(t *testing.T) {
	router := newPaymentRouter(newPaymentManager(t, &stubProvider{gateway: domain.GatewayRazorpay}), &stubOrderService{})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/payments/orders", `{"gateway":"paypal","amount":500}`, "user-1"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestPaymentHandlersVerifyCapturedPayment(t *testing.T) {
	provider := &stubProvider{
		gateway: domain.GatewayRazorpay,
		verifyPaymentFn: func(ctx context.Context, req payments.VerifyRequest) (payments.PaymentDetails, error) {
			if req.GatewayOrderID != "order_rzp_1" || req.PaymentID != "pay_1" {
				t.Fatalf("unexpected verify request %#v", req)
			}
			return payments.PaymentDetails{
				Gateway:        domain.GatewayRazorpay,
				GatewayOrderID: req.GatewayOrderID,
				PaymentID:      req.PaymentID,
				Status:         payments.StatusCaptured,
			}, nil
		},
	}
	var captured services.GatewayPaymentCommand
	orders := &stubOrderService{
		applyFn: func(ctx context.Context, cmd services.GatewayPaymentCommand) (services.Order, error) {
			captured = cmd
			return services.Order{
				ID:            "ord_1",
				Status:        domain.OrderStatusConfirmed,
				PaymentStatus: domain.PaymentStatusCompleted,
			}, nil
		},
	}

	router := newPaymentRouter(newPaymentManager(t, provider), orders)
	rr := httptest.NewRecorder()
	body := `{"gateway":"razorpay","orderId":"order_rzp_1","paymentId":"pay_1","signature":"sig"}`
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/payments/verify", body, "user-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !captured.Succeeded {
		t.Fatalf("expected succeeded transition, got %#v", captured)
	}
	if captured.EventType != payments.EventPaymentCaptured {
		t.Fatalf("unexpected event type %q", captured.EventType)
	}

	var payload orderPayload
	decodeEnvelope(t, rr.Body.Bytes(), &payload)
	if payload.PaymentStatus != string(domain.PaymentStatusCompleted) {
		t.Fatalf("expected completed payment, got %s", payload.PaymentStatus)
	}
}

func TestPaymentHandlersVerifySignatureMismatch(t *testing.T) {
	provider := &stubProvider{
		gateway: domain.GatewayRazorpay,
		verifyPaymentFn: func(ctx context.Context, req payments.VerifyRequest) (payments.PaymentDetails, error) {
			return payments.PaymentDetails{}, payments.ErrSignatureMismatch
		},
	}
	var applied bool
	orders := &stubOrderService{
		applyFn: func(ctx context.Context, cmd services.GatewayPaymentCommand) (services.Order, error) {
			applied = true
			return services.Order{}, nil
		},
	}

	router := newPaymentRouter(newPaymentManager(t, provider), orders)
	rr := httptest.NewRecorder()
	body := `{"gateway":"razorpay","orderId":"order_rzp_1","paymentId":"pay_1","signature":"tampered"}`
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/payments/verify", body, "user-1"))

	if applied {
		t.Fatalf("expected no order transition on signature mismatch")
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	envelope := decodeEnvelope(t, rr.Body.Bytes(), nil)
	if envelope.Success {
		t.Fatalf("expected failure envelope")
	}
}

func TestPaymentHandlersVerifyPendingPaymentLeavesOrderAlone(t *testing.T) {
	provider := &stubProvider{
		gateway: domain.GatewayCashfree,
		verifyPaymentFn: func(ctx context.Context, req payments.VerifyRequest) (payments.PaymentDetails, error) {
			return payments.PaymentDetails{
				Gateway:        domain.GatewayCashfree,
				GatewayOrderID: req.GatewayOrderID,
				PaymentID:      req.PaymentID,
				Status:         payments.StatusPending,
			}, nil
		},
	}
	var applied bool
	orders := &stubOrderService{
		applyFn: func(ctx context.Context, cmd services.GatewayPaymentCommand) (services.Order, error) {
			applied = true
			return services.Order{}, nil
		},
	}

	router := newPaymentRouter(newPaymentManager(t, provider), orders)
	rr := httptest.NewRecorder()
	body := `{"gateway":"cashfree","orderId":"order_cf_1","paymentId":"pay_cf_1"}`
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/payments/verify", body, "user-1"))

	if applied {
		t.Fatalf("expected no order transition for pending payment")
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var payload paymentStatusPayload
	decodeEnvelope(t, rr.Body.Bytes(), &payload)
	if payload.PaymentStatus != string(payments.StatusPending) {
		t.Fatalf("expected pending payment status, got %s", payload.PaymentStatus)
	}
}

func TestPaymentHandlersVerifyFailedPayment(t *testing.T) {
	provider := &stubProvider{
		gateway: domain.GatewayRazorpay,
		verifyPaymentFn: func(ctx context.Context, req payments.VerifyRequest) (payments.PaymentDetails, error) {
			return payments.PaymentDetails{
				Gateway:        domain.GatewayRazorpay,
				GatewayOrderID: req.GatewayOrderID,
				PaymentID:      req.PaymentID,
				Status:         payments.StatusFailed,
			}, nil
		},
	}
	var captured services.GatewayPaymentCommand
	orders := &stubOrderService{
		applyFn: func(ctx context.Context, cmd services.GatewayPaymentCommand) (services.Order, error) {
			captured = cmd
			return services.Order{ID: "ord_1", PaymentStatus: domain.PaymentStatusFailed}, nil
		},
	}

	router := newPaymentRouter(newPaymentManager(t, provider), orders)
	rr := httptest.NewRecorder()
	body := `{"gateway":"razorpay","orderId":"order_rzp_1","paymentId":"pay_1","signature":"sig"}`
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/payments/verify", body, "user-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.Succeeded {
		t.Fatalf("expected failed transition, got %#v", captured)
	}
	if captured.EventType != payments.EventPaymentFailed {
		t.Fatalf("unexpected event type %q", captured.EventType)
	}
}
