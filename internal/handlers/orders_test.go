package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/orchidcart/api/internal/domain"
	"github.com/orchidcart/api/internal/platform/auth"
	"github.com/orchidcart/api/internal/services"
)

type stubOrderService struct {
	createFn        func(context.Context, services.CreateOrderCommand) (services.Order, error)
	getFn           func(context.Context, services.GetOrderQuery) (services.Order, error)
	listFn          func(context.Context, services.OrderListFilter) (domain.CursorPage[services.Order], error)
	updateStatusFn  func(context.Context, services.UpdateOrderStatusCommand) (services.Order, error)
	cancelFn        func(context.Context, services.CancelOrderCommand) (services.Order, error)
	decideFn        func(context.Context, services.CancellationDecisionCommand) (services.Order, error)
	refundFn        func(context.Context, services.ProcessRefundCommand) (services.Order, error)
	codFn           func(context.Context, services.ConfirmCODReceiptCommand) (services.Order, error)
	trackFn         func(context.Context, services.TrackOrderQuery) (services.TrackedOrder, error)
	applyFn         func(context.Context, services.GatewayPaymentCommand) (services.Order, error)
	paymentStatusFn func(context.Context, services.PaymentStatusQuery) (services.PaymentStatusResult, error)
	reconcileFn     func(context.Context, services.ReconcileRevenueCommand) (services.ReconcileRevenueResult, error)
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) GetOrder(ctx context.Context, query services.GetOrderQuery) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, query)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[services.Order]{}, nil
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
	if s.updateStatusFn != nil {
		return s.updateStatusFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Cancel(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) DecideCancellation(ctx context.Context, cmd services.CancellationDecisionCommand) (services.Order, error) {
	if s.decideFn != nil {
		return s.decideFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) ProcessRefund(ctx context.Context, cmd services.ProcessRefundCommand) (services.Order, error) {
	if s.refundFn != nil {
		return s.refundFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) ConfirmCODReceipt(ctx context.Context, cmd services.ConfirmCODReceiptCommand) (services.Order, error) {
	if s.codFn != nil {
		return s.codFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Track(ctx context.Context, query services.TrackOrderQuery) (services.TrackedOrder, error) {
	if s.trackFn != nil {
		return s.trackFn(ctx, query)
	}
	return services.TrackedOrder{}, errors.New("not implemented")
}

func (s *stubOrderService) ApplyGatewayPayment(ctx context.Context, cmd services.GatewayPaymentCommand) (services.Order, error) {
	if s.applyFn != nil {
		return s.applyFn(ctx, cmd)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) PaymentStatus(ctx context.Context, query services.PaymentStatusQuery) (services.PaymentStatusResult, error) {
	if s.paymentStatusFn != nil {
		return s.paymentStatusFn(ctx, query)
	}
	return services.PaymentStatusResult{}, errors.New("not implemented")
}

func (s *stubOrderService) ReconcileRevenue(ctx context.Context, cmd services.ReconcileRevenueCommand) (services.ReconcileRevenueResult, error) {
	if s.reconcileFn != nil {
		return s.reconcileFn(ctx, cmd)
	}
	return services.ReconcileRevenueResult{}, errors.New("not implemented")
}

var _ services.OrderService = (*stubOrderService)(nil)

func decodeEnvelope(t *testing.T, body []byte, data any) apiResponse {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("failed to parse envelope: %v", err)
	}
	if data != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("failed to parse envelope data: %v", err)
		}
	}
	return apiResponse{Success: raw.Success, Message: raw.Message}
}

func newOrderRouter(service services.OrderService) chi.Router {
	handler := NewOrderHandlers(nil, service)
	router := chi.NewRouter()
	router.Route("/orders", handler.Routes)
	return router
}

func authedRequest(method, target, body string, uid string, roles ...string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: uid, Roles: roles}))
}

func TestOrderHandlersCreateOrder(t *testing.T) {
	now := time.Date(2025, 6, 10, 19, 0, 0, 0, time.UTC)
	var captured services.CreateOrderCommand
	service := &stubOrderService{
		createFn: func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			captured = cmd
			return services.Order{
				ID:            "ord_1",
				OrderNumber:   "OC-2025-000001",
				UserID:        cmd.UserID,
				Status:        domain.OrderStatusPending,
				PaymentMethod: domain.PaymentMethodCOD,
				PaymentStatus: domain.PaymentStatusPending,
				Totals:        domain.OrderTotals{ItemsPrice: 2800, ShippingPrice: 100, TotalPrice: 2900},
				TrackingHistory: []domain.TrackingEvent{
					{Status: "Order Placed", Completed: true, Date: &now},
				},
				CreatedAt: now,
			}, nil
		},
	}

	body := `{
		"orderItems":[{"productId":"prod-1","name":"Orchid Pot","quantity":2,"unitPrice":1400,"selectedPrice":1400}],
		"shippingAddress":{"type":"home","name":"Asha","phone":"9876543210","address":"12 Lake Rd","city":"Pune","state":"MH","pincode":"411001"},
		"paymentMethod":"cod",
		"itemsPrice":2800,"shippingPrice":100,"discountPrice":0,"totalPrice":2900,
		"clearCart":true
	}`
	router := newOrderRouter(service)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/orders/", body, "user-1"))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if captured.UserID != "user-1" {
		t.Fatalf("expected command user user-1, got %s", captured.UserID)
	}
	if len(captured.Items) != 1 || captured.Items[0].ProductID != "prod-1" || captured.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items %#v", captured.Items)
	}
	if captured.PaymentMethod != "cod" {
		t.Fatalf("expected payment method cod, got %s", captured.PaymentMethod)
	}
	if !captured.ClearCart {
		t.Fatalf("expected clearCart true")
	}
	if captured.Totals.TotalPrice != 2900 {
		t.Fatalf("expected total 2900, got %d", captured.Totals.TotalPrice)
	}

	var payload orderPayload
	envelope := decodeEnvelope(t, rr.Body.Bytes(), &payload)
	if !envelope.Success {
		t.Fatalf("expected success envelope, got %q", envelope.Message)
	}
	if payload.OrderNumber != "OC-2025-000001" {
		t.Fatalf("unexpected order number %s", payload.OrderNumber)
	}
	if payload.OrderStatus != string(domain.OrderStatusPending) {
		t.Fatalf("unexpected order status %s", payload.OrderStatus)
	}
}

func TestOrderHandlersCreateOrderInvalidJSON(t *testing.T) {
	var called bool
	service := &stubOrderService{
		createFn: func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			called = true
			return services.Order{}, nil
		},
	}

	router := newOrderRouter(service)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/orders/", `{"orderItems":`, "user-1"))

	if called {
		t.Fatalf("expected to reject before calling service")
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersCreateOrderInsufficientStock(t *testing.T) {
	service := &stubOrderService{
		createFn: func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderInsufficientStock
		},
	}

	body := `{"orderItems":[{"productId":"prod-1","quantity":5}],"paymentMethod":"cod"}`
	router := newOrderRouter(service)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/orders/", body, "user-1"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	envelope := decodeEnvelope(t, rr.Body.Bytes(), nil)
	if envelope.Success {
		t.Fatalf("expected failure envelope")
	}
}

func TestOrderHandlersListOrders(t *testing.T) {
	now := time.Date(2025, 6, 10, 19, 0, 0, 0, time.UTC)
	var captured services.OrderListFilter
	service := &stubOrderService{
		listFn: func(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
			captured = filter
			return domain.CursorPage[services.Order]{
				Items: []services.Order{
					{
						ID:            "ord_1",
						OrderNumber:   "OC-2025-000001",
						Status:        domain.OrderStatusConfirmed,
						PaymentMethod: domain.PaymentMethodOnline,
						PaymentStatus: domain.PaymentStatusCompleted,
						Totals:        domain.OrderTotals{TotalPrice: 2900},
						CreatedAt:     now,
					},
				},
				NextPageToken: "tok-next",
			}, nil
		},
	}

	router := newOrderRouter(service)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/orders/?status=confirmed,delivered&pageSize=10&pageToken=tok123", "", "user-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.UserID != "user-1" {
		t.Fatalf("expected list scoped to user-1, got %s", captured.UserID)
	}
	if len(captured.Status) != 2 {
		t.Fatalf("expected 2 status filters, got %d", len(captured.Status))
	}
	if captured.Pagination.PageSize != 10 || captured.Pagination.PageToken != "tok123" {
		t.Fatalf("unexpected pagination %#v", captured.Pagination)
	}

	var payload orderListPayload
	decodeEnvelope(t, rr.Body.Bytes(), &payload)
	if len(payload.Orders) != 1 || payload.Orders[0].OrderNumber != "OC-2025-000001" {
		t.Fatalf("unexpected orders payload %#v", payload.Orders)
	}
	if payload.NextPageToken != "tok-next" {
		t.Fatalf("expected next page token tok-next, got %s", payload.NextPageToken)
	}
}

func TestOrderHandlersListOrdersUnauthenticated(t *testing.T) {
	router := newOrderRouter(&stubOrderService{})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/orders/", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestOrderHandlersGetOrderForbidden(t *testing.T) {
	service := &stubOrderService{
		getFn: func(ctx context.Context, query services.GetOrderQuery) (services.Order, error) {
			if query.RequesterID != "user-1" || query.AdminAccess {
				t.Fatalf("unexpected query %#v", query)
			}
			return services.Order{}, services.ErrOrderForbidden
		},
	}

	router := newOrderRouter(service)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/orders/ord_9", "", "user-1"))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}

func TestOrderHandlersGetOrderNotFound(t *testing.T) {
	service := &stubOrderService{
		getFn: func(ctx context.Context, query services.GetOrderQuery) (services.Order, error) {
			return services.Order{}, services.ErrOrderNotFound
		},
	}

	router := newOrderRouter(service)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/orders/ord_missing", "", "user-1"))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestOrderHandlersGetOrderAdminAccess(t *testing.T) {
	service := &stubOrderService{
		getFn: func(ctx context.Context, query services.GetOrderQuery) (services.Order, error) {
			if !query.AdminAccess {
				t.Fatalf("expected admin access for admin identity")
			}
			return services.Order{ID: query.OrderID, UserID: "someone-else"}, nil
		},
	}

	router := newOrderRouter(service)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/orders/ord_2", "", "admin-1", auth.RoleAdmin))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestOrderHandlersCancelOrder(t *testing.T) {
	var captured services.CancelOrderCommand
	service := &stubOrderService{
		cancelFn: func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
			captured = cmd
			return services.Order{
				ID:           cmd.OrderID,
				UserID:       cmd.RequesterID,
				Status:       domain.OrderStatusPending,
				Cancellation: domain.Cancellation{Status: domain.CancellationRequested, Reason: cmd.Reason},
			}, nil
		},
	}

	router := newOrderRouter(service)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/orders/ord_1/cancel", `{"reason":"changed mind"}`, "user-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if captured.OrderID != "ord_1" || captured.RequesterID != "user-1" || captured.Reason != "changed mind" {
		t.Fatalf("unexpected command %#v", captured)
	}

	var payload orderPayload
	decodeEnvelope(t, rr.Body.Bytes(), &payload)
	if payload.CancellationStatus != string(domain.CancellationRequested) {
		t.Fatalf("expected cancellation requested, got %s", payload.CancellationStatus)
	}
}

func TestOrderHandlersCancelShippedOrderRejected(t *testing.T) {
	service := &stubOrderService{
		cancelFn: func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
			return services.Order{}, services.ErrOrderInvalidState
		},
	}

	router := newOrderRouter(service)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/orders/ord_1/cancel", `{"reason":"late"}`, "user-1"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestOrderHandlersCancelAllowsEmptyBody(t *testing.T) {
	service := &stubOrderService{
		cancelFn: func(ctx context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
			if cmd.Reason != "" {
				t.Fatalf("expected empty reason, got %q", cmd.Reason)
			}
			return services.Order{ID: cmd.OrderID, UserID: cmd.RequesterID}, nil
		},
	}

	router := newOrderRouter(service)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/orders/ord_1/cancel", "", "user-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestOrderHandlersPaymentStatus(t *testing.T) {
	service := &stubOrderService{
		paymentStatusFn: func(ctx context.Context, query services.PaymentStatusQuery) (services.PaymentStatusResult, error) {
			if query.GatewayOrderID != "order_rzp_1" {
				t.Fatalf("unexpected gateway order id %s", query.GatewayOrderID)
			}
			return services.PaymentStatusResult{
				OrderID:       "ord_1",
				PaymentID:     "pay_1",
				PaymentStatus: domain.PaymentStatusCompleted,
				OrderStatus:   domain.OrderStatusConfirmed,
			}, nil
		},
	}

	router := newOrderRouter(service)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/orders/payment-status/order_rzp_1", "", "user-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var payload paymentStatusPayload
	decodeEnvelope(t, rr.Body.Bytes(), &payload)
	if payload.PaymentStatus != string(domain.PaymentStatusCompleted) {
		t.Fatalf("expected payment status completed, got %s", payload.PaymentStatus)
	}
	if payload.OrderStatus != string(domain.OrderStatusConfirmed) {
		t.Fatalf("expected order status confirmed, got %s", payload.OrderStatus)
	}
}

func TestOrderHandlersPaymentStatusForbidden(t *testing.T) {
	service := &stubOrderService{
		paymentStatusFn: func(ctx context.Context, query services.PaymentStatusQuery) (services.PaymentStatusResult, error) {
			return services.PaymentStatusResult{}, services.ErrOrderForbidden
		},
	}

	router := newOrderRouter(service)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodGet, "/orders/payment-status/order_rzp_1", "", "user-2"))

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rr.Code)
	}
}
