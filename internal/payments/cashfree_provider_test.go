package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	domain "github.com/orchidcart/api/internal/domain"
)

func newCashfreeProvider(t *testing.T, handler http.Handler) *CashfreeProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewCashfreeProvider(CashfreeProviderConfig{
		ClientID:      "client-id",
		ClientSecret:  "client-secret",
		WebhookSecret: "hook-secret",
		BaseURL:       server.URL,
	})
	if err != nil {
		t.Fatalf("NewCashfreeProvider: %v", err)
	}
	return provider
}

func TestCashfreeCreateOrderConvertsToMajorUnits(t *testing.T) {
	var captured cashfreeOrderRequest
	provider := newCashfreeProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("x-client-id") != "client-id" || r.Header.Get("x-client-secret") != "client-secret" {
			t.Fatalf("credentials missing: %v", r.Header)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(cashfreeOrderResponse{
			CFOrderID:        "991",
			OrderID:          captured.OrderID,
			OrderAmount:      captured.OrderAmount,
			OrderCurrency:    captured.OrderCurrency,
			PaymentSessionID: "session_abc",
		})
	}))

	order, err := provider.CreateOrder(context.Background(), GatewayOrderRequest{
		Amount:   305000,
		Currency: "INR",
		Receipt:  "OC-2025-000002",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}

	if captured.OrderAmount != 3050 {
		t.Fatalf("amount = %v, want 3050 major units", captured.OrderAmount)
	}
	if order.GatewayOrderID != "OC-2025-000002" || order.PaymentSessionID != "session_abc" {
		t.Fatalf("unexpected order: %+v", order)
	}
	if order.Gateway != domain.GatewayCashfree {
		t.Fatalf("gateway = %q", order.Gateway)
	}
}

func TestCashfreeCreateOrderSurfacesGatewayError(t *testing.T) {
	provider := newCashfreeProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"authentication failed"}`))
	}))

	_, err := provider.CreateOrder(context.Background(), GatewayOrderRequest{Amount: 1000})
	if err == nil {
		t.Fatal("expected error for gateway rejection")
	}
}

func TestCashfreeLookupPaymentPrefersCapturedAttempt(t *testing.T) {
	provider := newCashfreeProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orders/order_cf/payments" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`[
			{"cf_payment_id": 12, "order_id": "order_cf", "payment_status": "FAILED", "payment_amount": 3050, "payment_currency": "INR", "payment_group": "upi"},
			{"cf_payment_id": 11, "order_id": "order_cf", "payment_status": "SUCCESS", "payment_amount": 3050, "payment_currency": "INR", "payment_group": "upi"}
		]`))
	}))

	details, err := provider.LookupPayment(context.Background(), "order_cf")
	if err != nil {
		t.Fatalf("LookupPayment: %v", err)
	}
	if details.Status != StatusCaptured || details.PaymentID != "11" {
		t.Fatalf("unexpected details: %+v", details)
	}
	if details.Amount != 305000 {
		t.Fatalf("amount = %d, want minor units", details.Amount)
	}
}

func TestCashfreeLookupPaymentNoAttemptsIsPending(t *testing.T) {
	provider := newCashfreeProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))

	details, err := provider.LookupPayment(context.Background(), "order_cf")
	if err != nil {
		t.Fatalf("LookupPayment: %v", err)
	}
	if details.Status != StatusPending {
		t.Fatalf("status = %q, want pending", details.Status)
	}
}

func TestCashfreeVerifyPaymentFailsClosed(t *testing.T) {
	requests := 0
	provider := newCashfreeProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))

	_, err := provider.VerifyPayment(context.Background(), VerifyRequest{
		GatewayOrderID: "order_cf",
		PaymentID:      "11",
		Signature:      "bad",
	})
	if !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("error = %v, want ErrSignatureMismatch", err)
	}
	if requests != 0 {
		t.Fatal("gateway contacted despite signature mismatch")
	}
}

func TestCashfreeParseWebhookNormalisesEvents(t *testing.T) {
	provider := newCashfreeProvider(t, http.NewServeMux())

	success := []byte(`{"type":"PAYMENT_SUCCESS_WEBHOOK","data":{"order":{"order_id":"order_cf"},"payment":{"cf_payment_id":11,"payment_status":"SUCCESS"}}}`)
	event, err := provider.ParseWebhook(success)
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if event.EventType != EventPaymentCaptured || !event.Known || event.GatewayOrderID != "order_cf" {
		t.Fatalf("unexpected event: %+v", event)
	}

	failed := []byte(`{"type":"PAYMENT_FAILED_WEBHOOK","data":{"order":{"order_id":"order_cf"},"payment":{"cf_payment_id":12,"payment_status":"FAILED"}}}`)
	event, err = provider.ParseWebhook(failed)
	if err != nil {
		t.Fatalf("ParseWebhook failed event: %v", err)
	}
	if event.EventType != EventPaymentFailed || !event.Known {
		t.Fatalf("unexpected event: %+v", event)
	}

	unknown, err := provider.ParseWebhook([]byte(`{"type":"REFUND_STATUS_WEBHOOK","data":{}}`))
	if err != nil {
		t.Fatalf("ParseWebhook unknown: %v", err)
	}
	if unknown.Known {
		t.Fatalf("unknown event marked known: %+v", unknown)
	}
}
