package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/orchidcart/api/internal/domain"
)

// RazorpayLogger defines the logging contract for Razorpay provider operations.
type RazorpayLogger func(ctx context.Context, event string, fields map[string]any)

type razorpayOrderAPI interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type razorpayPaymentAPI interface {
	Fetch(paymentID string, queryParams map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type razorpayClients struct {
	orders   razorpayOrderAPI
	payments razorpayPaymentAPI
}

// RazorpayProviderConfig configures the RazorpayProvider.
type RazorpayProviderConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Logger        RazorpayLogger
	Clock         func() time.Time
	Clients       *razorpayClients
}

// RazorpayProvider implements the Provider interface over the Razorpay APIs.
type RazorpayProvider struct {
	api           razorpayClients
	keySecret     string
	webhookSecret string
	clock         func() time.Time
	logger        RazorpayLogger
}

var _ Provider = (*RazorpayProvider)(nil)

// NewRazorpayProvider constructs a Razorpay Provider using the given configuration.
func NewRazorpayProvider(cfg RazorpayProviderConfig) (*RazorpayProvider, error) {
	keyID := strings.TrimSpace(cfg.KeyID)
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errors.New("razorpay: key secret is required")
	}
	if keyID == "" && cfg.Clients == nil {
		return nil, errors.New("razorpay: key id is required")
	}

	var clients razorpayClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := newRazorpayClient(keyID, keySecret)
		clients = razorpayClients{
			orders:   sc.orders,
			payments: sc.payments,
		}
	}
	if clients.orders == nil || clients.payments == nil {
		return nil, errors.New("razorpay: incomplete client configuration")
	}

	// The webhook endpoint secret falls back to the key secret when unset.
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		webhookSecret = keySecret
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &RazorpayProvider{
		api:           clients,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Gateway names the discriminator stored on orders settled through this provider.
func (p *RazorpayProvider) Gateway() domain.PaymentGateway {
	return domain.GatewayRazorpay
}

// CreateOrder opens a Razorpay order with auto-capture requested.
func (p *RazorpayProvider) CreateOrder(ctx context.Context, req GatewayOrderRequest) (GatewayOrder, error) {
	if p == nil {
		return GatewayOrder{}, errors.New("razorpay: provider is nil")
	}
	if req.Amount <= 0 {
		return GatewayOrder{}, errors.New("razorpay: amount must be positive")
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "INR"
	}
	receipt := strings.TrimSpace(req.Receipt)
	if receipt == "" {
		receipt = fmt.Sprintf("rcpt_%d", p.clock().UnixMilli())
	}

	data := map[string]interface{}{
		"amount":          req.Amount,
		"currency":        currency,
		"receipt":         receipt,
		"payment_capture": 1,
	}
	if len(req.Notes) > 0 {
		notes := make(map[string]interface{}, len(req.Notes))
		for k, v := range req.Notes {
			notes[k] = v
		}
		data["notes"] = notes
	}

	body, err := p.api.orders.Create(data, nil)
	if err != nil {
		return GatewayOrder{}, fmt.Errorf("razorpay: create order: %w", err)
	}

	order := GatewayOrder{
		Gateway:        domain.GatewayRazorpay,
		GatewayOrderID: stringField(body, "id"),
		Amount:         intField(body, "amount"),
		Currency:       stringField(body, "currency"),
		Raw:            body,
	}
	if order.GatewayOrderID == "" {
		return GatewayOrder{}, fmt.Errorf("%w: order id missing from response", ErrInvalidPayload)
	}

	p.logger(ctx, "payments.razorpay.order.created", map[string]any{
		"gateway_order_id": order.GatewayOrderID,
		"amount":           order.Amount,
		"currency":         order.Currency,
	})
	return order, nil
}

// VerifyPayment checks the callback signature and fetches the authoritative
// payment record on success. A signature mismatch never reaches the gateway.
func (p *RazorpayProvider) VerifyPayment(ctx context.Context, req VerifyRequest) (PaymentDetails, error) {
	if p == nil {
		return PaymentDetails{}, errors.New("razorpay: provider is nil")
	}
	if err := verifyCallbackSignature(p.keySecret, req.GatewayOrderID, req.PaymentID, req.Signature); err != nil {
		p.logger(ctx, "payments.razorpay.verify.rejected", map[string]any{
			"gateway_order_id": req.GatewayOrderID,
			"payment_id":       req.PaymentID,
		})
		return PaymentDetails{}, err
	}
	return p.LookupPayment(ctx, req.PaymentID)
}

// VerifyWebhookSignature checks the raw-body HMAC using the webhook secret.
func (p *RazorpayProvider) VerifyWebhookSignature(body []byte, signature string) error {
	if p == nil {
		return errors.New("razorpay: provider is nil")
	}
	return verifyBodySignature(p.webhookSecret, body, signature)
}

type razorpayWebhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// ParseWebhook normalises a verified webhook body. Event types other than
// payment.captured and payment.failed come back with Known=false.
func (p *RazorpayProvider) ParseWebhook(body []byte) (WebhookEvent, error) {
	var envelope razorpayWebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	event := WebhookEvent{
		Gateway:        domain.GatewayRazorpay,
		EventType:      strings.TrimSpace(envelope.Event),
		GatewayOrderID: envelope.Payload.Payment.Entity.OrderID,
		PaymentID:      envelope.Payload.Payment.Entity.ID,
	}
	switch event.EventType {
	case EventPaymentCaptured, EventPaymentFailed:
		event.Known = true
		if event.GatewayOrderID == "" {
			return WebhookEvent{}, fmt.Errorf("%w: order id missing from %s payload", ErrInvalidPayload, event.EventType)
		}
	}
	return event, nil
}

// LookupPayment fetches the authoritative payment record from Razorpay.
func (p *RazorpayProvider) LookupPayment(ctx context.Context, paymentID string) (PaymentDetails, error) {
	if p == nil {
		return PaymentDetails{}, errors.New("razorpay: provider is nil")
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return PaymentDetails{}, errors.New("razorpay: payment id is required")
	}

	body, err := p.api.payments.Fetch(paymentID, nil, nil)
	if err != nil {
		return PaymentDetails{}, fmt.Errorf("razorpay: fetch payment: %w", err)
	}

	details := PaymentDetails{
		Gateway:        domain.GatewayRazorpay,
		GatewayOrderID: stringField(body, "order_id"),
		PaymentID:      stringField(body, "id"),
		Status:         razorpayStatus(stringField(body, "status")),
		Amount:         intField(body, "amount"),
		Currency:       stringField(body, "currency"),
		Method:         stringField(body, "method"),
		Raw:            body,
	}
	if details.PaymentID == "" {
		details.PaymentID = paymentID
	}
	return details, nil
}

func razorpayStatus(status string) Status {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "captured":
		return StatusCaptured
	case "failed":
		return StatusFailed
	case "refunded":
		return StatusRefunded
	default:
		return StatusPending
	}
}

func stringField(payload map[string]interface{}, key string) string {
	if payload == nil {
		return ""
	}
	if value, ok := payload[key].(string); ok {
		return strings.TrimSpace(value)
	}
	return ""
}

func intField(payload map[string]interface{}, key string) int64 {
	if payload == nil {
		return 0
	}
	switch value := payload[key].(type) {
	case float64:
		return int64(value)
	case int64:
		return value
	case int:
		return int64(value)
	case json.Number:
		if parsed, err := value.Int64(); err == nil {
			return parsed
		}
	}
	return 0
}
