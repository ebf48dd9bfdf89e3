package payments

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/orchidcart/api/internal/domain"
	"github.com/orchidcart/api/internal/platform/textutil"
)

// Status enumerates the normalised payment states shared across gateways.
type Status string

const (
	// StatusPending indicates the payment is awaiting customer action or gateway confirmation.
	StatusPending Status = "pending"
	// StatusCaptured indicates the gateway reports the payment as successfully captured.
	StatusCaptured Status = "captured"
	// StatusFailed indicates the gateway reports a failure and no further action is possible.
	StatusFailed Status = "failed"
	// StatusRefunded indicates the payment has been refunded.
	StatusRefunded Status = "refunded"
)

var (
	// ErrUnsupportedGateway is returned when the manager cannot locate a provider.
	ErrUnsupportedGateway = errors.New("payments: unsupported gateway")
	// ErrSignatureMismatch is returned when a supplied signature does not match
	// the recomputed HMAC. Verification always fails closed.
	ErrSignatureMismatch = errors.New("payments: signature mismatch")
	// ErrInvalidPayload is returned for webhook bodies that cannot be decoded.
	ErrInvalidPayload = errors.New("payments: invalid payload")
)

// Webhook event names shared by both gateways after normalisation.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

// GatewayOrderRequest captures the payload required to open a gateway-side order.
// Amount is in the smallest currency unit.
type GatewayOrderRequest struct {
	Amount   int64
	Currency string
	Receipt  string
	Notes    map[string]string
}

// GatewayOrder is the gateway-side order returned to the client for checkout.
type GatewayOrder struct {
	Gateway          domain.PaymentGateway
	GatewayOrderID   string
	Amount           int64
	Currency         string
	PaymentSessionID string
	Raw              map[string]any
}

// VerifyRequest carries the client-supplied callback triple for verification.
type VerifyRequest struct {
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

// PaymentDetails normalises gateway specific payment fields for storage.
type PaymentDetails struct {
	Gateway        domain.PaymentGateway
	GatewayOrderID string
	PaymentID      string
	Status         Status
	Amount         int64
	Currency       string
	Method         string
	Raw            map[string]any
}

// WebhookEvent is the normalised shape of a verified gateway webhook delivery.
// Known reports whether the event type maps to a payment transition; unknown
// events are acknowledged and ignored.
type WebhookEvent struct {
	Gateway        domain.PaymentGateway
	EventType      string
	GatewayOrderID string
	PaymentID      string
	Known          bool
}

// Provider defines the contract one payment gateway adapter implements.
type Provider interface {
	Gateway() domain.PaymentGateway
	CreateOrder(ctx context.Context, req GatewayOrderRequest) (GatewayOrder, error)
	// VerifyPayment recomputes the callback HMAC and, on match, fetches the
	// authoritative payment record from the gateway.
	VerifyPayment(ctx context.Context, req VerifyRequest) (PaymentDetails, error)
	// VerifyWebhookSignature checks the raw-body HMAC. A mismatch is a hard
	// rejection regardless of payload content.
	VerifyWebhookSignature(body []byte, signature string) error
	ParseWebhook(body []byte) (WebhookEvent, error)
	LookupPayment(ctx context.Context, paymentID string) (PaymentDetails, error)
}

// Manager coordinates provider selection by gateway discriminator.
type Manager struct {
	providers      map[domain.PaymentGateway]Provider
	defaultGateway domain.PaymentGateway
}

// ManagerOption configures optional behaviour when building a Manager.
type ManagerOption func(*Manager)

// WithDefaultGateway overrides the gateway used when a request names none.
func WithDefaultGateway(gateway domain.PaymentGateway) ManagerOption {
	return func(m *Manager) {
		m.defaultGateway = gateway
	}
}

// NewManager constructs a Manager over the supplied providers.
func NewManager(providers []Provider, opts ...ManagerOption) (*Manager, error) {
	if len(providers) == 0 {
		return nil, errors.New("payments: at least one provider is required")
	}
	byGateway := make(map[domain.PaymentGateway]Provider, len(providers))
	for _, p := range providers {
		if p == nil {
			return nil, errors.New("payments: nil provider registration")
		}
		key := domain.PaymentGateway(textutil.FoldName(string(p.Gateway())))
		if key == "" {
			return nil, errors.New("payments: provider with empty gateway name")
		}
		if _, exists := byGateway[key]; exists {
			return nil, fmt.Errorf("payments: duplicate provider registration for %q", key)
		}
		byGateway[key] = p
	}
	m := &Manager{providers: byGateway}
	if _, ok := byGateway[domain.GatewayRazorpay]; ok {
		m.defaultGateway = domain.GatewayRazorpay
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Resolve returns the provider registered for the gateway, falling back to the
// default when the gateway is empty.
func (m *Manager) Resolve(gateway domain.PaymentGateway) (Provider, error) {
	if m == nil || len(m.providers) == 0 {
		return nil, errors.New("payments: no providers registered")
	}
	key := domain.PaymentGateway(textutil.FoldName(string(gateway)))
	if key == "" {
		key = m.defaultGateway
	}
	if key == "" && len(m.providers) == 1 {
		for _, p := range m.providers {
			return p, nil
		}
	}
	if p, ok := m.providers[key]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedGateway, gateway)
}

// CreateOrder delegates to the resolved provider.
func (m *Manager) CreateOrder(ctx context.Context, gateway domain.PaymentGateway, req GatewayOrderRequest) (GatewayOrder, error) {
	provider, err := m.Resolve(gateway)
	if err != nil {
		return GatewayOrder{}, err
	}
	order, err := provider.CreateOrder(ctx, req)
	if err != nil {
		return GatewayOrder{}, err
	}
	order.Gateway = provider.Gateway()
	return order, nil
}

// VerifyPayment delegates to the resolved provider.
func (m *Manager) VerifyPayment(ctx context.Context, gateway domain.PaymentGateway, req VerifyRequest) (PaymentDetails, error) {
	provider, err := m.Resolve(gateway)
	if err != nil {
		return PaymentDetails{}, err
	}
	return provider.VerifyPayment(ctx, req)
}

// HandleWebhook verifies the raw-body signature and normalises the payload.
// Verification failures reject the delivery; unrecognised event types come
// back with Known=false so the transport can acknowledge without acting.
func (m *Manager) HandleWebhook(ctx context.Context, gateway domain.PaymentGateway, body []byte, signature string) (WebhookEvent, error) {
	provider, err := m.Resolve(gateway)
	if err != nil {
		return WebhookEvent{}, err
	}
	if err := provider.VerifyWebhookSignature(body, signature); err != nil {
		return WebhookEvent{}, err
	}
	event, err := provider.ParseWebhook(body)
	if err != nil {
		return WebhookEvent{}, err
	}
	event.Gateway = provider.Gateway()
	return event, nil
}

// LookupPayment delegates to the resolved provider.
func (m *Manager) LookupPayment(ctx context.Context, gateway domain.PaymentGateway, paymentID string) (PaymentDetails, error) {
	provider, err := m.Resolve(gateway)
	if err != nil {
		return PaymentDetails{}, err
	}
	return provider.LookupPayment(ctx, paymentID)
}
