package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domain "github.com/orchidcart/api/internal/domain"
)

const (
	cashfreeProductionBaseURL = "https://api.cashfree.com/pg"
	cashfreeAPIVersion        = "2023-08-01"
	cashfreeRequestTimeout    = 15 * time.Second
)

// CashfreeLogger defines the logging contract for Cashfree provider operations.
type CashfreeLogger func(ctx context.Context, event string, fields map[string]any)

// CashfreeProviderConfig configures the CashfreeProvider.
type CashfreeProviderConfig struct {
	ClientID      string
	ClientSecret  string
	WebhookSecret string
	BaseURL       string
	HTTPClient    *http.Client
	Logger        CashfreeLogger
	Clock         func() time.Time
}

// CashfreeProvider implements the Provider interface over the Cashfree PG REST API.
type CashfreeProvider struct {
	clientID      string
	clientSecret  string
	webhookSecret string
	baseURL       string
	httpClient    *http.Client
	clock         func() time.Time
	logger        CashfreeLogger
}

var _ Provider = (*CashfreeProvider)(nil)

// NewCashfreeProvider constructs a Cashfree Provider using the given configuration.
func NewCashfreeProvider(cfg CashfreeProviderConfig) (*CashfreeProvider, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	clientSecret := strings.TrimSpace(cfg.ClientSecret)
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("cashfree: client id and secret are required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = cashfreeProductionBaseURL
	}

	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		webhookSecret = clientSecret
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cashfreeRequestTimeout}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &CashfreeProvider{
		clientID:      clientID,
		clientSecret:  clientSecret,
		webhookSecret: webhookSecret,
		baseURL:       baseURL,
		httpClient:    httpClient,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Gateway names the discriminator stored on orders settled through this provider.
func (p *CashfreeProvider) Gateway() domain.PaymentGateway {
	return domain.GatewayCashfree
}

type cashfreeOrderRequest struct {
	OrderID       string            `json:"order_id"`
	OrderAmount   float64           `json:"order_amount"`
	OrderCurrency string            `json:"order_currency"`
	OrderNote     string            `json:"order_note,omitempty"`
	OrderTags     map[string]string `json:"order_tags,omitempty"`
	CustomerDetails struct {
		CustomerID    string `json:"customer_id"`
		CustomerPhone string `json:"customer_phone"`
	} `json:"customer_details"`
}

type cashfreeOrderResponse struct {
	CFOrderID        json.Number `json:"cf_order_id"`
	OrderID          string      `json:"order_id"`
	OrderAmount      float64     `json:"order_amount"`
	OrderCurrency    string      `json:"order_currency"`
	PaymentSessionID string      `json:"payment_session_id"`
}

// CreateOrder opens a Cashfree order. The request amount is in the smallest
// currency unit and converted to the major-unit decimal Cashfree expects.
func (p *CashfreeProvider) CreateOrder(ctx context.Context, req GatewayOrderRequest) (GatewayOrder, error) {
	if p == nil {
		return GatewayOrder{}, errors.New("cashfree: provider is nil")
	}
	if req.Amount <= 0 {
		return GatewayOrder{}, errors.New("cashfree: amount must be positive")
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "INR"
	}
	receipt := strings.TrimSpace(req.Receipt)
	if receipt == "" {
		receipt = fmt.Sprintf("order_%d", p.clock().UnixMilli())
	}

	payload := cashfreeOrderRequest{
		OrderID:       receipt,
		OrderAmount:   float64(req.Amount) / 100,
		OrderCurrency: currency,
	}
	payload.CustomerDetails.CustomerID = defaultNote(req.Notes, "customer_id", "guest")
	payload.CustomerDetails.CustomerPhone = defaultNote(req.Notes, "customer_phone", "9999999999")
	if len(req.Notes) > 0 {
		payload.OrderTags = req.Notes
	}

	var response cashfreeOrderResponse
	if err := p.do(ctx, http.MethodPost, "/orders", payload, &response); err != nil {
		return GatewayOrder{}, err
	}
	if response.OrderID == "" {
		return GatewayOrder{}, fmt.Errorf("%w: order id missing from response", ErrInvalidPayload)
	}

	p.logger(ctx, "payments.cashfree.order.created", map[string]any{
		"gateway_order_id": response.OrderID,
		"amount":           req.Amount,
		"currency":         currency,
	})

	return GatewayOrder{
		Gateway:          domain.GatewayCashfree,
		GatewayOrderID:   response.OrderID,
		Amount:           req.Amount,
		Currency:         currency,
		PaymentSessionID: response.PaymentSessionID,
		Raw: map[string]any{
			"cf_order_id":        response.CFOrderID.String(),
			"payment_session_id": response.PaymentSessionID,
		},
	}, nil
}

// VerifyPayment checks the callback signature and fetches the authoritative
// payment record on success.
func (p *CashfreeProvider) VerifyPayment(ctx context.Context, req VerifyRequest) (PaymentDetails, error) {
	if p == nil {
		return PaymentDetails{}, errors.New("cashfree: provider is nil")
	}
	if err := verifyCallbackSignature(p.clientSecret, req.GatewayOrderID, req.PaymentID, req.Signature); err != nil {
		p.logger(ctx, "payments.cashfree.verify.rejected", map[string]any{
			"gateway_order_id": req.GatewayOrderID,
			"payment_id":       req.PaymentID,
		})
		return PaymentDetails{}, err
	}
	details, err := p.LookupPayment(ctx, req.GatewayOrderID)
	if err != nil {
		return PaymentDetails{}, err
	}
	if req.PaymentID != "" && details.PaymentID == "" {
		details.PaymentID = req.PaymentID
	}
	return details, nil
}

// VerifyWebhookSignature checks the raw-body HMAC using the webhook secret.
func (p *CashfreeProvider) VerifyWebhookSignature(body []byte, signature string) error {
	if p == nil {
		return errors.New("cashfree: provider is nil")
	}
	return verifyBodySignature(p.webhookSecret, body, signature)
}

type cashfreeWebhookEnvelope struct {
	Type string `json:"type"`
	Data struct {
		Order struct {
			OrderID string `json:"order_id"`
		} `json:"order"`
		Payment struct {
			CFPaymentID   json.Number `json:"cf_payment_id"`
			PaymentStatus string      `json:"payment_status"`
		} `json:"payment"`
	} `json:"data"`
}

// ParseWebhook normalises a verified webhook body onto the shared event names.
func (p *CashfreeProvider) ParseWebhook(body []byte) (WebhookEvent, error) {
	var envelope cashfreeWebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	event := WebhookEvent{
		Gateway:        domain.GatewayCashfree,
		GatewayOrderID: envelope.Data.Order.OrderID,
		PaymentID:      envelope.Data.Payment.CFPaymentID.String(),
	}
	switch strings.ToUpper(strings.TrimSpace(envelope.Type)) {
	case "PAYMENT_SUCCESS_WEBHOOK":
		event.EventType = EventPaymentCaptured
		event.Known = true
	case "PAYMENT_FAILED_WEBHOOK", "PAYMENT_USER_DROPPED_WEBHOOK":
		event.EventType = EventPaymentFailed
		event.Known = true
	default:
		event.EventType = strings.TrimSpace(envelope.Type)
	}
	if event.Known && event.GatewayOrderID == "" {
		return WebhookEvent{}, fmt.Errorf("%w: order id missing from %s payload", ErrInvalidPayload, event.EventType)
	}
	return event, nil
}

type cashfreePaymentRecord struct {
	CFPaymentID     json.Number `json:"cf_payment_id"`
	OrderID         string      `json:"order_id"`
	PaymentStatus   string      `json:"payment_status"`
	PaymentAmount   float64     `json:"payment_amount"`
	PaymentCurrency string      `json:"payment_currency"`
	PaymentGroup    string      `json:"payment_group"`
}

// LookupPayment fetches payments for a gateway order and normalises the most
// recent attempt. Cashfree payment records are order-scoped, so the identifier
// here is the gateway order id.
func (p *CashfreeProvider) LookupPayment(ctx context.Context, gatewayOrderID string) (PaymentDetails, error) {
	if p == nil {
		return PaymentDetails{}, errors.New("cashfree: provider is nil")
	}
	gatewayOrderID = strings.TrimSpace(gatewayOrderID)
	if gatewayOrderID == "" {
		return PaymentDetails{}, errors.New("cashfree: gateway order id is required")
	}

	var records []cashfreePaymentRecord
	if err := p.do(ctx, http.MethodGet, "/orders/"+gatewayOrderID+"/payments", nil, &records); err != nil {
		return PaymentDetails{}, err
	}
	if len(records) == 0 {
		return PaymentDetails{
			Gateway:        domain.GatewayCashfree,
			GatewayOrderID: gatewayOrderID,
			Status:         StatusPending,
		}, nil
	}

	// Payments come back newest first; a captured attempt wins over later
	// failures from retried checkouts.
	record := records[0]
	for _, candidate := range records {
		if cashfreeStatus(candidate.PaymentStatus) == StatusCaptured {
			record = candidate
			break
		}
	}

	return PaymentDetails{
		Gateway:        domain.GatewayCashfree,
		GatewayOrderID: record.OrderID,
		PaymentID:      record.CFPaymentID.String(),
		Status:         cashfreeStatus(record.PaymentStatus),
		Amount:         int64(record.PaymentAmount * 100),
		Currency:       strings.ToUpper(record.PaymentCurrency),
		Method:         strings.ToLower(record.PaymentGroup),
	}, nil
}

func (p *CashfreeProvider) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("cashfree: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("cashfree: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-version", cashfreeAPIVersion)
	req.Header.Set("x-client-id", p.clientID)
	req.Header.Set("x-client-secret", p.clientSecret)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cashfree: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("cashfree: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("cashfree: %s %s: status %d: %s", method, path, resp.StatusCode, truncateBody(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}
	return nil
}

func cashfreeStatus(status string) Status {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "SUCCESS":
		return StatusCaptured
	case "FAILED", "USER_DROPPED", "CANCELLED", "VOID":
		return StatusFailed
	default:
		return StatusPending
	}
}

func defaultNote(notes map[string]string, key, fallback string) string {
	if value, ok := notes[key]; ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func truncateBody(data []byte) string {
	const limit = 512
	if len(data) <= limit {
		return string(data)
	}
	return string(data[:limit]) + "..."
}
