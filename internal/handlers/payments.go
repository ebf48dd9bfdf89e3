package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/orchidcart/api/internal/domain"
	"github.com/orchidcart/api/internal/payments"
	"github.com/orchidcart/api/internal/platform/auth"
	"github.com/orchidcart/api/internal/services"
)

const maxPaymentBodySize = 8 * 1024

type createGatewayOrderRequest struct {
	Gateway  string            `json:"gateway"`
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type verifyPaymentRequest struct {
	Gateway   string `json:"gateway"`
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

type gatewayOrderPayload struct {
	Gateway          string `json:"gateway"`
	OrderID          string `json:"orderId"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	PaymentSessionID string `json:"paymentSessionId,omitempty"`
}

// PaymentHandlers exposes gateway order creation and client callback
// verification for authenticated customers.
type PaymentHandlers struct {
	authn    *auth.Authenticator
	gateways *payments.Manager
	orders   services.OrderService
}

// NewPaymentHandlers constructs a new PaymentHandlers instance.
func NewPaymentHandlers(authn *auth.Authenticator, gateways *payments.Manager, orders services.OrderService) *PaymentHandlers {
	return &PaymentHandlers{
		authn:    authn,
		gateways: gateways,
		orders:   orders,
	}
}

// Routes registers the /payments endpoints.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/orders", h.createGatewayOrder)
	r.Post("/verify", h.verifyPayment)
}

func (h *PaymentHandlers) createGatewayOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.gateways == nil {
		writeFailure(w, http.StatusServiceUnavailable, "payment gateways unavailable")
		return
	}

	var req createGatewayOrderRequest
	body, err := readLimitedBody(r, maxPaymentBodySize)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Amount <= 0 {
		writeFailure(w, http.StatusBadRequest, "amount must be greater than zero")
		return
	}

	notes := make(map[string]string, len(req.Notes)+1)
	for k, v := range req.Notes {
		notes[k] = v
	}
	notes["userId"] = identity.UID

	order, err := h.gateways.CreateOrder(ctx, domain.PaymentGateway(strings.ToLower(strings.TrimSpace(req.Gateway))), payments.GatewayOrderRequest{
		Amount:   req.Amount,
		Currency: strings.TrimSpace(req.Currency),
		Receipt:  strings.TrimSpace(req.Receipt),
		Notes:    notes,
	})
	if err != nil {
		writeGatewayError(w, err)
		return
	}

	writeEnvelope(w, http.StatusCreated, "gateway order created", gatewayOrderPayload{
		Gateway:          string(order.Gateway),
		OrderID:          order.GatewayOrderID,
		Amount:           order.Amount,
		Currency:         order.Currency,
		PaymentSessionID: order.PaymentSessionID,
	})
}

func (h *PaymentHandlers) verifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}
	if h.gateways == nil {
		writeFailure(w, http.StatusServiceUnavailable, "payment gateways unavailable")
		return
	}

	var req verifyPaymentRequest
	body, err := readLimitedBody(r, maxPaymentBodySize)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.OrderID) == "" || strings.TrimSpace(req.PaymentID) == "" {
		writeFailure(w, http.StatusBadRequest, "orderId and paymentId are required")
		return
	}

	gateway := domain.PaymentGateway(strings.ToLower(strings.TrimSpace(req.Gateway)))
	details, err := h.gateways.VerifyPayment(ctx, gateway, payments.VerifyRequest{
		GatewayOrderID: strings.TrimSpace(req.OrderID),
		PaymentID:      strings.TrimSpace(req.PaymentID),
		Signature:      strings.TrimSpace(req.Signature),
	})
	if err != nil {
		writeGatewayError(w, err)
		return
	}

	// Only settled outcomes transition the order; a still-pending payment is
	// reported back without touching order state.
	switch details.Status {
	case payments.StatusCaptured, payments.StatusFailed:
		order, err := h.orders.ApplyGatewayPayment(ctx, services.GatewayPaymentCommand{
			Gateway:        details.Gateway,
			GatewayOrderID: details.GatewayOrderID,
			PaymentID:      details.PaymentID,
			Signature:      strings.TrimSpace(req.Signature),
			Succeeded:      details.Status == payments.StatusCaptured,
			EventType:      eventTypeForStatus(details.Status),
		})
		if err != nil {
			writeOrderError(w, err)
			return
		}
		writeEnvelope(w, http.StatusOK, "payment verified", buildOrderPayload(order))
	default:
		writeEnvelope(w, http.StatusOK, "payment not settled yet", paymentStatusPayload{
			PaymentID:     details.PaymentID,
			PaymentStatus: string(details.Status),
		})
	}
}

func eventTypeForStatus(status payments.Status) string {
	if status == payments.StatusCaptured {
		return payments.EventPaymentCaptured
	}
	return payments.EventPaymentFailed
}

func writeGatewayError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payments.ErrSignatureMismatch):
		writeFailure(w, http.StatusBadRequest, "payment verification failed")
	case errors.Is(err, payments.ErrUnsupportedGateway):
		writeFailure(w, http.StatusBadRequest, "unsupported payment gateway")
	case errors.Is(err, payments.ErrInvalidPayload):
		writeFailure(w, http.StatusBadRequest, "invalid gateway payload")
	default:
		writeFailure(w, http.StatusBadGateway, "payment gateway request failed")
	}
}
