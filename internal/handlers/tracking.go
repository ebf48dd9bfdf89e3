package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/orchidcart/api/internal/services"
)

const (
	defaultTrackRateLimit  = 30
	defaultTrackRateWindow = time.Minute
)

type trackedOrderPayload struct {
	OrderNumber     string                 `json:"orderNumber"`
	TrackingNumber  string                 `json:"trackingNumber"`
	OrderStatus     string                 `json:"orderStatus"`
	PaymentMethod   string                 `json:"paymentMethod"`
	PaymentStatus   string                 `json:"paymentStatus"`
	TrackingHistory []trackingEventPayload `json:"trackingHistory"`
	Items           []orderItemPayload     `json:"orderItems"`
	MaskedPhone     string                 `json:"maskedPhone,omitempty"`
	CreatedAt       string                 `json:"createdAt"`
}

// TrackingHandlers exposes the unauthenticated order tracking lookup. The
// response never contains the owner's full phone number.
type TrackingHandlers struct {
	orders  services.OrderService
	limiter RateLimiter
}

// NewTrackingHandlers constructs a new TrackingHandlers instance.
func NewTrackingHandlers(orders services.OrderService, limiter RateLimiter) *TrackingHandlers {
	if limiter == nil {
		limiter = newSimpleRateLimiter(defaultTrackRateLimit, defaultTrackRateWindow, time.Now)
	}
	return &TrackingHandlers{
		orders:  orders,
		limiter: limiter,
	}
}

// Routes registers the /public tracking endpoints.
func (h *TrackingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/track", h.track)
}

func (h *TrackingHandlers) track(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeFailure(w, http.StatusServiceUnavailable, "tracking unavailable")
		return
	}
	if h.limiter != nil && !h.limiter.Allow(r.RemoteAddr) {
		writeFailure(w, http.StatusTooManyRequests, "too many tracking requests, try again shortly")
		return
	}

	query := r.URL.Query()
	identifier := strings.TrimSpace(query.Get("number"))
	if identifier == "" {
		identifier = strings.TrimSpace(query.Get("orderNumber"))
	}
	if identifier == "" {
		writeFailure(w, http.StatusBadRequest, "order or tracking number is required")
		return
	}

	tracked, err := h.orders.Track(ctx, services.TrackOrderQuery{
		Identifier: identifier,
		Phone:      strings.TrimSpace(query.Get("phone")),
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	order := tracked.Order
	writeEnvelope(w, http.StatusOK, "order tracked", trackedOrderPayload{
		OrderNumber:     order.OrderNumber,
		TrackingNumber:  order.TrackingNumber,
		OrderStatus:     string(order.Status),
		PaymentMethod:   string(order.PaymentMethod),
		PaymentStatus:   string(order.PaymentStatus),
		TrackingHistory: buildTrackingPayloads(order.TrackingHistory),
		Items:           buildOrderItemPayloads(order.Items),
		MaskedPhone:     tracked.MaskedPhone,
		CreatedAt:       formatTime(order.CreatedAt),
	})
}
