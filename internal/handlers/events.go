package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/orchidcart/api/internal/platform/auth"
	"github.com/orchidcart/api/internal/realtime"
	"github.com/orchidcart/api/internal/services"
)

const sseHeartbeatInterval = 15 * time.Second

// EventHandlers streams order and global notifications over Server-Sent
// Events. Delivery is best-effort: slow consumers drop events rather than
// block publishers, and there is no replay.
type EventHandlers struct {
	authn  *auth.Authenticator
	hub    *realtime.Hub
	orders services.OrderService
}

// NewEventHandlers constructs a new EventHandlers instance.
func NewEventHandlers(authn *auth.Authenticator, hub *realtime.Hub, orders services.OrderService) *EventHandlers {
	return &EventHandlers{
		authn:  authn,
		hub:    hub,
		orders: orders,
	}
}

// Routes registers the /events endpoints.
func (h *EventHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.stream)
}

func (h *EventHandlers) stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	if h.hub == nil {
		writeFailure(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeFailure(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	topics := []string{realtime.UserTopic(identity.UID)}
	if orderID := strings.TrimSpace(r.URL.Query().Get("orderId")); orderID != "" {
		// Joining an order topic requires proving access to the order first.
		_, err := h.orders.GetOrder(ctx, services.GetOrderQuery{
			OrderID:     orderID,
			RequesterID: identity.UID,
			AdminAccess: identity.HasRole(auth.RoleAdmin),
		})
		if err != nil {
			if errors.Is(err, services.ErrOrderForbidden) || errors.Is(err, services.ErrOrderNotFound) {
				writeFailure(w, http.StatusNotFound, "order not found")
				return
			}
			writeOrderError(w, err)
			return
		}
		topics = append(topics, realtime.OrderTopic(orderID))
	}

	sub, cancel := h.hub.Subscribe(topics...)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event, open := <-sub.Events():
			if !open {
				return
			}
			writeSSEEvent(w, event)
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, event realtime.Event) {
	data, err := json.Marshal(event.Payload)
	if err != nil {
		return
	}
	if event.Name != "" {
		fmt.Fprintf(w, "event: %s\n", event.Name)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
