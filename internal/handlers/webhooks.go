package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	domain "github.com/orchidcart/api/internal/domain"
	"github.com/orchidcart/api/internal/payments"
	"github.com/orchidcart/api/internal/platform/textutil"
	"github.com/orchidcart/api/internal/repositories"
	"github.com/orchidcart/api/internal/services"
)

const maxWebhookBodySize = 1 << 20

// WebhookHandlers receives signed gateway webhook deliveries. Signature
// verification fails closed; unknown event types are acknowledged with 200 so
// the gateway does not retry no-ops.
type WebhookHandlers struct {
	gateways *payments.Manager
	orders   services.OrderService
	events   repositories.WebhookEventRepository
	logger   *zap.Logger
	clock    func() time.Time
	newID    func() string
}

// WebhookHandlersDeps wires collaborators for webhook processing.
type WebhookHandlersDeps struct {
	Gateways *payments.Manager
	Orders   services.OrderService
	Events   repositories.WebhookEventRepository
	Logger   *zap.Logger
	Clock    func() time.Time
}

// NewWebhookHandlers constructs a new WebhookHandlers instance.
func NewWebhookHandlers(deps WebhookHandlersDeps) *WebhookHandlers {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandlers{
		gateways: deps.Gateways,
		orders:   deps.Orders,
		events:   deps.Events,
		logger:   logger,
		clock:    clock,
		newID: func() string {
			return "evt_" + ulid.Make().String()
		},
	}
}

// Routes registers the /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/{gateway}", h.receive)
}

func (h *WebhookHandlers) receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.gateways == nil || h.orders == nil {
		writeFailure(w, http.StatusServiceUnavailable, "webhook processing unavailable")
		return
	}

	gatewayName := textutil.FoldName(chi.URLParam(r, "gateway"))
	gateway := domain.PaymentGateway(gatewayName)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize+1))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "unable to read request body")
		return
	}
	if len(body) > maxWebhookBodySize {
		writeFailure(w, http.StatusRequestEntityTooLarge, "request body exceeds allowed size")
		return
	}

	signature := strings.TrimSpace(r.Header.Get(fmt.Sprintf("x-%s-signature", gatewayName)))

	event, err := h.gateways.HandleWebhook(ctx, gateway, body, signature)
	if err != nil {
		h.appendAudit(ctx, domain.WebhookEvent{
			Gateway:   gateway,
			EventType: "unverified",
			Verified:  false,
			Applied:   false,
		})
		switch {
		case errors.Is(err, payments.ErrSignatureMismatch):
			h.logger.Warn("webhook signature rejected", zap.String("gateway", gatewayName))
			writeFailure(w, http.StatusBadRequest, "webhook signature mismatch")
		case errors.Is(err, payments.ErrUnsupportedGateway):
			writeFailure(w, http.StatusNotFound, "unknown gateway")
		case errors.Is(err, payments.ErrInvalidPayload):
			writeFailure(w, http.StatusBadRequest, "invalid webhook payload")
		default:
			writeFailure(w, http.StatusInternalServerError, "webhook processing failed")
		}
		return
	}

	record := domain.WebhookEvent{
		Gateway:    event.Gateway,
		EventType:  event.EventType,
		GatewayRef: event.GatewayOrderID,
		Verified:   true,
	}

	if !event.Known {
		h.appendAudit(ctx, record)
		writeEnvelope(w, http.StatusOK, "event ignored", nil)
		return
	}

	_, err = h.orders.ApplyGatewayPayment(ctx, services.GatewayPaymentCommand{
		Gateway:        event.Gateway,
		GatewayOrderID: event.GatewayOrderID,
		PaymentID:      event.PaymentID,
		Succeeded:      event.EventType == payments.EventPaymentCaptured,
		EventType:      event.EventType,
	})
	if err != nil {
		// Acknowledge anyway: a retry storm cannot repair a missing or
		// already-settled order, and the transition itself is idempotent.
		h.logger.Warn("webhook transition not applied",
			zap.String("gateway", gatewayName),
			zap.String("event", event.EventType),
			zap.String("gateway_order_id", event.GatewayOrderID),
			zap.Error(err),
		)
		h.appendAudit(ctx, record)
		writeEnvelope(w, http.StatusOK, "event acknowledged", nil)
		return
	}

	record.Applied = true
	h.appendAudit(ctx, record)
	writeEnvelope(w, http.StatusOK, "event processed", nil)
}

func (h *WebhookHandlers) appendAudit(ctx context.Context, event domain.WebhookEvent) {
	if h.events == nil {
		return
	}
	event.ID = h.newID()
	event.ReceivedAt = h.clock().UTC()
	if err := h.events.Append(ctx, event); err != nil {
		h.logger.Warn("webhook audit append failed", zap.Error(err))
	}
}
