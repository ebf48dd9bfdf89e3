package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	domain "github.com/orchidcart/api/internal/domain"
	"github.com/orchidcart/api/internal/platform/auth"
	"github.com/orchidcart/api/internal/repositories"
	"github.com/orchidcart/api/internal/services"
)

const maxAdminOrderBodySize = 8 * 1024

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

type cancellationDecisionRequest struct {
	Approve         bool   `json:"approve"`
	RejectionReason string `json:"rejectionReason"`
}

type codReceiptRequest struct {
	Amount int64 `json:"amount"`
}

// AdminOrderHandlers exposes the admin order lifecycle endpoints.
type AdminOrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
	audits services.AuditLogService
}

// NewAdminOrderHandlers constructs a new AdminOrderHandlers instance.
func NewAdminOrderHandlers(authn *auth.Authenticator, orders services.OrderService, audits services.AuditLogService) *AdminOrderHandlers {
	return &AdminOrderHandlers{
		authn:  authn,
		orders: orders,
		audits: audits,
	}
}

// Routes registers the /admin/orders endpoints.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Patch("/{orderID}/status", h.updateStatus)
	r.Post("/{orderID}/cancellation", h.decideCancellation)
	r.Post("/{orderID}/refund", h.processRefund)
	r.Post("/{orderID}/cod-receipt", h.confirmCODReceipt)
	r.Get("/audit-logs", h.listAuditLogs)
}

func (h *AdminOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}

	query := r.URL.Query()
	filter := services.OrderListFilter{
		UserID:  strings.TrimSpace(query.Get("userId")),
		Status:  parseFilterValues(query["status"]),
		Gateway: strings.ToLower(strings.TrimSpace(query.Get("gateway"))),
		Pagination: services.Pagination{
			PageSize:  parsePageSize(query.Get("pageSize"), defaultOrderPageSize, maxOrderPageSize),
			PageToken: strings.TrimSpace(query.Get("pageToken")),
		},
	}
	if raw := strings.TrimSpace(query.Get("createdAfter")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "createdAfter must be a valid RFC3339 timestamp")
			return
		}
		filter.DateRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("createdBefore")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "createdBefore must be a valid RFC3339 timestamp")
			return
		}
		filter.DateRange.To = &ts
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(w, err)
		return
	}

	summaries := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		summaries = append(summaries, buildOrderSummary(order))
	}
	writeEnvelope(w, http.StatusOK, "orders fetched", orderListPayload{
		Orders:        summaries,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *AdminOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		writeFailure(w, http.StatusBadRequest, "order id is required")
		return
	}

	order, err := h.orders.GetOrder(ctx, services.GetOrderQuery{
		OrderID:     orderID,
		RequesterID: identity.UID,
		AdminAccess: true,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, "order fetched", buildOrderPayload(order))
}

func (h *AdminOrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		writeFailure(w, http.StatusBadRequest, "order id is required")
		return
	}

	var req updateOrderStatusRequest
	if !decodeAdminBody(w, r, &req) {
		return
	}
	target := strings.ToLower(strings.TrimSpace(req.Status))
	if target == "" {
		writeFailure(w, http.StatusBadRequest, "status is required")
		return
	}

	order, err := h.orders.UpdateStatus(ctx, services.UpdateOrderStatusCommand{
		OrderID:      orderID,
		ActorID:      identity.UID,
		TargetStatus: target,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	h.recordAudit(r, identity, "order.status.update", order.ID, map[string]any{
		"status": target,
	})
	writeEnvelope(w, http.StatusOK, "order status updated", buildOrderPayload(order))
}

func (h *AdminOrderHandlers) decideCancellation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		writeFailure(w, http.StatusBadRequest, "order id is required")
		return
	}

	var req cancellationDecisionRequest
	if !decodeAdminBody(w, r, &req) {
		return
	}
	if !req.Approve && strings.TrimSpace(req.RejectionReason) == "" {
		writeFailure(w, http.StatusBadRequest, "rejectionReason is required when rejecting")
		return
	}

	order, err := h.orders.DecideCancellation(ctx, services.CancellationDecisionCommand{
		OrderID:         orderID,
		ActorID:         identity.UID,
		Approve:         req.Approve,
		RejectionReason: strings.TrimSpace(req.RejectionReason),
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	action := "order.cancellation.reject"
	message := "cancellation rejected"
	if req.Approve {
		action = "order.cancellation.approve"
		message = "cancellation approved"
	}
	h.recordAudit(r, identity, action, order.ID, map[string]any{
		"approve": req.Approve,
	})
	writeEnvelope(w, http.StatusOK, message, buildOrderPayload(order))
}

func (h *AdminOrderHandlers) processRefund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		writeFailure(w, http.StatusBadRequest, "order id is required")
		return
	}

	order, err := h.orders.ProcessRefund(ctx, services.ProcessRefundCommand{
		OrderID: orderID,
		ActorID: identity.UID,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	h.recordAudit(r, identity, "order.refund.process", order.ID, map[string]any{
		"amount": order.Refund.Amount,
	})
	writeEnvelope(w, http.StatusOK, "refund processed", buildOrderPayload(order))
}

func (h *AdminOrderHandlers) confirmCODReceipt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		writeFailure(w, http.StatusBadRequest, "order id is required")
		return
	}

	var req codReceiptRequest
	if !decodeAdminBody(w, r, &req) {
		return
	}

	order, err := h.orders.ConfirmCODReceipt(ctx, services.ConfirmCODReceiptCommand{
		OrderID: orderID,
		ActorID: identity.UID,
		Amount:  req.Amount,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	h.recordAudit(r, identity, "order.cod.confirm", order.ID, map[string]any{
		"amount": req.Amount,
	})
	writeEnvelope(w, http.StatusOK, "cod receipt confirmed", buildOrderPayload(order))
}

func (h *AdminOrderHandlers) listAuditLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := requireIdentity(ctx, w); !ok {
		return
	}
	if h.audits == nil {
		writeFailure(w, http.StatusServiceUnavailable, "audit service unavailable")
		return
	}

	query := r.URL.Query()
	filter := repositories.AuditLogFilter{
		TargetRef: strings.TrimSpace(query.Get("targetRef")),
		Actor:     strings.TrimSpace(query.Get("actor")),
		Action:    strings.TrimSpace(query.Get("action")),
		Pagination: domain.Pagination{
			PageSize:  parsePageSize(query.Get("pageSize"), defaultOrderPageSize, maxOrderPageSize),
			PageToken: strings.TrimSpace(query.Get("pageToken")),
		},
	}

	page, err := h.audits.List(ctx, filter)
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "failed to list audit logs")
		return
	}

	entries := make([]auditLogPayload, 0, len(page.Items))
	for _, entry := range page.Items {
		entries = append(entries, auditLogPayload{
			ID:        entry.ID,
			Actor:     entry.Actor,
			ActorType: entry.ActorType,
			Action:    entry.Action,
			TargetRef: entry.TargetRef,
			Metadata:  cloneMap(entry.Metadata),
			RequestID: entry.RequestID,
			CreatedAt: formatTime(entry.CreatedAt),
		})
	}
	writeEnvelope(w, http.StatusOK, "audit logs fetched", auditLogListPayload{
		Entries:       entries,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

type auditLogPayload struct {
	ID        string         `json:"id"`
	Actor     string         `json:"actor"`
	ActorType string         `json:"actorType"`
	Action    string         `json:"action"`
	TargetRef string         `json:"targetRef"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
	CreatedAt string         `json:"createdAt"`
}

type auditLogListPayload struct {
	Entries       []auditLogPayload `json:"entries"`
	NextPageToken string            `json:"nextPageToken,omitempty"`
}

func (h *AdminOrderHandlers) recordAudit(r *http.Request, identity *auth.Identity, action, targetRef string, metadata map[string]any) {
	if h.audits == nil || identity == nil {
		return
	}
	h.audits.Record(r.Context(), services.AuditLogRecord{
		Actor:     identity.UID,
		ActorType: "admin",
		Action:    action,
		TargetRef: targetRef,
		Metadata:  metadata,
		RequestID: middleware.GetReqID(r.Context()),
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
}

func decodeAdminBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := readLimitedBody(r, maxAdminOrderBodySize)
	if err != nil {
		writeBodyError(w, err)
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
