package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/orchidcart/api/internal/platform/httpx"
	"github.com/orchidcart/api/internal/services"
)

const maxInternalBodySize = 4 * 1024

type reconcileRevenueRequest struct {
	PageSize  int    `json:"pageSize"`
	PageToken string `json:"pageToken"`
}

type reconcileRevenuePayload struct {
	Examined      int    `json:"examined"`
	Updated       int    `json:"updated"`
	NextPageToken string `json:"nextPageToken,omitempty"`
}

// InternalHandlers exposes service-to-service maintenance operations. The
// route group is protected by OIDC middleware installed at router level.
type InternalHandlers struct {
	orders services.OrderService
}

// NewInternalHandlers constructs a new InternalHandlers instance.
func NewInternalHandlers(orders services.OrderService) *InternalHandlers {
	return &InternalHandlers{orders: orders}
}

// Routes registers the /internal endpoints.
func (h *InternalHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/revenue/reconcile", h.reconcileRevenue)
}

func (h *InternalHandlers) reconcileRevenue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req reconcileRevenueRequest
	body, err := readLimitedBody(r, maxInternalBodySize)
	if err == nil && len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
			return
		}
	}

	result, err := h.orders.ReconcileRevenue(ctx, services.ReconcileRevenueCommand{
		PageSize:  req.PageSize,
		PageToken: strings.TrimSpace(req.PageToken),
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("reconcile_failed", "revenue reconciliation failed", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, reconcileRevenuePayload{
		Examined:      result.Examined,
		Updated:       result.Updated,
		NextPageToken: strings.TrimSpace(result.NextPageToken),
	})
}
