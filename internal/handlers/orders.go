package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/orchidcart/api/internal/domain"
	"github.com/orchidcart/api/internal/platform/auth"
	"github.com/orchidcart/api/internal/services"
)

const (
	defaultOrderPageSize   = 20
	maxOrderPageSize       = 100
	maxOrderCreateBodySize = 64 * 1024
	maxOrderCancelBodySize = 4 * 1024
)

type createOrderRequest struct {
	Items           []createOrderItemRequest `json:"orderItems"`
	ShippingAddress shippingAddressPayload   `json:"shippingAddress"`
	PaymentMethod   string                   `json:"paymentMethod"`
	ItemsPrice      int64                    `json:"itemsPrice"`
	ShippingPrice   int64                    `json:"shippingPrice"`
	DiscountPrice   int64                    `json:"discountPrice"`
	TotalPrice      int64                    `json:"totalPrice"`
	Gateway         *gatewayRefsRequest      `json:"gateway,omitempty"`
	ClearCart       bool                     `json:"clearCart"`
	Metadata        map[string]any           `json:"metadata,omitempty"`
}

type createOrderItemRequest struct {
	ProductID     string  `json:"productId"`
	Name          string  `json:"name"`
	Quantity      int     `json:"quantity"`
	UnitPrice     int64   `json:"unitPrice"`
	SelectedPrice int64   `json:"selectedPrice"`
	Size          *string `json:"size,omitempty"`
	Image         *string `json:"image,omitempty"`
}

type gatewayRefsRequest struct {
	Gateway          string `json:"gateway"`
	OrderID          string `json:"orderId"`
	PaymentID        string `json:"paymentId"`
	Signature        string `json:"signature"`
	PaymentSessionID string `json:"paymentSessionId"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

// OrderHandlers exposes the authenticated customer order endpoints.
type OrderHandlers struct {
	authn  *auth.Authenticator
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}/cancel", h.cancelOrder)
	r.Get("/payment-status/{gatewayOrderID}", h.paymentStatus)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxOrderCreateBodySize)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	var req createOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cmd := services.CreateOrderCommand{
		UserID:        identity.UID,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		ShippingAddress: domain.ShippingAddress{
			Type:    strings.TrimSpace(req.ShippingAddress.Type),
			Name:    strings.TrimSpace(req.ShippingAddress.Name),
			Phone:   strings.TrimSpace(req.ShippingAddress.Phone),
			Address: strings.TrimSpace(req.ShippingAddress.Address),
			City:    strings.TrimSpace(req.ShippingAddress.City),
			State:   strings.TrimSpace(req.ShippingAddress.State),
			Pincode: strings.TrimSpace(req.ShippingAddress.Pincode),
		},
		Totals: domain.OrderTotals{
			ItemsPrice:    req.ItemsPrice,
			ShippingPrice: req.ShippingPrice,
			DiscountPrice: req.DiscountPrice,
			TotalPrice:    req.TotalPrice,
		},
		ClearCart: req.ClearCart,
		Metadata:  cloneMap(req.Metadata),
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.CreateOrderItemInput{
			ProductID:     strings.TrimSpace(item.ProductID),
			Name:          strings.TrimSpace(item.Name),
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			SelectedPrice: item.SelectedPrice,
			Size:          cloneStringPointer(item.Size),
			Image:         cloneStringPointer(item.Image),
		})
	}
	if req.Gateway != nil {
		cmd.GatewayRefs = &services.GatewayRefsInput{
			Gateway:          strings.TrimSpace(req.Gateway.Gateway),
			OrderID:          strings.TrimSpace(req.Gateway.OrderID),
			PaymentID:        strings.TrimSpace(req.Gateway.PaymentID),
			Signature:        strings.TrimSpace(req.Gateway.Signature),
			PaymentSessionID: strings.TrimSpace(req.Gateway.PaymentSessionID),
		}
	}

	order, err := h.orders.CreateOrder(ctx, cmd)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeEnvelope(w, http.StatusCreated, "order placed", buildOrderPayload(order))
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	query := r.URL.Query()
	filter := services.OrderListFilter{
		UserID: identity.UID,
		Status: parseFilterValues(query["status"]),
		Pagination: services.Pagination{
			PageSize:  parsePageSize(query.Get("pageSize"), defaultOrderPageSize, maxOrderPageSize),
			PageToken: strings.TrimSpace(query.Get("pageToken")),
		},
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

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
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
		AdminAccess: identity.HasRole(auth.RoleAdmin),
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, "order fetched", buildOrderPayload(order))
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
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

	var req cancelOrderRequest
	body, err := readLimitedBody(r, maxOrderCancelBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(w, err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeFailure(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID:     orderID,
		RequesterID: identity.UID,
		Reason:      strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, "cancellation requested", buildOrderPayload(order))
}

func (h *OrderHandlers) paymentStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	gatewayOrderID := strings.TrimSpace(chi.URLParam(r, "gatewayOrderID"))
	if gatewayOrderID == "" {
		writeFailure(w, http.StatusBadRequest, "gateway order id is required")
		return
	}

	result, err := h.orders.PaymentStatus(ctx, services.PaymentStatusQuery{
		GatewayOrderID: gatewayOrderID,
		RequesterID:    identity.UID,
		AdminAccess:    identity.HasRole(auth.RoleAdmin),
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, "payment status fetched", paymentStatusPayload{
		OrderID:       result.OrderID,
		PaymentID:     result.PaymentID,
		PaymentStatus: string(result.PaymentStatus),
		OrderStatus:   string(result.OrderStatus),
	})
}

type paymentStatusPayload struct {
	OrderID       string `json:"orderId"`
	PaymentID     string `json:"paymentId,omitempty"`
	PaymentStatus string `json:"paymentStatus"`
	OrderStatus   string `json:"orderStatus"`
}

func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		writeFailure(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return identity, true
}

func parsePageSize(raw string, fallback, ceiling int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	size, err := strconv.Atoi(raw)
	if err != nil || size <= 0 {
		return fallback
	}
	if size > ceiling {
		return ceiling
	}
	return size
}

func writeBodyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		writeFailure(w, http.StatusRequestEntityTooLarge, "request body exceeds allowed size")
	case errors.Is(err, errEmptyBody):
		writeFailure(w, http.StatusBadRequest, "request body is required")
	default:
		writeFailure(w, http.StatusBadRequest, "unable to read request body")
	}
}

func writeOrderError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput),
		errors.Is(err, services.ErrOrderInvalidState),
		errors.Is(err, services.ErrOrderInsufficientStock):
		writeFailure(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrOrderNotFound):
		writeFailure(w, http.StatusNotFound, "order not found")
	case errors.Is(err, services.ErrOrderForbidden):
		writeFailure(w, http.StatusForbidden, "you do not have access to this order")
	case errors.Is(err, services.ErrOrderConflict):
		writeFailure(w, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrOrderUnavailable):
		writeFailure(w, http.StatusServiceUnavailable, "order storage unavailable")
	default:
		writeFailure(w, http.StatusInternalServerError, "failed to process order request")
	}
}
