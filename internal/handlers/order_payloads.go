package handlers

import (
	"strings"

	domain "github.com/orchidcart/api/internal/domain"
	"github.com/orchidcart/api/internal/services"
)

// Order payloads keep the camelCase field names the storefront already
// consumes. The envelope wraps them as {success, message, data}.

type orderPayload struct {
	ID                 string                 `json:"id"`
	OrderNumber        string                 `json:"orderNumber"`
	TrackingNumber     string                 `json:"trackingNumber"`
	UserID             string                 `json:"userId,omitempty"`
	Items              []orderItemPayload     `json:"orderItems"`
	ShippingAddress    shippingAddressPayload `json:"shippingAddress"`
	PaymentMethod      string                 `json:"paymentMethod"`
	PaymentStatus      string                 `json:"paymentStatus"`
	PaymentGateway     string                 `json:"paymentGateway,omitempty"`
	OrderStatus        string                 `json:"orderStatus"`
	CancellationStatus string                 `json:"cancellationStatus"`
	CancellationReason string                 `json:"cancellationReason,omitempty"`
	RejectionReason    string                 `json:"rejectionReason,omitempty"`
	CancelledAt        string                 `json:"cancelledAt,omitempty"`
	RevenueStatus      string                 `json:"revenueStatus"`
	RevenueAmount      int64                  `json:"revenueAmount,omitempty"`
	RefundStatus       string                 `json:"refundStatus"`
	RefundAmount       int64                  `json:"refundAmount,omitempty"`
	RefundProcessedAt  string                 `json:"refundProcessedAt,omitempty"`
	ItemsPrice         int64                  `json:"itemsPrice"`
	ShippingPrice      int64                  `json:"shippingPrice"`
	DiscountPrice      int64                  `json:"discountPrice"`
	TotalPrice         int64                  `json:"totalPrice"`
	TrackingHistory    []trackingEventPayload `json:"trackingHistory"`
	Razorpay           *razorpayRefsPayload   `json:"razorpay,omitempty"`
	Cashfree           *cashfreeRefsPayload   `json:"cashfree,omitempty"`
	CreatedAt          string                 `json:"createdAt"`
	UpdatedAt          string                 `json:"updatedAt,omitempty"`
}

type orderItemPayload struct {
	ProductID     string  `json:"productId"`
	Name          string  `json:"name"`
	Quantity      int     `json:"quantity"`
	UnitPrice     int64   `json:"unitPrice"`
	SelectedPrice int64   `json:"selectedPrice"`
	Size          *string `json:"size,omitempty"`
	Image         *string `json:"image,omitempty"`
}

type shippingAddressPayload struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

type trackingEventPayload struct {
	Status      string `json:"status"`
	Date        string `json:"date,omitempty"`
	Description string `json:"description,omitempty"`
	Completed   bool   `json:"completed"`
}

type razorpayRefsPayload struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId,omitempty"`
}

type cashfreeRefsPayload struct {
	OrderID          string `json:"orderId"`
	PaymentID        string `json:"paymentId,omitempty"`
	PaymentSessionID string `json:"paymentSessionId,omitempty"`
}

type orderSummaryPayload struct {
	ID            string `json:"id"`
	OrderNumber   string `json:"orderNumber"`
	OrderStatus   string `json:"orderStatus"`
	PaymentMethod string `json:"paymentMethod"`
	PaymentStatus string `json:"paymentStatus"`
	TotalPrice    int64  `json:"totalPrice"`
	CreatedAt     string `json:"createdAt"`
}

type orderListPayload struct {
	Orders        []orderSummaryPayload `json:"orders"`
	NextPageToken string                `json:"nextPageToken,omitempty"`
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:                 strings.TrimSpace(order.ID),
		OrderNumber:        strings.TrimSpace(order.OrderNumber),
		TrackingNumber:     strings.TrimSpace(order.TrackingNumber),
		UserID:             strings.TrimSpace(order.UserID),
		Items:              buildOrderItemPayloads(order.Items),
		ShippingAddress:    buildShippingAddressPayload(order.ShippingAddress),
		PaymentMethod:      string(order.PaymentMethod),
		PaymentStatus:      string(order.PaymentStatus),
		PaymentGateway:     string(order.PaymentGateway),
		OrderStatus:        string(order.Status),
		CancellationStatus: string(order.Cancellation.Status),
		CancellationReason: strings.TrimSpace(order.Cancellation.Reason),
		RejectionReason:    strings.TrimSpace(order.Cancellation.RejectionReason),
		CancelledAt:        formatTime(pointerTime(order.Cancellation.CancelledAt)),
		RevenueStatus:      string(order.Revenue.Status),
		RevenueAmount:      order.Revenue.Amount,
		RefundStatus:       string(order.Refund.Status),
		RefundAmount:       order.Refund.Amount,
		RefundProcessedAt:  formatTime(pointerTime(order.Refund.ProcessedAt)),
		ItemsPrice:         order.Totals.ItemsPrice,
		ShippingPrice:      order.Totals.ShippingPrice,
		DiscountPrice:      order.Totals.DiscountPrice,
		TotalPrice:         order.Totals.TotalPrice,
		TrackingHistory:    buildTrackingPayloads(order.TrackingHistory),
		CreatedAt:          formatTime(order.CreatedAt),
		UpdatedAt:          formatTime(order.UpdatedAt),
	}

	if order.Razorpay != nil {
		payload.Razorpay = &razorpayRefsPayload{
			OrderID:   strings.TrimSpace(order.Razorpay.OrderID),
			PaymentID: strings.TrimSpace(order.Razorpay.PaymentID),
		}
	}
	if order.Cashfree != nil {
		payload.Cashfree = &cashfreeRefsPayload{
			OrderID:          strings.TrimSpace(order.Cashfree.OrderID),
			PaymentID:        strings.TrimSpace(order.Cashfree.PaymentID),
			PaymentSessionID: strings.TrimSpace(order.Cashfree.PaymentSessionID),
		}
	}

	return payload
}

func buildOrderItemPayloads(items []domain.OrderItem) []orderItemPayload {
	result := make([]orderItemPayload, 0, len(items))
	for _, item := range items {
		result = append(result, orderItemPayload{
			ProductID:     strings.TrimSpace(item.ProductRef),
			Name:          strings.TrimSpace(item.Name),
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			SelectedPrice: item.SelectedPrice,
			Size:          cloneStringPointer(item.Size),
			Image:         cloneStringPointer(item.Image),
		})
	}
	return result
}

func buildShippingAddressPayload(addr domain.ShippingAddress) shippingAddressPayload {
	return shippingAddressPayload{
		Type:    strings.TrimSpace(addr.Type),
		Name:    strings.TrimSpace(addr.Name),
		Phone:   strings.TrimSpace(addr.Phone),
		Address: strings.TrimSpace(addr.Address),
		City:    strings.TrimSpace(addr.City),
		State:   strings.TrimSpace(addr.State),
		Pincode: strings.TrimSpace(addr.Pincode),
	}
}

func buildTrackingPayloads(history []domain.TrackingEvent) []trackingEventPayload {
	result := make([]trackingEventPayload, 0, len(history))
	for _, event := range history {
		result = append(result, trackingEventPayload{
			Status:      event.Status,
			Date:        formatTime(pointerTime(event.Date)),
			Description: event.Description,
			Completed:   event.Completed,
		})
	}
	return result
}

func buildOrderSummary(order services.Order) orderSummaryPayload {
	return orderSummaryPayload{
		ID:            strings.TrimSpace(order.ID),
		OrderNumber:   strings.TrimSpace(order.OrderNumber),
		OrderStatus:   string(order.Status),
		PaymentMethod: string(order.PaymentMethod),
		PaymentStatus: string(order.PaymentStatus),
		TotalPrice:    order.Totals.TotalPrice,
		CreatedAt:     formatTime(order.CreatedAt),
	}
}
