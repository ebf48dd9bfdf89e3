package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// PaymentMethod identifies how the customer pays for an order.
type PaymentMethod string

const (
	// PaymentMethodCOD marks cash-on-delivery orders.
	PaymentMethodCOD PaymentMethod = "cod"
	// PaymentMethodOnline marks gateway-settled orders. Inbound aliases
	// "card" and "upi" normalize to this value.
	PaymentMethodOnline PaymentMethod = "online"
)

// PaymentStatus enumerates settlement states for an order's payment.
type PaymentStatus string

const (
	// PaymentStatusPending indicates no confirmed capture yet.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusCompleted indicates the gateway captured the payment or COD was collected.
	PaymentStatusCompleted PaymentStatus = "completed"
	// PaymentStatusFailed indicates the gateway reported a failed payment.
	PaymentStatusFailed PaymentStatus = "failed"
	// PaymentStatusRefunded indicates the captured amount was returned to the customer.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order awaits confirmation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed indicates the order is confirmed and queued for handling.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusProcessing indicates the order is being prepared.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the order left the warehouse.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusOutForDelivery indicates the order is with the delivery agent.
	OrderStatusOutForDelivery OrderStatus = "out-for-delivery"
	// OrderStatusDelivered indicates the order reached the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled is the terminal state for cancelled orders.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// CancellationStatus tracks the customer-initiated cancellation workflow.
type CancellationStatus string

const (
	// CancellationNone indicates no cancellation has been requested.
	CancellationNone CancellationStatus = "none"
	// CancellationRequested indicates the customer asked to cancel.
	CancellationRequested CancellationStatus = "requested"
	// CancellationApproved indicates an admin approved the request.
	CancellationApproved CancellationStatus = "approved"
	// CancellationRejected indicates an admin rejected the request.
	CancellationRejected CancellationStatus = "rejected"
)

// RevenueStatus is the business-accounting view of an order, independent of
// the payment settlement state.
type RevenueStatus string

const (
	// RevenuePending indicates revenue is not yet recognized.
	RevenuePending RevenueStatus = "pending"
	// RevenueConfirmed indicates payment is settled but delivery-based
	// recognition has not completed.
	RevenueConfirmed RevenueStatus = "confirmed"
	// RevenueEarned indicates revenue is fully recognized.
	RevenueEarned RevenueStatus = "earned"
)

// RefundStatus tracks the refund workflow for online orders.
type RefundStatus string

const (
	// RefundNone indicates no refund exists for the order.
	RefundNone RefundStatus = "none"
	// RefundPending indicates a refund was opened and awaits processing.
	RefundPending RefundStatus = "pending"
	// RefundApproved indicates an admin approved the refund.
	RefundApproved RefundStatus = "approved"
	// RefundRejected indicates the refund was declined.
	RefundRejected RefundStatus = "rejected"
	// RefundProcessed indicates the refund was submitted to the gateway.
	RefundProcessed RefundStatus = "processed"
	// RefundCompleted is the terminal state after funds were returned.
	RefundCompleted RefundStatus = "completed"
)

// PaymentGateway identifies the gateway an online order settles through.
type PaymentGateway string

const (
	// GatewayRazorpay routes payments through Razorpay.
	GatewayRazorpay PaymentGateway = "razorpay"
	// GatewayCashfree routes payments through Cashfree.
	GatewayCashfree PaymentGateway = "cashfree"
)

// OrderItem is a frozen line snapshot taken at order creation.
type OrderItem struct {
	ProductRef    string
	Name          string
	Quantity      int
	UnitPrice     int64
	SelectedPrice int64
	Size          *string
	Image         *string
}

// ShippingAddress is the denormalized delivery address snapshot. Every field
// is required at creation.
type ShippingAddress struct {
	Type    string
	Name    string
	Phone   string
	Address string
	City    string
	State   string
	Pincode string
}

// RazorpayRefs stores Razorpay correlation identifiers for an order.
type RazorpayRefs struct {
	OrderID   string
	PaymentID string
	Signature string
}

// CashfreeRefs stores Cashfree correlation identifiers for an order.
type CashfreeRefs struct {
	OrderID          string
	PaymentID        string
	PaymentSessionID string
}

// TrackingEvent is one milestone row in an order's tracking checklist.
type TrackingEvent struct {
	Status      string
	Date        *time.Time
	Description string
	Completed   bool
}

// OrderTotals holds the client-supplied monetary summary in the smallest
// currency unit. Values are validated non-negative but not re-derived from
// the line items.
type OrderTotals struct {
	ItemsPrice    int64
	ShippingPrice int64
	DiscountPrice int64
	TotalPrice    int64
}

// Cancellation bundles the cancellation workflow fields on an order.
type Cancellation struct {
	Status          CancellationStatus
	Reason          string
	RejectionReason string
	CancelledAt     *time.Time
	ApprovedBy      *string
}

// Refund bundles the refund workflow fields on an order.
type Refund struct {
	Status      RefundStatus
	Amount      int64
	ProcessedAt *time.Time
	ProcessedBy *string
}

// Revenue bundles the revenue recognition fields on an order.
type Revenue struct {
	Status      RevenueStatus
	Amount      int64
	ConfirmedAt *time.Time
	ConfirmedBy *string
}

// Order is the aggregate root owned by the order lifecycle service. Items and
// the address snapshot are immutable after creation; all later mutation is
// restricted to status, tracking, cancellation, and refund fields. Orders are
// never deleted, only transitioned.
type Order struct {
	ID              string
	OrderNumber     string
	TrackingNumber  string
	UserID          string
	Items           []OrderItem
	ShippingAddress ShippingAddress
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	PaymentGateway  PaymentGateway
	Razorpay        *RazorpayRefs
	Cashfree        *CashfreeRefs
	Status          OrderStatus
	Cancellation    Cancellation
	Revenue         Revenue
	Refund          Refund
	Totals          OrderTotals
	TrackingHistory []TrackingEvent
	StockRestored   bool
	Metadata        map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Owner reports whether the given user owns the order.
func (o Order) Owner(userID string) bool {
	return userID != "" && o.UserID == userID
}

// CancellationForbidden reports whether self-service cancellation is no
// longer available for the order's current status.
func (o Order) CancellationForbidden() bool {
	switch o.Status {
	case OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Product is the collaborator record consumed for stock checks and
// adjustments.
type Product struct {
	ID        string
	Name      string
	Price     int64
	Stock     int
	ImagePath string
	IsActive  bool
	UpdatedAt time.Time
}

// CartItem stores a single product entry within a cart.
type CartItem struct {
	ProductID string
	Quantity  int
	AddedAt   time.Time
}

// Cart aggregates the mutable pre-checkout state for a user. It is cleared as
// a side effect of order creation.
type Cart struct {
	ID        string
	UserID    string
	Items     []CartItem
	UpdatedAt time.Time
}

// UserProfile is the slim user projection consumed for ownership checks,
// phone verification, and masking.
type UserProfile struct {
	ID          string
	DisplayName string
	Email       string
	PhoneNumber string
	Roles       []string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasRole reports whether the profile carries the given role.
func (u UserProfile) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Announcement is an admin-authored broadcast message. Creation pushes a
// global event to every connected subscriber.
type Announcement struct {
	ID        string
	Title     string
	Body      string
	CreatedBy string
	CreatedAt time.Time
}

// Coupon is an admin-authored discount code. Creation pushes a global event
// to every connected subscriber.
type Coupon struct {
	ID          string
	Code        string
	Description string
	Percent     int
	ExpiresAt   *time.Time
	CreatedBy   string
	CreatedAt   time.Time
}

// OrderEventName identifies the push-event types emitted by the order
// lifecycle.
const (
	// EventOrderStatusUpdated is emitted whenever an order transitions.
	EventOrderStatusUpdated = "order-status-updated"
	// EventNewAnnouncement is broadcast globally when an announcement is created.
	EventNewAnnouncement = "new-announcement"
	// EventNewCoupon is broadcast globally when a coupon is created.
	EventNewCoupon = "new-coupon"
)

// OrderEvent is the payload pushed to order- and user-scoped subscribers on
// every lifecycle transition. Only the fields relevant to the triggering
// operation are populated.
type OrderEvent struct {
	OrderID            string
	OrderNumber        string
	UserID             string
	OrderStatus        OrderStatus
	PaymentStatus      *PaymentStatus
	CancellationStatus *CancellationStatus
	RefundStatus       *RefundStatus
	TrackingHistory    []TrackingEvent
	UpdatedAt          time.Time
}

// WebhookEvent is the audit record persisted for every received gateway
// webhook delivery.
type WebhookEvent struct {
	ID         string
	Gateway    PaymentGateway
	EventType  string
	GatewayRef string
	Verified   bool
	Applied    bool
	ReceivedAt time.Time
}

// AuditLogEntry stores normalized audit information for admin actions.
type AuditLogEntry struct {
	ID        string
	Actor     string
	ActorType string
	Action    string
	TargetRef string
	Metadata  map[string]any
	RequestID string
	IPHash    string
	UserAgent string
	CreatedAt time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}

// SignedUploadResponse returns signed URL payloads for media upload flows.
type SignedUploadResponse struct {
	ObjectPath string
	URL        string
	ExpiresAt  time.Time
	Method     string
	Headers    map[string]string
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
