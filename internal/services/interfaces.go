package services

import (
	"context"
	"time"

	domain "github.com/orchidcart/api/internal/domain"
	"github.com/orchidcart/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	SortOrder          = domain.SortOrder
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderTotals        = domain.OrderTotals
	OrderStatus        = domain.OrderStatus
	PaymentMethod      = domain.PaymentMethod
	PaymentStatus      = domain.PaymentStatus
	PaymentGateway     = domain.PaymentGateway
	CancellationStatus = domain.CancellationStatus
	RevenueStatus      = domain.RevenueStatus
	RefundStatus       = domain.RefundStatus
	ShippingAddress    = domain.ShippingAddress
	TrackingEvent      = domain.TrackingEvent
	Product            = domain.Product
	Cart               = domain.Cart
	CartItem           = domain.CartItem
	UserProfile        = domain.UserProfile
	Announcement       = domain.Announcement
	Coupon             = domain.Coupon
	SystemHealthReport = domain.SystemHealthReport
	AuditLogEntry      = domain.AuditLogEntry
)

// OrderService owns the order, payment, cancellation, and revenue lifecycle.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error)
	GetOrder(ctx context.Context, query GetOrderQuery) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	DecideCancellation(ctx context.Context, cmd CancellationDecisionCommand) (Order, error)
	ProcessRefund(ctx context.Context, cmd ProcessRefundCommand) (Order, error)
	ConfirmCODReceipt(ctx context.Context, cmd ConfirmCODReceiptCommand) (Order, error)
	Track(ctx context.Context, query TrackOrderQuery) (TrackedOrder, error)
	ApplyGatewayPayment(ctx context.Context, cmd GatewayPaymentCommand) (Order, error)
	PaymentStatus(ctx context.Context, query PaymentStatusQuery) (PaymentStatusResult, error)
	ReconcileRevenue(ctx context.Context, cmd ReconcileRevenueCommand) (ReconcileRevenueResult, error)
}

// InventoryService wraps the atomic product stock counter.
type InventoryService interface {
	AdjustStock(ctx context.Context, cmd AdjustStockCommand) (Product, error)
	Reserve(ctx context.Context, lines []StockLine) (map[string]Product, error)
	Restore(ctx context.Context, lines []StockLine) (map[string]Product, error)
}

// MarketingService owns announcements and coupons together with their global broadcasts.
type MarketingService interface {
	CreateAnnouncement(ctx context.Context, cmd CreateAnnouncementCommand) (Announcement, error)
	ListAnnouncements(ctx context.Context, pager Pagination) (domain.CursorPage[Announcement], error)
	CreateCoupon(ctx context.Context, cmd CreateCouponCommand) (Coupon, error)
	ListCoupons(ctx context.Context, pager Pagination) (domain.CursorPage[Coupon], error)
}

// UserService resolves and synchronises the slim user profile projection.
type UserService interface {
	GetProfile(ctx context.Context, userID string) (UserProfile, error)
	SyncProfile(ctx context.Context, cmd SyncProfileCommand) (UserProfile, error)
}

// CounterService provisions monotonically increasing sequence values.
type CounterService interface {
	Next(ctx context.Context, counterID string) (int64, error)
	NextWithStep(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error
}

// SystemService exposes operational insight endpoints (health/readiness).
type SystemService interface {
	Health(ctx context.Context) (SystemHealthReport, error)
	Readiness(ctx context.Context) (SystemHealthReport, error)
}

// AuditLogService persists audit entries for admin actions. Implementations
// must not fail the primary mutation when the audit write fails.
type AuditLogService interface {
	Record(ctx context.Context, record AuditLogRecord)
	List(ctx context.Context, filter repositories.AuditLogFilter) (domain.CursorPage[AuditLogEntry], error)
}

// MediaService issues signed Cloud Storage URLs for product and announcement
// media uploads and order invoice downloads.
type MediaService interface {
	IssueUploadURL(ctx context.Context, cmd IssueUploadURLCommand) (MediaTicket, error)
	IssueInvoiceURL(ctx context.Context, query InvoiceURLQuery) (MediaTicket, error)
}

// BackgroundJobDispatcher schedules asynchronous side effects such as event publication.
type BackgroundJobDispatcher interface {
	Dispatch(ctx context.Context, job BackgroundJob) error
	Close(ctx context.Context) error
}

// Command/query DTOs ---------------------------------------------------------

// CreateOrderItemInput is one requested line of a checkout. Prices are
// client-supplied and trusted; quantity below one is rejected.
type CreateOrderItemInput struct {
	ProductID     string
	Name          string
	Quantity      int
	UnitPrice     int64
	SelectedPrice int64
	Size          *string
	Image         *string
}

// GatewayRefsInput carries gateway correlation identifiers supplied at creation.
type GatewayRefsInput struct {
	Gateway          string
	OrderID          string
	PaymentID        string
	Signature        string
	PaymentSessionID string
}

// CreateOrderCommand captures a validated checkout request.
type CreateOrderCommand struct {
	UserID          string
	Items           []CreateOrderItemInput
	ShippingAddress ShippingAddress
	PaymentMethod   string
	Totals          OrderTotals
	GatewayRefs     *GatewayRefsInput
	ClearCart       bool
	Metadata        map[string]any
}

// GetOrderQuery loads one order with ownership enforcement.
type GetOrderQuery struct {
	OrderID     string
	RequesterID string
	AdminAccess bool
}

// OrderListFilter is re-exported for handler use.
type OrderListFilter = repositories.OrderListFilter

// UpdateOrderStatusCommand is the admin transition request.
type UpdateOrderStatusCommand struct {
	OrderID      string
	ActorID      string
	TargetStatus string
}

// CancelOrderCommand is the customer's self-service cancellation request.
type CancelOrderCommand struct {
	OrderID     string
	RequesterID string
	Reason      string
}

// CancellationDecisionCommand records an admin approval or rejection.
type CancellationDecisionCommand struct {
	OrderID         string
	ActorID         string
	Approve         bool
	RejectionReason string
}

// ProcessRefundCommand finalises a refund for an online order.
type ProcessRefundCommand struct {
	OrderID string
	ActorID string
}

// ConfirmCODReceiptCommand records collected cash for a COD order.
type ConfirmCODReceiptCommand struct {
	OrderID string
	ActorID string
	Amount  int64
}

// TrackOrderQuery is the public tracking lookup.
type TrackOrderQuery struct {
	Identifier string
	Phone      string
}

// TrackedOrder is the public projection returned by Track. The owner's phone
// number is always masked.
type TrackedOrder struct {
	Order       Order
	MaskedPhone string
}

// GatewayPaymentCommand applies a verified gateway payment outcome to an order.
type GatewayPaymentCommand struct {
	Gateway        PaymentGateway
	GatewayOrderID string
	PaymentID      string
	Signature      string
	Succeeded      bool
	EventType      string
}

// PaymentStatusQuery asks for the normalized payment state of an order.
type PaymentStatusQuery struct {
	GatewayOrderID string
	RequesterID    string
	AdminAccess    bool
}

// PaymentStatusResult is the normalized payment state exposed to clients.
type PaymentStatusResult struct {
	OrderID       string
	PaymentID     string
	PaymentStatus PaymentStatus
	OrderStatus   OrderStatus
}

// ReconcileRevenueCommand sweeps delivered orders and re-derives revenue status.
type ReconcileRevenueCommand struct {
	PageSize  int
	PageToken string
}

// ReconcileRevenueResult reports the sweep outcome.
type ReconcileRevenueResult struct {
	Examined      int
	Updated       int
	NextPageToken string
}

// AdjustStockCommand applies a signed stock delta to one product.
type AdjustStockCommand struct {
	ProductID string
	Delta     int
	ActorID   string
	Reason    string
}

// StockLine pairs a product with a quantity for reserve/restore flows.
type StockLine = repositories.StockLine

// CreateAnnouncementCommand stores and broadcasts a new announcement.
type CreateAnnouncementCommand struct {
	Title   string
	Body    string
	ActorID string
}

// CreateCouponCommand stores and broadcasts a new coupon.
type CreateCouponCommand struct {
	Code        string
	Description string
	Percent     int
	ExpiresAt   *time.Time
	ActorID     string
}

// IssueUploadURLCommand requests a signed upload URL for a media object.
type IssueUploadURLCommand struct {
	Purpose     string
	TargetID    string
	FileName    string
	ContentType string
	ContentMD5  string
	MaxSize     int64
	ActorID     string
}

// InvoiceURLQuery requests a signed download URL for an order invoice.
type InvoiceURLQuery struct {
	OrderID     string
	RequesterID string
	AdminAccess bool
}

// MediaTicket carries a signed URL together with the headers the caller must send.
type MediaTicket struct {
	URL        string
	Method     string
	ObjectPath string
	ExpiresAt  time.Time
	Headers    map[string]string
}

// SyncProfileCommand upserts the profile projection from a verified identity.
type SyncProfileCommand struct {
	UserID      string
	DisplayName string
	Email       string
	PhoneNumber string
	Roles       []string
}

// AuditLogRecord is the write-side shape accepted by the audit service.
type AuditLogRecord struct {
	Actor     string
	ActorType string
	Action    string
	TargetRef string
	Metadata  map[string]any
	RequestID string
	IP        string
	UserAgent string
}

// BackgroundJob names an asynchronous unit of work with its payload.
type BackgroundJob struct {
	Kind    string
	Payload map[string]any
}
