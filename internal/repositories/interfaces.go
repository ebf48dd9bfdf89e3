package repositories

import (
	"context"
	"time"

	domain "github.com/orchidcart/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Orders() OrderRepository
	Products() ProductRepository
	Carts() CartRepository
	Users() UserRepository
	Announcements() AnnouncementRepository
	Coupons() CouponRepository
	WebhookEvents() WebhookEventRepository
	AuditLogs() AuditLogRepository
	Counters() CounterRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order aggregates and provides the lookup paths the
// lifecycle service and gateway webhooks depend on.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	FindByTrackingNumber(ctx context.Context, trackingNumber string) (domain.Order, error)
	FindByGatewayOrderID(ctx context.Context, gateway domain.PaymentGateway, gatewayOrderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// ProductRepository stores product records and owns the atomic stock counter.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	Upsert(ctx context.Context, product domain.Product) (domain.Product, error)
	// AdjustStock applies a signed delta to the stock counter inside a
	// transaction. Concurrent adjustments must not lose updates.
	AdjustStock(ctx context.Context, productID string, delta int) (domain.Product, error)
	// ReserveStock decrements stock for every line in a single transaction.
	// Any line with insufficient stock fails the whole reservation.
	ReserveStock(ctx context.Context, lines []StockLine, now time.Time) (map[string]domain.Product, error)
	// RestoreStock increments stock for every line in a single transaction.
	RestoreStock(ctx context.Context, lines []StockLine, now time.Time) (map[string]domain.Product, error)
}

// StockLine pairs a product with the quantity to reserve or restore.
type StockLine struct {
	ProductID string
	Quantity  int
}

// CartRepository owns cart persistence; the order service clears carts on checkout.
type CartRepository interface {
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	Clear(ctx context.Context, userID string) error
}

// UserRepository stores user profiles consumed for authorization and phone masking.
type UserRepository interface {
	FindByID(ctx context.Context, userID string) (domain.UserProfile, error)
	Upsert(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error)
}

// AnnouncementRepository stores admin-authored announcements.
type AnnouncementRepository interface {
	Insert(ctx context.Context, announcement domain.Announcement) error
	List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Announcement], error)
}

// CouponRepository stores discount codes.
type CouponRepository interface {
	Insert(ctx context.Context, coupon domain.Coupon) error
	FindByCode(ctx context.Context, code string) (domain.Coupon, error)
	List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Coupon], error)
}

// WebhookEventRepository appends audit records for received gateway webhooks.
type WebhookEventRepository interface {
	Append(ctx context.Context, event domain.WebhookEvent) error
}

// AuditLogRepository persists immutable audit trail entries for admin actions.
type AuditLogRepository interface {
	Append(ctx context.Context, entry domain.AuditLogEntry) error
	List(ctx context.Context, filter AuditLogFilter) (domain.CursorPage[domain.AuditLogEntry], error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}

// Filter DTOs shared across repositories ------------------------------------

type OrderListFilter struct {
	UserID     string
	Status     []string
	Gateway    string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

type AuditLogFilter struct {
	TargetRef  string
	Actor      string
	Action     string
	DateRange  domain.RangeQuery[time.Time]
	Pagination domain.Pagination
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}
