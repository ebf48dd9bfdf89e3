package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/orchidcart/api/internal/platform/firestore"
	"github.com/orchidcart/api/internal/repositories"
)

// Registry bundles every Firestore-backed repository behind the
// repositories.Registry contract for dependency injection.
type Registry struct {
	provider *pfirestore.Provider

	orders        *OrderRepository
	products      *ProductRepository
	carts         *CartRepository
	users         *UserRepository
	announcements *AnnouncementRepository
	coupons       *CouponRepository
	webhookEvents *WebhookEventRepository
	auditLogs     *AuditLogRepository
	counters      *CounterRepository
	health        repositories.HealthRepository
}

// NewRegistry wires all repositories against the shared Firestore provider.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry requires firestore provider")
	}

	reg := &Registry{provider: provider, health: health}
	var err error
	if reg.orders, err = NewOrderRepository(provider); err != nil {
		return nil, err
	}
	if reg.products, err = NewProductRepository(provider); err != nil {
		return nil, err
	}
	if reg.carts, err = NewCartRepository(provider); err != nil {
		return nil, err
	}
	if reg.users, err = NewUserRepository(provider); err != nil {
		return nil, err
	}
	if reg.announcements, err = NewAnnouncementRepository(provider); err != nil {
		return nil, err
	}
	if reg.coupons, err = NewCouponRepository(provider); err != nil {
		return nil, err
	}
	if reg.webhookEvents, err = NewWebhookEventRepository(provider); err != nil {
		return nil, err
	}
	if reg.auditLogs, err = NewAuditLogRepository(provider); err != nil {
		return nil, err
	}
	if reg.counters, err = NewCounterRepository(provider); err != nil {
		return nil, err
	}
	return reg, nil
}

var _ repositories.Registry = (*Registry)(nil)

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// RunInTx executes fn inside a Firestore transaction.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil || r.provider == nil {
		return errors.New("registry not initialised")
	}
	return r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		return fn(ctx)
	})
}

func (r *Registry) Orders() repositories.OrderRepository               { return r.orders }
func (r *Registry) Products() repositories.ProductRepository           { return r.products }
func (r *Registry) Carts() repositories.CartRepository                 { return r.carts }
func (r *Registry) Users() repositories.UserRepository                 { return r.users }
func (r *Registry) Announcements() repositories.AnnouncementRepository { return r.announcements }
func (r *Registry) Coupons() repositories.CouponRepository             { return r.coupons }
func (r *Registry) WebhookEvents() repositories.WebhookEventRepository { return r.webhookEvents }
func (r *Registry) AuditLogs() repositories.AuditLogRepository         { return r.auditLogs }
func (r *Registry) Counters() repositories.CounterRepository           { return r.counters }
func (r *Registry) Health() repositories.HealthRepository              { return r.health }
