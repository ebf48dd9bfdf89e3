package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/orchidcart/api/internal/platform/auth"
	"github.com/orchidcart/api/internal/platform/config"
	"github.com/orchidcart/api/internal/repositories"
	"github.com/orchidcart/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Orders    services.OrderService
	Marketing services.MarketingService
	Users     services.UserService
	Inventory services.InventoryService
	Counters  services.CounterService
	Media     services.MediaService
	System    services.SystemService
	Jobs      services.BackgroundJobDispatcher
	Audit     services.AuditLogService
}

// Dependencies carries collaborators that live outside the repository registry:
// event fan-out, the job queue, and the storage URL signer. Any field left nil
// simply disables the service that needs it.
type Dependencies struct {
	OrderEvents  services.OrderEventPublisher
	GlobalEvents services.GlobalEventPublisher
	JobPublisher services.JobPublisher
	MediaSigner  services.URLSigner
	MediaBucket  string
	BuildVersion string
	AuditLogger  services.AuditLogger
	Logger       func(ctx context.Context, event string, fields map[string]any)
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
}

// NewContainer constructs the runtime dependencies. Production wiring will provide real
// implementations, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, deps Dependencies) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	svc, err := buildServices(ctx, reg, cfg, deps)
	if err != nil {
		return nil, err
	}

	return &Container{
		Config:       cfg,
		Repositories: reg,
		Services:     svc,
	}, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil || c.Repositories == nil {
		return nil
	}
	return c.Repositories.Close(ctx)
}

func buildServices(ctx context.Context, reg repositories.Registry, cfg config.Config, deps Dependencies) (Services, error) {
	var svc Services

	if auditRepo := reg.AuditLogs(); auditRepo != nil {
		auditSvc, err := services.NewAuditLogService(services.AuditLogServiceDeps{
			Repository: auditRepo,
			Clock:      time.Now,
			Logger:     deps.AuditLogger,
			HashSalt:   cfg.Webhooks.SigningSecret,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build audit log service: %w", err)
		}
		svc.Audit = auditSvc
	}

	counterRepo := reg.Counters()
	if counterRepo != nil {
		counterSvc, err := services.NewCounterService(services.CounterServiceDeps{
			Repository: counterRepo,
			Clock:      time.Now,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build counter service: %w", err)
		}
		svc.Counters = counterSvc
	}

	productsRepo := reg.Products()
	if productsRepo != nil {
		inventorySvc, err := services.NewInventoryService(services.InventoryServiceDeps{
			Products: productsRepo,
			Clock:    time.Now,
			Logger:   deps.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build inventory service: %w", err)
		}
		svc.Inventory = inventorySvc
	}

	if usersRepo := reg.Users(); usersRepo != nil {
		userDeps := services.UserServiceDeps{
			Users:       usersRepo,
			Clock:       time.Now,
			AdminEmails: cfg.Security.AdminEmails,
		}
		if cfg.Firebase.ProjectID != "" {
			firebase, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
			if err != nil {
				return Services{}, fmt.Errorf("build firebase verifier: %w", err)
			}
			userDeps.Firebase = firebase
		}
		userSvc, err := services.NewUserService(userDeps)
		if err != nil {
			return Services{}, fmt.Errorf("build user service: %w", err)
		}
		svc.Users = userSvc
	}

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            time.Now,
			Build: services.BuildInfo{
				Version:     deps.BuildVersion,
				Environment: cfg.Security.Environment,
				StartedAt:   time.Now().UTC(),
			},
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	ordersRepo := reg.Orders()
	if ordersRepo != nil && productsRepo != nil && counterRepo != nil {
		orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
			Orders:   ordersRepo,
			Products: productsRepo,
			Carts:    reg.Carts(),
			Users:    reg.Users(),
			Counters: counterRepo,
			Clock:    time.Now,
			Events:   deps.OrderEvents,
			Logger:   deps.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build order service: %w", err)
		}
		svc.Orders = orderSvc
	}

	if announcementsRepo := reg.Announcements(); announcementsRepo != nil {
		marketingSvc, err := services.NewMarketingService(services.MarketingServiceDeps{
			Announcements: announcementsRepo,
			Coupons:       reg.Coupons(),
			Events:        deps.GlobalEvents,
			Clock:         time.Now,
			Logger:        deps.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build marketing service: %w", err)
		}
		svc.Marketing = marketingSvc
	}

	if deps.MediaSigner != nil && deps.MediaBucket != "" && ordersRepo != nil {
		mediaSvc, err := services.NewMediaService(services.MediaServiceDeps{
			Signer: deps.MediaSigner,
			Orders: ordersRepo,
			Bucket: deps.MediaBucket,
			Logger: deps.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build media service: %w", err)
		}
		svc.Media = mediaSvc
	}

	if deps.JobPublisher != nil {
		jobsSvc, err := services.NewBackgroundJobDispatcher(services.BackgroundJobDispatcherDeps{
			Publisher: deps.JobPublisher,
			Clock:     time.Now,
			Logger:    deps.Logger,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build background job dispatcher: %w", err)
		}
		svc.Jobs = jobsSvc
	}

	return svc, nil
}
