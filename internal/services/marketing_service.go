package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/orchidcart/api/internal/domain"
	"github.com/orchidcart/api/internal/repositories"
)

var (
	// ErrMarketingInvalidInput indicates malformed announcement or coupon input.
	ErrMarketingInvalidInput = errors.New("marketing: invalid input")
	// ErrMarketingConflict indicates a duplicate coupon code.
	ErrMarketingConflict = errors.New("marketing: conflict")
)

// GlobalEventPublisher broadcasts to every connected subscriber, regardless of
// order or user scope.
type GlobalEventPublisher interface {
	PublishGlobalEvent(ctx context.Context, name string, payload any) error
}

// MarketingServiceDeps bundles collaborators for the marketing service.
type MarketingServiceDeps struct {
	Announcements repositories.AnnouncementRepository
	Coupons       repositories.CouponRepository
	Events        GlobalEventPublisher
	Clock         func() time.Time
	IDGenerator   func() string
	Logger        func(ctx context.Context, event string, fields map[string]any)
}

type marketingService struct {
	announcements repositories.AnnouncementRepository
	coupons       repositories.CouponRepository
	events        GlobalEventPublisher
	clock         func() time.Time
	idGenerator   func() string
	logger        func(context.Context, string, map[string]any)
	htmlPolicy    *bluemonday.Policy
}

var _ MarketingService = (*marketingService)(nil)

// NewMarketingService constructs the announcement and coupon service.
func NewMarketingService(deps MarketingServiceDeps) (MarketingService, error) {
	if deps.Announcements == nil {
		return nil, errors.New("marketing service: announcement repository is required")
	}
	if deps.Coupons == nil {
		return nil, errors.New("marketing service: coupon repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return "mkt_" + ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &marketingService{
		announcements: deps.Announcements,
		coupons:       deps.Coupons,
		events:        deps.Events,
		clock:         func() time.Time { return clock().UTC() },
		idGenerator:   idGen,
		logger:        logger,
		htmlPolicy:    newMarketingHTMLPolicy(),
	}, nil
}

func (s *marketingService) CreateAnnouncement(ctx context.Context, cmd CreateAnnouncementCommand) (Announcement, error) {
	title := strings.TrimSpace(cmd.Title)
	if title == "" {
		return Announcement{}, fmt.Errorf("%w: title is required", ErrMarketingInvalidInput)
	}
	body := strings.TrimSpace(s.htmlPolicy.Sanitize(cmd.Body))
	if body == "" {
		return Announcement{}, fmt.Errorf("%w: body is required", ErrMarketingInvalidInput)
	}

	announcement := domain.Announcement{
		ID:        s.idGenerator(),
		Title:     title,
		Body:      body,
		CreatedBy: strings.TrimSpace(cmd.ActorID),
		CreatedAt: s.clock(),
	}

	if err := s.announcements.Insert(ctx, announcement); err != nil {
		return Announcement{}, err
	}

	s.broadcast(ctx, domain.EventNewAnnouncement, announcement)
	return announcement, nil
}

func (s *marketingService) ListAnnouncements(ctx context.Context, pager Pagination) (domain.CursorPage[Announcement], error) {
	return s.announcements.List(ctx, pager)
}

func (s *marketingService) CreateCoupon(ctx context.Context, cmd CreateCouponCommand) (Coupon, error) {
	code := strings.ToUpper(strings.TrimSpace(cmd.Code))
	if code == "" {
		return Coupon{}, fmt.Errorf("%w: code is required", ErrMarketingInvalidInput)
	}
	if cmd.Percent <= 0 || cmd.Percent > 100 {
		return Coupon{}, fmt.Errorf("%w: percent must be between 1 and 100", ErrMarketingInvalidInput)
	}

	if _, err := s.coupons.FindByCode(ctx, code); err == nil {
		return Coupon{}, fmt.Errorf("%w: coupon %s already exists", ErrMarketingConflict, code)
	} else if !isRepositoryNotFound(err) {
		return Coupon{}, err
	}

	coupon := domain.Coupon{
		ID:          s.idGenerator(),
		Code:        code,
		Description: strings.TrimSpace(s.htmlPolicy.Sanitize(cmd.Description)),
		Percent:     cmd.Percent,
		ExpiresAt:   cmd.ExpiresAt,
		CreatedBy:   strings.TrimSpace(cmd.ActorID),
		CreatedAt:   s.clock(),
	}

	if err := s.coupons.Insert(ctx, coupon); err != nil {
		return Coupon{}, err
	}

	s.broadcast(ctx, domain.EventNewCoupon, coupon)
	return coupon, nil
}

func (s *marketingService) ListCoupons(ctx context.Context, pager Pagination) (domain.CursorPage[Coupon], error) {
	return s.coupons.List(ctx, pager)
}

func (s *marketingService) broadcast(ctx context.Context, name string, payload any) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishGlobalEvent(ctx, name, payload); err != nil {
		s.logger(ctx, "marketing.broadcast_failed", map[string]any{
			"event": name,
			"error": err.Error(),
		})
	}
}

func newMarketingHTMLPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.RequireNoFollowOnLinks(true)
	return policy
}

func isRepositoryNotFound(err error) bool {
	if err == nil {
		return false
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return repoErr.IsNotFound()
	}
	return false
}
