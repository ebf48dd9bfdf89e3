package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/orchidcart/api/internal/platform/auth"
	"github.com/orchidcart/api/internal/services"
)

const (
	maxMarketingBodySize     = 16 * 1024
	defaultMarketingPageSize = 20
	maxMarketingPageSize     = 100
)

type createAnnouncementRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type createCouponRequest struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Percent     int    `json:"percent"`
	ExpiresAt   string `json:"expiresAt,omitempty"`
}

type announcementPayload struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	CreatedBy string `json:"createdBy,omitempty"`
	CreatedAt string `json:"createdAt"`
}

type couponPayload struct {
	ID          string `json:"id"`
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
	Percent     int    `json:"percent"`
	ExpiresAt   string `json:"expiresAt,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

type announcementListPayload struct {
	Announcements []announcementPayload `json:"announcements"`
	NextPageToken string                `json:"nextPageToken,omitempty"`
}

type couponListPayload struct {
	Coupons       []couponPayload `json:"coupons"`
	NextPageToken string          `json:"nextPageToken,omitempty"`
}

// MarketingHandlers exposes announcement and coupon endpoints. Creation is
// admin-only and triggers a global broadcast; listing is public.
type MarketingHandlers struct {
	authn           *auth.Authenticator
	marketing       services.MarketingService
	audits          services.AuditLogService
	couponsDisabled bool
}

// MarketingOption customises marketing handler behaviour.
type MarketingOption func(*MarketingHandlers)

// WithCouponsDisabled removes the coupon endpoints from the route set.
func WithCouponsDisabled() MarketingOption {
	return func(h *MarketingHandlers) {
		h.couponsDisabled = true
	}
}

// NewMarketingHandlers constructs a new MarketingHandlers instance.
func NewMarketingHandlers(authn *auth.Authenticator, marketing services.MarketingService, audits services.AuditLogService, opts ...MarketingOption) *MarketingHandlers {
	h := &MarketingHandlers{
		authn:     authn,
		marketing: marketing,
		audits:    audits,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// AdminRoutes registers the /admin/marketing endpoints.
func (h *MarketingHandlers) AdminRoutes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	r.Post("/announcements", h.createAnnouncement)
	if !h.couponsDisabled {
		r.Post("/coupons", h.createCoupon)
	}
}

// PublicRoutes registers the unauthenticated marketing listing endpoints.
func (h *MarketingHandlers) PublicRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/announcements", h.listAnnouncements)
	if !h.couponsDisabled {
		r.Get("/coupons", h.listCoupons)
	}
}

func (h *MarketingHandlers) createAnnouncement(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req createAnnouncementRequest
	body, err := readLimitedBody(r, maxMarketingBodySize)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	announcement, err := h.marketing.CreateAnnouncement(ctx, services.CreateAnnouncementCommand{
		Title:   strings.TrimSpace(req.Title),
		Body:    req.Body,
		ActorID: identity.UID,
	})
	if err != nil {
		writeMarketingError(w, err)
		return
	}

	if h.audits != nil {
		h.audits.Record(ctx, services.AuditLogRecord{
			Actor:     identity.UID,
			ActorType: "admin",
			Action:    "marketing.announcement.create",
			TargetRef: announcement.ID,
		})
	}
	writeEnvelope(w, http.StatusCreated, "announcement created", buildAnnouncementPayload(announcement))
}

func (h *MarketingHandlers) createCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req createCouponRequest
	body, err := readLimitedBody(r, maxMarketingBodySize)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cmd := services.CreateCouponCommand{
		Code:        strings.TrimSpace(req.Code),
		Description: req.Description,
		Percent:     req.Percent,
		ActorID:     identity.UID,
	}
	if raw := strings.TrimSpace(req.ExpiresAt); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "expiresAt must be a valid RFC3339 timestamp")
			return
		}
		cmd.ExpiresAt = &ts
	}

	coupon, err := h.marketing.CreateCoupon(ctx, cmd)
	if err != nil {
		writeMarketingError(w, err)
		return
	}

	if h.audits != nil {
		h.audits.Record(ctx, services.AuditLogRecord{
			Actor:     identity.UID,
			ActorType: "admin",
			Action:    "marketing.coupon.create",
			TargetRef: coupon.ID,
			Metadata:  map[string]any{"code": coupon.Code},
		})
	}
	writeEnvelope(w, http.StatusCreated, "coupon created", buildCouponPayload(coupon))
}

func (h *MarketingHandlers) listAnnouncements(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := h.marketing.ListAnnouncements(ctx, marketingPager(r))
	if err != nil {
		writeMarketingError(w, err)
		return
	}

	items := make([]announcementPayload, 0, len(page.Items))
	for _, announcement := range page.Items {
		items = append(items, buildAnnouncementPayload(announcement))
	}
	writeEnvelope(w, http.StatusOK, "announcements fetched", announcementListPayload{
		Announcements: items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *MarketingHandlers) listCoupons(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := h.marketing.ListCoupons(ctx, marketingPager(r))
	if err != nil {
		writeMarketingError(w, err)
		return
	}

	items := make([]couponPayload, 0, len(page.Items))
	for _, coupon := range page.Items {
		items = append(items, buildCouponPayload(coupon))
	}
	writeEnvelope(w, http.StatusOK, "coupons fetched", couponListPayload{
		Coupons:       items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func marketingPager(r *http.Request) services.Pagination {
	query := r.URL.Query()
	return services.Pagination{
		PageSize:  parsePageSize(query.Get("pageSize"), defaultMarketingPageSize, maxMarketingPageSize),
		PageToken: strings.TrimSpace(query.Get("pageToken")),
	}
}

func buildAnnouncementPayload(announcement services.Announcement) announcementPayload {
	return announcementPayload{
		ID:        announcement.ID,
		Title:     announcement.Title,
		Body:      announcement.Body,
		CreatedBy: announcement.CreatedBy,
		CreatedAt: formatTime(announcement.CreatedAt),
	}
}

func buildCouponPayload(coupon services.Coupon) couponPayload {
	payload := couponPayload{
		ID:          coupon.ID,
		Code:        coupon.Code,
		Description: coupon.Description,
		Percent:     coupon.Percent,
		CreatedAt:   formatTime(coupon.CreatedAt),
	}
	if coupon.ExpiresAt != nil {
		payload.ExpiresAt = formatTime(*coupon.ExpiresAt)
	}
	return payload
}

func writeMarketingError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrMarketingInvalidInput):
		writeFailure(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrMarketingConflict):
		writeFailure(w, http.StatusConflict, err.Error())
	default:
		writeFailure(w, http.StatusInternalServerError, "failed to process marketing request")
	}
}
