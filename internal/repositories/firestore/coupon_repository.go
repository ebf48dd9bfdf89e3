package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/orchidcart/api/internal/domain"
	pfirestore "github.com/orchidcart/api/internal/platform/firestore"
	"github.com/orchidcart/api/internal/platform/pagination"
	"github.com/orchidcart/api/internal/repositories"
)

const couponCollection = "coupons"

// CouponRepository stores discount codes.
type CouponRepository struct {
	base *pfirestore.BaseRepository[couponDocument]
}

// NewCouponRepository constructs a Firestore-backed coupon repository.
func NewCouponRepository(provider *pfirestore.Provider) (*CouponRepository, error) {
	if provider == nil {
		return nil, errors.New("coupon repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[couponDocument](provider, couponCollection, nil, nil)
	return &CouponRepository{base: base}, nil
}

var _ repositories.CouponRepository = (*CouponRepository)(nil)

// Insert stores a new coupon.
func (r *CouponRepository) Insert(ctx context.Context, coupon domain.Coupon) error {
	if r == nil || r.base == nil {
		return errors.New("coupon repository not initialised")
	}
	if strings.TrimSpace(coupon.ID) == "" {
		return errors.New("coupon id is required")
	}
	doc := couponDocument{
		Code:        strings.ToUpper(strings.TrimSpace(coupon.Code)),
		Description: coupon.Description,
		Percent:     coupon.Percent,
		ExpiresAt:   coupon.ExpiresAt,
		CreatedBy:   strings.TrimSpace(coupon.CreatedBy),
		CreatedAt:   coupon.CreatedAt,
	}
	_, err := r.base.Set(ctx, coupon.ID, doc)
	return err
}

// FindByCode resolves a coupon by its normalized code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (domain.Coupon, error) {
	if r == nil || r.base == nil {
		return domain.Coupon{}, errors.New("coupon repository not initialised")
	}
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return domain.Coupon{}, errors.New("coupon code is required")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("code", "==", normalized).Limit(1)
	})
	if err != nil {
		return domain.Coupon{}, err
	}
	if len(docs) == 0 {
		return domain.Coupon{}, pfirestore.WrapError("coupons.query", status.Error(codes.NotFound, fmt.Sprintf("coupon %q not found", normalized)))
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

// List returns coupons newest first.
func (r *CouponRepository) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Coupon], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Coupon]{}, errors.New("coupon repository not initialised")
	}

	pageSize := pager.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Coupon]{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Asc)
		if len(cursor.StartAfter) > 0 {
			q = q.StartAfter(cursor.StartAfter...)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Coupon]{}, err
	}

	page := domain.CursorPage[domain.Coupon]{}
	hasMore := len(docs) > pageSize
	if hasMore {
		docs = docs[:pageSize]
	}
	for _, doc := range docs {
		page.Items = append(page.Items, doc.Data.toDomain(doc.ID))
	}
	if hasMore && len(docs) > 0 {
		last := docs[len(docs)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{StartAfter: []any{last.Data.CreatedAt, last.ID}})
		if err != nil {
			return domain.CursorPage[domain.Coupon]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

type couponDocument struct {
	Code        string     `firestore:"code"`
	Description string     `firestore:"description,omitempty"`
	Percent     int        `firestore:"percent"`
	ExpiresAt   *time.Time `firestore:"expiresAt,omitempty"`
	CreatedBy   string     `firestore:"createdBy"`
	CreatedAt   time.Time  `firestore:"createdAt"`
}

func (d couponDocument) toDomain(id string) domain.Coupon {
	return domain.Coupon{
		ID:          id,
		Code:        d.Code,
		Description: d.Description,
		Percent:     d.Percent,
		ExpiresAt:   d.ExpiresAt,
		CreatedBy:   d.CreatedBy,
		CreatedAt:   d.CreatedAt,
	}
}
