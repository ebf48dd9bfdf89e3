package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/orchidcart/api/internal/domain"
	pfirestore "github.com/orchidcart/api/internal/platform/firestore"
	"github.com/orchidcart/api/internal/platform/pagination"
	"github.com/orchidcart/api/internal/repositories"
)

const announcementCollection = "announcements"

// AnnouncementRepository stores admin-authored announcements.
type AnnouncementRepository struct {
	base *pfirestore.BaseRepository[announcementDocument]
}

// NewAnnouncementRepository constructs a Firestore-backed announcement repository.
func NewAnnouncementRepository(provider *pfirestore.Provider) (*AnnouncementRepository, error) {
	if provider == nil {
		return nil, errors.New("announcement repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[announcementDocument](provider, announcementCollection, nil, nil)
	return &AnnouncementRepository{base: base}, nil
}

var _ repositories.AnnouncementRepository = (*AnnouncementRepository)(nil)

// Insert stores a new announcement.
func (r *AnnouncementRepository) Insert(ctx context.Context, announcement domain.Announcement) error {
	if r == nil || r.base == nil {
		return errors.New("announcement repository not initialised")
	}
	if strings.TrimSpace(announcement.ID) == "" {
		return errors.New("announcement id is required")
	}
	doc := announcementDocument{
		Title:     strings.TrimSpace(announcement.Title),
		Body:      announcement.Body,
		CreatedBy: strings.TrimSpace(announcement.CreatedBy),
		CreatedAt: announcement.CreatedAt,
	}
	_, err := r.base.Set(ctx, announcement.ID, doc)
	return err
}

// List returns announcements newest first.
func (r *AnnouncementRepository) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Announcement], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Announcement]{}, errors.New("announcement repository not initialised")
	}

	pageSize := pager.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}
	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Announcement]{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Asc)
		if len(cursor.StartAfter) > 0 {
			q = q.StartAfter(cursor.StartAfter...)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Announcement]{}, err
	}

	page := domain.CursorPage[domain.Announcement]{}
	hasMore := len(docs) > pageSize
	if hasMore {
		docs = docs[:pageSize]
	}
	for _, doc := range docs {
		page.Items = append(page.Items, domain.Announcement{
			ID:        doc.ID,
			Title:     doc.Data.Title,
			Body:      doc.Data.Body,
			CreatedBy: doc.Data.CreatedBy,
			CreatedAt: doc.Data.CreatedAt,
		})
	}
	if hasMore && len(docs) > 0 {
		last := docs[len(docs)-1]
		token, err := pagination.EncodeToken(pagination.Cursor{StartAfter: []any{last.Data.CreatedAt, last.ID}})
		if err != nil {
			return domain.CursorPage[domain.Announcement]{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

type announcementDocument struct {
	Title     string    `firestore:"title"`
	Body      string    `firestore:"body"`
	CreatedBy string    `firestore:"createdBy"`
	CreatedAt time.Time `firestore:"createdAt"`
}
