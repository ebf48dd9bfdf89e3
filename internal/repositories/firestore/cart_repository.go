package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/orchidcart/api/internal/domain"
	pfirestore "github.com/orchidcart/api/internal/platform/firestore"
	"github.com/orchidcart/api/internal/repositories"
)

const cartCollection = "carts"

// CartRepository persists cart documents keyed by user id. The order service
// clears a cart as a side effect of checkout.
type CartRepository struct {
	base     *pfirestore.BaseRepository[cartDocument]
	provider *pfirestore.Provider
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil)
	return &CartRepository{base: base, provider: provider}, nil
}

var _ repositories.CartRepository = (*CartRepository)(nil)

// GetCart loads the cart for a user. A missing document is returned as an
// empty cart rather than an error.
func (r *CartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: user id is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Cart{ID: uid, UserID: uid}, nil
		}
		return domain.Cart{}, err
	}

	cart := domain.Cart{ID: doc.ID, UserID: uid, UpdatedAt: doc.Data.UpdatedAt}
	for _, item := range doc.Data.Items {
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
		})
	}
	return cart, nil
}

// Clear removes every item from the user's cart. Clearing an absent cart is a
// no-op at the data level.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if r == nil || r.base == nil {
		return errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return errors.New("cart repository: user id is required")
	}

	doc := cartDocument{UserID: uid, Items: []cartItemDocument{}, UpdatedAt: time.Now().UTC()}
	if _, err := r.base.Set(ctx, uid, doc); err != nil {
		return pfirestore.WrapError("carts.clear", err)
	}
	return nil
}

type cartDocument struct {
	UserID    string             `firestore:"userId"`
	Items     []cartItemDocument `firestore:"items"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ProductID string    `firestore:"productId"`
	Quantity  int       `firestore:"quantity"`
	AddedAt   time.Time `firestore:"addedAt"`
}
