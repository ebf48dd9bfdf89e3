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
	"github.com/orchidcart/api/internal/repositories"
)

const productCollection = "products"

// ProductRepository stores products and owns the transactional stock counter.
type ProductRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[productDocument](provider, productCollection, nil, nil)
	return &ProductRepository{provider: provider, base: base}, nil
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)

// FindByID loads a product by id.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	if strings.TrimSpace(productID) == "" {
		return domain.Product{}, errors.New("product id is required")
	}
	doc, err := r.base.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// Upsert stores the product document.
func (r *ProductRepository) Upsert(ctx context.Context, product domain.Product) (domain.Product, error) {
	if r == nil || r.base == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	if strings.TrimSpace(product.ID) == "" {
		return domain.Product{}, errors.New("product id is required")
	}
	doc := fromDomainProduct(product)
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	if _, err := r.base.Set(ctx, product.ID, doc); err != nil {
		return domain.Product{}, err
	}
	return doc.toDomain(product.ID), nil
}

// AdjustStock applies a signed delta to a single product's stock counter
// inside a transaction so concurrent adjustments never lose updates.
func (r *ProductRepository) AdjustStock(ctx context.Context, productID string, delta int) (domain.Product, error) {
	if r == nil || r.provider == nil {
		return domain.Product{}, errors.New("product repository not initialised")
	}
	if strings.TrimSpace(productID) == "" {
		return domain.Product{}, errors.New("product id is required")
	}

	var updated domain.Product
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.base.DocumentRef(ctx, productID)
		if err != nil {
			return err
		}
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return repositories.NewInventoryError(repositories.InventoryErrorProductNotFound, fmt.Sprintf("product %s not found", productID), err)
			}
			return err
		}
		var doc productDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode product %s: %w", productID, err)
		}
		doc.Stock += delta
		doc.UpdatedAt = time.Now().UTC()
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		updated = doc.toDomain(productID)
		return nil
	})
	if err != nil {
		return domain.Product{}, wrapStockError("products.adjust", err)
	}
	return updated, nil
}

// ReserveStock decrements stock for every line in one transaction. A single
// line with insufficient stock fails the whole reservation and leaves every
// counter untouched.
func (r *ProductRepository) ReserveStock(ctx context.Context, lines []repositories.StockLine, now time.Time) (map[string]domain.Product, error) {
	return r.applyStockLines(ctx, "products.reserve", lines, now, func(doc *productDocument, line repositories.StockLine) error {
		if doc.Stock < line.Quantity {
			return repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, fmt.Sprintf("insufficient stock for product %s", line.ProductID), nil)
		}
		doc.Stock -= line.Quantity
		return nil
	})
}

// RestoreStock increments stock for every line in one transaction.
func (r *ProductRepository) RestoreStock(ctx context.Context, lines []repositories.StockLine, now time.Time) (map[string]domain.Product, error) {
	return r.applyStockLines(ctx, "products.restore", lines, now, func(doc *productDocument, line repositories.StockLine) error {
		doc.Stock += line.Quantity
		return nil
	})
}

func (r *ProductRepository) applyStockLines(ctx context.Context, op string, lines []repositories.StockLine, now time.Time, apply func(*productDocument, repositories.StockLine) error) (map[string]domain.Product, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("product repository not initialised")
	}
	if len(lines) == 0 {
		return nil, errors.New("product repository: at least one stock line is required")
	}
	ts := now.UTC()
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	products := make(map[string]domain.Product, len(lines))
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for _, line := range lines {
			id := strings.TrimSpace(line.ProductID)
			if id == "" {
				return repositories.NewInventoryError(repositories.InventoryErrorUnknown, "product id is required", nil)
			}
			if line.Quantity <= 0 {
				return repositories.NewInventoryError(repositories.InventoryErrorUnknown, fmt.Sprintf("quantity for product %s must be > 0", id), nil)
			}
			ref, err := r.base.DocumentRef(ctx, id)
			if err != nil {
				return err
			}
			snap, err := tx.Get(ref)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewInventoryError(repositories.InventoryErrorProductNotFound, fmt.Sprintf("product %s not found", id), err)
				}
				return err
			}
			var doc productDocument
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode product %s: %w", id, err)
			}
			if err := apply(&doc, repositories.StockLine{ProductID: id, Quantity: line.Quantity}); err != nil {
				return err
			}
			doc.UpdatedAt = ts
			if err := tx.Set(ref, doc); err != nil {
				return err
			}
			products[id] = doc.toDomain(id)
		}
		return nil
	})
	if err != nil {
		return nil, wrapStockError(op, err)
	}
	return products, nil
}

func wrapStockError(op string, err error) error {
	if err == nil {
		return nil
	}
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		if invErr.Op == "" {
			invErr.Op = op
		}
		return invErr
	}
	return pfirestore.WrapError(op, err)
}

type productDocument struct {
	Name      string    `firestore:"name"`
	Price     int64     `firestore:"price"`
	Stock     int       `firestore:"stock"`
	ImagePath string    `firestore:"imagePath,omitempty"`
	IsActive  bool      `firestore:"isActive"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func fromDomainProduct(product domain.Product) productDocument {
	return productDocument{
		Name:      strings.TrimSpace(product.Name),
		Price:     product.Price,
		Stock:     product.Stock,
		ImagePath: strings.TrimSpace(product.ImagePath),
		IsActive:  product.IsActive,
		UpdatedAt: product.UpdatedAt,
	}
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:        id,
		Name:      d.Name,
		Price:     d.Price,
		Stock:     d.Stock,
		ImagePath: d.ImagePath,
		IsActive:  d.IsActive,
		UpdatedAt: d.UpdatedAt,
	}
}
