package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/orchidcart/api/internal/repositories"
)

var (
	// ErrInventoryInvalidInput signals the caller provided invalid arguments.
	ErrInventoryInvalidInput = errors.New("inventory: invalid input")
	// ErrInventoryInsufficientStock indicates the requested quantity exceeds availability.
	ErrInventoryInsufficientStock = errors.New("inventory: insufficient stock")
	// ErrInventoryProductNotFound indicates the product has no record.
	ErrInventoryProductNotFound = errors.New("inventory: product not found")
)

// InventoryServiceDeps bundles the collaborators required to construct an inventory service.
type InventoryServiceDeps struct {
	Products repositories.ProductRepository
	Clock    func() time.Time
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	products repositories.ProductRepository
	clock    func() time.Time
	logger   func(context.Context, string, map[string]any)
}

var _ InventoryService = (*inventoryService)(nil)

// NewInventoryService wires dependencies into a concrete InventoryService implementation.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Products == nil {
		return nil, errors.New("inventory service: product repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryService{
		products: deps.Products,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *inventoryService) AdjustStock(ctx context.Context, cmd AdjustStockCommand) (Product, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrInventoryInvalidInput)
	}
	if cmd.Delta == 0 {
		return Product{}, fmt.Errorf("%w: delta must be non-zero", ErrInventoryInvalidInput)
	}

	product, err := s.products.AdjustStock(ctx, productID, cmd.Delta)
	if err != nil {
		return Product{}, s.mapError(err)
	}

	s.logger(ctx, "inventory.adjusted", map[string]any{
		"product_id": productID,
		"delta":      cmd.Delta,
		"stock":      product.Stock,
		"actor":      cmd.ActorID,
		"reason":     cmd.Reason,
	})
	return product, nil
}

func (s *inventoryService) Reserve(ctx context.Context, lines []StockLine) (map[string]Product, error) {
	if err := validateStockLines(lines); err != nil {
		return nil, err
	}
	products, err := s.products.ReserveStock(ctx, lines, s.clock())
	if err != nil {
		return nil, s.mapError(err)
	}
	return products, nil
}

func (s *inventoryService) Restore(ctx context.Context, lines []StockLine) (map[string]Product, error) {
	if err := validateStockLines(lines); err != nil {
		return nil, err
	}
	products, err := s.products.RestoreStock(ctx, lines, s.clock())
	if err != nil {
		return nil, s.mapError(err)
	}
	return products, nil
}

func (s *inventoryService) mapError(err error) error {
	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		switch invErr.Code {
		case repositories.InventoryErrorInsufficientStock:
			return fmt.Errorf("%w: %s", ErrInventoryInsufficientStock, invErr.Message)
		case repositories.InventoryErrorProductNotFound:
			return fmt.Errorf("%w: %s", ErrInventoryProductNotFound, invErr.Message)
		}
	}
	return err
}

func validateStockLines(lines []repositories.StockLine) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: at least one line is required", ErrInventoryInvalidInput)
	}
	for i, line := range lines {
		if strings.TrimSpace(line.ProductID) == "" {
			return fmt.Errorf("%w: line %d: product id is required", ErrInventoryInvalidInput, i)
		}
		if line.Quantity < 1 {
			return fmt.Errorf("%w: line %d: quantity must be at least 1", ErrInventoryInvalidInput, i)
		}
	}
	return nil
}
