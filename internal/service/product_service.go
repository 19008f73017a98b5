package service

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/repository"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/validation"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrProductExists    = errors.New("product with this sku already exists")
	ErrOrderNotFound    = errors.New("order not found")
	ErrOrderExists      = errors.New("order already exists")
	ErrConcurrentUpdate = errors.New("record was modified concurrently, retry")

	// domain rule violations pass through unchanged
	ErrInvalidTransition = domain.ErrInvalidTransition
	ErrInsufficientStock = domain.ErrInsufficientStock
	ErrSerialMismatch    = domain.ErrSerialMismatch
)

// Publisher delivers inventory events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event domain.InventoryEvent) error
}

// InventorySummary backs the dashboard.
type InventorySummary struct {
	ProductCount    int             `json:"productCount"`
	TotalUnits      int             `json:"totalUnits"`
	InventoryValue  decimal.Decimal `json:"inventoryValue"`
	LowStockCount   int             `json:"lowStockCount"`
	OutOfStockCount int             `json:"outOfStockCount"`
}

type ProductService struct {
	productRepo repository.ProductRepository
	validator   *validation.Validator
	publisher   Publisher
	logger      *zap.Logger
	now         func() time.Time
}

// NewProductService wires the product use cases. publisher may be nil, in
// which case no events are emitted.
func NewProductService(productRepo repository.ProductRepository, validator *validation.Validator, publisher Publisher, logger *zap.Logger) *ProductService {
	return &ProductService{
		productRepo: productRepo,
		validator:   validator,
		publisher:   publisher,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *ProductService) CreateProduct(ctx context.Context, in domain.ProductInput) (*domain.Product, error) {
	if err := s.validator.ValidateProduct(&in); err != nil {
		return nil, err
	}

	product, err := s.productRepo.CreateProduct(ctx, in)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateSKU) {
			return nil, ErrProductExists
		}
		s.logger.Error("Failed to save product",
			zap.String("sku", in.SKU),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Product created successfully",
		zap.Int64("product_id", product.ID),
		zap.String("sku", product.SKU),
		zap.Int("initial_stock", product.Quantity))

	publish(ctx, s.publisher, s.logger, domain.NewProductEvent(domain.EventProductCreated, *product, requestID(ctx)))
	if product.IsLowStock() {
		publish(ctx, s.publisher, s.logger, domain.NewProductEvent(domain.EventProductLowStock, *product, requestID(ctx)))
	}
	return product, nil
}

func (s *ProductService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := s.productRepo.GetProduct(ctx, id)
	if err != nil {
		return nil, mapProductError(err)
	}
	return product, nil
}

func (s *ProductService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.productRepo.ListProducts(ctx)
}

func (s *ProductService) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	return s.productRepo.SearchProducts(ctx, query)
}

// UpdateProduct validates the patch, then re-checks the serial/quantity
// coupling on the merged record before writing. The repository enforces the
// same rule again on the record it actually writes.
func (s *ProductService) UpdateProduct(ctx context.Context, id int64, patch domain.ProductPatch) (*domain.Product, error) {
	if err := s.validator.ValidateProductPatch(&patch); err != nil {
		return nil, err
	}

	current, err := s.productRepo.GetProduct(ctx, id)
	if err != nil {
		return nil, mapProductError(err)
	}
	if err := s.validator.ValidateMergedProduct(current.Apply(patch, s.now())); err != nil {
		return nil, err
	}

	updated, err := s.productRepo.UpdateProduct(ctx, id, patch)
	if err != nil {
		// the record changed between the read above and the write
		var countErr *domain.SerialCountError
		if errors.As(err, &countErr) {
			return nil, validation.Errors{validation.QuantityMismatch(countErr.Serials)}
		}
		if !errors.Is(err, repository.ErrProductNotFound) && !errors.Is(err, repository.ErrDuplicateSKU) &&
			!errors.Is(err, repository.ErrConcurrentModification) {
			s.logger.Error("Failed to update product",
				zap.Int64("product_id", id),
				zap.Error(err))
		}
		return nil, mapProductError(err)
	}

	s.logger.Info("Product updated successfully",
		zap.Int64("product_id", updated.ID),
		zap.Int("quantity", updated.Quantity))

	s.publishUpdate(ctx, current, updated)
	return updated, nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	existing, err := s.productRepo.GetProduct(ctx, id)
	if err != nil {
		return mapProductError(err)
	}

	removed, err := s.productRepo.DeleteProduct(ctx, id)
	if err != nil {
		s.logger.Error("Failed to delete product",
			zap.Int64("product_id", id),
			zap.Error(err))
		return mapProductError(err)
	}
	if !removed {
		return ErrProductNotFound
	}

	s.logger.Info("Product deleted", zap.Int64("product_id", id))
	publish(ctx, s.publisher, s.logger, domain.NewProductEvent(domain.EventProductDeleted, *existing, requestID(ctx)))
	return nil
}

// LowStockProducts returns products at or below their reorder point, most
// depleted first.
func (s *ProductService) LowStockProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.productRepo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	low := make([]domain.Product, 0)
	for _, p := range products {
		if p.IsLowStock() {
			low = append(low, p)
		}
	}
	slices.SortFunc(low, func(a, b domain.Product) int {
		if a.Quantity != b.Quantity {
			return a.Quantity - b.Quantity
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return low, nil
}

func (s *ProductService) Summary(ctx context.Context) (InventorySummary, error) {
	products, err := s.productRepo.ListProducts(ctx)
	if err != nil {
		return InventorySummary{}, err
	}

	summary := InventorySummary{ProductCount: len(products), InventoryValue: decimal.Zero}
	for _, p := range products {
		summary.TotalUnits += p.Quantity
		summary.InventoryValue = summary.InventoryValue.Add(p.StockValue())
		if p.IsLowStock() {
			summary.LowStockCount++
		}
		if p.Quantity == 0 {
			summary.OutOfStockCount++
		}
	}
	return summary, nil
}

// ReceiveStock adds quantity units, registering serials for tracked products.
func (s *ProductService) ReceiveStock(ctx context.Context, id int64, quantity int, serials []string) (*domain.Product, error) {
	return s.adjustStock(ctx, id, domain.StockAdjustment{Delta: quantity, AddSerials: serials})
}

// DeductStock removes quantity units, releasing serials for tracked products.
func (s *ProductService) DeductStock(ctx context.Context, id int64, quantity int, serials []string) (*domain.Product, error) {
	return s.adjustStock(ctx, id, domain.StockAdjustment{Delta: -quantity, RemoveSerials: serials})
}

func (s *ProductService) adjustStock(ctx context.Context, id int64, adj domain.StockAdjustment) (*domain.Product, error) {
	current, err := s.productRepo.GetProduct(ctx, id)
	if err != nil {
		return nil, mapProductError(err)
	}

	updated, err := s.productRepo.AdjustStock(ctx, id, adj)
	if err != nil {
		mapped := mapProductError(err)
		s.logger.Warn("Stock adjustment rejected",
			zap.Int64("product_id", id),
			zap.Int("delta", adj.Delta),
			zap.Error(err))
		return nil, mapped
	}

	s.logger.Info("Stock adjusted successfully",
		zap.Int64("product_id", id),
		zap.Int("previous_stock", current.Quantity),
		zap.Int("delta", adj.Delta),
		zap.Int("new_stock", updated.Quantity))

	s.publishUpdate(ctx, current, updated)
	return updated, nil
}

func (s *ProductService) publishUpdate(ctx context.Context, before, after *domain.Product) {
	publish(ctx, s.publisher, s.logger, domain.NewProductEvent(domain.EventProductUpdated, *after, requestID(ctx)))
	if !before.IsLowStock() && after.IsLowStock() {
		s.logger.Warn("Product reached reorder point",
			zap.Int64("product_id", after.ID),
			zap.Int("quantity", after.Quantity),
			zap.Int("reorder_point", after.ReorderPoint))
		publish(ctx, s.publisher, s.logger, domain.NewProductEvent(domain.EventProductLowStock, *after, requestID(ctx)))
	}
}

func mapProductError(err error) error {
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		return ErrProductNotFound
	case errors.Is(err, repository.ErrDuplicateSKU):
		return ErrProductExists
	case errors.Is(err, repository.ErrConcurrentModification):
		return ErrConcurrentUpdate
	default:
		return err
	}
}
