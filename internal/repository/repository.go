package repository

import (
	"context"
	"errors"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrDuplicateSKU    = errors.New("sku already exists")
	ErrOrderNotFound   = errors.New("order not found")
	ErrOrderExists     = errors.New("order already exists")
)

// ProductRepository stores products. Callers validate input first; the
// repository still enforces id assignment, sku uniqueness and existence.
type ProductRepository interface {
	CreateProduct(ctx context.Context, in domain.ProductInput) (*domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	UpdateProduct(ctx context.Context, id int64, patch domain.ProductPatch) (*domain.Product, error)
	// DeleteProduct reports whether a product was removed.
	DeleteProduct(ctx context.Context, id int64) (bool, error)
	SearchProducts(ctx context.Context, query string) ([]domain.Product, error)
	AdjustStock(ctx context.Context, id int64, adj domain.StockAdjustment) (*domain.Product, error)
}

// OrderRepository keeps purchase and sales orders in separate keyspaces,
// keyed by order number.
type OrderRepository interface {
	CreatePurchaseOrder(ctx context.Context, o domain.PurchaseOrder) (*domain.PurchaseOrder, error)
	CreateSalesOrder(ctx context.Context, o domain.SalesOrder) (*domain.SalesOrder, error)
	GetPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error)
	GetSalesOrder(ctx context.Context, id string) (*domain.SalesOrder, error)
	ListPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrder, error)
	ListSalesOrders(ctx context.Context) ([]domain.SalesOrder, error)
	// UpdateOrderStatus looks in the purchase keyspace first, then sales.
	// It returns the updated order and the status it replaced.
	UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, domain.OrderStatus, error)
}
