package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
)

// MemoryStore keeps all state in process memory. Construct one per process
// (or per test) and share it between handlers.
type MemoryStore struct {
	productsMu sync.RWMutex
	products   map[int64]domain.Product
	skus       map[string]int64
	nextID     int64

	ordersMu sync.RWMutex
	purchase map[string]domain.PurchaseOrder
	sales    map[string]domain.SalesOrder

	now func() time.Time
}

var (
	_ ProductRepository = (*MemoryStore)(nil)
	_ OrderRepository   = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[int64]domain.Product),
		skus:     make(map[string]int64),
		nextID:   1,
		purchase: make(map[string]domain.PurchaseOrder),
		sales:    make(map[string]domain.SalesOrder),
		now:      time.Now,
	}
}

func (s *MemoryStore) CreateProduct(ctx context.Context, in domain.ProductInput) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.productsMu.Lock()
	defer s.productsMu.Unlock()

	if _, exists := s.skus[in.SKU]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSKU, in.SKU)
	}

	id := s.nextID
	s.nextID++

	product := domain.NewProduct(id, in, s.now())
	s.products[id] = product
	s.skus[product.SKU] = id

	out := product.Clone()
	return &out, nil
}

func (s *MemoryStore) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.productsMu.RLock()
	defer s.productsMu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	out := product.Clone()
	return &out, nil
}

func (s *MemoryStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.productsMu.RLock()
	defer s.productsMu.RUnlock()

	return s.collectProducts(func(domain.Product) bool { return true }), nil
}

func (s *MemoryStore) UpdateProduct(ctx context.Context, id int64, patch domain.ProductPatch) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.productsMu.Lock()
	defer s.productsMu.Unlock()

	existing, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}

	updated := existing.Apply(patch, s.now())
	if err := updated.CheckSerialCount(); err != nil {
		return nil, err
	}
	if updated.SKU != existing.SKU {
		if owner, taken := s.skus[updated.SKU]; taken && owner != id {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSKU, updated.SKU)
		}
		delete(s.skus, existing.SKU)
		s.skus[updated.SKU] = id
	}
	s.products[id] = updated

	out := updated.Clone()
	return &out, nil
}

func (s *MemoryStore) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.productsMu.Lock()
	defer s.productsMu.Unlock()

	existing, ok := s.products[id]
	if !ok {
		return false, nil
	}
	delete(s.products, id)
	delete(s.skus, existing.SKU)
	return true, nil
}

func (s *MemoryStore) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.productsMu.RLock()
	defer s.productsMu.RUnlock()

	return s.collectProducts(func(p domain.Product) bool { return p.Matches(query) }), nil
}

func (s *MemoryStore) AdjustStock(ctx context.Context, id int64, adj domain.StockAdjustment) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.productsMu.Lock()
	defer s.productsMu.Unlock()

	existing, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	updated, err := existing.Adjust(adj, s.now())
	if err != nil {
		return nil, err
	}
	s.products[id] = updated

	out := updated.Clone()
	return &out, nil
}

// collectProducts must be called with productsMu held.
func (s *MemoryStore) collectProducts(keep func(domain.Product) bool) []domain.Product {
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if keep(p) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) CreatePurchaseOrder(ctx context.Context, o domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.ordersMu.Lock()
	defer s.ordersMu.Unlock()

	if _, exists := s.purchase[o.OrderNumber]; exists {
		return nil, fmt.Errorf("%w: purchase order %s", ErrOrderExists, o.OrderNumber)
	}
	s.purchase[o.OrderNumber] = *o.Clone()
	return o.Clone(), nil
}

func (s *MemoryStore) CreateSalesOrder(ctx context.Context, o domain.SalesOrder) (*domain.SalesOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.ordersMu.Lock()
	defer s.ordersMu.Unlock()

	if _, exists := s.sales[o.OrderNumber]; exists {
		return nil, fmt.Errorf("%w: sales order %s", ErrOrderExists, o.OrderNumber)
	}
	s.sales[o.OrderNumber] = *o.Clone()
	return o.Clone(), nil
}

func (s *MemoryStore) GetPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.ordersMu.RLock()
	defer s.ordersMu.RUnlock()

	o, ok := s.purchase[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (s *MemoryStore) GetSalesOrder(ctx context.Context, id string) (*domain.SalesOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.ordersMu.RLock()
	defer s.ordersMu.RUnlock()

	o, ok := s.sales[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o.Clone(), nil
}

func (s *MemoryStore) ListPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.ordersMu.RLock()
	defer s.ordersMu.RUnlock()

	out := make([]domain.PurchaseOrder, 0, len(s.purchase))
	for _, o := range s.purchase {
		out = append(out, *o.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	return out, nil
}

func (s *MemoryStore) ListSalesOrders(ctx context.Context) ([]domain.SalesOrder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.ordersMu.RLock()
	defer s.ordersMu.RUnlock()

	out := make([]domain.SalesOrder, 0, len(s.sales))
	for _, o := range s.sales {
		out = append(out, *o.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	return out, nil
}

func (s *MemoryStore) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, domain.OrderStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	s.ordersMu.Lock()
	defer s.ordersMu.Unlock()

	if o, ok := s.purchase[id]; ok {
		previous := o.Status
		if !previous.CanTransitionTo(status) {
			return nil, previous, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, previous, status)
		}
		o.Status = status
		s.purchase[id] = o
		return o.Clone(), previous, nil
	}

	if o, ok := s.sales[id]; ok {
		previous := o.Status
		if !previous.CanTransitionTo(status) {
			return nil, previous, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, previous, status)
		}
		o.Status = status
		s.sales[id] = o
		return o.Clone(), previous, nil
	}

	return nil, "", ErrOrderNotFound
}
