package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/repository"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/validation"
)

// OrderSummary counts orders per status for each keyspace.
type OrderSummary struct {
	PurchaseOrders map[domain.OrderStatus]int `json:"purchaseOrders"`
	SalesOrders    map[domain.OrderStatus]int `json:"salesOrders"`
}

type OrderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	validator   *validation.Validator
	publisher   Publisher
	logger      *zap.Logger
}

func NewOrderService(orderRepo repository.OrderRepository, productRepo repository.ProductRepository, validator *validation.Validator, publisher Publisher, logger *zap.Logger) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		productRepo: productRepo,
		validator:   validator,
		publisher:   publisher,
		logger:      logger,
	}
}

func (s *OrderService) CreatePurchaseOrder(ctx context.Context, o domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	if o.Type == "" {
		o.Type = domain.OrderTypePurchase
	}
	if err := s.validator.ValidatePurchaseOrder(&o); err != nil {
		return nil, err
	}
	if err := s.checkItems(ctx, o.Items); err != nil {
		return nil, err
	}

	created, err := s.orderRepo.CreatePurchaseOrder(ctx, o)
	if err != nil {
		return nil, s.createError(o.OrderNumber, err)
	}

	s.created(ctx, created)
	return created, nil
}

func (s *OrderService) CreateSalesOrder(ctx context.Context, o domain.SalesOrder) (*domain.SalesOrder, error) {
	if o.Type == "" {
		o.Type = domain.OrderTypeSales
	}
	if err := s.validator.ValidateSalesOrder(&o); err != nil {
		return nil, err
	}
	if err := s.checkItems(ctx, o.Items); err != nil {
		return nil, err
	}

	created, err := s.orderRepo.CreateSalesOrder(ctx, o)
	if err != nil {
		return nil, s.createError(o.OrderNumber, err)
	}

	s.created(ctx, created)
	return created, nil
}

// CreateOrder accepts either order variant, as produced by domain.DecodeOrder.
func (s *OrderService) CreateOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	switch order := o.(type) {
	case *domain.PurchaseOrder:
		return s.CreatePurchaseOrder(ctx, *order)
	case *domain.SalesOrder:
		return s.CreateSalesOrder(ctx, *order)
	default:
		return nil, fmt.Errorf("%w: %T", domain.ErrUnknownOrderType, o)
	}
}

func (s *OrderService) GetPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	o, err := s.orderRepo.GetPurchaseOrder(ctx, id)
	if err != nil {
		return nil, mapOrderError(err)
	}
	return o, nil
}

func (s *OrderService) GetSalesOrder(ctx context.Context, id string) (*domain.SalesOrder, error) {
	o, err := s.orderRepo.GetSalesOrder(ctx, id)
	if err != nil {
		return nil, mapOrderError(err)
	}
	return o, nil
}

func (s *OrderService) ListPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrder, error) {
	return s.orderRepo.ListPurchaseOrders(ctx)
}

func (s *OrderService) ListSalesOrders(ctx context.Context) ([]domain.SalesOrder, error) {
	return s.orderRepo.ListSalesOrders(ctx)
}

// UpdateOrderStatus moves an order through the status state machine. The
// purchase keyspace is checked before sales.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	if err := s.validator.ValidateStatus(status); err != nil {
		return nil, err
	}

	order, previous, err := s.orderRepo.UpdateOrderStatus(ctx, id, status)
	if err != nil {
		mapped := mapOrderError(err)
		if !errors.Is(mapped, ErrOrderNotFound) && !errors.Is(mapped, ErrInvalidTransition) &&
			!errors.Is(mapped, ErrConcurrentUpdate) {
			s.logger.Error("Failed to update order status",
				zap.String("order_id", id),
				zap.String("status", string(status)),
				zap.Error(err))
		}
		return nil, mapped
	}

	if previous == status {
		return order, nil
	}

	s.logger.Info("Order status changed",
		zap.String("order_id", id),
		zap.String("order_type", string(order.OrderType())),
		zap.String("previous_status", string(previous)),
		zap.String("status", string(status)))

	publish(ctx, s.publisher, s.logger, domain.NewOrderEvent(domain.EventOrderStatusChanged, order, previous, requestID(ctx)))
	return order, nil
}

func (s *OrderService) Summary(ctx context.Context) (OrderSummary, error) {
	purchases, err := s.orderRepo.ListPurchaseOrders(ctx)
	if err != nil {
		return OrderSummary{}, err
	}
	sales, err := s.orderRepo.ListSalesOrders(ctx)
	if err != nil {
		return OrderSummary{}, err
	}

	summary := OrderSummary{
		PurchaseOrders: make(map[domain.OrderStatus]int, len(domain.OrderStatuses)),
		SalesOrders:    make(map[domain.OrderStatus]int, len(domain.OrderStatuses)),
	}
	for _, st := range domain.OrderStatuses {
		summary.PurchaseOrders[st] = 0
		summary.SalesOrders[st] = 0
	}
	for _, o := range purchases {
		summary.PurchaseOrders[o.Status]++
	}
	for _, o := range sales {
		summary.SalesOrders[o.Status]++
	}
	return summary, nil
}

// checkItems reports every item whose productId does not reference a stored
// product.
func (s *OrderService) checkItems(ctx context.Context, items []domain.OrderItem) error {
	var errs validation.Errors
	for i, item := range items {
		_, err := s.productRepo.GetProduct(ctx, item.ProductID)
		if errors.Is(err, repository.ErrProductNotFound) {
			errs = append(errs, validation.FieldError{
				Field:   fmt.Sprintf("items[%d].productId", i),
				Message: fmt.Sprintf("references unknown product %d", item.ProductID),
			})
			continue
		}
		if err != nil {
			return err
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (s *OrderService) createError(orderNumber string, err error) error {
	if errors.Is(err, repository.ErrOrderExists) {
		return ErrOrderExists
	}
	s.logger.Error("Failed to save order",
		zap.String("order_id", orderNumber),
		zap.Error(err))
	return err
}

func (s *OrderService) created(ctx context.Context, o domain.Order) {
	h := o.Header()
	s.logger.Info("Order created successfully",
		zap.String("order_id", o.OrderID()),
		zap.String("order_type", string(o.OrderType())),
		zap.String("status", string(h.Status)),
		zap.Int("items_count", len(h.Items)),
		zap.String("total", h.Total.String()))

	publish(ctx, s.publisher, s.logger, domain.NewOrderEvent(domain.EventOrderCreated, o, "", requestID(ctx)))
}

func mapOrderError(err error) error {
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		return ErrOrderNotFound
	case errors.Is(err, repository.ErrConcurrentModification):
		return ErrConcurrentUpdate
	default:
		return err
	}
}
