package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
)

// StockAdjuster is the part of the product service the stock sync drives.
type StockAdjuster interface {
	ReceiveStock(ctx context.Context, id int64, quantity int, serials []string) (*domain.Product, error)
	DeductStock(ctx context.Context, id int64, quantity int, serials []string) (*domain.Product, error)
}

// StockSync applies completed orders to stock: purchase orders are received,
// sales orders are shipped. Every other event is ignored.
type StockSync struct {
	stock  StockAdjuster
	logger *zap.Logger
}

func NewStockSync(stock StockAdjuster, logger *zap.Logger) *StockSync {
	return &StockSync{stock: stock, logger: logger}
}

// Handle processes one raw event. Item failures do not stop the remaining
// items; they are joined into the returned error.
func (s *StockSync) Handle(ctx context.Context, value []byte) error {
	var event domain.InventoryEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	if event.Type != domain.EventOrderStatusChanged || event.Status != domain.StatusCompleted {
		return nil
	}

	s.logger.Info("Processing completed order",
		zap.String("order_id", event.OrderID),
		zap.String("order_type", string(event.OrderType)),
		zap.Int("items_count", len(event.Items)),
		zap.String("request_id", event.RequestID))

	var errs []error
	for _, item := range event.Items {
		var (
			product *domain.Product
			err     error
		)
		switch event.OrderType {
		case domain.OrderTypePurchase:
			product, err = s.stock.ReceiveStock(ctx, item.ProductID, item.Quantity, item.SerialNumbers)
		case domain.OrderTypeSales:
			product, err = s.stock.DeductStock(ctx, item.ProductID, item.Quantity, item.SerialNumbers)
		default:
			return fmt.Errorf("%w: %q", domain.ErrUnknownOrderType, event.OrderType)
		}

		if err != nil {
			s.logger.Error("Failed to apply order item to stock",
				zap.String("order_id", event.OrderID),
				zap.Int64("product_id", item.ProductID),
				zap.Int("quantity", item.Quantity),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("product %d: %w", item.ProductID, err))
			continue
		}

		s.logger.Info("Stock synchronised",
			zap.String("order_id", event.OrderID),
			zap.Int64("product_id", item.ProductID),
			zap.Int("new_stock", product.Quantity))
	}

	return errors.Join(errs...)
}
