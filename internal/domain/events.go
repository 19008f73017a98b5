package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventProductCreated     EventType = "product.created"
	EventProductUpdated     EventType = "product.updated"
	EventProductDeleted     EventType = "product.deleted"
	EventProductLowStock    EventType = "product.low_stock"
	EventOrderCreated       EventType = "order.created"
	EventOrderStatusChanged EventType = "order.status_changed"
)

// InventoryEvent is published on the inventory topic after every successful
// write. Product and order fields are filled depending on Type.
type InventoryEvent struct {
	EventID   string    `json:"eventId"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId,omitempty"`

	ProductID    int64  `json:"productId,omitempty"`
	SKU          string `json:"sku,omitempty"`
	Quantity     *int   `json:"quantity,omitempty"`
	ReorderPoint *int   `json:"reorderPoint,omitempty"`

	OrderID        string      `json:"orderId,omitempty"`
	OrderType      OrderType   `json:"orderType,omitempty"`
	PreviousStatus OrderStatus `json:"previousStatus,omitempty"`
	Status         OrderStatus `json:"status,omitempty"`
	Items          []OrderItem `json:"items,omitempty"`
}

func NewProductEvent(t EventType, p Product, requestID string) InventoryEvent {
	qty, reorder := p.Quantity, p.ReorderPoint
	return InventoryEvent{
		EventID:      uuid.NewString(),
		Type:         t,
		Timestamp:    time.Now().UTC(),
		RequestID:    requestID,
		ProductID:    p.ID,
		SKU:          p.SKU,
		Quantity:     &qty,
		ReorderPoint: &reorder,
	}
}

func NewOrderEvent(t EventType, o Order, previous OrderStatus, requestID string) InventoryEvent {
	h := o.Header()
	return InventoryEvent{
		EventID:        uuid.NewString(),
		Type:           t,
		Timestamp:      time.Now().UTC(),
		RequestID:      requestID,
		OrderID:        o.OrderID(),
		OrderType:      o.OrderType(),
		PreviousStatus: previous,
		Status:         h.Status,
		Items:          h.cloneItems(),
	}
}
