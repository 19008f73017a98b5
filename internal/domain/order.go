package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUnknownOrderType  = errors.New("unknown order type")
)

type OrderType string

const (
	OrderTypePurchase OrderType = "purchase"
	OrderTypeSales    OrderType = "sales"
)

type OrderStatus string

const (
	StatusDraft     OrderStatus = "Draft"
	StatusPending   OrderStatus = "Pending"
	StatusApproved  OrderStatus = "Approved"
	StatusCompleted OrderStatus = "Completed"
	StatusCancelled OrderStatus = "Cancelled"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{StatusDraft, StatusPending, StatusApproved, StatusCompleted, StatusCancelled}

// Order status state machine:
//
//	Draft    → Pending, Approved, Cancelled
//	Pending  → Draft, Approved, Cancelled
//	Approved → Completed, Cancelled
//	Completed, Cancelled are terminal
var statusTransitions = map[OrderStatus][]OrderStatus{
	StatusDraft:     {StatusPending, StatusApproved, StatusCancelled},
	StatusPending:   {StatusDraft, StatusApproved, StatusCancelled},
	StatusApproved:  {StatusCompleted, StatusCancelled},
	StatusCompleted: {},
	StatusCancelled: {},
}

func (s OrderStatus) IsValid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// CanTransitionTo reports whether next is reachable from s in one step.
// Re-applying the current status is allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !next.IsValid() {
		return false
	}
	if s == next {
		return true
	}
	return slices.Contains(statusTransitions[s], next)
}

type OrderItem struct {
	ProductID     int64           `json:"productId"     validate:"gt=0"`
	Quantity      int             `json:"quantity"      validate:"gt=0"`
	Price         decimal.Decimal `json:"price"         validate:"gt=0"`
	SerialNumbers []string        `json:"serialNumbers"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ItemsTotal is the derived order total: Σ price × quantity.
func ItemsTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// OrderHeader holds the fields shared by purchase and sales orders.
type OrderHeader struct {
	OrderNumber     string          `json:"orderNumber"     validate:"required"`
	ReferenceNumber *string         `json:"referenceNumber,omitempty"`
	PartyName       string          `json:"partyName"       validate:"required"`
	Date            string          `json:"date"            validate:"required"`
	Items           []OrderItem     `json:"items"           validate:"min=1,dive"`
	Status          OrderStatus     `json:"status"          validate:"required,oneof=Draft Pending Approved Completed Cancelled"`
	Total           decimal.Decimal `json:"total"           validate:"gt=0"`
	PaymentTerms    string          `json:"paymentTerms"    validate:"required"`
	DeliveryMethod  string          `json:"deliveryMethod"  validate:"required"`
	TaxAmount       decimal.Decimal `json:"taxAmount"       validate:"gte=0"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"  validate:"gte=0"`
	Notes           *string         `json:"notes,omitempty"`
}

type PurchaseOrder struct {
	Type OrderType `json:"type" validate:"eq=purchase"`
	OrderHeader
	ExpectedDeliveryDate string  `json:"expectedDeliveryDate" validate:"required"`
	VendorAddress        string  `json:"vendorAddress"`
	VendorContact        *string `json:"vendorContact,omitempty"`
	VendorEmail          *string `json:"vendorEmail,omitempty" validate:"omitnil,email"`
	VendorPhone          *string `json:"vendorPhone,omitempty"`
}

type SalesOrder struct {
	Type OrderType `json:"type" validate:"eq=sales"`
	OrderHeader
	ExpectedShipmentDate string  `json:"expectedShipmentDate" validate:"required"`
	Salesperson          string  `json:"salesperson"          validate:"required"`
	WarrantyStartDate    *string `json:"warrantyStartDate,omitempty"`
	ShippingAddress      string  `json:"shippingAddress"`
	BillingAddress       string  `json:"billingAddress"`
	CustomerEmail        *string `json:"customerEmail,omitempty" validate:"omitnil,email"`
	CustomerPhone        *string `json:"customerPhone,omitempty"`
	CustomerReference    *string `json:"customerReference,omitempty"`
}

// Order is implemented by *PurchaseOrder and *SalesOrder.
type Order interface {
	OrderID() string
	OrderType() OrderType
	Header() *OrderHeader
}

func (o *PurchaseOrder) OrderID() string      { return o.OrderNumber }
func (o *PurchaseOrder) OrderType() OrderType { return OrderTypePurchase }
func (o *PurchaseOrder) Header() *OrderHeader { return &o.OrderHeader }

func (o *SalesOrder) OrderID() string      { return o.OrderNumber }
func (o *SalesOrder) OrderType() OrderType { return OrderTypeSales }
func (o *SalesOrder) Header() *OrderHeader { return &o.OrderHeader }

func (h OrderHeader) cloneItems() []OrderItem {
	items := make([]OrderItem, len(h.Items))
	for i, item := range h.Items {
		item.SerialNumbers = slices.Clone(item.SerialNumbers)
		items[i] = item
	}
	return items
}

func (o PurchaseOrder) Clone() *PurchaseOrder {
	o.Items = o.cloneItems()
	return &o
}

func (o SalesOrder) Clone() *SalesOrder {
	o.Items = o.cloneItems()
	return &o
}

// DecodeOrder reads the "type" discriminator and decodes raw into the
// matching order variant.
func DecodeOrder(raw []byte) (Order, error) {
	var probe struct {
		Type OrderType `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}

	switch probe.Type {
	case OrderTypePurchase:
		var po PurchaseOrder
		if err := json.Unmarshal(raw, &po); err != nil {
			return nil, err
		}
		return &po, nil
	case OrderTypeSales:
		var so SalesOrder
		if err := json.Unmarshal(raw, &so); err != nil {
			return nil, err
		}
		return &so, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOrderType, probe.Type)
	}
}
