package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrSerialMismatch    = errors.New("serial numbers do not match stock adjustment")
)

// SerialCountError is returned when a serial-tracked product would hold a
// quantity different from its number of serial numbers.
type SerialCountError struct {
	Quantity int
	Serials  int
}

func (e *SerialCountError) Error() string {
	return fmt.Sprintf("quantity %d does not match %d serial numbers", e.Quantity, e.Serials)
}

type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	SKU           string          `json:"sku"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
	ReorderPoint  int             `json:"reorderPoint"`
	ImageURL      string          `json:"imageUrl"`
	SerialNumbers []string        `json:"serialNumbers"`
	LastUpdated   time.Time       `json:"lastUpdated"`

	Category   *string          `json:"category"`
	Brand      *string          `json:"brand"`
	Location   *string          `json:"location"`
	CostPrice  *decimal.Decimal `json:"costPrice"`
	Barcode    *string          `json:"barcode"`
	Weight     *decimal.Decimal `json:"weight"`
	Dimensions *string          `json:"dimensions"`
	Notes      *string          `json:"notes"`
}

// ProductInput is the create payload. Everything except id and lastUpdated.
type ProductInput struct {
	Name          string          `json:"name"          validate:"required"`
	Description   string          `json:"description"   validate:"required"`
	SKU           string          `json:"sku"           validate:"required"`
	Price         decimal.Decimal `json:"price"         validate:"gt=0"`
	Quantity      int             `json:"quantity"      validate:"min=0"`
	ReorderPoint  int             `json:"reorderPoint"  validate:"min=0"`
	ImageURL      string          `json:"imageUrl"      validate:"required"`
	SerialNumbers []string        `json:"serialNumbers"`

	Category   *string          `json:"category"`
	Brand      *string          `json:"brand"`
	Location   *string          `json:"location"`
	CostPrice  *decimal.Decimal `json:"costPrice"  validate:"omitnil,gt=0"`
	Barcode    *string          `json:"barcode"`
	Weight     *decimal.Decimal `json:"weight"     validate:"omitnil,gt=0"`
	Dimensions *string          `json:"dimensions"`
	Notes      *string          `json:"notes"`
}

// ProductPatch carries a partial update. Nil fields are left untouched.
type ProductPatch struct {
	Name          *string          `json:"name"          validate:"omitnil,min=1"`
	Description   *string          `json:"description"   validate:"omitnil,min=1"`
	SKU           *string          `json:"sku"           validate:"omitnil,min=1"`
	Price         *decimal.Decimal `json:"price"         validate:"omitnil,gt=0"`
	Quantity      *int             `json:"quantity"      validate:"omitnil,min=0"`
	ReorderPoint  *int             `json:"reorderPoint"  validate:"omitnil,min=0"`
	ImageURL      *string          `json:"imageUrl"      validate:"omitnil,min=1"`
	SerialNumbers []string         `json:"serialNumbers"`

	Category   *string          `json:"category"`
	Brand      *string          `json:"brand"`
	Location   *string          `json:"location"`
	CostPrice  *decimal.Decimal `json:"costPrice"  validate:"omitnil,gt=0"`
	Barcode    *string          `json:"barcode"`
	Weight     *decimal.Decimal `json:"weight"     validate:"omitnil,gt=0"`
	Dimensions *string          `json:"dimensions"`
	Notes      *string          `json:"notes"`
}

// StockAdjustment moves stock in (positive Delta) or out (negative Delta).
// Serial-tracked products must name exactly |Delta| serials.
type StockAdjustment struct {
	Delta         int
	AddSerials    []string
	RemoveSerials []string
}

func NewProduct(id int64, in ProductInput, now time.Time) Product {
	serials := slices.Clone(in.SerialNumbers)
	if serials == nil {
		serials = []string{}
	}
	return Product{
		ID:            id,
		Name:          in.Name,
		Description:   in.Description,
		SKU:           in.SKU,
		Price:         in.Price,
		Quantity:      in.Quantity,
		ReorderPoint:  in.ReorderPoint,
		ImageURL:      in.ImageURL,
		SerialNumbers: serials,
		LastUpdated:   now,
		Category:      in.Category,
		Brand:         in.Brand,
		Location:      in.Location,
		CostPrice:     in.CostPrice,
		Barcode:       in.Barcode,
		Weight:        in.Weight,
		Dimensions:    in.Dimensions,
		Notes:         in.Notes,
	}
}

// IsLowStock reports whether the product is at or below its reorder point.
func (p Product) IsLowStock() bool {
	return p.Quantity <= p.ReorderPoint
}

func (p Product) IsSerialTracked() bool {
	return len(p.SerialNumbers) > 0
}

// StockValue is price × quantity.
func (p Product) StockValue() decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (p Product) Clone() Product {
	c := p
	c.SerialNumbers = slices.Clone(p.SerialNumbers)
	if c.SerialNumbers == nil {
		c.SerialNumbers = []string{}
	}
	return c
}

// Matches is the search predicate: case-insensitive substring over name, sku
// and every serial number.
func (p Product) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return false
	}
	if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.SKU), q) {
		return true
	}
	for _, sn := range p.SerialNumbers {
		if strings.Contains(strings.ToLower(sn), q) {
			return true
		}
	}
	return false
}

// Apply merges the non-nil fields of patch onto a copy of p.
// The id is never changed; lastUpdated is set to now.
func (p Product) Apply(patch ProductPatch, now time.Time) Product {
	out := p.Clone()
	if patch.Name != nil {
		out.Name = *patch.Name
	}
	if patch.Description != nil {
		out.Description = *patch.Description
	}
	if patch.SKU != nil {
		out.SKU = *patch.SKU
	}
	if patch.Price != nil {
		out.Price = *patch.Price
	}
	if patch.Quantity != nil {
		out.Quantity = *patch.Quantity
	}
	if patch.ReorderPoint != nil {
		out.ReorderPoint = *patch.ReorderPoint
	}
	if patch.ImageURL != nil {
		out.ImageURL = *patch.ImageURL
	}
	if patch.SerialNumbers != nil {
		out.SerialNumbers = slices.Clone(patch.SerialNumbers)
	}
	if patch.Category != nil {
		out.Category = patch.Category
	}
	if patch.Brand != nil {
		out.Brand = patch.Brand
	}
	if patch.Location != nil {
		out.Location = patch.Location
	}
	if patch.CostPrice != nil {
		out.CostPrice = patch.CostPrice
	}
	if patch.Barcode != nil {
		out.Barcode = patch.Barcode
	}
	if patch.Weight != nil {
		out.Weight = patch.Weight
	}
	if patch.Dimensions != nil {
		out.Dimensions = patch.Dimensions
	}
	if patch.Notes != nil {
		out.Notes = patch.Notes
	}
	out.LastUpdated = now
	return out
}

// CheckSerialCount enforces quantity == len(serialNumbers) on serial-tracked
// products. Untracked products always pass.
func (p Product) CheckSerialCount() error {
	if len(p.SerialNumbers) > 0 && p.Quantity != len(p.SerialNumbers) {
		return &SerialCountError{Quantity: p.Quantity, Serials: len(p.SerialNumbers)}
	}
	return nil
}

// Adjust applies a stock movement to a copy of p.
func (p Product) Adjust(adj StockAdjustment, now time.Time) (Product, error) {
	out := p.Clone()

	serialCount := len(adj.AddSerials) + len(adj.RemoveSerials)
	// untracked stock cannot be mixed with serials
	if !p.IsSerialTracked() && serialCount > 0 && p.Quantity > 0 {
		return Product{}, ErrSerialMismatch
	}
	if p.IsSerialTracked() || serialCount > 0 {
		switch {
		case adj.Delta > 0 && (len(adj.AddSerials) != adj.Delta || len(adj.RemoveSerials) > 0):
			return Product{}, ErrSerialMismatch
		case adj.Delta < 0 && (len(adj.RemoveSerials) != -adj.Delta || len(adj.AddSerials) > 0):
			return Product{}, ErrSerialMismatch
		case adj.Delta == 0 && serialCount > 0:
			return Product{}, ErrSerialMismatch
		}
	}

	if out.Quantity+adj.Delta < 0 {
		return Product{}, ErrInsufficientStock
	}

	for _, sn := range adj.AddSerials {
		if slices.Contains(out.SerialNumbers, sn) {
			return Product{}, ErrSerialMismatch
		}
		out.SerialNumbers = append(out.SerialNumbers, sn)
	}
	for _, sn := range adj.RemoveSerials {
		i := slices.Index(out.SerialNumbers, sn)
		if i < 0 {
			return Product{}, ErrSerialMismatch
		}
		out.SerialNumbers = slices.Delete(out.SerialNumbers, i, i+1)
	}

	out.Quantity += adj.Delta
	out.LastUpdated = now
	return out, nil
}
