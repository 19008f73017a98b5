package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
)

func productInput(sku string) domain.ProductInput {
	return domain.ProductInput{
		Name:         "Widget " + sku,
		Description:  "test product",
		SKU:          sku,
		Price:        decimal.RequireFromString("10.00"),
		Quantity:     4,
		ReorderPoint: 2,
		ImageURL:     "https://example.com/p.png",
	}
}

func purchaseOrder(id string) domain.PurchaseOrder {
	return domain.PurchaseOrder{
		Type: domain.OrderTypePurchase,
		OrderHeader: domain.OrderHeader{
			OrderNumber: id,
			PartyName:   "Vendor",
			Date:        "2024-01-01",
			Items:       []domain.OrderItem{{ProductID: 1, Quantity: 1, Price: decimal.NewFromInt(3)}},
			Status:      domain.StatusDraft,
			Total:       decimal.NewFromInt(3),
		},
	}
}

func salesOrder(id string) domain.SalesOrder {
	po := purchaseOrder(id)
	return domain.SalesOrder{Type: domain.OrderTypeSales, OrderHeader: po.OrderHeader, Salesperson: "Dana"}
}

func TestMemoryStore_CreateProductAssignsIncreasingIDs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var last int64
	for i := 0; i < 5; i++ {
		p, err := store.CreateProduct(ctx, productInput(fmt.Sprintf("SKU-%d", i)))
		require.NoError(t, err)
		assert.Greater(t, p.ID, last)
		assert.False(t, p.LastUpdated.IsZero())
		last = p.ID
	}

	deleted, err := store.DeleteProduct(ctx, last)
	require.NoError(t, err)
	require.True(t, deleted)

	p, err := store.CreateProduct(ctx, productInput("SKU-new"))
	require.NoError(t, err)
	assert.Greater(t, p.ID, last, "freed ids must not be reused")
}

func TestMemoryStore_DuplicateSKU(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first, err := store.CreateProduct(ctx, productInput("BW-100"))
	require.NoError(t, err)

	dup := productInput("BW-100")
	dup.Name = "Impostor"
	_, err = store.CreateProduct(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicateSKU)

	got, err := store.GetProduct(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Name, got.Name)

	all, err := store.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryStore_SKUReusableAfterDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p, err := store.CreateProduct(ctx, productInput("A-1"))
	require.NoError(t, err)
	_, err = store.DeleteProduct(ctx, p.ID)
	require.NoError(t, err)

	_, err = store.CreateProduct(ctx, productInput("A-1"))
	assert.NoError(t, err)
}

func TestMemoryStore_UpdateProductIsPartial(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	created, err := store.CreateProduct(ctx, productInput("P-1"))
	require.NoError(t, err)

	store.now = func() time.Time { return base.Add(time.Minute) }
	price := decimal.NewFromInt(5)
	updated, err := store.UpdateProduct(ctx, created.ID, domain.ProductPatch{Price: &price})
	require.NoError(t, err)

	assert.True(t, updated.Price.Equal(price))
	assert.Equal(t, base.Add(time.Minute), updated.LastUpdated)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.Name, updated.Name)
	assert.Equal(t, created.Description, updated.Description)
	assert.Equal(t, created.SKU, updated.SKU)
	assert.Equal(t, created.Quantity, updated.Quantity)
	assert.Equal(t, created.ReorderPoint, updated.ReorderPoint)
	assert.Equal(t, created.ImageURL, updated.ImageURL)
}

func TestMemoryStore_UpdateProductSKU(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	a, err := store.CreateProduct(ctx, productInput("A"))
	require.NoError(t, err)
	_, err = store.CreateProduct(ctx, productInput("B"))
	require.NoError(t, err)

	taken := "B"
	_, err = store.UpdateProduct(ctx, a.ID, domain.ProductPatch{SKU: &taken})
	assert.ErrorIs(t, err, ErrDuplicateSKU)

	renamed := "C"
	_, err = store.UpdateProduct(ctx, a.ID, domain.ProductPatch{SKU: &renamed})
	require.NoError(t, err)

	// the old sku is free again
	_, err = store.CreateProduct(ctx, productInput("A"))
	assert.NoError(t, err)
}

func TestMemoryStore_UpdateProductKeepsSerialCount(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	in := productInput("SER-1")
	in.Quantity = 2
	in.SerialNumbers = []string{"SN-1", "SN-2"}
	p, err := store.CreateProduct(ctx, in)
	require.NoError(t, err)

	qty := 5
	_, err = store.UpdateProduct(ctx, p.ID, domain.ProductPatch{Quantity: &qty})
	var countErr *domain.SerialCountError
	require.ErrorAs(t, err, &countErr)
	assert.Equal(t, 5, countErr.Quantity)
	assert.Equal(t, 2, countErr.Serials)

	got, err := store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Quantity)

	// replacing both together is fine
	qty = 1
	_, err = store.UpdateProduct(ctx, p.ID, domain.ProductPatch{Quantity: &qty, SerialNumbers: []string{"SN-9"}})
	assert.NoError(t, err)
}

func TestMemoryStore_UpdateMissingProduct(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.UpdateProduct(context.Background(), 42, domain.ProductPatch{})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestMemoryStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p, err := store.CreateProduct(ctx, productInput("D-1"))
	require.NoError(t, err)

	deleted, err := store.DeleteProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = store.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestMemoryStore_SearchProducts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	in := productInput("BW-100")
	in.Name = "Blue Widget"
	in.SerialNumbers = []string{"SER-XYZ-1"}
	in.Quantity = 1
	_, err := store.CreateProduct(ctx, in)
	require.NoError(t, err)

	other := productInput("RG-7")
	other.Name = "Green Gadget"
	_, err = store.CreateProduct(ctx, other)
	require.NoError(t, err)

	for _, q := range []string{"blue", "BW-1", "widget", "xyz"} {
		got, err := store.SearchProducts(ctx, q)
		require.NoError(t, err)
		require.Len(t, got, 1, "query %q", q)
		assert.Equal(t, "BW-100", got[0].SKU)
	}

	got, err := store.SearchProducts(ctx, "red")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = store.SearchProducts(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, got, "empty query returns nothing")
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	in := productInput("C-1")
	in.SerialNumbers = []string{"S1"}
	in.Quantity = 1
	p, err := store.CreateProduct(ctx, in)
	require.NoError(t, err)

	p.SerialNumbers[0] = "tampered"
	p.Name = "tampered"

	got, err := store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"S1"}, got.SerialNumbers)
	assert.NotEqual(t, "tampered", got.Name)
}

func TestMemoryStore_AdjustStock(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	p, err := store.CreateProduct(ctx, productInput("ADJ"))
	require.NoError(t, err)

	got, err := store.AdjustStock(ctx, p.ID, domain.StockAdjustment{Delta: -4})
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)

	_, err = store.AdjustStock(ctx, p.ID, domain.StockAdjustment{Delta: -1})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	_, err = store.AdjustStock(ctx, 999, domain.StockAdjustment{Delta: 1})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestMemoryStore_ConcurrentCreatesKeepSKUsUnique(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.CreateProduct(ctx, productInput("SAME"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
		}
	}
	assert.Equal(t, 1, ok)
}

func TestMemoryStore_OrdersStrictCreate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.CreatePurchaseOrder(ctx, purchaseOrder("PO-1"))
	require.NoError(t, err)

	dup := purchaseOrder("PO-1")
	dup.PartyName = "Other"
	_, err = store.CreatePurchaseOrder(ctx, dup)
	assert.ErrorIs(t, err, ErrOrderExists)

	stored, err := store.GetPurchaseOrder(ctx, "PO-1")
	require.NoError(t, err)
	assert.Equal(t, "Vendor", stored.PartyName)

	// separate keyspace
	_, err = store.CreateSalesOrder(ctx, salesOrder("PO-1"))
	assert.NoError(t, err)
}

func TestMemoryStore_ListOrders(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for _, id := range []string{"PO-2", "PO-1"} {
		_, err := store.CreatePurchaseOrder(ctx, purchaseOrder(id))
		require.NoError(t, err)
	}
	_, err := store.CreateSalesOrder(ctx, salesOrder("SO-1"))
	require.NoError(t, err)

	pos, err := store.ListPurchaseOrders(ctx)
	require.NoError(t, err)
	require.Len(t, pos, 2)
	assert.Equal(t, "PO-1", pos[0].OrderNumber)

	sos, err := store.ListSalesOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, sos, 1)
}

func TestMemoryStore_UpdateOrderStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("purchase keyspace first", func(t *testing.T) {
		store := NewMemoryStore()
		_, err := store.CreatePurchaseOrder(ctx, purchaseOrder("X-1"))
		require.NoError(t, err)
		_, err = store.CreateSalesOrder(ctx, salesOrder("X-1"))
		require.NoError(t, err)

		o, prev, err := store.UpdateOrderStatus(ctx, "X-1", domain.StatusApproved)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderTypePurchase, o.OrderType())
		assert.Equal(t, domain.StatusDraft, prev)

		so, err := store.GetSalesOrder(ctx, "X-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusDraft, so.Status)
	})

	t.Run("falls back to sales", func(t *testing.T) {
		store := NewMemoryStore()
		_, err := store.CreateSalesOrder(ctx, salesOrder("SO-9"))
		require.NoError(t, err)

		o, _, err := store.UpdateOrderStatus(ctx, "SO-9", domain.StatusPending)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderTypeSales, o.OrderType())
		assert.Equal(t, domain.StatusPending, o.Header().Status)
	})

	t.Run("not found never creates", func(t *testing.T) {
		store := NewMemoryStore()
		_, _, err := store.UpdateOrderStatus(ctx, "PO-1", domain.StatusApproved)
		assert.ErrorIs(t, err, ErrOrderNotFound)

		pos, _ := store.ListPurchaseOrders(ctx)
		sos, _ := store.ListSalesOrders(ctx)
		assert.Empty(t, pos)
		assert.Empty(t, sos)
	})

	t.Run("illegal transition", func(t *testing.T) {
		store := NewMemoryStore()
		o := purchaseOrder("PO-C")
		o.Status = domain.StatusCancelled
		_, err := store.CreatePurchaseOrder(ctx, o)
		require.NoError(t, err)

		_, _, err = store.UpdateOrderStatus(ctx, "PO-C", domain.StatusApproved)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		stored, err := store.GetPurchaseOrder(ctx, "PO-C")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, stored.Status)
	})
}

func TestMemoryStore_HonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryStore().CreateProduct(ctx, productInput("X"))
	assert.ErrorIs(t, err, context.Canceled)
}
