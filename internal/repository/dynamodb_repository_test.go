package repository

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
)

// stubDynamo routes each call to an optional function; unset calls fail.
type stubDynamo struct {
	getItem    func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error)
	putItem    func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error)
	updateItem func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error)
	deleteItem func(*dynamodb.DeleteItemInput) (*dynamodb.DeleteItemOutput, error)
	scan       func(*dynamodb.ScanInput) (*dynamodb.ScanOutput, error)
	transact   func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error)
}

var errUnexpectedCall = errors.New("unexpected call")

func (s *stubDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if s.getItem == nil {
		return nil, errUnexpectedCall
	}
	return s.getItem(in)
}

func (s *stubDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if s.putItem == nil {
		return nil, errUnexpectedCall
	}
	return s.putItem(in)
}

func (s *stubDynamo) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if s.updateItem == nil {
		return nil, errUnexpectedCall
	}
	return s.updateItem(in)
}

func (s *stubDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if s.deleteItem == nil {
		return nil, errUnexpectedCall
	}
	return s.deleteItem(in)
}

func (s *stubDynamo) Scan(_ context.Context, in *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if s.scan == nil {
		return nil, errUnexpectedCall
	}
	return s.scan(in)
}

func (s *stubDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	if s.transact == nil {
		return nil, errUnexpectedCall
	}
	return s.transact(in)
}

func pkOf(key map[string]types.AttributeValue) string {
	if s, ok := key["pk"].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func counterStub(seq int64) func(*dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
	return func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
		return &dynamodb.UpdateItemOutput{Attributes: map[string]types.AttributeValue{
			"seq": &types.AttributeValueMemberN{Value: strconv.FormatInt(seq, 10)},
		}}, nil
	}
}

func TestProductRecordConversion(t *testing.T) {
	cost := decimal.RequireFromString("4.25")
	category := "hardware"
	p := domain.Product{
		ID:            3,
		Name:          "Bolt",
		SKU:           "B-1",
		Price:         decimal.RequireFromString("0.10"),
		Quantity:      2,
		SerialNumbers: []string{"a", "b"},
		LastUpdated:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		CostPrice:     &cost,
		Category:      &category,
	}

	rec := toProductRecord(p)
	assert.Equal(t, "product#3", rec.PK)
	assert.Equal(t, "0.1", rec.Price)
	assert.Equal(t, "4.25", *rec.CostPrice)
	assert.Nil(t, rec.Weight)

	back, err := rec.toDomain()
	require.NoError(t, err)
	assert.True(t, back.Price.Equal(p.Price))
	assert.True(t, back.CostPrice.Equal(cost))
	assert.Equal(t, p.SerialNumbers, back.SerialNumbers)

	rec.Price = "abc"
	_, err = rec.toDomain()
	assert.Error(t, err)
}

func TestDynamoProductRepository_Create(t *testing.T) {
	ctx := context.Background()
	in := domain.ProductInput{Name: "n", Description: "d", SKU: "S-1", Price: decimal.NewFromInt(1), ImageURL: "i"}

	t.Run("writes product and sku guard", func(t *testing.T) {
		var written []string
		stub := &stubDynamo{
			updateItem: counterStub(7),
			transact: func(in *dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
				for _, item := range in.TransactItems {
					written = append(written, pkOf(item.Put.Item))
				}
				return &dynamodb.TransactWriteItemsOutput{}, nil
			},
		}
		repo := NewDynamoProductRepository(stub, "products")

		p, err := repo.CreateProduct(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, int64(7), p.ID)
		assert.Equal(t, []string{"product#7", "sku#S-1"}, written)
	})

	t.Run("guard conflict maps to duplicate sku", func(t *testing.T) {
		stub := &stubDynamo{
			updateItem: counterStub(8),
			transact: func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
				return nil, &types.TransactionCanceledException{CancellationReasons: []types.CancellationReason{
					{Code: aws.String("None")},
					{Code: aws.String("ConditionalCheckFailed")},
				}}
			},
		}
		repo := NewDynamoProductRepository(stub, "products")

		_, err := repo.CreateProduct(ctx, in)
		assert.ErrorIs(t, err, ErrDuplicateSKU)
	})
}

func TestDynamoProductRepository_GetMissing(t *testing.T) {
	stub := &stubDynamo{getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
		return &dynamodb.GetItemOutput{}, nil
	}}
	repo := NewDynamoProductRepository(stub, "products")

	_, err := repo.GetProduct(context.Background(), 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func productItem(t *testing.T, p domain.Product) map[string]types.AttributeValue {
	t.Helper()
	item, err := attributevalue.MarshalMap(toProductRecord(p))
	require.NoError(t, err)
	return item
}

func attributeNames(names map[string]string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		out = append(out, n)
	}
	return out
}

func trackedProduct() domain.Product {
	return domain.Product{
		ID:            4,
		Name:          "Router",
		SKU:           "S-4",
		Price:         decimal.NewFromInt(80),
		Quantity:      2,
		SerialNumbers: []string{"SN-1", "SN-2"},
		LastUpdated:   time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestDynamoProductRepository_DeleteMissing(t *testing.T) {
	stub := &stubDynamo{getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
		return &dynamodb.GetItemOutput{}, nil
	}}
	repo := NewDynamoProductRepository(stub, "products")

	deleted, err := repo.DeleteProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDynamoProductRepository_DeleteReleasesSKUInSameTransaction(t *testing.T) {
	item := productItem(t, trackedProduct())
	var deletedKeys []string
	var names []string
	stub := &stubDynamo{
		getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: item}, nil
		},
		transact: func(in *dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
			for _, it := range in.TransactItems {
				require.NotNil(t, it.Delete)
				deletedKeys = append(deletedKeys, pkOf(it.Delete.Key))
			}
			names = attributeNames(in.TransactItems[0].Delete.ExpressionAttributeNames)
			return &dynamodb.TransactWriteItemsOutput{}, nil
		},
	}
	repo := NewDynamoProductRepository(stub, "products")

	deleted, err := repo.DeleteProduct(context.Background(), 4)
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.Equal(t, []string{"product#4", "sku#S-4"}, deletedKeys)
	assert.ElementsMatch(t, []string{"pk", "sku"}, names)
}

func TestDynamoProductRepository_DeleteConditionFailure(t *testing.T) {
	cancelled := &types.TransactionCanceledException{CancellationReasons: []types.CancellationReason{
		{Code: aws.String("ConditionalCheckFailed")},
		{Code: aws.String("None")},
	}}

	t.Run("product already gone", func(t *testing.T) {
		item := productItem(t, trackedProduct())
		gets := 0
		stub := &stubDynamo{
			getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
				gets++
				if gets == 1 {
					return &dynamodb.GetItemOutput{Item: item}, nil
				}
				return &dynamodb.GetItemOutput{}, nil
			},
			transact: func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
				return nil, cancelled
			},
		}
		repo := NewDynamoProductRepository(stub, "products")

		deleted, err := repo.DeleteProduct(context.Background(), 4)
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("sku changed meanwhile", func(t *testing.T) {
		item := productItem(t, trackedProduct())
		stub := &stubDynamo{
			getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
				return &dynamodb.GetItemOutput{Item: item}, nil
			},
			transact: func(*dynamodb.TransactWriteItemsInput) (*dynamodb.TransactWriteItemsOutput, error) {
				return nil, cancelled
			},
		}
		repo := NewDynamoProductRepository(stub, "products")

		deleted, err := repo.DeleteProduct(context.Background(), 4)
		assert.ErrorIs(t, err, ErrConcurrentModification)
		assert.False(t, deleted)
	})
}

func TestDynamoProductRepository_AdjustStockConditionsOnLastUpdated(t *testing.T) {
	item := productItem(t, trackedProduct())
	var names []string
	stub := &stubDynamo{
		getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: item}, nil
		},
		putItem: func(in *dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			names = attributeNames(in.ExpressionAttributeNames)
			return &dynamodb.PutItemOutput{}, nil
		},
	}
	repo := NewDynamoProductRepository(stub, "products")

	got, err := repo.AdjustStock(context.Background(), 4, domain.StockAdjustment{Delta: 1, AddSerials: []string{"SN-3"}})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Quantity)
	assert.ElementsMatch(t, []string{"quantity", "last_updated"}, names)
}

func TestDynamoProductRepository_AdjustStockLostRace(t *testing.T) {
	item := productItem(t, trackedProduct())
	stub := &stubDynamo{
		getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			return &dynamodb.GetItemOutput{Item: item}, nil
		},
		putItem: func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
			return nil, &types.ConditionalCheckFailedException{}
		},
	}
	repo := NewDynamoProductRepository(stub, "products")

	_, err := repo.AdjustStock(context.Background(), 4, domain.StockAdjustment{Delta: -1, RemoveSerials: []string{"SN-1"}})
	assert.ErrorIs(t, err, ErrConcurrentModification)
}

func TestDynamoProductRepository_UpdateRejectsSerialCountDrift(t *testing.T) {
	item := productItem(t, trackedProduct())
	stub := &stubDynamo{getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
		return &dynamodb.GetItemOutput{Item: item}, nil
	}}
	repo := NewDynamoProductRepository(stub, "products")

	qty := 5
	_, err := repo.UpdateProduct(context.Background(), 4, domain.ProductPatch{Quantity: &qty})
	var countErr *domain.SerialCountError
	require.ErrorAs(t, err, &countErr)
	assert.Equal(t, 2, countErr.Serials)
}

func TestDynamoProductRepository_SearchEmptyQuerySkipsScan(t *testing.T) {
	repo := NewDynamoProductRepository(&stubDynamo{}, "products")

	got, err := repo.SearchProducts(context.Background(), "  ")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDynamoOrderRepository_CreateDuplicate(t *testing.T) {
	stub := &stubDynamo{putItem: func(*dynamodb.PutItemInput) (*dynamodb.PutItemOutput, error) {
		return nil, &types.ConditionalCheckFailedException{}
	}}
	repo := NewDynamoOrderRepository(stub, "orders")

	_, err := repo.CreatePurchaseOrder(context.Background(), domain.PurchaseOrder{
		OrderHeader: domain.OrderHeader{OrderNumber: "PO-1"},
	})
	assert.ErrorIs(t, err, ErrOrderExists)
}

func TestDynamoOrderRepository_UpdateOrderStatusFallsBackToSales(t *testing.T) {
	so := &domain.SalesOrder{
		Type:        domain.OrderTypeSales,
		OrderHeader: domain.OrderHeader{OrderNumber: "SO-1", Status: domain.StatusDraft},
		Salesperson: "Dana",
	}
	item, err := attributevalue.MarshalMap(orderRecord{
		PK:          "sales#SO-1",
		OrderType:   "sales",
		OrderNumber: "SO-1",
		Status:      "Draft",
		Payload:     `{"type":"sales","orderNumber":"SO-1","status":"Draft","salesperson":"Dana"}`,
	})
	require.NoError(t, err)

	var lookedUp []string
	var updatedKey string
	stub := &stubDynamo{
		getItem: func(in *dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
			pk := pkOf(in.Key)
			lookedUp = append(lookedUp, pk)
			if pk == "sales#SO-1" {
				return &dynamodb.GetItemOutput{Item: item}, nil
			}
			return &dynamodb.GetItemOutput{}, nil
		},
		updateItem: func(in *dynamodb.UpdateItemInput) (*dynamodb.UpdateItemOutput, error) {
			updatedKey = pkOf(in.Key)
			return &dynamodb.UpdateItemOutput{}, nil
		},
	}
	repo := NewDynamoOrderRepository(stub, "orders")

	o, prev, err := repo.UpdateOrderStatus(context.Background(), so.OrderNumber, domain.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, []string{"purchase#SO-1", "sales#SO-1"}, lookedUp)
	assert.Equal(t, "sales#SO-1", updatedKey)
	assert.Equal(t, domain.StatusDraft, prev)
	assert.Equal(t, domain.StatusApproved, o.Header().Status)
	assert.Equal(t, "Dana", o.(*domain.SalesOrder).Salesperson)
}

func TestDynamoOrderRepository_UpdateOrderStatusNotFound(t *testing.T) {
	stub := &stubDynamo{getItem: func(*dynamodb.GetItemInput) (*dynamodb.GetItemOutput, error) {
		return &dynamodb.GetItemOutput{}, nil
	}}
	repo := NewDynamoOrderRepository(stub, "orders")

	_, _, err := repo.UpdateOrderStatus(context.Background(), "nope", domain.StatusApproved)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
