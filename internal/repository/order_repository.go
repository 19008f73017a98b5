package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
)

// orderRecord keeps the order document as JSON in payload. Status lives in
// its own attribute so it can be updated with a conditional expression.
type orderRecord struct {
	PK          string    `dynamodbav:"pk"`
	OrderType   string    `dynamodbav:"order_type"`
	OrderNumber string    `dynamodbav:"order_number"`
	Status      string    `dynamodbav:"status"`
	Payload     string    `dynamodbav:"payload"`
	CreatedAt   time.Time `dynamodbav:"created_at"`
}

func orderKey(t domain.OrderType, id string) string {
	return string(t) + "#" + id
}

type DynamoOrderRepository struct {
	client    DynamoDBAPI
	tableName string
}

var _ OrderRepository = (*DynamoOrderRepository)(nil)

func NewDynamoOrderRepository(client DynamoDBAPI, tableName string) *DynamoOrderRepository {
	return &DynamoOrderRepository{
		client:    client,
		tableName: tableName,
	}
}

func (r *DynamoOrderRepository) putOrder(ctx context.Context, o domain.Order) error {
	payload, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to encode order: %w", err)
	}
	av, err := attributevalue.MarshalMap(orderRecord{
		PK:          orderKey(o.OrderType(), o.OrderID()),
		OrderType:   string(o.OrderType()),
		OrderNumber: o.OrderID(),
		Status:      string(o.Header().Status),
		Payload:     string(payload),
		CreatedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("pk"))).
		Build()
	if err != nil {
		return err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return fmt.Errorf("%w: %s order %s", ErrOrderExists, o.OrderType(), o.OrderID())
		}
		return fmt.Errorf("failed to put order: %w", err)
	}
	return nil
}

func (r *DynamoOrderRepository) CreatePurchaseOrder(ctx context.Context, o domain.PurchaseOrder) (*domain.PurchaseOrder, error) {
	out := o.Clone()
	if err := r.putOrder(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *DynamoOrderRepository) CreateSalesOrder(ctx context.Context, o domain.SalesOrder) (*domain.SalesOrder, error) {
	out := o.Clone()
	if err := r.putOrder(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *DynamoOrderRepository) getRecord(ctx context.Context, t domain.OrderType, id string) (*orderRecord, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            stringKey(orderKey(t, id)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if result.Item == nil {
		return nil, ErrOrderNotFound
	}

	var rec orderRecord
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return &rec, nil
}

// decode restores the order document and overlays the status attribute.
func (rec orderRecord) decode() (domain.Order, error) {
	var o domain.Order
	switch domain.OrderType(rec.OrderType) {
	case domain.OrderTypePurchase:
		o = &domain.PurchaseOrder{}
	case domain.OrderTypeSales:
		o = &domain.SalesOrder{}
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownOrderType, rec.OrderType)
	}
	if err := json.Unmarshal([]byte(rec.Payload), o); err != nil {
		return nil, fmt.Errorf("failed to decode order %s: %w", rec.OrderNumber, err)
	}
	o.Header().Status = domain.OrderStatus(rec.Status)
	return o, nil
}

func (r *DynamoOrderRepository) GetPurchaseOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	rec, err := r.getRecord(ctx, domain.OrderTypePurchase, id)
	if err != nil {
		return nil, err
	}
	o, err := rec.decode()
	if err != nil {
		return nil, err
	}
	return o.(*domain.PurchaseOrder), nil
}

func (r *DynamoOrderRepository) GetSalesOrder(ctx context.Context, id string) (*domain.SalesOrder, error) {
	rec, err := r.getRecord(ctx, domain.OrderTypeSales, id)
	if err != nil {
		return nil, err
	}
	o, err := rec.decode()
	if err != nil {
		return nil, err
	}
	return o.(*domain.SalesOrder), nil
}

func (r *DynamoOrderRepository) scanOrders(ctx context.Context, t domain.OrderType) ([]domain.Order, error) {
	filter := expression.Name("pk").BeginsWith(string(t) + "#")
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, err
	}

	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	var orders []domain.Order
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan orders: %w", err)
		}
		var recs []orderRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal orders: %w", err)
		}
		for _, rec := range recs {
			o, err := rec.decode()
			if err != nil {
				return nil, err
			}
			orders = append(orders, o)
		}
	}

	sort.Slice(orders, func(i, j int) bool { return orders[i].OrderID() < orders[j].OrderID() })
	return orders, nil
}

func (r *DynamoOrderRepository) ListPurchaseOrders(ctx context.Context) ([]domain.PurchaseOrder, error) {
	orders, err := r.scanOrders(ctx, domain.OrderTypePurchase)
	if err != nil {
		return nil, err
	}
	out := make([]domain.PurchaseOrder, 0, len(orders))
	for _, o := range orders {
		out = append(out, *o.(*domain.PurchaseOrder))
	}
	return out, nil
}

func (r *DynamoOrderRepository) ListSalesOrders(ctx context.Context) ([]domain.SalesOrder, error) {
	orders, err := r.scanOrders(ctx, domain.OrderTypeSales)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SalesOrder, 0, len(orders))
	for _, o := range orders {
		out = append(out, *o.(*domain.SalesOrder))
	}
	return out, nil
}

func (r *DynamoOrderRepository) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (domain.Order, domain.OrderStatus, error) {
	for _, t := range []domain.OrderType{domain.OrderTypePurchase, domain.OrderTypeSales} {
		rec, err := r.getRecord(ctx, t, id)
		if err == ErrOrderNotFound {
			continue
		}
		if err != nil {
			return nil, "", err
		}

		previous := domain.OrderStatus(rec.Status)
		if !previous.CanTransitionTo(status) {
			return nil, previous, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, previous, status)
		}

		// Atomic status swap guarded by the status we just read
		update := expression.Set(expression.Name("status"), expression.Value(string(status)))
		cond := expression.Name("status").Equal(expression.Value(rec.Status))
		expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(cond).Build()
		if err != nil {
			return nil, previous, err
		}

		_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(r.tableName),
			Key:                       stringKey(rec.PK),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			UpdateExpression:          expr.Update(),
			ConditionExpression:       expr.Condition(),
			ReturnValues:              types.ReturnValueNone,
		})
		if err != nil {
			if isConditionFailed(err) {
				return nil, previous, ErrConcurrentModification
			}
			return nil, previous, fmt.Errorf("failed to update order status: %w", err)
		}

		rec.Status = string(status)
		o, err := rec.decode()
		if err != nil {
			return nil, previous, err
		}
		return o, previous, nil
	}

	return nil, "", ErrOrderNotFound
}
