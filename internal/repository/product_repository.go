package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
)

const (
	productKeyPrefix  = "product#"
	skuKeyPrefix      = "sku#"
	productCounterKey = "counter#product"
)

// productRecord is the DynamoDB item shape. Money is stored as a decimal
// string so values round-trip exactly.
type productRecord struct {
	PK            string    `dynamodbav:"pk"`
	ProductID     int64     `dynamodbav:"product_id"`
	Name          string    `dynamodbav:"name"`
	Description   string    `dynamodbav:"description"`
	SKU           string    `dynamodbav:"sku"`
	Price         string    `dynamodbav:"price"`
	Quantity      int       `dynamodbav:"quantity"`
	ReorderPoint  int       `dynamodbav:"reorder_point"`
	ImageURL      string    `dynamodbav:"image_url"`
	SerialNumbers []string  `dynamodbav:"serial_numbers"`
	LastUpdated   time.Time `dynamodbav:"last_updated"`

	Category   *string `dynamodbav:"category,omitempty"`
	Brand      *string `dynamodbav:"brand,omitempty"`
	Location   *string `dynamodbav:"location,omitempty"`
	CostPrice  *string `dynamodbav:"cost_price,omitempty"`
	Barcode    *string `dynamodbav:"barcode,omitempty"`
	Weight     *string `dynamodbav:"weight,omitempty"`
	Dimensions *string `dynamodbav:"dimensions,omitempty"`
	Notes      *string `dynamodbav:"notes,omitempty"`
}

type skuGuard struct {
	PK        string `dynamodbav:"pk"`
	ProductID int64  `dynamodbav:"product_id"`
}

func productKey(id int64) string { return productKeyPrefix + strconv.FormatInt(id, 10) }
func skuKey(sku string) string   { return skuKeyPrefix + sku }

func decimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parseDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func toProductRecord(p domain.Product) productRecord {
	return productRecord{
		PK:            productKey(p.ID),
		ProductID:     p.ID,
		Name:          p.Name,
		Description:   p.Description,
		SKU:           p.SKU,
		Price:         p.Price.String(),
		Quantity:      p.Quantity,
		ReorderPoint:  p.ReorderPoint,
		ImageURL:      p.ImageURL,
		SerialNumbers: p.SerialNumbers,
		LastUpdated:   p.LastUpdated,
		Category:      p.Category,
		Brand:         p.Brand,
		Location:      p.Location,
		CostPrice:     decimalString(p.CostPrice),
		Barcode:       p.Barcode,
		Weight:        decimalString(p.Weight),
		Dimensions:    p.Dimensions,
		Notes:         p.Notes,
	}
}

func (r productRecord) toDomain() (domain.Product, error) {
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("invalid price %q: %w", r.Price, err)
	}
	costPrice, err := parseDecimal(r.CostPrice)
	if err != nil {
		return domain.Product{}, fmt.Errorf("invalid cost price: %w", err)
	}
	weight, err := parseDecimal(r.Weight)
	if err != nil {
		return domain.Product{}, fmt.Errorf("invalid weight: %w", err)
	}

	serials := r.SerialNumbers
	if serials == nil {
		serials = []string{}
	}
	return domain.Product{
		ID:            r.ProductID,
		Name:          r.Name,
		Description:   r.Description,
		SKU:           r.SKU,
		Price:         price,
		Quantity:      r.Quantity,
		ReorderPoint:  r.ReorderPoint,
		ImageURL:      r.ImageURL,
		SerialNumbers: serials,
		LastUpdated:   r.LastUpdated,
		Category:      r.Category,
		Brand:         r.Brand,
		Location:      r.Location,
		CostPrice:     costPrice,
		Barcode:       r.Barcode,
		Weight:        weight,
		Dimensions:    r.Dimensions,
		Notes:         r.Notes,
	}, nil
}

// DynamoProductRepository stores products, sku guards and the id counter in
// one table keyed by the string attribute "pk".
type DynamoProductRepository struct {
	client    DynamoDBAPI
	tableName string
	now       func() time.Time
}

var _ ProductRepository = (*DynamoProductRepository)(nil)

func NewDynamoProductRepository(client DynamoDBAPI, tableName string) *DynamoProductRepository {
	return &DynamoProductRepository{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}
}

func (r *DynamoProductRepository) nextID(ctx context.Context) (int64, error) {
	update := expression.Add(expression.Name("seq"), expression.Value(1))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return 0, err
	}

	result, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       stringKey(productCounterKey),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		UpdateExpression:          expr.Update(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment product counter: %w", err)
	}

	var counter struct {
		Seq int64 `dynamodbav:"seq"`
	}
	if err := attributevalue.UnmarshalMap(result.Attributes, &counter); err != nil {
		return 0, fmt.Errorf("failed to unmarshal product counter: %w", err)
	}
	return counter.Seq, nil
}

func (r *DynamoProductRepository) putProductItem(p domain.Product, cond expression.ConditionBuilder) (*types.TransactWriteItem, error) {
	av, err := attributevalue.MarshalMap(toProductRecord(p))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal product: %w", err)
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return nil, err
	}
	return &types.TransactWriteItem{Put: &types.Put{
		TableName:                 aws.String(r.tableName),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}}, nil
}

func (r *DynamoProductRepository) putGuardItem(sku string, id int64) (*types.TransactWriteItem, error) {
	av, err := attributevalue.MarshalMap(skuGuard{PK: skuKey(sku), ProductID: id})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sku guard: %w", err)
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("pk"))).
		Build()
	if err != nil {
		return nil, err
	}
	return &types.TransactWriteItem{Put: &types.Put{
		TableName:                aws.String(r.tableName),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	}}, nil
}

func (r *DynamoProductRepository) CreateProduct(ctx context.Context, in domain.ProductInput) (*domain.Product, error) {
	id, err := r.nextID(ctx)
	if err != nil {
		return nil, err
	}
	product := domain.NewProduct(id, in, r.now())

	putProduct, err := r.putProductItem(product, expression.AttributeNotExists(expression.Name("pk")))
	if err != nil {
		return nil, err
	}
	putGuard, err := r.putGuardItem(product.SKU, id)
	if err != nil {
		return nil, err
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{*putProduct, *putGuard},
	})
	if err != nil {
		if cancellationCode(err, 1) == "ConditionalCheckFailed" {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSKU, product.SKU)
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return &product, nil
}

func (r *DynamoProductRepository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            stringKey(productKey(id)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	if result.Item == nil {
		return nil, ErrProductNotFound
	}

	var rec productRecord
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product: %w", err)
	}
	product, err := rec.toDomain()
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *DynamoProductRepository) scanProducts(ctx context.Context) ([]domain.Product, error) {
	filter := expression.Name("pk").BeginsWith(productKeyPrefix)
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

	var products []domain.Product
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan products: %w", err)
		}
		var recs []productRecord
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &recs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal products: %w", err)
		}
		for _, rec := range recs {
			p, err := rec.toDomain()
			if err != nil {
				return nil, err
			}
			products = append(products, p)
		}
	}

	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (r *DynamoProductRepository) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := r.scanProducts(ctx)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

// SearchProducts scans and filters client-side; DynamoDB has no
// case-insensitive contains.
func (r *DynamoProductRepository) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	matches := []domain.Product{}
	if strings.TrimSpace(query) == "" {
		return matches, nil
	}

	products, err := r.scanProducts(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		if p.Matches(query) {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

func (r *DynamoProductRepository) UpdateProduct(ctx context.Context, id int64, patch domain.ProductPatch) (*domain.Product, error) {
	existing, err := r.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := existing.Apply(patch, r.now())
	if err := updated.CheckSerialCount(); err != nil {
		return nil, err
	}

	cond := expression.AttributeExists(expression.Name("pk")).
		And(expression.Name("last_updated").Equal(expression.Value(existing.LastUpdated)))
	putProduct, err := r.putProductItem(updated, cond)
	if err != nil {
		return nil, err
	}
	items := []types.TransactWriteItem{*putProduct}

	if updated.SKU != existing.SKU {
		putGuard, err := r.putGuardItem(updated.SKU, id)
		if err != nil {
			return nil, err
		}
		items = append(items, *putGuard, types.TransactWriteItem{Delete: &types.Delete{
			TableName: aws.String(r.tableName),
			Key:       stringKey(skuKey(existing.SKU)),
		}})
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		switch {
		case cancellationCode(err, 0) == "ConditionalCheckFailed":
			return nil, ErrConcurrentModification
		case cancellationCode(err, 1) == "ConditionalCheckFailed":
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSKU, updated.SKU)
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	return &updated, nil
}

// DeleteProduct removes the product and its sku guard in one transaction, so
// the sku is never left reserved by a product that no longer exists.
func (r *DynamoProductRepository) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	existing, err := r.GetProduct(ctx, id)
	if errors.Is(err, ErrProductNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	cond := expression.AttributeExists(expression.Name("pk")).
		And(expression.Name("sku").Equal(expression.Value(existing.SKU)))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return false, err
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:                 aws.String(r.tableName),
				Key:                       stringKey(productKey(id)),
				ConditionExpression:       expr.Condition(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			}},
			{Delete: &types.Delete{
				TableName: aws.String(r.tableName),
				Key:       stringKey(skuKey(existing.SKU)),
			}},
		},
	})
	if err == nil {
		return true, nil
	}
	if cancellationCode(err, 0) != "ConditionalCheckFailed" {
		return false, fmt.Errorf("failed to delete product: %w", err)
	}

	// gone already, or its sku moved underneath us
	if _, err := r.GetProduct(ctx, id); errors.Is(err, ErrProductNotFound) {
		return false, nil
	}
	return false, ErrConcurrentModification
}

// AdjustStock writes the adjusted product only if the record has not changed
// since it was read. Quantity alone is not enough: a serial swap keeps the
// count but changes the list.
func (r *DynamoProductRepository) AdjustStock(ctx context.Context, id int64, adj domain.StockAdjustment) (*domain.Product, error) {
	existing, err := r.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := existing.Adjust(adj, r.now())
	if err != nil {
		return nil, err
	}

	av, err := attributevalue.MarshalMap(toProductRecord(updated))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal product: %w", err)
	}
	cond := expression.Name("quantity").Equal(expression.Value(existing.Quantity)).
		And(expression.Name("last_updated").Equal(expression.Value(existing.LastUpdated)))
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return nil, err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		if isConditionFailed(err) {
			return nil, ErrConcurrentModification
		}
		return nil, fmt.Errorf("failed to adjust stock: %w", err)
	}

	return &updated, nil
}
