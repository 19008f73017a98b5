package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/domain"
)

const cacheOpTimeout = 2 * time.Second

// CachedProductRepository puts a Redis read-through cache in front of
// GetProduct. Writes go to the wrapped repository, then bump the product's
// generation and evict the entry; a read that raced a write does not
// repopulate the cache. Redis failures are logged and the cache is bypassed.
type CachedProductRepository struct {
	ProductRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ ProductRepository = (*CachedProductRepository)(nil)

func NewCachedProductRepository(next ProductRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedProductRepository {
	return &CachedProductRepository{
		ProductRepository: next,
		client:            client,
		ttl:               ttl,
		logger:            logger,
	}
}

var errStaleFill = errors.New("product changed during cache fill")

func productCacheKey(id int64) string {
	return "product:" + strconv.FormatInt(id, 10)
}

// productGenKey counts writes to a product. A fill only lands if the count
// is unchanged since before the backing read.
func productGenKey(id int64) string {
	return productCacheKey(id) + ":gen"
}

func (r *CachedProductRepository) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	key := productCacheKey(id)

	cacheCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	cached, err := r.client.Get(cacheCtx, key).Bytes()
	cancel()
	switch {
	case err == nil:
		var product domain.Product
		if err := json.Unmarshal(cached, &product); err == nil {
			return &product, nil
		}
		r.logger.Warn("Discarding corrupt cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		r.logger.Warn("Product cache read failed", zap.String("key", key), zap.Error(err))
	}

	gen, genErr := r.generation(ctx, id)

	product, err := r.ProductRepository.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if genErr == nil {
		r.fill(ctx, id, gen, product)
	}
	return product, nil
}

func (r *CachedProductRepository) generation(ctx context.Context, id int64) (int64, error) {
	genCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	gen, err := r.client.Get(genCtx, productGenKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// fill caches product unless a write bumped the generation after gen was read.
func (r *CachedProductRepository) fill(ctx context.Context, id, gen int64, product *domain.Product) {
	data, err := json.Marshal(product)
	if err != nil {
		return
	}
	key, genKey := productCacheKey(id), productGenKey(id)

	setCtx, cancel := context.WithTimeout(ctx, cacheOpTimeout)
	defer cancel()
	err = r.client.Watch(setCtx, func(tx *redis.Tx) error {
		cur, err := tx.Get(setCtx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(setCtx, func(pipe redis.Pipeliner) error {
			pipe.Set(setCtx, key, data, r.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, redis.TxFailedErr):
		r.logger.Debug("Skipping stale product cache fill", zap.String("key", key))
	default:
		r.logger.Warn("Product cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (r *CachedProductRepository) UpdateProduct(ctx context.Context, id int64, patch domain.ProductPatch) (*domain.Product, error) {
	defer r.evict(ctx, id)
	return r.ProductRepository.UpdateProduct(ctx, id, patch)
}

func (r *CachedProductRepository) DeleteProduct(ctx context.Context, id int64) (bool, error) {
	defer r.evict(ctx, id)
	return r.ProductRepository.DeleteProduct(ctx, id)
}

func (r *CachedProductRepository) AdjustStock(ctx context.Context, id int64, adj domain.StockAdjustment) (*domain.Product, error) {
	defer r.evict(ctx, id)
	return r.ProductRepository.AdjustStock(ctx, id, adj)
}

func (r *CachedProductRepository) evict(ctx context.Context, id int64) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheOpTimeout)
	defer cancel()
	_, err := r.client.TxPipelined(delCtx, func(pipe redis.Pipeliner) error {
		pipe.Incr(delCtx, productGenKey(id))
		pipe.Del(delCtx, productCacheKey(id))
		return nil
	})
	if err != nil {
		r.logger.Warn("Product cache eviction failed",
			zap.Int64("product_id", id),
			zap.Error(err))
	}
}
