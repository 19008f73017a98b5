package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/inventory-service/internal/events"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/handler"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/repository"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/service"
	"github.com/cloud-wave-best-zizon/inventory-service/internal/validation"
	"github.com/cloud-wave-best-zizon/inventory-service/pkg/config"
	"github.com/cloud-wave-best-zizon/inventory-service/pkg/logger"
	"github.com/cloud-wave-best-zizon/inventory-service/pkg/tls"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.AppEnv)
	if err != nil {
		log.Fatal("Failed to create logger:", err)
	}
	defer zl.Sync()

	if cfg.AppEnv != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	productRepo, orderRepo := buildRepositories(ctx, cfg, zl)

	if cfg.CacheEnabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			zl.Warn("Redis unreachable, product cache will be bypassed until it recovers",
				zap.String("addr", cfg.RedisAddr),
				zap.Error(err))
		}
		cancel()

		productRepo = repository.NewCachedProductRepository(productRepo, rdb, cfg.ProductCacheTTL, zl)
		zl.Info("Product cache enabled",
			zap.String("addr", cfg.RedisAddr),
			zap.Duration("ttl", cfg.ProductCacheTTL))
	}

	var publisher service.Publisher
	if cfg.KafkaEnabled() {
		producer := events.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic, zl)
		defer producer.Close()
		publisher = producer
		zl.Info("Event publishing enabled",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaTopic))
	}

	v := validation.New()
	productService := service.NewProductService(productRepo, v, publisher, zl)
	orderService := service.NewOrderService(orderRepo, productRepo, v, publisher, zl)

	if cfg.StockSyncEnabled && cfg.KafkaEnabled() {
		consumer := events.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID,
			events.NewStockSync(productService, zl), zl)
		consumer.Start(ctx)
		defer func() {
			if err := consumer.Stop(); err != nil {
				zl.Error("Failed to close Kafka consumer", zap.Error(err))
			}
		}()
	}

	router := handler.NewRouter(zl,
		handler.NewProductHandler(productService, zl),
		handler.NewOrderHandler(orderService, zl),
		handler.NewDashboardHandler(productService, orderService, zl))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	source, err := tls.Load(ctx, cfg.TLS, zl)
	if err != nil {
		zl.Fatal("Failed to load TLS configuration", zap.Error(err))
	}
	if source != nil {
		defer source.Close()
		srv.TLSConfig = source.ServerConfig()
		go source.Watch(ctx, time.Minute)
	}

	go func() {
		zl.Info("Starting server",
			zap.String("port", cfg.Port),
			zap.Bool("tls", source != nil),
			zap.Bool("local_mode", cfg.LocalMode))

		var err error
		if source != nil {
			// certificates come from TLSConfig
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()

	zl.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("Server forced to shutdown", zap.Error(err))
	}
	zl.Info("Server exited")
}

func buildRepositories(ctx context.Context, cfg *config.Config, zl *zap.Logger) (repository.ProductRepository, repository.OrderRepository) {
	if cfg.LocalMode {
		zl.Info("Using in-memory store")
		store := repository.NewMemoryStore()
		return store, store
	}

	client, err := repository.NewDynamoDBClient(ctx, cfg)
	if err != nil {
		zl.Fatal("Failed to create DynamoDB client", zap.Error(err))
	}
	zl.Info("Using DynamoDB store",
		zap.String("region", cfg.AWSRegion),
		zap.String("product_table", cfg.ProductTableName),
		zap.String("order_table", cfg.OrderTableName))

	return repository.NewDynamoProductRepository(client, cfg.ProductTableName),
		repository.NewDynamoOrderRepository(client, cfg.OrderTableName)
}
