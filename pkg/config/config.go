package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/cloud-wave-best-zizon/inventory-service/pkg/tls"
)

type Config struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	AppEnv          string        `envconfig:"APP_ENV" default:"development"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LocalMode       bool          `envconfig:"LOCAL_MODE" default:"true"` // in-memory store, no AWS
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`

	AWSRegion        string `envconfig:"AWS_REGION" default:"ap-northeast-2"`
	DynamoDBEndpoint string `envconfig:"DYNAMODB_ENDPOINT"`
	ProductTableName string `envconfig:"PRODUCT_TABLE_NAME" default:"inventory-products"`
	OrderTableName   string `envconfig:"ORDER_TABLE_NAME" default:"inventory-orders"`

	RedisAddr       string        `envconfig:"REDIS_ADDR"`
	RedisPassword   string        `envconfig:"REDIS_PASSWORD"`
	RedisDB         int           `envconfig:"REDIS_DB" default:"0"`
	ProductCacheTTL time.Duration `envconfig:"PRODUCT_CACHE_TTL" default:"5m"`

	KafkaBrokers     []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic       string   `envconfig:"KAFKA_TOPIC" default:"inventory-events"`
	KafkaGroupID     string   `envconfig:"KAFKA_GROUP_ID" default:"inventory-stock-sync"`
	StockSyncEnabled bool     `envconfig:"STOCK_SYNC_ENABLED" default:"false"`

	TLS tls.TLSConfig `envconfig:"TLS"`
}

// Load reads an optional dotenv file (ENV_FILE, default ".env") and then the
// process environment. Variables already set in the environment win.
func Load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}
