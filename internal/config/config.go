package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server   ServerConfig   `envconfig:"SERVER"`
	Database DatabaseConfig `envconfig:"DB"`
	Redis    RedisConfig    `envconfig:"REDIS"`
	Kafka    KafkaConfig    `envconfig:"KAFKA"`
	Features FeatureFlags   `envconfig:"FEATURE"`
	LogLevel string         `envconfig:"LOG_LEVEL" default:"info"`
	Version  string         `envconfig:"SERVICE_VERSION" default:"1.0.0"`
}

type ServerConfig struct {
	Port         int           `split_words:"true" default:"8000"`
	ReadTimeout  time.Duration `split_words:"true" default:"30s"`
	WriteTimeout time.Duration `split_words:"true" default:"30s"`
}

type DatabaseConfig struct {
	Host           string        `split_words:"true" default:"localhost"`
	Port           int           `split_words:"true" default:"5432"`
	User           string        `split_words:"true" default:"acme"`
	Password       string        `split_words:"true" default:"acme"`
	Name           string        `split_words:"true" default:"acme_sales"`
	SSLMode        string        `split_words:"true" default:"disable"`
	MaxOpenConns   int           `split_words:"true" default:"25"`
	MaxIdleConns   int           `split_words:"true" default:"5"`
	MaxLifetime    time.Duration `split_words:"true" default:"5m"`
	ConnectRetries int           `split_words:"true" default:"10"`
	ConnectDelay   time.Duration `split_words:"true" default:"2s"`
}

func (d DatabaseConfig) ConnectionString() string {
	return "host=" + d.Host +
		" port=" + strconv.Itoa(d.Port) +
		" user=" + d.User +
		" password=" + d.Password +
		" dbname=" + d.Name +
		" sslmode=" + d.SSLMode
}

type RedisConfig struct {
	Host     string        `split_words:"true" default:"localhost"`
	Port     int           `split_words:"true" default:"6379"`
	Password string        `split_words:"true"`
	DB       int           `split_words:"true" default:"0"`
	TTL      time.Duration `split_words:"true" default:"5m"`
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type KafkaConfig struct {
	Brokers       []string `split_words:"true" default:"localhost:9092"`
	OrdersTopic   string   `split_words:"true" default:"sales.orders"`
	PaymentsTopic string   `split_words:"true" default:"sales.payments"`
	ConsumerGroup string   `split_words:"true" default:"sales-service"`
}

// FeatureFlags gate the optional integrations. All default to off so the
// order flow touches nothing but Postgres unless explicitly enabled.
type FeatureFlags struct {
	EnableOrderCaching     bool `split_words:"true" default:"false"`
	EnableOrderEvents      bool `split_words:"true" default:"false"`
	EnablePaymentConsumer  bool `split_words:"true" default:"false"`
	AllowLineTotalOverride bool `split_words:"true" default:"false"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT %d", c.Server.Port)
	}
	if c.Database.ConnectRetries < 0 {
		return fmt.Errorf("DB_CONNECT_RETRIES cannot be negative")
	}
	if (c.Features.EnableOrderEvents || c.Features.EnablePaymentConsumer) && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when Kafka features are enabled")
	}
	return nil
}
