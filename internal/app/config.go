package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Lock backends.
const (
	LockLocal = "local"
	LockRedis = "redis"
)

// Config holds the complete application configuration, loadable from
// environment variables (STORE_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (STORE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (STORE_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Storage      string `default:"postgres" usage:"Storage backend: postgres or memory"`
	Lock         LockConfig
	Payment      PaymentConfig
	Events       EventsConfig
	Graceful     GracefulConfig
}

// LockConfig selects how concurrent mutations of one order are serialized.
// The local lock only covers a single API instance.
type LockConfig struct {
	Backend   string        `default:"local" usage:"Order lock backend: local or redis"`
	RedisAddr string        `default:"" usage:"Redis address for the redis lock backend" flag:"lock-redis-addr"`
	TTL       time.Duration `default:"30s" usage:"Redis lock lease duration"`
}

// PaymentConfig tunes the simulated payment gateway.
type PaymentConfig struct {
	Timeout     time.Duration `default:"5s" usage:"Upper bound for a single charge"`
	SuccessRate float64       `default:"0.8" usage:"Probability that a charge succeeds" flag:"payment-success-rate"`
	MaxAmount   string        `default:"0" usage:"Charges above this amount are declined; 0 disables the limit" flag:"payment-max-amount"`
	Latency     time.Duration `default:"0s" usage:"Simulated gateway latency"`
}

// EventsConfig configures order event publishing. Events are dropped when
// BrokerURL is empty.
type EventsConfig struct {
	BrokerURL string `default:"" usage:"RabbitMQ (AMQP) URL for order events" flag:"events-broker-url"`
	Exchange  string `default:"store.orders" usage:"Topic exchange for order events"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then validates it.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STORE",
		Files:     []string{"config.yaml", "/etc/store/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set STORE_DATABASE_URL or DATABASE_URL")
		}
	case StorageMemory:
	default:
		return errors.Errorf("unknown storage backend %q", c.Storage)
	}

	switch c.Lock.Backend {
	case LockLocal:
	case LockRedis:
		if c.Lock.RedisAddr == "" {
			return errors.New("redis lock backend requires a redis address")
		}
	default:
		return errors.Errorf("unknown lock backend %q", c.Lock.Backend)
	}

	if c.Payment.SuccessRate < 0 || c.Payment.SuccessRate > 1 {
		return errors.Errorf("payment success rate %v is outside [0, 1]", c.Payment.SuccessRate)
	}
	if c.Payment.Timeout <= 0 {
		return errors.New("payment timeout must be positive")
	}
	if _, err := c.Payment.maxAmount(); err != nil {
		return err
	}
	return nil
}

func (p PaymentConfig) maxAmount() (decimal.Decimal, error) {
	if p.MaxAmount == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(p.MaxAmount)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse payment max amount %q", p.MaxAmount)
	}
	if d.IsNegative() {
		return decimal.Zero, errors.Errorf("payment max amount %s is negative", p.MaxAmount)
	}
	return d, nil
}

// applyPlatformDefaults maps platform-provided environment variables that use
// standard names like DATABASE_URL and PORT to the STORE_-prefixed settings.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
