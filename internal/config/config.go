package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all runtime configuration for the trading core.
type Config struct {
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Storage. An empty DatabaseURL selects the in-memory store.
	DatabaseURL      string `env:"DATABASE_URL"`
	DatabaseMaxConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"10"`
	RunMigrations    bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	// Redis backs the distributed match lock and settlement pub/sub.
	// An empty RedisAddr keeps both in-process.
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	RedisChannel  string        `env:"REDIS_CHANNEL" envDefault:"tradingcore:settlements"`
	MatchLockTTL  time.Duration `env:"MATCH_LOCK_TTL" envDefault:"30s"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"tradingcore.settlements"`

	BuyerFee  decimal.Decimal `env:"BUYER_FEE" envDefault:"100"`
	SellerFee decimal.Decimal `env:"SELLER_FEE" envDefault:"100"`

	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads configuration from the environment, after merging a .env
// file when present, applies defaults, and validates values. It returns an
// error for any invalid value.
func Load() (*Config, error) {
	// A missing .env file is fine; real environment variables win.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d, must be between 1 and 65535", c.Port)
	}
	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", c.LogLevel)
	}
	if c.DatabaseMaxConns < 1 {
		return fmt.Errorf("invalid DATABASE_MAX_CONNS: %d, must be at least 1", c.DatabaseMaxConns)
	}
	if c.RedisDB < 0 {
		return fmt.Errorf("invalid REDIS_DB: %d, must not be negative", c.RedisDB)
	}
	if c.BuyerFee.IsNegative() {
		return fmt.Errorf("invalid BUYER_FEE: %s, must not be negative", c.BuyerFee)
	}
	if c.SellerFee.IsNegative() {
		return fmt.Errorf("invalid SELLER_FEE: %s, must not be negative", c.SellerFee)
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("invalid KAFKA_TOPIC: required when KAFKA_BROKERS is set")
	}

	for _, d := range []struct {
		key string
		val time.Duration
	}{
		{"MATCH_LOCK_TTL", c.MatchLockTTL},
		{"READ_TIMEOUT", c.ReadTimeout},
		{"WRITE_TIMEOUT", c.WriteTimeout},
		{"IDLE_TIMEOUT", c.IdleTimeout},
		{"SHUTDOWN_TIMEOUT", c.ShutdownTimeout},
	} {
		if d.val <= 0 {
			return fmt.Errorf("invalid %s: %v, must be positive", d.key, d.val)
		}
	}
	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
