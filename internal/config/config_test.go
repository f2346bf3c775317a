package config

import (
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.DatabaseMaxConns != 10 {
		t.Errorf("DatabaseMaxConns = %d, want 10", cfg.DatabaseMaxConns)
	}
	if !cfg.RunMigrations {
		t.Error("RunMigrations = false, want true")
	}
	if cfg.RedisAddr != "" || cfg.RedisChannel != "tradingcore:settlements" {
		t.Errorf("Redis = %q/%q, want empty addr and default channel", cfg.RedisAddr, cfg.RedisChannel)
	}
	if cfg.MatchLockTTL != 30*time.Second {
		t.Errorf("MatchLockTTL = %v, want 30s", cfg.MatchLockTTL)
	}
	if len(cfg.KafkaBrokers) != 0 {
		t.Errorf("KafkaBrokers = %v, want none", cfg.KafkaBrokers)
	}
	if !cfg.BuyerFee.Equal(decimal.NewFromInt(100)) || !cfg.SellerFee.Equal(decimal.NewFromInt(100)) {
		t.Errorf("fees = %s/%s, want 100/100", cfg.BuyerFee, cfg.SellerFee)
	}
	if cfg.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout != 10*time.Second {
		t.Errorf("WriteTimeout = %v, want 10s", cfg.WriteTimeout)
	}
	if cfg.IdleTimeout != 60*time.Second {
		t.Errorf("IdleTimeout = %v, want 60s", cfg.IdleTimeout)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DATABASE_URL", "postgres://localhost/trading")
	t.Setenv("DATABASE_MAX_CONNS", "4")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("MATCH_LOCK_TTL", "1m")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("KAFKA_TOPIC", "settlements")
	t.Setenv("BUYER_FEE", "2.50")
	t.Setenv("SELLER_FEE", "0")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("SHUTDOWN_TIMEOUT", "15s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.DatabaseURL != "postgres://localhost/trading" || cfg.DatabaseMaxConns != 4 || cfg.RunMigrations {
		t.Errorf("database settings = %q/%d/%v", cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.RunMigrations)
	}
	if cfg.RedisAddr != "localhost:6379" || cfg.RedisDB != 2 {
		t.Errorf("redis settings = %q/%d", cfg.RedisAddr, cfg.RedisDB)
	}
	if cfg.MatchLockTTL != time.Minute {
		t.Errorf("MatchLockTTL = %v, want 1m", cfg.MatchLockTTL)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[0] != "k1:9092" || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if !cfg.BuyerFee.Equal(decimal.RequireFromString("2.5")) || !cfg.SellerFee.IsZero() {
		t.Errorf("fees = %s/%s, want 2.5/0", cfg.BuyerFee, cfg.SellerFee)
	}
	if cfg.ReadTimeout != 2*time.Second || cfg.ShutdownTimeout != 15*time.Second {
		t.Errorf("timeouts = %v/%v", cfg.ReadTimeout, cfg.ShutdownTimeout)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", "not-a-number"},
		{"PORT", "0"},
		{"PORT", "70000"},
		{"LOG_LEVEL", "verbose"},
		{"DATABASE_MAX_CONNS", "0"},
		{"RUN_MIGRATIONS", "maybe"},
		{"REDIS_DB", "-1"},
		{"BUYER_FEE", "-1"},
		{"SELLER_FEE", "ten"},
		{"MATCH_LOCK_TTL", "0s"},
		{"IDLE_TIMEOUT", "-5s"},
	}

	for _, tc := range tests {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", tc.key, tc.value)
			}
		})
	}
}

func TestValidate_KafkaTopicRequiredWithBrokers(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.KafkaBrokers = []string{"k1:9092"}
	cfg.KafkaTopic = ""
	if err := cfg.validate(); err == nil {
		t.Fatal("expected error when brokers are set without a topic")
	}

	cfg.KafkaTopic = "settlements"
	if err := cfg.validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	for _, key := range durationEnvKeys {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, "not-a-duration")

			_, err := Load()
			if err == nil {
				t.Fatalf("expected error for invalid %s", key)
			}
		})
	}
}
