package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/efreitasn/tradingcore/internal/config"
	"github.com/efreitasn/tradingcore/internal/domain"
	"github.com/efreitasn/tradingcore/internal/engine"
	"github.com/efreitasn/tradingcore/internal/events"
	"github.com/efreitasn/tradingcore/internal/handler"
	"github.com/efreitasn/tradingcore/internal/lock"
	"github.com/efreitasn/tradingcore/internal/service"
	"github.com/efreitasn/tradingcore/internal/store"
	"github.com/efreitasn/tradingcore/internal/store/postgres"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil || resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
}

// openStorage connects the configured backend. Without DATABASE_URL the
// in-memory store is used; it only serializes transactions, so reads made
// outside one can observe a settlement half applied.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.Repositories, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("storage ready",
			slog.String("backend", "memory"),
			slog.String("isolation", "reads outside transactions are not isolated from in-flight settlements"))
		return store.NewMemory().Repositories(), func() {}, nil
	}

	pg, err := postgres.New(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return domain.Repositories{}, nil, err
	}
	if cfg.RunMigrations {
		if err := pg.RunMigrations(ctx); err != nil {
			pg.Close()
			return domain.Repositories{}, nil, err
		}
	}
	logger.Info("storage ready", slog.String("backend", "postgres"))
	return pg.Repositories(), pg.Close, nil
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	repos, closeStorage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStorage()

	// Match lock and settlement events.
	var locker lock.Locker = lock.NewLocal()
	publishers := []events.Publisher{events.NewLog(logger)}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: ping: %w", err)
		}
		locker = lock.NewRedis(rdb, cfg.MatchLockTTL, logger)
		publishers = append(publishers, events.NewRedis(rdb, cfg.RedisChannel))
		logger.Info("redis connected", slog.String("addr", cfg.RedisAddr))
	}

	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := kp.Close(); err != nil {
				logger.Error("kafka writer close error", slog.String("error", err.Error()))
			}
		}()
		publishers = append(publishers, kp)
		logger.Info("kafka publisher enabled", slog.String("topic", cfg.KafkaTopic))
	}

	fees := domain.FixedFees{Buyer: cfg.BuyerFee, Seller: cfg.SellerFee}

	placement := service.NewOrderPlacement(repos, logger)
	discovery := engine.NewPriceDiscovery(repos.Shares, repos.Orders)
	matcher := engine.NewMatcher(repos, fees, locker, events.NewMulti(logger, publishers...), logger)

	router := handler.NewRouter(placement, discovery, matcher, logger)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	// Graceful shutdown: in-flight matching runs finish before stores close.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
	return nil
}
