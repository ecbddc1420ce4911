package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/SscSPs/expense_tracker/internal/adapters/database/pgsql"
	"github.com/SscSPs/expense_tracker/internal/adapters/database/redisstore"
	"github.com/SscSPs/expense_tracker/internal/adapters/forex"
	"github.com/SscSPs/expense_tracker/internal/apperrors"
	portsrepo "github.com/SscSPs/expense_tracker/internal/core/ports/repositories"
	"github.com/SscSPs/expense_tracker/internal/observability/metrics"
	"github.com/SscSPs/expense_tracker/internal/platform/cache"
	"github.com/SscSPs/expense_tracker/internal/platform/config"
	"github.com/SscSPs/expense_tracker/internal/platform/database"
	"github.com/redis/go-redis/v9"
)

const (
	redisConnectTimeout = 5 * time.Second
	redisKeyPrefix      = "fx"
)

// Stores is the opened rate store plus the handles that need closing.
type Stores struct {
	Repos portsrepo.RepositoryProvider
	// Redis is set when a redis server is configured, whichever backend holds the rates.
	Redis *redis.Client

	closers []func()
}

// Close releases every connection opened by OpenStores.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// NewLogger builds the JSON logger used by every entry point.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// OpenStores connects the configured rate store backend. Postgres runs migrations first.
func OpenStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Stores, error) {
	stores := &Stores{}

	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL, redisConnectTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		stores.Redis = client
		stores.closers = append(stores.closers, func() {
			if err := client.Close(); err != nil {
				logger.Error("Error closing redis client", slog.String("error", err.Error()))
			}
		})
		logger.Info("Redis connection established.")
	}

	switch cfg.RateStoreBackend {
	case config.StoreBackendRedis:
		stores.Repos = portsrepo.RepositoryProvider{
			ExchangeRateRepo: redisstore.NewExchangeRateRepository(stores.Redis, cfg.FX.Currencies.Foreign, redisKeyPrefix),
		}
	case config.StoreBackendPostgres:
		pool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, cfg.EnableDBCheck)
		if err != nil {
			stores.Close()
			return nil, fmt.Errorf("failed to initialize database pool: %w", err)
		}
		stores.closers = append(stores.closers, pool.Close)
		logger.Info("Database connection pool established.")

		if err := database.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir, logger); err != nil {
			stores.Close()
			return nil, err
		}
		repo := pgsql.NewPgxExchangeRateRepository(pool, cfg.FX.Currencies.Foreign)
		if err := repo.CheckSchema(ctx); err != nil {
			stores.Close()
			return nil, err
		}
		stores.Repos = portsrepo.RepositoryProvider{ExchangeRateRepo: repo}
	default:
		return nil, fmt.Errorf("%w: unknown rate store backend %q", apperrors.ErrConfiguration, cfg.RateStoreBackend)
	}
	return stores, nil
}

// NewLiveRateClient builds the forex client from the FX settings.
func NewLiveRateClient(cfg *config.Config, recorder *metrics.Recorder) (*forex.LiveRateClient, error) {
	return forex.NewLiveRateClient(forex.Options{
		BaseURL:    cfg.FX.ProviderURL,
		APIKey:     cfg.FX.ProviderAPIKey,
		Timeout:    cfg.FX.ProviderTimeout,
		MemoTTL:    cfg.FX.LiveCacheTTL,
		Currencies: cfg.FX.Currencies.Foreign,
		Metrics:    recorder,
	})
}
