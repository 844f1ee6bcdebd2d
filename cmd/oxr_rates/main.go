package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/SscSPs/money_oxr/internal/adapters/cache/redis"
	"github.com/SscSPs/money_oxr/internal/adapters/cachefile"
	"github.com/SscSPs/money_oxr/internal/adapters/memory"
	"github.com/SscSPs/money_oxr/internal/adapters/oxr"
	portsrepo "github.com/SscSPs/money_oxr/internal/core/ports/repositories"
	"github.com/SscSPs/money_oxr/internal/core/services"
	"github.com/SscSPs/money_oxr/internal/handlers"
	"github.com/SscSPs/money_oxr/internal/middleware"
	"github.com/SscSPs/money_oxr/internal/platform/config"
	"github.com/SscSPs/money_oxr/internal/repositories/database/pgsql"
	"github.com/SscSPs/money_oxr/pkg/database"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	storage, cleanup, err := newSnapshotStorage(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize rates cache", slog.String("backend", cfg.CacheBackend), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	repos := portsrepo.RepositoryProvider{
		RateTable: memory.NewRateTable(),
		Fetcher:   oxr.NewClient(oxr.WithTimeout(cfg.HTTPTimeout), oxr.WithLogger(logger)),
		Parser:    oxr.NewParser(),
		Snapshots: storage,
	}
	container, err := services.NewServiceContainer(cfg, repos, logger)
	if err != nil {
		logger.Error("Failed to create services", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Warm up so the first request does not pay for the load
	if err := container.ExchangeRate.EnsureLoaded(context.Background()); err != nil {
		logger.Warn("Initial rates load failed", slog.String("error", err.Error()))
	}

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware (logging, recovery, CORS, rate limit)
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	r.Use(cors.New(corsConfig(cfg)))

	ipLimiter, err := middleware.NewLimiter(cfg.RateLimit)
	if err != nil {
		logger.Error("Failed to create rate limiter", slog.String("error", err.Error()))
		os.Exit(1)
	}
	r.Use(middleware.RateLimit(ipLimiter))

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handlers.RegisterRoutes(r, cfg, container)

	logger.Info("Server starting",
		slog.String("port", cfg.Port),
		slog.String("source_currency", cfg.SourceCurrency),
		slog.String("cache_backend", cfg.CacheBackend),
		slog.Bool("remote_loading", cfg.OXRAppID != ""))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Error("Server failed to run", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// newSnapshotStorage builds the configured cache backend. The returned
// cleanup func releases its connections.
func newSnapshotStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (portsrepo.SnapshotStorage, func(), error) {
	noop := func() {}

	switch cfg.CacheBackend {
	case config.CacheBackendFile:
		return cachefile.NewFileStorage(cfg.CachePath), noop, nil

	case config.CacheBackendRedis:
		client := redis.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		cleanup := func() {
			if err := client.Close(); err != nil {
				logger.Error("Error closing redis client", slog.String("error", err.Error()))
			}
		}
		return redis.NewSnapshotStorage(client, cfg.SourceCurrency, logger), cleanup, nil

	case config.CacheBackendPostgres:
		if err := database.RunMigrations(cfg.DatabaseURL, "file://migrations", logger); err != nil {
			return nil, noop, err
		}
		dbPool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, noop, err
		}
		return pgsql.NewPgxSnapshotRepository(dbPool, cfg.SourceCurrency), func() { database.ClosePgxPool(dbPool, logger) }, nil

	default:
		return nil, noop, nil
	}
}

func corsConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range cfg.CORSAllowedOrigins {
		if origin == "*" {
			corsCfg.AllowAllOrigins = true
			return corsCfg
		}
	}
	corsCfg.AllowOrigins = cfg.CORSAllowedOrigins
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	}
	return corsCfg
}
