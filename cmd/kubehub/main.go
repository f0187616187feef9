package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/kubehub/internal/adapter/driven/github"
	redisadapter "github.com/ericfisherdev/kubehub/internal/adapter/driven/redis"
	sqliteadapter "github.com/ericfisherdev/kubehub/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/kubehub/internal/adapter/driving/http"
	"github.com/ericfisherdev/kubehub/internal/application"
	"github.com/ericfisherdev/kubehub/internal/config"
	"github.com/ericfisherdev/kubehub/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load an optional .env file, then configuration (fail fast on invalid values).
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	logger.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"topic", cfg.Topic,
		"target_count", cfg.TargetCount,
		"cache_backend", cfg.CacheBackend,
		"cache_ttl", cfg.CacheTTL,
		"request_delay", cfg.RequestDelay,
		"github_api_url", cfg.GitHubAPIURL,
		"github_authenticated", cfg.GitHubToken != "",
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the cache backend.
	cache, closeCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeCache(); closeErr != nil {
			logger.Error("error closing cache", "error", closeErr)
		}
	}()

	// 4. Create GitHub client with a fixed-delay pacer.
	ghClient, err := githubadapter.NewClient(
		cfg.GitHubToken,
		cfg.GitHubAPIURL,
		githubadapter.NewFixedDelayPacer(cfg.RequestDelay),
		logger,
	)
	if err != nil {
		return err
	}

	// 5. Wire service and HTTP handler.
	repoSvc := application.NewRepositoryService(ghClient, cache, cfg.CacheTTL, logger)
	apiHandler := httphandler.NewHandler(repoSvc, cfg.Topic, cfg.TargetCount, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// 6. Wait for shutdown signal.
	<-ctx.Done()
	logger.Info("shutting down")

	// 7. Graceful shutdown with 10s timeout to drain in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// openCache builds the configured RepositoryCache and returns a function
// that releases its resources.
func openCache(ctx context.Context, cfg *config.Config, logger *slog.Logger) (driven.RepositoryCache, func() error, error) {
	switch cfg.CacheBackend {
	case config.CacheBackendSQLite:
		db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		logger.Info("sqlite cache opened", "path", cfg.DBPath)
		return sqliteadapter.NewCacheStore(db), db.Close, nil

	default:
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := redisadapter.NewStore(rdb)

		// Redis may come up after us; the client reconnects on demand.
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			logger.Warn("redis not reachable at startup", "addr", cfg.RedisAddr, "error", err)
		} else {
			logger.Info("redis cache connected", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
		}
		return store, rdb.Close, nil
	}
}
