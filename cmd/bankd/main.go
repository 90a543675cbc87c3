package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/example/bank-ledger/internal/api"
	"github.com/example/bank-ledger/internal/config"
	"github.com/example/bank-ledger/internal/docstore"
	"github.com/example/bank-ledger/internal/ledger"
	"github.com/example/bank-ledger/internal/security"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	store, err := openStore(cfg)
	if err != nil {
		logger.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	core := ledger.NewService(store, logger)

	var limiter *security.RedisTokenBucket
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		limiter = &security.RedisTokenBucket{
			Redis:      redisClient,
			Prefix:     "bank_api",
			Capacity:   cfg.RateLimitCapacity,
			RefillRate: float64(cfg.RateLimitRefill),
		}
	}

	router, err := api.NewRouter(api.Dependencies{
		Logger:       logger,
		Reader:       core,
		Writer:       core,
		Status:       store,
		RateLimiter:  limiter,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})
	if err != nil {
		logger.Error("failed to build router", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if cfg.TLSCertFile != "" {
		tlsCfg, err := security.LoadServerTLS(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			logger.Error("failed to load TLS config", "error", err)
			os.Exit(1)
		}
		srv.TLSConfig = tlsCfg
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	logger.Info("bank record-keeper listening", "addr", cfg.ListenAddr, "store", cfg.StoreDriver)

	if srv.TLSConfig != nil {
		err = srv.ListenAndServeTLS("", "")
	} else {
		err = srv.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (docstore.Store, error) {
	switch cfg.StoreDriver {
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store := docstore.NewPostgresStore(pool)
		if err := store.EnsureSchema(context.Background()); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	case "sqlite":
		return docstore.OpenSQLite(cfg.SQLitePath)
	default:
		return docstore.NewMemoryStore(), nil
	}
}
