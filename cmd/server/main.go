package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/daana-health/daana-ingestion-backend/internal/cache"
	"github.com/daana-health/daana-ingestion-backend/internal/config"
	"github.com/daana-health/daana-ingestion-backend/internal/core"
	"github.com/daana-health/daana-ingestion-backend/internal/events"
	"github.com/daana-health/daana-ingestion-backend/internal/ingest"
	"github.com/daana-health/daana-ingestion-backend/internal/llm"
	"github.com/daana-health/daana-ingestion-backend/internal/logging"
	"github.com/daana-health/daana-ingestion-backend/internal/mapper"
	"github.com/daana-health/daana-ingestion-backend/internal/schema"
	"github.com/daana-health/daana-ingestion-backend/internal/web"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Setup(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog, err := schema.Load(cfg.Schema.File)
	if err != nil {
		return err
	}
	slog.Info("schema loaded", "tables", len(catalog.Tables()), "file", cfg.Schema.File)

	suggester, err := newSuggester(ctx, cfg)
	if err != nil {
		return err
	}

	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL, cfg.Cache.TTL)
		if err != nil {
			return err
		}
		defer rc.Close()
		suggester = mapper.NewCachedSuggester(suggester, rc)
		slog.Info("mapping cache enabled", "ttl", cfg.Cache.TTL)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Events.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		if err != nil {
			return err
		}
		publisher = kp
		slog.Info("event publishing enabled", "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
	}
	defer publisher.Close()

	var ingester *ingest.Ingester
	if cfg.Database.URL != "" {
		pool, err := connect(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		ingester = ingest.New(pool, catalog)
		slog.Info("ingestion enabled")
	}

	limiter := core.NewConversionLimiter(cfg.Convert.MaxConcurrent, cfg.Convert.MaxWaitTime)
	service := core.NewService(core.Options{
		Catalog:      catalog,
		Mapper:       mapper.New(catalog, suggester, cfg.AI.SampleRows),
		Limiter:      limiter,
		Publisher:    publisher,
		Ingester:     ingester,
		KeepUnmapped: cfg.Convert.KeepUnmapped,
	})
	server := web.NewServer(service, cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		if active := limiter.ActiveCount(); active > 0 {
			slog.Info("waiting for conversions to complete", "active", active)
			if err := limiter.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("conversions did not complete in time", "error", err)
			}
		}
		return nil
	})

	return g.Wait()
}

// newSuggester returns the mapping backend for the configured provider.
func newSuggester(ctx context.Context, cfg *config.Config) (mapper.Suggester, error) {
	if cfg.AI.Provider == config.ProviderFuzzy {
		slog.Info("using offline fuzzy header matching")
		return mapper.FuzzySuggester{}, nil
	}
	if !cfg.AI.Configured() {
		slog.Warn("AI provider has no API key; conversions will fail until one is set", "provider", cfg.AI.Provider)
	}
	client, err := llm.New(ctx, cfg.AI)
	if err != nil {
		return nil, err
	}
	slog.Info("using language model", "provider", cfg.AI.Provider, "model", cfg.AI.DefaultModel())
	return mapper.NewAISuggester(client), nil
}

// connect opens and verifies the ingestion database pool.
func connect(ctx context.Context, db config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(db.URL)
	if err != nil {
		return nil, err
	}
	poolConfig.MaxConns = int32(db.MaxConns)
	poolConfig.MinConns = int32(db.MinConns)
	poolConfig.MaxConnLifetime = db.MaxConnLifetime
	poolConfig.MaxConnIdleTime = db.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
