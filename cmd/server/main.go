package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/example/fare-finder/internal/config"
	httpapi "github.com/example/fare-finder/internal/http"
	"github.com/example/fare-finder/internal/ingest"
	"github.com/example/fare-finder/internal/logging"
	"github.com/example/fare-finder/internal/predict"
	"github.com/example/fare-finder/internal/storage"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger("fare-finder", cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	deps := httpapi.Deps{
		Predictor:      predict.NewClient(cfg.PredictURL),
		PredictTimeout: cfg.PredictTimeout,
		SessionTTL:     cfg.SessionTTL,
		Store:          store,
		Logger:         logger,
		RecentLimit:    cfg.RecentLimit,
	}
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		deps.Publisher = kp
		logger.Info("publishing outcomes", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	srv, err := httpapi.NewServer(deps)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}
	go srv.Sessions.Run(ctx, cfg.ReapInterval)

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("fare-finder listening", "addr", cfg.HTTPAddr, "predict_url", cfg.PredictURL)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
}

// openStore picks the outcome log: postgres when PG_DSN is set, then redis, then memory.
func openStore(ctx context.Context, cfg config.ServerConfig, logger *slog.Logger) (storage.OutcomeStore, func()) {
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err == nil {
			if cfg.RunMigrations {
				applyMigrations(ctx, ps, logger)
			}
			logger.Info("outcome store", "backend", "postgres")
			return ps, func() { _ = ps.Close() }
		}
		logger.Warn("postgres unavailable, falling back", "error", err)
	}
	if cfg.RedisAddr != "" {
		rs := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisOutcomesKey, cfg.RecentLimit)
		err := rs.Ping(ctx)
		if err == nil {
			logger.Info("outcome store", "backend", "redis")
			return rs, func() { _ = rs.Close() }
		}
		logger.Warn("redis unavailable, falling back", "error", err)
		_ = rs.Close()
	}
	logger.Info("outcome store", "backend", "memory")
	return storage.NewMemoryStore(cfg.RecentLimit), func() {}
}

func applyMigrations(ctx context.Context, ps *storage.PostgresStore, logger *slog.Logger) {
	files, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		logger.Error("list migrations", "error", err)
		return
	}
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			logger.Error("read migration", "file", f, "error", err)
			continue
		}
		if err := ps.Migrate(ctx, string(b)); err != nil {
			logger.Error("migration exec error", "file", f, "error", err)
			continue
		}
		logger.Info("migration applied", "file", filepath.Base(f))
	}
}
