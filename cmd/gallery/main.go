package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/example/gallery/internal/config"
	"github.com/example/gallery/internal/httpapi"
	"github.com/example/gallery/internal/metrics"
	"github.com/example/gallery/internal/query"
	"github.com/example/gallery/internal/search"
	"github.com/example/gallery/internal/store"
	"github.com/example/gallery/internal/store/memory"
	mongorepo "github.com/example/gallery/internal/store/mongo"
	"github.com/example/gallery/internal/store/mysql"
	"github.com/example/gallery/internal/telemetry"
	"github.com/example/gallery/migrations"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel, cfg.LogFormat).With("version", version)
	slog.SetDefault(logger)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.Init(rootCtx, "gallery", version)
	if err != nil {
		logger.Warn("otel init failed", "error", err)
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	var apiKeys *httpapi.APIKeyStore
	if cfg.AuthMode == config.AuthAPIKey {
		apiKeys, err = httpapi.LoadAPIKeys(cfg.APIKeysFile)
		if err != nil {
			logger.Error("failed to load api keys", "error", err)
			os.Exit(1)
		}
	}

	repo, closeRepo, err := openRepository(rootCtx, cfg, logger)
	if err != nil {
		logger.Error("failed to open repository", "store", cfg.Store, "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.Register(reg)

	limits := query.Limits{Default: cfg.DefaultLimit, Max: cfg.MaxLimit}
	svc := search.NewService(repo, logger, limits)
	router := httpapi.NewRouter(cfg, repo, svc, apiKeys, reg, logger)

	srv := &http.Server{
		Addr:              cfg.Bind,
		Handler:           otelhttp.NewHandler(router, "gallery"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server starting", "addr", cfg.Bind, "store", cfg.Store, "auth", cfg.AuthMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()

	logger.Info("shutting down gracefully")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
}

func openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Repository, func(), error) {
	switch cfg.Store {
	case config.StoreMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongorepo.Connect(connectCtx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
		if err != nil {
			return nil, nil, err
		}
		repo := mongorepo.NewRepository(client, cfg.MongoDB, cfg.MongoCollection)
		if err := repo.Ping(connectCtx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		if err := repo.EnsureIndexes(connectCtx); err != nil {
			logger.Warn("mongo ensure indexes failed", "error", err)
		}
		return repo, func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Error("mongo disconnect error", "error", err)
			}
		}, nil

	case config.StoreMySQL:
		if err := migrations.Up(cfg.DBDSN); err != nil {
			return nil, nil, err
		}
		db, err := mysql.Open(cfg.DBDSN)
		if err != nil {
			return nil, nil, err
		}
		return mysql.New(db), func() {
			if err := db.Close(); err != nil {
				logger.Error("database close error", "error", err)
			}
		}, nil

	default:
		logger.Warn("using in-memory store; data is lost on restart")
		return memory.New(), func() {}, nil
	}
}

func newLogger(level, format string) *slog.Logger {
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
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
