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

	"github.com/apigen/apigen/internal/api"
	"github.com/apigen/apigen/internal/api/uistatic"
	"github.com/apigen/apigen/internal/config"
	"github.com/apigen/apigen/internal/dataset"
	"github.com/apigen/apigen/internal/dataset/memory"
	datasetpostgres "github.com/apigen/apigen/internal/dataset/postgres"
	"github.com/apigen/apigen/internal/generation"
	"github.com/apigen/apigen/internal/llm"
	"github.com/apigen/apigen/internal/migrations"
	"github.com/apigen/apigen/internal/observability"
	duckdbengine "github.com/apigen/apigen/internal/query/duckdb"
	"github.com/apigen/apigen/internal/storage"
	s3store "github.com/apigen/apigen/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("apigen-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	var repo dataset.Repository
	var schemaCheck api.ReadinessCheck
	if cfg.Database.DSN == "" && cfg.Profile != config.ProfileProd {
		logger.Warn("APIGEN_DATABASE_DSN is not set, datasets are kept in memory")
		repo = memory.NewRepository()
	} else {
		db, err := datasetpostgres.Open(context.Background(), datasetpostgres.DBConfig{
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open dataset db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		repo = datasetpostgres.NewRepository(db)
		runner := migrations.NewRunner()
		schemaCheck = func(ctx context.Context) error { return runner.CheckCurrent(ctx, db) }
	}

	model, err := llm.New(cfg.AI)
	if err != nil {
		logger.Error("failed to initialize text generator", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.AI.APIKey == "" {
		logger.Warn("APIGEN_AI_API_KEY is not set, generation requests will fail")
	}
	translator := llm.NewCachingGenerator(model, cfg.AI.TranslationCacheTTL)

	var archiver *storage.Archiver
	var archiveCheck api.ReadinessCheck
	if cfg.Archive.Enabled {
		objectStore, err := s3store.New(context.Background(), s3store.ConfigFromArchive(cfg.Archive))
		if err != nil {
			logger.Error("failed to initialize archive store", slog.Any("error", err))
			os.Exit(1)
		}
		archiver = storage.NewArchiver(objectStore)
		archiveCheck = objectStore.HealthCheck
	}

	genDeps := generation.Dependencies{
		Repository:       repo,
		Model:            model,
		Translator:       translator,
		Logger:           logger,
		MaxRows:          cfg.Generation.MaxRows,
		MaxNameAttempts:  cfg.Naming.MaxAttempts,
		TranslateColumns: cfg.AI.TranslateColumns,
	}
	deps := api.Dependencies{
		Logger:          logger,
		QueryTranslator: model,
		UI:              uistatic.Handler(),
		Readiness: api.CombineReadinessChecks(
			repo.HealthCheck,
			schemaCheck,
			api.CheckArchiveConfig(cfg),
			archiveCheck,
		),
		DependencyTimeout: time.Second,
	}
	if archiver != nil {
		genDeps.Archiver = archiver
		deps.Archive = archiver
	}
	if cfg.Query.Enabled {
		deps.QueryEngine = duckdbengine.NewEngine()
	}

	service, err := generation.NewService(genDeps)
	if err != nil {
		logger.Error("failed to initialize generation service", slog.Any("error", err))
		os.Exit(1)
	}
	deps.Datasets = service

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address), slog.String("ai_provider", cfg.AI.Provider))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
