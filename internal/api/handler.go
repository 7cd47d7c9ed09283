package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/apigen/apigen/internal/config"
	"github.com/apigen/apigen/internal/dataset"
	"github.com/apigen/apigen/internal/export"
	"github.com/apigen/apigen/internal/generation"
	"github.com/apigen/apigen/internal/llm"
	"github.com/apigen/apigen/internal/observability"
	"github.com/apigen/apigen/internal/query"
)

type ReadinessCheck func(ctx context.Context) error

// DatasetService is the create and read workflow behind /api/generate.
type DatasetService interface {
	Create(ctx context.Context, in generation.CreateInput) (generation.CreateResult, error)
	Get(ctx context.Context, apiName string) (dataset.Record, error)
}

// ArchiveReader serves previously archived exports.
type ArchiveReader interface {
	Open(ctx context.Context, apiName string, format export.Format) ([]byte, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	DependencyTimeout time.Duration
	Datasets          DatasetService
	QueryEngine       query.Engine
	QueryTranslator   llm.Generator
	Archive           ArchiveReader
	UISchemaSamples   int
	UI                http.Handler
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/generate", func(w http.ResponseWriter, r *http.Request) {
		handleCreateDataset(deps, w, r)
	})
	mux.HandleFunc("GET /api/generate", func(w http.ResponseWriter, r *http.Request) {
		handleGetDataset(deps, w, r)
	})
	mux.HandleFunc("GET /v1/datasets/{apiName}", func(w http.ResponseWriter, r *http.Request) {
		handleGetDataset(deps, w, r)
	})
	mux.HandleFunc("GET /v1/datasets/{apiName}/export", func(w http.ResponseWriter, r *http.Request) {
		handleExportDataset(deps, w, r)
	})
	mux.HandleFunc("POST /v1/datasets/{apiName}/query", func(w http.ResponseWriter, r *http.Request) {
		handleQueryDataset(cfg.Query, deps, w, r)
	})
	mux.HandleFunc("GET /v1/datasets/{apiName}/schema", func(w http.ResponseWriter, r *http.Request) {
		handleDatasetSchema(cfg.Query, deps, w, r)
	})
	mux.HandleFunc("POST /v1/datasets/{apiName}/query/translate", func(w http.ResponseWriter, r *http.Request) {
		handleTranslateQuery(cfg.Query, deps, w, r)
	})
	if deps.UI != nil {
		mux.Handle("GET /{path...}", deps.UI)
	}

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CheckDatabaseDSN(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.Database.DSN == "" {
			return errors.New("database dsn is not configured")
		}
		return nil
	}
}

func CheckArchiveConfig(cfg config.Config) ReadinessCheck {
	if !cfg.Archive.Enabled {
		return nil
	}
	return func(_ context.Context) error {
		if cfg.Archive.Endpoint == "" {
			return errors.New("archive endpoint is not configured")
		}
		if cfg.Archive.Bucket == "" {
			return errors.New("archive bucket is not configured")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
