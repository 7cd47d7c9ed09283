package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/apigen/apigen/internal/config"
	"github.com/apigen/apigen/internal/query"
)

const datasetTableName = "dataset"

type queryRequest struct {
	SQL      string `json:"sql"`
	RowLimit int    `json:"row_limit"`
}

type queryResponse struct {
	APIName string         `json:"api_name"`
	Columns []string       `json:"columns"`
	Rows    [][]any        `json:"rows"`
	Stats   map[string]any `json:"stats"`
}

func handleQueryDataset(cfg config.QueryConfig, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !cfg.Enabled || deps.QueryEngine == nil || deps.Datasets == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query dependencies are not configured", false, nil)
		return
	}

	var request queryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return
	}
	if err := query.ValidateReadOnly(request.SQL); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", "only read-only SELECT/WITH queries are allowed", false, map[string]any{"details": err.Error()})
		return
	}

	record, err := deps.Datasets.Get(r.Context(), apiNameFromRequest(r))
	if err != nil {
		writeServiceError(deps, w, r, err)
		return
	}

	ctx := r.Context()
	if cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.QueryTimeout)
		defer cancel()
	}
	result, err := deps.QueryEngine.Execute(ctx, query.Request{
		SQL:      request.SQL,
		RowLimit: effectiveRowLimit(request.RowLimit, cfg.MaxRowLimit),
		Sources:  []query.Source{{TableName: datasetTableName, Data: record.Data}},
	})
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", "query execution failed", false, map[string]any{"details": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		APIName: record.APIName,
		Columns: result.Columns,
		Rows:    result.Rows,
		Stats: map[string]any{
			"duration_ms":   result.Duration.Milliseconds(),
			"scanned_rows":  result.ScannedRows,
			"scanned_bytes": result.ScannedBytes,
		},
	})
}

// effectiveRowLimit caps the requested limit at max. Zero or negative requests
// get max.
func effectiveRowLimit(requested, max int) int {
	if max <= 0 {
		if requested > 0 {
			return requested
		}
		return 0
	}
	if requested <= 0 || requested > max {
		return max
	}
	return requested
}
