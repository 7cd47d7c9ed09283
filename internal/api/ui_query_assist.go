package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/apigen/apigen/internal/config"
	"github.com/apigen/apigen/internal/prompt"
	"github.com/apigen/apigen/internal/query"
	"github.com/apigen/apigen/internal/sanitize"
)

type translateRequest struct {
	Prompt string `json:"prompt"`
}

type tableContext struct {
	TableName  string   `json:"table_name"`
	Columns    []string `json:"columns"`
	SampleRows [][]any  `json:"sample_rows"`
}

func handleDatasetSchema(cfg config.QueryConfig, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if !cfg.Enabled || deps.QueryEngine == nil || deps.Datasets == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "query dependencies are not configured", false, nil)
		return
	}
	record, err := deps.Datasets.Get(r.Context(), apiNameFromRequest(r))
	if err != nil {
		writeServiceError(deps, w, r, err)
		return
	}
	table, err := buildTableContext(r.Context(), deps, record.Data, schemaSampleRows(deps))
	if err != nil {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "SCHEMA_FETCH_FAILED", "failed to load schema context", false, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"api_name": record.APIName,
		"tables":   []tableContext{table},
	})
}

func handleTranslateQuery(cfg config.QueryConfig, deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.QueryTranslator == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", "query translation is not configured", false, nil)
		return
	}
	if !cfg.Enabled || deps.QueryEngine == nil || deps.Datasets == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "query dependencies are not configured", false, nil)
		return
	}

	var req translateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid translation request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "PROMPT_REQUIRED", "prompt is required", false, nil)
		return
	}

	record, err := deps.Datasets.Get(r.Context(), apiNameFromRequest(r))
	if err != nil {
		writeServiceError(deps, w, r, err)
		return
	}
	table, err := buildTableContext(r.Context(), deps, record.Data, schemaSampleRows(deps))
	if err != nil {
		writeError(r.Context(), w, http.StatusUnprocessableEntity, "SCHEMA_FETCH_FAILED", "failed to load schema context", false, map[string]any{"details": err.Error()})
		return
	}
	sampleJSON, err := json.Marshal(table.SampleRows)
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_FETCH_FAILED", "failed to encode schema context", false, map[string]any{"details": err.Error()})
		return
	}

	reply, err := deps.QueryTranslator.Generate(r.Context(), prompt.QueryTranslation(table.TableName, table.Columns, string(sampleJSON), req.Prompt))
	if err != nil {
		writeError(r.Context(), w, http.StatusBadGateway, "TRANSLATE_FAILED", "failed to translate query", true, map[string]any{"details": err.Error()})
		return
	}
	sqlText := sanitize.StripFences(reply)
	if sqlText == "" {
		writeError(r.Context(), w, http.StatusBadGateway, "TRANSLATE_FAILED", "model returned empty SQL", true, nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"api_name":   record.APIName,
		"sql":        sqlText,
		"read_only":  query.ValidateReadOnly(sqlText) == nil,
		"table_name": table.TableName,
	})
}

func buildTableContext(ctx context.Context, deps Dependencies, data json.RawMessage, sampleRows int) (tableContext, error) {
	result, err := deps.QueryEngine.Execute(ctx, query.Request{
		SQL:      "SELECT * FROM " + quoteIdent(datasetTableName) + " LIMIT " + strconv.Itoa(sampleRows),
		RowLimit: sampleRows,
		Sources:  []query.Source{{TableName: datasetTableName, Data: data}},
	})
	if err != nil {
		return tableContext{}, err
	}
	return tableContext{
		TableName:  datasetTableName,
		Columns:    result.Columns,
		SampleRows: result.Rows,
	}, nil
}

func schemaSampleRows(deps Dependencies) int {
	if deps.UISchemaSamples > 0 {
		return deps.UISchemaSamples
	}
	return 5
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
