package duckdb

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/apigen/apigen/internal/query"
)

// Engine runs each request in a fresh in-memory DuckDB. Every source is
// loaded from a temporary JSON file into a table, then file access is switched
// off before the caller's SQL runs.
type Engine struct {
	TempDir string
}

func NewEngine() *Engine {
	return &Engine{}
}

var lockdownStatements = []string{
	"SET enable_external_access = false",
	"SET lock_configuration = true",
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	if strings.TrimSpace(request.SQL) == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	if len(request.Sources) == 0 {
		return query.Result{}, fmt.Errorf("no datasets available for query")
	}

	start := time.Now()
	workDir, err := os.MkdirTemp(e.TempDir, "apigen-query-")
	if err != nil {
		return query.Result{}, fmt.Errorf("create query temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	localPaths := make(map[string]string, len(request.Sources))
	var scannedBytes int64
	scannedRows := 0
	for index, source := range request.Sources {
		rowCount, err := countRows(source.Data)
		if err != nil {
			return query.Result{}, fmt.Errorf("dataset %q: %w", source.TableName, err)
		}
		localPath, err := writeSourceFile(workDir, source.TableName, index, source.Data)
		if err != nil {
			return query.Result{}, err
		}
		localPaths[source.TableName] = localPath
		scannedBytes += int64(len(source.Data))
		scannedRows += rowCount
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return query.Result{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	for tableName, localPath := range localPaths {
		loadSQL := fmt.Sprintf(`CREATE OR REPLACE TABLE %s AS SELECT * FROM read_json_auto(%s)`, quoteIdent(tableName), quoteString(localPath))
		if _, err := db.ExecContext(ctx, loadSQL); err != nil {
			return query.Result{}, fmt.Errorf("load dataset %q: %w", tableName, err)
		}
	}
	for _, statement := range lockdownStatements {
		if _, err := db.ExecContext(ctx, statement); err != nil {
			return query.Result{}, fmt.Errorf("restrict duckdb session: %w", err)
		}
	}

	sqlText := stripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	if request.RowLimit > 0 {
		sqlText = fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", sqlText, request.RowLimit)
	}

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return query.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return query.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return query.Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return query.Result{
		Columns:      columns,
		Rows:         resultRows,
		ScannedRows:  scannedRows,
		ScannedBytes: scannedBytes,
		Duration:     time.Since(start),
	}, nil
}

// countRows rejects data DuckDB cannot infer a schema from.
func countRows(data []byte) (int, error) {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		return 0, fmt.Errorf("dataset is empty")
	case trimmed[0] == '{':
		return 1, nil
	case trimmed[0] != '[':
		return 0, fmt.Errorf("dataset must be a JSON object or array of objects")
	}
	var elements []json.RawMessage
	if err := json.Unmarshal(trimmed, &elements); err != nil {
		return 0, fmt.Errorf("decode dataset: %w", err)
	}
	if len(elements) == 0 {
		return 0, fmt.Errorf("dataset is empty")
	}
	return len(elements), nil
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}

func sanitizeFileComponent(value string) string {
	value = strings.ReplaceAll(value, "/", "_")
	value = strings.ReplaceAll(value, "..", "_")
	if value == "" {
		return "dataset"
	}
	return value
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
