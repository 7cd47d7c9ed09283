package duckdb

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeSourceFile stages one dataset as a JSON file DuckDB can read before
// external access is switched off.
func writeSourceFile(dir, tableName string, index int, data []byte) (string, error) {
	localPath := filepath.Join(dir, fmt.Sprintf("%s_%d.json", sanitizeFileComponent(tableName), index))
	if err := os.WriteFile(localPath, data, 0o600); err != nil {
		return "", fmt.Errorf("write local json file %q: %w", localPath, err)
	}
	return localPath, nil
}
