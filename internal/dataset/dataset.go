package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("dataset: not found")

type Repository interface {
	HealthCheck(ctx context.Context) error
	Exists(ctx context.Context, apiName string) (bool, error)
	InsertIfAbsent(ctx context.Context, in InsertRecordInput) (Record, bool, error)
	GetByName(ctx context.Context, apiName string) (Record, error)
}

// Record is one generated dataset as persisted in api_endpoints.
type Record struct {
	APIName     string          `json:"apiName"`
	Description string          `json:"description"`
	Data        json.RawMessage `json:"data"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type InsertRecordInput struct {
	APIName     string
	Description string
	Data        json.RawMessage
}

type Column struct {
	Title string `json:"title"`
}

// GenerationRequest is the body of a create call. Pointer fields distinguish
// an absent field from a zero value. NumRows is a float so that whole-number
// JSON values such as 3.0 decode.
type GenerationRequest struct {
	Description *string  `json:"description"`
	NumRows     *float64 `json:"numRows"`
	Columns     []Column `json:"columns"`
}

// RowCount is NumRows as an int, or 0 when absent.
func (r GenerationRequest) RowCount() int {
	if r.NumRows == nil {
		return 0
	}
	return int(*r.NumRows)
}

func ColumnTitles(columns []Column) []string {
	titles := make([]string, 0, len(columns))
	for _, column := range columns {
		titles = append(titles, column.Title)
	}
	return titles
}

// Rows decodes data as a JSON array of objects. ok is false when data is any
// other JSON value.
func Rows(data json.RawMessage) (rows []map[string]any, ok bool) {
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, false
	}
	return rows, true
}
