package query

import (
	"context"
	"encoding/json"
	"time"
)

// Source is one dataset loaded as a table.
type Source struct {
	TableName string
	Data      json.RawMessage
}

type Request struct {
	SQL      string
	RowLimit int
	Sources  []Source
}

type Result struct {
	Columns      []string
	Rows         [][]any
	ScannedRows  int
	ScannedBytes int64
	Duration     time.Duration
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}
