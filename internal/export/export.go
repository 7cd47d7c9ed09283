// Package export encodes stored datasets for download and archiving.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/parquet-go/parquet-go"
)

type Format string

const (
	FormatJSON    Format = "json"
	FormatParquet Format = "parquet"
)

func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatParquet:
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

func (f Format) ContentType() string {
	if f == FormatParquet {
		return "application/vnd.apache.parquet"
	}
	return "application/json"
}

func (f Format) FileName() string {
	return "data." + string(f)
}

// Encode renders data in the given format.
func Encode(format Format, data json.RawMessage) ([]byte, error) {
	switch format {
	case FormatJSON:
		return EncodeJSON(data)
	case FormatParquet:
		result, err := EncodeParquet(data)
		if err != nil {
			return nil, err
		}
		return result.Data, nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func EncodeJSON(data json.RawMessage) ([]byte, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []byte("null\n"), nil
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return nil, fmt.Errorf("indent dataset json: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

type ParquetEncodeResult struct {
	Data        []byte
	RecordCount int64
}

type parquetRow struct {
	RowIndex    int64  `parquet:"row_index"`
	PayloadJSON string `parquet:"payload_json"`
}

// EncodeParquet writes one parquet row per array element. Any other JSON value
// becomes a single row.
func EncodeParquet(data json.RawMessage) (ParquetEncodeResult, error) {
	payloads, err := splitRows(data)
	if err != nil {
		return ParquetEncodeResult{}, err
	}

	rows := make([]parquetRow, 0, len(payloads))
	for index, payload := range payloads {
		var compact bytes.Buffer
		if err := json.Compact(&compact, payload); err != nil {
			return ParquetEncodeResult{}, fmt.Errorf("compact row %d: %w", index, err)
		}
		rows = append(rows, parquetRow{RowIndex: int64(index), PayloadJSON: compact.String()})
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetRow](buf)
	if len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			return ParquetEncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return ParquetEncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}

	return ParquetEncodeResult{Data: buf.Bytes(), RecordCount: int64(len(rows))}, nil
}

func splitRows(data json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("dataset is empty")
	}
	if trimmed[0] != '[' {
		if !json.Valid(trimmed) {
			return nil, fmt.Errorf("dataset is not valid json")
		}
		return []json.RawMessage{json.RawMessage(trimmed)}, nil
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(trimmed, &rows); err != nil {
		return nil, fmt.Errorf("decode dataset rows: %w", err)
	}
	return rows, nil
}
