package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/apigen/apigen/internal/dataset"
	"github.com/apigen/apigen/internal/export"
)

var archiveFormats = []export.Format{export.FormatJSON, export.FormatParquet}

// Archiver copies stored datasets into an object store.
type Archiver struct {
	Store ObjectStore
}

func NewArchiver(store ObjectStore) *Archiver {
	return &Archiver{Store: store}
}

// Archive writes data.json and data.parquet for the record and returns the
// object infos in that order.
func (a *Archiver) Archive(ctx context.Context, record dataset.Record) ([]ObjectInfo, error) {
	if a.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	infos := make([]ObjectInfo, 0, len(archiveFormats))
	for _, format := range archiveFormats {
		key, err := BuildDatasetObjectPath(record.APIName, format.FileName())
		if err != nil {
			return infos, err
		}
		payload, err := export.Encode(format, record.Data)
		if err != nil {
			return infos, fmt.Errorf("encode %s: %w", format, err)
		}
		info, err := a.Store.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), PutOptions{
			ContentType: format.ContentType(),
			Metadata:    archiveMetadata(record),
		})
		if err != nil {
			return infos, fmt.Errorf("archive %s: %w", key, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func archiveMetadata(record dataset.Record) map[string]string {
	metadata := map[string]string{"api-name": record.APIName}
	if !record.CreatedAt.IsZero() {
		metadata["created-at"] = record.CreatedAt.UTC().Format(time.RFC3339)
	}
	return metadata
}

// Open returns the archived copy of apiName in format.
func (a *Archiver) Open(ctx context.Context, apiName string, format export.Format) ([]byte, error) {
	if a.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	key, err := BuildDatasetObjectPath(apiName, format.FileName())
	if err != nil {
		return nil, err
	}
	reader, err := a.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return buf.Bytes(), nil
}
