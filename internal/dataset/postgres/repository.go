package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/apigen/apigen/internal/dataset"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping dataset db: %w", err)
	}
	return nil
}

func (r *Repository) Exists(ctx context.Context, apiName string) (bool, error) {
	query := `
SELECT EXISTS (SELECT 1 FROM api_endpoints WHERE api_name = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, apiName).Scan(&exists); err != nil {
		return false, fmt.Errorf("check api name: %w", err)
	}
	return exists, nil
}

// InsertIfAbsent writes a new record unless api_name is already taken. The
// returned bool is false, with a zero Record, when the name was taken.
func (r *Repository) InsertIfAbsent(ctx context.Context, in dataset.InsertRecordInput) (dataset.Record, bool, error) {
	if in.APIName == "" {
		return dataset.Record{}, false, fmt.Errorf("api name is required")
	}
	data := in.Data
	if len(data) == 0 {
		data = []byte("null")
	}

	query := `
INSERT INTO api_endpoints (api_name, description, data, created_at, updated_at)
VALUES ($1, $2, $3::jsonb, NOW(), NOW())
ON CONFLICT (api_name) DO NOTHING
RETURNING created_at, updated_at`

	record := dataset.Record{
		APIName:     in.APIName,
		Description: in.Description,
		Data:        data,
	}
	if err := r.db.QueryRowContext(ctx, query, in.APIName, in.Description, string(data)).Scan(&record.CreatedAt, &record.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dataset.Record{}, false, nil
		}
		return dataset.Record{}, false, fmt.Errorf("insert api endpoint: %w", err)
	}
	return record, true, nil
}

func (r *Repository) GetByName(ctx context.Context, apiName string) (dataset.Record, error) {
	query := `
SELECT api_name, description, data, created_at, updated_at
FROM api_endpoints
WHERE api_name = $1`

	var record dataset.Record
	var data []byte
	if err := r.db.QueryRowContext(ctx, query, apiName).Scan(
		&record.APIName,
		&record.Description,
		&data,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dataset.Record{}, dataset.ErrNotFound
		}
		return dataset.Record{}, fmt.Errorf("get api endpoint: %w", err)
	}
	record.Data = data
	return record, nil
}
