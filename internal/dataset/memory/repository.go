// Package memory is an in-process dataset.Repository for tests and local runs
// without Postgres.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/apigen/apigen/internal/dataset"
)

type Repository struct {
	mu      sync.RWMutex
	records map[string]dataset.Record
	now     func() time.Time

	// Err, when set, is returned by every call.
	Err error
}

func NewRepository() *Repository {
	return &Repository{
		records: map[string]dataset.Record{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *Repository) HealthCheck(context.Context) error {
	return r.Err
}

func (r *Repository) Exists(_ context.Context, apiName string) (bool, error) {
	if r.Err != nil {
		return false, r.Err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[apiName]
	return ok, nil
}

func (r *Repository) InsertIfAbsent(_ context.Context, in dataset.InsertRecordInput) (dataset.Record, bool, error) {
	if r.Err != nil {
		return dataset.Record{}, false, r.Err
	}
	if in.APIName == "" {
		return dataset.Record{}, false, fmt.Errorf("api name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[in.APIName]; ok {
		return dataset.Record{}, false, nil
	}
	data := append(json.RawMessage(nil), in.Data...)
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	now := r.now()
	record := dataset.Record{
		APIName:     in.APIName,
		Description: in.Description,
		Data:        data,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.records[in.APIName] = record
	return record, true, nil
}

func (r *Repository) GetByName(_ context.Context, apiName string) (dataset.Record, error) {
	if r.Err != nil {
		return dataset.Record{}, r.Err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[apiName]
	if !ok {
		return dataset.Record{}, dataset.ErrNotFound
	}
	return record, nil
}

func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
