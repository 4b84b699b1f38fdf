package repository

import (
	"context"
	"sync"

	"github.com/davidleathers/contact-compliance-backend/internal/domain/compliance"
)

// MemoryRecordRepository is an in-memory compliance.RecordRepository.
// Save replaces the whole record, so the record, its history and its
// derived risk always commit as one unit.
type MemoryRecordRepository struct {
	mu        sync.RWMutex
	records   map[string]*compliance.Record // keyed by record ID
	byContact map[string]string             // contact ID -> record ID
}

// NewMemoryRecordRepository creates an empty in-memory record repository
func NewMemoryRecordRepository() *MemoryRecordRepository {
	return &MemoryRecordRepository{
		records:   make(map[string]*compliance.Record),
		byContact: make(map[string]string),
	}
}

// Save inserts or overwrites the record keyed by its ID
func (r *MemoryRecordRepository) Save(ctx context.Context, record *compliance.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := record.Clone()
	r.records[stored.ID.String()] = stored
	r.byContact[stored.ContactID] = stored.ID.String()
	return nil
}

// GetByID returns the record with the given ID, or nil if absent
func (r *MemoryRecordRepository) GetByID(ctx context.Context, id string) (*compliance.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	return record.Clone(), nil
}

// GetByContactID returns the record for a subject, or nil if absent
func (r *MemoryRecordRepository) GetByContactID(ctx context.Context, contactID string) (*compliance.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byContact[contactID]
	if !ok {
		return nil, nil
	}
	return r.records[id].Clone(), nil
}

// List returns all records
func (r *MemoryRecordRepository) List(ctx context.Context) ([]*compliance.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*compliance.Record, 0, len(r.records))
	for _, record := range r.records {
		out = append(out, record.Clone())
	}
	return out, nil
}
