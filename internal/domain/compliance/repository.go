package compliance

import (
	"context"
)

// RecordRepository is the persistence contract for keyed compliance
// records. Save persists the record, its history and its derived risk as
// one unit; a partially persisted transition is a correctness violation.
type RecordRepository interface {
	// Save inserts or overwrites the record keyed by its ID
	Save(ctx context.Context, record *Record) error

	// GetByID returns the record with the given ID, or nil if absent
	GetByID(ctx context.Context, id string) (*Record, error)

	// GetByContactID returns the record for a subject, or nil if absent
	GetByContactID(ctx context.Context, contactID string) (*Record, error)

	// List returns all records
	List(ctx context.Context) ([]*Record, error)
}
