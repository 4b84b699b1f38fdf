package repository

import (
	"context"
	"sync"

	"github.com/davidleathers/contact-compliance-backend/internal/domain/audit"
)

// MemoryEntryRepository is an in-memory audit.EntryRepository. Used by
// tests and standalone mode; every method deep-copies so callers can never
// reach the stored slice.
type MemoryEntryRepository struct {
	mu      sync.RWMutex
	entries []*audit.Entry
	anchors []*audit.ArchiveAnchor
}

// NewMemoryEntryRepository creates an empty in-memory entry repository
func NewMemoryEntryRepository() *MemoryEntryRepository {
	return &MemoryEntryRepository{
		entries: make([]*audit.Entry, 0),
		anchors: make([]*audit.ArchiveAnchor, 0),
	}
}

// Append persists a single hashed entry at the end of the collection
func (r *MemoryEntryRepository) Append(ctx context.Context, entry *audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := entry.Clone()
	stored.MarkImmutable()
	r.entries = append(r.entries, stored)
	return nil
}

// List returns all entries in append order
func (r *MemoryEntryRepository) List(ctx context.Context) ([]*audit.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*audit.Entry, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Clone()
	}
	return out, nil
}

// Latest returns the last appended entry, or nil for an empty log
func (r *MemoryEntryRepository) Latest(ctx context.Context) (*audit.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.entries) == 0 {
		return nil, nil
	}
	return r.entries[len(r.entries)-1].Clone(), nil
}

// Count returns the number of stored entries
func (r *MemoryEntryRepository) Count(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.entries)), nil
}

// Replace overwrites the whole ordered collection
func (r *MemoryEntryRepository) Replace(ctx context.Context, entries []*audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	replaced := make([]*audit.Entry, len(entries))
	for i, e := range entries {
		replaced[i] = e.Clone()
		replaced[i].MarkImmutable()
	}
	r.entries = replaced
	return nil
}

// SaveAnchor persists an archive continuity anchor
func (r *MemoryEntryRepository) SaveAnchor(ctx context.Context, anchor *audit.ArchiveAnchor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *anchor
	r.anchors = append(r.anchors, &copied)
	return nil
}

// ListAnchors returns all archive anchors, oldest first
func (r *MemoryEntryRepository) ListAnchors(ctx context.Context) ([]*audit.ArchiveAnchor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*audit.ArchiveAnchor, len(r.anchors))
	for i, a := range r.anchors {
		copied := *a
		out[i] = &copied
	}
	return out, nil
}
