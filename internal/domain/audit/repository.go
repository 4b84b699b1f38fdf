package audit

import (
	"context"
)

// EntryRepository is the persistence contract for the ordered audit entry
// collection. The log service owns write ordering; implementations only
// persist what they are handed.
type EntryRepository interface {
	// Append persists a single hashed entry at the end of the collection
	Append(ctx context.Context, entry *Entry) error

	// List returns all entries in append order
	List(ctx context.Context) ([]*Entry, error)

	// Latest returns the last appended entry, or nil for an empty log
	Latest(ctx context.Context) (*Entry, error)

	// Count returns the number of stored entries
	Count(ctx context.Context) (int64, error)

	// Replace overwrites the whole ordered collection. Only the archive
	// flow uses this, and always together with SaveAnchor.
	Replace(ctx context.Context, entries []*Entry) error

	// SaveAnchor persists an archive continuity anchor
	SaveAnchor(ctx context.Context, anchor *ArchiveAnchor) error

	// ListAnchors returns all archive anchors, oldest first
	ListAnchors(ctx context.Context) ([]*ArchiveAnchor, error)
}
