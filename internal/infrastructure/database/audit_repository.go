package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/contact-compliance-backend/internal/domain/audit"
	"github.com/davidleathers/contact-compliance-backend/internal/domain/errors"
)

// AuditRepository implements audit.EntryRepository on PostgreSQL.
// The log service owns write ordering; this repository persists entries
// exactly as handed over and returns them in sequence order.
type AuditRepository struct {
	db *pgxpool.Pool
}

// NewAuditRepository creates a new PostgreSQL audit repository
func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

const auditEntryColumns = `
	id, sequence_number, user_id, user_email, action, target_id,
	target_type, details, ip_address, user_agent, timestamp,
	timestamp_nano, previous_hash, hash`

// Append persists a single hashed entry
func (r *AuditRepository) Append(ctx context.Context, entry *audit.Entry) error {
	if err := entry.Validate(); err != nil {
		return errors.NewValidationError("INVALID_ENTRY", "entry validation failed").WithCause(err)
	}
	if !entry.IsImmutable() || entry.EntryHash == "" {
		return errors.NewValidationError("ENTRY_NOT_HASHED",
			"entry must be hashed before persistence")
	}

	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return errors.NewInternalError("failed to marshal entry details").WithCause(err)
	}

	query := `
		INSERT INTO audit_entries (` + auditEntryColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = r.db.Exec(ctx, query,
		entry.ID,
		entry.SequenceNum,
		entry.UserID,
		entry.UserEmail,
		string(entry.Action),
		nullable(entry.TargetID),
		nullable(string(entry.TargetType)),
		detailsJSON,
		entry.IPAddress,
		entry.UserAgent,
		entry.Timestamp,
		entry.TimestampNano,
		entry.PreviousHash,
		entry.EntryHash,
	)
	if err != nil {
		return errors.NewStorageError("failed to append audit entry").WithCause(err)
	}

	return nil
}

// List returns all entries in sequence order
func (r *AuditRepository) List(ctx context.Context) ([]*audit.Entry, error) {
	query := `SELECT ` + auditEntryColumns + `
		FROM audit_entries ORDER BY sequence_number ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.NewStorageError("failed to list audit entries").WithCause(err)
	}
	defer rows.Close()

	entries := make([]*audit.Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed to read audit entries").WithCause(err)
	}

	return entries, nil
}

// Latest returns the last appended entry, or nil for an empty log
func (r *AuditRepository) Latest(ctx context.Context) (*audit.Entry, error) {
	query := `SELECT ` + auditEntryColumns + `
		FROM audit_entries ORDER BY sequence_number DESC LIMIT 1`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.NewStorageError("failed to query latest entry").WithCause(err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanEntry(rows)
}

// Count returns the number of stored entries
func (r *AuditRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_entries`).Scan(&count)
	if err != nil {
		return 0, errors.NewStorageError("failed to count audit entries").WithCause(err)
	}
	return count, nil
}

// Replace overwrites the whole ordered collection in one transaction.
// Only the archive flow uses this, always together with SaveAnchor.
func (r *AuditRepository) Replace(ctx context.Context, entries []*audit.Entry) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return errors.NewStorageError("failed to begin transaction").WithCause(err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM audit_entries`); err != nil {
		return errors.NewStorageError("failed to clear audit entries").WithCause(err)
	}

	for _, entry := range entries {
		detailsJSON, err := json.Marshal(entry.Details)
		if err != nil {
			return errors.NewInternalError("failed to marshal entry details").WithCause(err)
		}

		query := `
			INSERT INTO audit_entries (` + auditEntryColumns + `
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

		_, err = tx.Exec(ctx, query,
			entry.ID, entry.SequenceNum, entry.UserID, entry.UserEmail,
			string(entry.Action), nullable(entry.TargetID),
			nullable(string(entry.TargetType)), detailsJSON,
			entry.IPAddress, entry.UserAgent, entry.Timestamp,
			entry.TimestampNano, entry.PreviousHash, entry.EntryHash,
		)
		if err != nil {
			return errors.NewStorageError("failed to write audit entry").WithCause(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.NewStorageError("failed to commit replace").WithCause(err)
	}
	return nil
}

// SaveAnchor persists an archive continuity anchor
func (r *AuditRepository) SaveAnchor(ctx context.Context, anchor *audit.ArchiveAnchor) error {
	query := `
		INSERT INTO audit_archive_anchors (
			id, archived_through, last_sequence, final_hash, entry_count, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		anchor.ID, anchor.ArchivedThrough, anchor.LastSequence,
		anchor.FinalHash, anchor.EntryCount, anchor.CreatedAt,
	)
	if err != nil {
		return errors.NewStorageError("failed to save archive anchor").WithCause(err)
	}
	return nil
}

// ListAnchors returns all archive anchors, oldest first
func (r *AuditRepository) ListAnchors(ctx context.Context) ([]*audit.ArchiveAnchor, error) {
	query := `
		SELECT id, archived_through, last_sequence, final_hash, entry_count, created_at
		FROM audit_archive_anchors ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.NewStorageError("failed to list archive anchors").WithCause(err)
	}
	defer rows.Close()

	anchors := make([]*audit.ArchiveAnchor, 0)
	for rows.Next() {
		anchor := &audit.ArchiveAnchor{}
		err := rows.Scan(&anchor.ID, &anchor.ArchivedThrough, &anchor.LastSequence,
			&anchor.FinalHash, &anchor.EntryCount, &anchor.CreatedAt)
		if err != nil {
			return nil, errors.NewStorageError("failed to scan archive anchor").WithCause(err)
		}
		anchors = append(anchors, anchor)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed to read archive anchors").WithCause(err)
	}

	return anchors, nil
}

// scanEntry reads one entry row
func scanEntry(rows pgx.Rows) (*audit.Entry, error) {
	var (
		entry       audit.Entry
		id          uuid.UUID
		action      string
		targetID    *string
		targetType  *string
		detailsJSON []byte
		timestamp   time.Time
	)

	err := rows.Scan(
		&id, &entry.SequenceNum, &entry.UserID, &entry.UserEmail,
		&action, &targetID, &targetType, &detailsJSON,
		&entry.IPAddress, &entry.UserAgent, &timestamp,
		&entry.TimestampNano, &entry.PreviousHash, &entry.EntryHash,
	)
	if err != nil {
		return nil, errors.NewStorageError("failed to scan audit entry").WithCause(err)
	}

	entry.ID = id
	entry.Action = audit.Action(action)
	// timestamptz stores microseconds; rebuild from the hashed nanosecond
	// value so verification sees exactly what was hashed. The column stays
	// authoritative only for SQL-side filtering and indexes.
	entry.Timestamp = time.Unix(0, entry.TimestampNano).UTC()
	if targetID != nil {
		entry.TargetID = *targetID
	}
	if targetType != nil {
		entry.TargetType = audit.TargetType(*targetType)
	}
	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &entry.Details); err != nil {
			return nil, errors.NewInternalError("failed to unmarshal entry details").WithCause(err)
		}
	}

	entry.MarkImmutable()
	return &entry, nil
}

// nullable maps empty strings to NULL
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
