package database

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/davidleathers/contact-compliance-backend/internal/domain/compliance"
	"github.com/davidleathers/contact-compliance-backend/internal/domain/errors"
	"github.com/davidleathers/contact-compliance-backend/internal/domain/values"
)

// ComplianceRepository implements compliance.RecordRepository on PostgreSQL.
// Documents, checks and history are stored as JSONB so the whole record
// commits as a single row write, matching the Save contract.
type ComplianceRepository struct {
	db *pgxpool.Pool
}

// NewComplianceRepository creates a new PostgreSQL compliance repository
func NewComplianceRepository(db *pgxpool.Pool) *ComplianceRepository {
	return &ComplianceRepository{db: db}
}

const recordColumns = `
	id, contact_id, contact_name, status, risk_level, risk_score,
	documents, checks, history, assigned_to, notes, created_by,
	created_at, updated_at, approved_at, approved_by, expires_at`

// Save upserts the record keyed by its ID
func (r *ComplianceRepository) Save(ctx context.Context, record *compliance.Record) error {
	documentsJSON, err := json.Marshal(record.Documents)
	if err != nil {
		return errors.NewInternalError("failed to marshal documents").WithCause(err)
	}
	checksJSON, err := json.Marshal(record.Checks)
	if err != nil {
		return errors.NewInternalError("failed to marshal checks").WithCause(err)
	}
	historyJSON, err := json.Marshal(record.History)
	if err != nil {
		return errors.NewInternalError("failed to marshal history").WithCause(err)
	}

	query := `
		INSERT INTO kyc_records (` + recordColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			contact_name = EXCLUDED.contact_name,
			status = EXCLUDED.status,
			risk_level = EXCLUDED.risk_level,
			risk_score = EXCLUDED.risk_score,
			documents = EXCLUDED.documents,
			checks = EXCLUDED.checks,
			history = EXCLUDED.history,
			assigned_to = EXCLUDED.assigned_to,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at,
			approved_at = EXCLUDED.approved_at,
			approved_by = EXCLUDED.approved_by,
			expires_at = EXCLUDED.expires_at`

	_, err = r.db.Exec(ctx, query,
		record.ID,
		record.ContactID,
		record.ContactName,
		string(record.Status),
		string(record.RiskLevel),
		record.RiskScore,
		documentsJSON,
		checksJSON,
		historyJSON,
		nullable(record.AssignedTo),
		record.Notes,
		record.CreatedBy,
		record.CreatedAt,
		record.UpdatedAt,
		record.ApprovedAt,
		nullable(record.ApprovedBy),
		record.ExpiresAt,
	)
	if err != nil {
		return errors.NewStorageError("failed to save compliance record").WithCause(err)
	}

	return nil
}

// GetByID returns the record with the given ID, or nil if absent
func (r *ComplianceRepository) GetByID(ctx context.Context, id string) (*compliance.Record, error) {
	recordID, err := uuid.Parse(id)
	if err != nil {
		return nil, nil
	}

	query := `SELECT ` + recordColumns + ` FROM kyc_records WHERE id = $1`
	return r.queryOne(ctx, query, recordID)
}

// GetByContactID returns the record for a subject, or nil if absent
func (r *ComplianceRepository) GetByContactID(ctx context.Context, contactID string) (*compliance.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM kyc_records WHERE contact_id = $1`
	return r.queryOne(ctx, query, contactID)
}

// List returns all records, oldest first
func (r *ComplianceRepository) List(ctx context.Context) ([]*compliance.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM kyc_records ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.NewStorageError("failed to list compliance records").WithCause(err)
	}
	defer rows.Close()

	records := make([]*compliance.Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed to read compliance records").WithCause(err)
	}

	return records, nil
}

func (r *ComplianceRepository) queryOne(ctx context.Context, query string, arg any) (*compliance.Record, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, errors.NewStorageError("failed to query compliance record").WithCause(err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanRecord(rows)
}

// scanRecord reads one record row
func scanRecord(rows pgx.Rows) (*compliance.Record, error) {
	var (
		record        compliance.Record
		status        string
		riskLevel     string
		documentsJSON []byte
		checksJSON    []byte
		historyJSON   []byte
		assignedTo    *string
		approvedBy    *string
		createdAt     time.Time
		updatedAt     time.Time
	)

	err := rows.Scan(
		&record.ID, &record.ContactID, &record.ContactName,
		&status, &riskLevel, &record.RiskScore,
		&documentsJSON, &checksJSON, &historyJSON,
		&assignedTo, &record.Notes, &record.CreatedBy,
		&createdAt, &updatedAt,
		&record.ApprovedAt, &approvedBy, &record.ExpiresAt,
	)
	if err != nil {
		return nil, errors.NewStorageError("failed to scan compliance record").WithCause(err)
	}

	record.Status = compliance.Status(status)
	record.RiskLevel = values.RiskLevel(riskLevel)
	record.CreatedAt = createdAt.UTC()
	record.UpdatedAt = updatedAt.UTC()
	if assignedTo != nil {
		record.AssignedTo = *assignedTo
	}
	if approvedBy != nil {
		record.ApprovedBy = *approvedBy
	}

	if err := json.Unmarshal(documentsJSON, &record.Documents); err != nil {
		return nil, errors.NewInternalError("failed to unmarshal documents").WithCause(err)
	}
	if err := json.Unmarshal(checksJSON, &record.Checks); err != nil {
		return nil, errors.NewInternalError("failed to unmarshal checks").WithCause(err)
	}
	if err := json.Unmarshal(historyJSON, &record.History); err != nil {
		return nil, errors.NewInternalError("failed to unmarshal history").WithCause(err)
	}

	return &record, nil
}
