package compliance

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/davidleathers/contact-compliance-backend/internal/domain/audit"
	"github.com/davidleathers/contact-compliance-backend/internal/domain/compliance"
	"github.com/davidleathers/contact-compliance-backend/internal/domain/errors"
	"github.com/davidleathers/contact-compliance-backend/internal/domain/values"
	"github.com/davidleathers/contact-compliance-backend/internal/metrics"
	auditsvc "github.com/davidleathers/contact-compliance-backend/internal/service/audit"
)

// AuditLog records workflow activity in the tamper-evident audit trail
type AuditLog interface {
	Append(ctx context.Context, req auditsvc.AppendRequest) (*audit.Entry, error)
}

// Stats aggregates workflow state across all records
type Stats struct {
	Total                 int                       `json:"total"`
	ByStatus              map[compliance.Status]int `json:"byStatus"`
	ByRiskLevel           map[values.RiskLevel]int  `json:"byRiskLevel"`
	PendingReview         int                       `json:"pendingReview"`
	AverageTimeToApproval time.Duration             `json:"averageTimeToApproval"`
}

// Workflow is the compliance (KYC) review engine. It owns all record
// mutations: every write locks the record's keyed mutex, applies the
// change and the derived risk in memory, and persists the record as one
// Save. Different records mutate independently.
type Workflow struct {
	repo     compliance.RecordRepository
	auditLog AuditLog
	logger   *slog.Logger
	metrics  *metrics.Registry
	tracer   trace.Tracer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewWorkflow creates the workflow service. auditLog and registry may be nil.
func NewWorkflow(repo compliance.RecordRepository, auditLog AuditLog, logger *slog.Logger, registry *metrics.Registry) (*Workflow, error) {
	if repo == nil {
		return nil, errors.NewInternalError("record repository is required")
	}
	if logger == nil {
		return nil, errors.NewInternalError("logger is required")
	}

	return &Workflow{
		repo:     repo,
		auditLog: auditLog,
		logger:   logger,
		metrics:  registry,
		tracer:   otel.Tracer("service.compliance"),
	}, nil
}

// recordLock returns the mutex serializing mutations of one record
func (w *Workflow) recordLock(recordID string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.locks == nil {
		w.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := w.locks[recordID]
	if !ok {
		lock = &sync.Mutex{}
		w.locks[recordID] = lock
	}
	return lock
}

// CreateRecord creates the single compliance record for a subject. The
// duplicate check and the save serialize on a contact-keyed lock so two
// concurrent creates cannot both observe an absent record.
func (w *Workflow) CreateRecord(ctx context.Context, contactID, contactName string, actor compliance.Actor) (*compliance.Record, error) {
	ctx, span := w.tracer.Start(ctx, "compliance.create_record",
		trace.WithAttributes(attribute.String("contact.id", contactID)))
	defer span.End()

	lock := w.recordLock("contact:" + contactID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := w.repo.GetByContactID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.NewValidationError("RECORD_EXISTS",
			"a compliance record already exists for this contact")
	}

	record, err := compliance.NewRecord(contactID, contactName, actor)
	if err != nil {
		return nil, err
	}

	if err := w.repo.Save(ctx, record); err != nil {
		return nil, err
	}

	if w.metrics != nil {
		w.metrics.RecordsCreated.Add(ctx, 1)
	}
	w.audit(ctx, actor, audit.ActionKYCCreate, record, map[string]string{
		"contactId": contactID,
	})

	w.logger.InfoContext(ctx, "compliance record created",
		"record_id", record.ID,
		"contact_id", contactID,
		"risk_level", record.RiskLevel)

	return record, nil
}

// Transition applies a workflow action to a record
func (w *Workflow) Transition(ctx context.Context, recordID string, action compliance.WorkflowAction, actor compliance.Actor, reason string) (*compliance.Record, error) {
	ctx, span := w.tracer.Start(ctx, "compliance.transition",
		trace.WithAttributes(
			attribute.String("record.id", recordID),
			attribute.String("workflow.action", string(action))))
	defer span.End()

	lock := w.recordLock(recordID)
	lock.Lock()
	defer lock.Unlock()

	record, err := w.loadRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	fromStatus := record.Status
	if err := record.ApplyTransition(action, actor, reason); err != nil {
		if w.metrics != nil && errors.IsType(err, errors.ErrorTypeBusiness) {
			w.metrics.TransitionRejected.Add(ctx, 1)
		}
		return nil, err
	}

	if err := w.repo.Save(ctx, record); err != nil {
		return nil, err
	}

	w.metrics.RecordTransition(ctx, string(action))
	w.audit(ctx, actor, audit.ActionKYCTransition, record, map[string]string{
		"action":     string(action),
		"fromStatus": string(fromStatus),
		"toStatus":   string(record.Status),
		"reason":     reason,
	})

	w.logger.InfoContext(ctx, "workflow transition applied",
		"record_id", record.ID,
		"action", action,
		"from", fromStatus,
		"to", record.Status)

	return record, nil
}

// GetAvailableActions returns the actions legal from a status
func (w *Workflow) GetAvailableActions(status compliance.Status) []compliance.WorkflowAction {
	return compliance.AvailableActions(status)
}

// IsValidTransition reports whether an action is legal from a status
func (w *Workflow) IsValidTransition(status compliance.Status, action compliance.WorkflowAction) bool {
	return compliance.IsValidTransition(status, action)
}

// AddDocument attaches a KYC document to a record and re-derives risk
func (w *Workflow) AddDocument(ctx context.Context, recordID string, docType compliance.DocumentType, actor compliance.Actor, notes string) (*compliance.Record, error) {
	ctx, span := w.tracer.Start(ctx, "compliance.add_document")
	defer span.End()

	lock := w.recordLock(recordID)
	lock.Lock()
	defer lock.Unlock()

	record, err := w.loadRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	doc, err := record.AddDocument(docType, notes)
	if err != nil {
		return nil, err
	}

	if err := w.repo.Save(ctx, record); err != nil {
		return nil, err
	}

	if w.metrics != nil {
		w.metrics.RiskRecomputed.Add(ctx, 1)
	}
	w.audit(ctx, actor, audit.ActionKYCDocumentUpload, record, map[string]string{
		"documentId":   doc.ID.String(),
		"documentType": string(doc.Type),
	})

	return record, nil
}

// VerifyDocument marks a document verified or rejected and re-derives risk
func (w *Workflow) VerifyDocument(ctx context.Context, recordID string, docID uuid.UUID, actor compliance.Actor, verified bool, notes string) (*compliance.Record, error) {
	ctx, span := w.tracer.Start(ctx, "compliance.verify_document")
	defer span.End()

	lock := w.recordLock(recordID)
	lock.Lock()
	defer lock.Unlock()

	record, err := w.loadRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	doc, err := record.VerifyDocument(docID, actor, verified, notes)
	if err != nil {
		return nil, err
	}

	if err := w.repo.Save(ctx, record); err != nil {
		return nil, err
	}

	if w.metrics != nil {
		w.metrics.RiskRecomputed.Add(ctx, 1)
	}
	w.audit(ctx, actor, audit.ActionKYCDocumentVerify, record, map[string]string{
		"documentId": doc.ID.String(),
		"status":     string(doc.Status),
	})

	return record, nil
}

// CompleteComplianceCheck records a check outcome and re-derives risk
func (w *Workflow) CompleteComplianceCheck(ctx context.Context, recordID string, checkType compliance.CheckType, actor compliance.Actor, passed bool, findings string) (*compliance.Record, error) {
	ctx, span := w.tracer.Start(ctx, "compliance.complete_check")
	defer span.End()

	lock := w.recordLock(recordID)
	lock.Lock()
	defer lock.Unlock()

	record, err := w.loadRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	check, err := record.CompleteCheck(checkType, actor, passed, findings)
	if err != nil {
		return nil, err
	}

	if err := w.repo.Save(ctx, record); err != nil {
		return nil, err
	}

	if w.metrics != nil {
		w.metrics.RiskRecomputed.Add(ctx, 1)
	}
	w.audit(ctx, actor, audit.ActionKYCCheckComplete, record, map[string]string{
		"checkType": string(check.Type),
		"status":    string(check.Status),
	})

	return record, nil
}

// GetRecord returns the record with the given ID
func (w *Workflow) GetRecord(ctx context.Context, recordID string) (*compliance.Record, error) {
	return w.loadRecord(ctx, recordID)
}

// GetRecordByContact returns the record for a subject
func (w *Workflow) GetRecordByContact(ctx context.Context, contactID string) (*compliance.Record, error) {
	record, err := w.repo.GetByContactID(ctx, contactID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, errors.NewNotFoundError("compliance record")
	}
	return record, nil
}

// ByStatus returns all records in the given status
func (w *Workflow) ByStatus(ctx context.Context, status compliance.Status) ([]*compliance.Record, error) {
	return w.filter(ctx, func(r *compliance.Record) bool {
		return r.Status == status
	})
}

// PendingReviews returns the records waiting for initial review
func (w *Workflow) PendingReviews(ctx context.Context) ([]*compliance.Record, error) {
	return w.ByStatus(ctx, compliance.StatusPendingReview)
}

// ComplianceQueue returns the records in compliance checking
func (w *Workflow) ComplianceQueue(ctx context.Context) ([]*compliance.Record, error) {
	return w.ByStatus(ctx, compliance.StatusComplianceCheck)
}

// HighRisk returns records at high or critical risk
func (w *Workflow) HighRisk(ctx context.Context) ([]*compliance.Record, error) {
	return w.filter(ctx, func(r *compliance.Record) bool {
		return r.RiskLevel == values.RiskLevelHigh || r.RiskLevel == values.RiskLevelCritical
	})
}

// ExpiringWithin returns approved records whose approval expires within
// the given number of days
func (w *Workflow) ExpiringWithin(ctx context.Context, days int) ([]*compliance.Record, error) {
	deadline := time.Now().UTC().AddDate(0, 0, days)
	return w.filter(ctx, func(r *compliance.Record) bool {
		return r.Status == compliance.StatusApproved &&
			r.ExpiresAt != nil && r.ExpiresAt.Before(deadline)
	})
}

// GetStats aggregates counts and timings across all records
func (w *Workflow) GetStats(ctx context.Context) (*Stats, error) {
	records, err := w.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		Total:       len(records),
		ByStatus:    make(map[compliance.Status]int),
		ByRiskLevel: make(map[values.RiskLevel]int),
	}

	var approvalTotal time.Duration
	var approvalCount int

	for _, r := range records {
		stats.ByStatus[r.Status]++
		stats.ByRiskLevel[r.RiskLevel]++
		if r.ApprovedAt != nil {
			approvalTotal += r.ApprovedAt.Sub(r.CreatedAt)
			approvalCount++
		}
	}

	stats.PendingReview = stats.ByStatus[compliance.StatusPendingReview]
	if approvalCount > 0 {
		stats.AverageTimeToApproval = approvalTotal / time.Duration(approvalCount)
	}

	return stats, nil
}

// loadRecord fetches a record or fails with NotFoundError
func (w *Workflow) loadRecord(ctx context.Context, recordID string) (*compliance.Record, error) {
	record, err := w.repo.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, errors.NewNotFoundError("compliance record")
	}
	return record, nil
}

func (w *Workflow) filter(ctx context.Context, keep func(*compliance.Record) bool) ([]*compliance.Record, error) {
	records, err := w.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*compliance.Record, 0)
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// audit writes a workflow action into the audit trail. Audit failures are
// logged, not surfaced: the workflow mutation has already committed.
func (w *Workflow) audit(ctx context.Context, actor compliance.Actor, action audit.Action, record *compliance.Record, details map[string]string) {
	if w.auditLog == nil {
		return
	}

	email := actor.Email
	if email == "" {
		email = actor.ID
	}

	_, err := w.auditLog.Append(ctx, auditsvc.AppendRequest{
		Actor: audit.Actor{
			ID:        actor.ID,
			Email:     email,
			IPAddress: "internal",
			UserAgent: "compliance-workflow",
		},
		Action:     action,
		TargetType: audit.TargetTypeContact,
		TargetID:   record.ContactID,
		Details:    details,
	})
	if err != nil {
		w.logger.WarnContext(ctx, "failed to audit workflow action",
			"record_id", record.ID, "action", action, "error", err)
	}
}
