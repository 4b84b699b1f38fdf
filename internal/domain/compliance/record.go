package compliance

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/contact-compliance-backend/internal/domain/errors"
	"github.com/davidleathers/contact-compliance-backend/internal/domain/values"
)

// Actor identifies the reviewer or operator performing a workflow action.
// Identity comes from the external auth/session module.
type Actor struct {
	ID    string
	Name  string
	Email string
}

// Validate checks the actor carries a stable identity
func (a Actor) Validate() error {
	if a.ID == "" {
		return errors.NewValidationError("MISSING_ACTOR_ID", "actor ID is required")
	}
	return nil
}

// Status is the review state of a compliance record
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingReview   Status = "pending_review"
	StatusComplianceCheck Status = "compliance_check"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusExpired         Status = "expired"
	StatusSuspended       Status = "suspended"
)

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// IsValid checks the status against the closed enum
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPendingReview, StatusComplianceCheck,
		StatusApproved, StatusRejected, StatusExpired, StatusSuspended:
		return true
	}
	return false
}

// IsStable reports whether the status is one of the stable end states.
// Stable states are not permanently closed: all of them support reactivate
// back to draft.
func (s Status) IsStable() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusExpired, StatusSuspended:
		return true
	}
	return false
}

// DocumentType classifies a KYC document
type DocumentType string

const (
	DocumentTypePAN           DocumentType = "pan"
	DocumentTypeGSTIN         DocumentType = "gstin"
	DocumentTypeAadhar        DocumentType = "aadhar"
	DocumentTypePassport      DocumentType = "passport"
	DocumentTypeAddressProof  DocumentType = "address_proof"
	DocumentTypeBankStatement DocumentType = "bank_statement"
	DocumentTypeOther         DocumentType = "other"
)

// IsValid checks the document type against the closed enum
func (d DocumentType) IsValid() bool {
	switch d {
	case DocumentTypePAN, DocumentTypeGSTIN, DocumentTypeAadhar,
		DocumentTypePassport, DocumentTypeAddressProof,
		DocumentTypeBankStatement, DocumentTypeOther:
		return true
	}
	return false
}

// DocumentStatus is the verification state of a document
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusVerified DocumentStatus = "verified"
	DocumentStatusRejected DocumentStatus = "rejected"
	DocumentStatusExpired  DocumentStatus = "expired"
)

// CheckType classifies a compliance check
type CheckType string

const (
	CheckTypeIdentity   CheckType = "identity"
	CheckTypeAddress    CheckType = "address"
	CheckTypeFinancial  CheckType = "financial"
	CheckTypeRegulatory CheckType = "regulatory"
	CheckTypeSanctions  CheckType = "sanctions"
)

// IsValid checks the check type against the closed enum
func (c CheckType) IsValid() bool {
	switch c {
	case CheckTypeIdentity, CheckTypeAddress, CheckTypeFinancial,
		CheckTypeRegulatory, CheckTypeSanctions:
		return true
	}
	return false
}

// CheckStatus is the outcome state of a compliance check
type CheckStatus string

const (
	CheckStatusPending CheckStatus = "pending"
	CheckStatusPassed  CheckStatus = "passed"
	CheckStatusFailed  CheckStatus = "failed"
	CheckStatusWaived  CheckStatus = "waived"
)

// Document is a KYC document owned by its parent record
type Document struct {
	ID         uuid.UUID      `json:"id"`
	Type       DocumentType   `json:"type"`
	Status     DocumentStatus `json:"status"`
	UploadedAt time.Time      `json:"uploadedAt"`
	VerifiedAt *time.Time     `json:"verifiedAt,omitempty"`
	VerifiedBy string         `json:"verifiedBy,omitempty"`
	ExpiresAt  *time.Time     `json:"expiresAt,omitempty"`
	Notes      string         `json:"notes"`
}

// Check is a compliance check owned by its parent record
type Check struct {
	ID        uuid.UUID   `json:"id"`
	Type      CheckType   `json:"type"`
	Status    CheckStatus `json:"status"`
	CheckedAt *time.Time  `json:"checkedAt,omitempty"`
	CheckedBy string      `json:"checkedBy,omitempty"`
	Findings  string      `json:"findings"`
	Automated bool        `json:"automated"`
}

// TransitionEntry is an immutable history item of a workflow transition
type TransitionEntry struct {
	Action     string    `json:"action"`
	FromStatus Status    `json:"fromStatus"`
	ToStatus   Status    `json:"toStatus"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}

// Record is a subject's compliance (KYC) review state with its documents,
// checks and transition history. One record per contact; owned exclusively
// by the workflow service.
type Record struct {
	ID          uuid.UUID         `json:"id"`
	ContactID   string            `json:"contactId"`
	ContactName string            `json:"contactName"`
	Status      Status            `json:"status"`
	RiskLevel   values.RiskLevel  `json:"riskLevel"`
	RiskScore   int               `json:"riskScore"`
	Documents   []Document        `json:"documents"`
	Checks      []Check           `json:"checks"`
	History     []TransitionEntry `json:"history"`
	AssignedTo  string            `json:"assignedTo,omitempty"`
	Notes       string            `json:"notes"`
	CreatedBy   string            `json:"createdBy"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	ApprovedAt  *time.Time        `json:"approvedAt,omitempty"`
	ApprovedBy  string            `json:"approvedBy,omitempty"`
	ExpiresAt   *time.Time        `json:"expiresAt,omitempty"`
}

// defaultChecks seeds the checks every record starts with. Sanctions
// screening runs automated; the rest are manual reviewer work.
func defaultChecks() []Check {
	return []Check{
		{ID: uuid.New(), Type: CheckTypeIdentity, Status: CheckStatusPending},
		{ID: uuid.New(), Type: CheckTypeAddress, Status: CheckStatusPending},
		{ID: uuid.New(), Type: CheckTypeFinancial, Status: CheckStatusPending},
		{ID: uuid.New(), Type: CheckTypeSanctions, Status: CheckStatusPending, Automated: true},
	}
}

// NewRecord creates a compliance record in draft with seeded default checks
// and a creation history entry. Risk is derived immediately so the record
// never carries a stale score.
func NewRecord(contactID, contactName string, actor Actor) (*Record, error) {
	if contactID == "" {
		return nil, errors.NewValidationError("MISSING_CONTACT_ID",
			"contact ID is required")
	}
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	record := &Record{
		ID:          uuid.New(),
		ContactID:   contactID,
		ContactName: contactName,
		Status:      StatusDraft,
		Documents:   make([]Document, 0),
		Checks:      defaultChecks(),
		History: []TransitionEntry{{
			Action:     "create",
			FromStatus: StatusDraft,
			ToStatus:   StatusDraft,
			UserID:     actor.ID,
			UserName:   actor.Name,
			Reason:     "record created",
			Timestamp:  now,
		}},
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	record.RecalculateRisk()
	return record, nil
}

// FindDocument returns a pointer to the document with the given id
func (r *Record) FindDocument(docID uuid.UUID) *Document {
	for i := range r.Documents {
		if r.Documents[i].ID == docID {
			return &r.Documents[i]
		}
	}
	return nil
}

// FindCheck returns a pointer to the check of the given type
func (r *Record) FindCheck(checkType CheckType) *Check {
	for i := range r.Checks {
		if r.Checks[i].Type == checkType {
			return &r.Checks[i]
		}
	}
	return nil
}

// AddDocument attaches a document to the record and re-derives risk
func (r *Record) AddDocument(docType DocumentType, notes string) (*Document, error) {
	if !docType.IsValid() {
		return nil, errors.NewValidationError("INVALID_DOCUMENT_TYPE",
			"document type must be one of the registered KYC document types")
	}

	doc := Document{
		ID:         uuid.New(),
		Type:       docType,
		Status:     DocumentStatusPending,
		UploadedAt: time.Now().UTC(),
		Notes:      notes,
	}

	r.Documents = append(r.Documents, doc)
	r.touch()
	r.RecalculateRisk()

	return &r.Documents[len(r.Documents)-1], nil
}

// VerifyDocument marks a document verified or rejected and re-derives risk
func (r *Record) VerifyDocument(docID uuid.UUID, actor Actor, verified bool, notes string) (*Document, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	doc := r.FindDocument(docID)
	if doc == nil {
		return nil, errors.NewNotFoundError("document")
	}

	now := time.Now().UTC()
	if verified {
		doc.Status = DocumentStatusVerified
	} else {
		doc.Status = DocumentStatusRejected
	}
	doc.VerifiedAt = &now
	doc.VerifiedBy = actor.ID
	if notes != "" {
		doc.Notes = notes
	}

	r.touch()
	r.RecalculateRisk()
	return doc, nil
}

// CompleteCheck records the outcome of a compliance check and re-derives risk
func (r *Record) CompleteCheck(checkType CheckType, actor Actor, passed bool, findings string) (*Check, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if !checkType.IsValid() {
		return nil, errors.NewValidationError("INVALID_CHECK_TYPE",
			"check type must be one of the registered compliance check types")
	}

	check := r.FindCheck(checkType)
	if check == nil {
		return nil, errors.NewNotFoundError("compliance check")
	}

	now := time.Now().UTC()
	if passed {
		check.Status = CheckStatusPassed
	} else {
		check.Status = CheckStatusFailed
	}
	check.CheckedAt = &now
	check.CheckedBy = actor.ID
	check.Findings = findings

	r.touch()
	r.RecalculateRisk()
	return check, nil
}

// touch bumps the record's updated timestamp
func (r *Record) touch() {
	r.UpdatedAt = time.Now().UTC()
}

// Clone creates a deep copy of the record
func (r *Record) Clone() *Record {
	clone := *r

	clone.Documents = make([]Document, len(r.Documents))
	copy(clone.Documents, r.Documents)

	clone.Checks = make([]Check, len(r.Checks))
	copy(clone.Checks, r.Checks)

	clone.History = make([]TransitionEntry, len(r.History))
	copy(clone.History, r.History)

	return &clone
}
