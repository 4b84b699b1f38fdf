package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/contact-compliance-backend/internal/domain/errors"
	"github.com/davidleathers/contact-compliance-backend/internal/domain/values"
)

// canonicalVersion tags the canonical serialization used for hashing so the
// hashed representation can evolve without invalidating stored chains.
const canonicalVersion = 1

// Actor carries the identity the external auth/session module supplies for
// every audited action.
type Actor struct {
	ID        string
	Email     string
	IPAddress string
	UserAgent string
}

// Validate checks the actor carries the stable identity the chain requires
func (a Actor) Validate() error {
	if a.ID == "" {
		return errors.NewValidationError("MISSING_ACTOR_ID", "actor ID is required")
	}
	if a.Email == "" {
		return errors.NewValidationError("MISSING_ACTOR_EMAIL", "actor email is required")
	}
	return nil
}

// Entry represents an immutable audit log entry.
// Immutable after hashing; all validation happens in the constructor.
type Entry struct {
	// Immutable identifiers (set once, never modified)
	ID            uuid.UUID `json:"id"`
	SequenceNum   int64     `json:"sequenceNum"`
	Timestamp     time.Time `json:"timestamp"`
	TimestampNano int64     `json:"timestampNano"`

	// Actor information (who performed the action)
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail"`

	// Action details
	Action     Action     `json:"action"`
	TargetID   string     `json:"targetId,omitempty"`
	TargetType TargetType `json:"targetType,omitempty"`

	// Opaque key-value metadata supplied by the caller
	Details map[string]string `json:"details,omitempty"`

	// Request context
	IPAddress string `json:"ipAddress"`
	UserAgent string `json:"userAgent"`

	// Cryptographic integrity
	PreviousHash string `json:"previousHash"`
	EntryHash    string `json:"hash"`

	// Immutability marker - set to true after hash calculation
	immutable bool
}

// NewEntry creates a new audit entry with validation. The entry is not part
// of the chain until ComputeHash links it to its predecessor.
func NewEntry(actor Actor, action Action) (*Entry, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	if !action.IsValid() {
		return nil, errors.NewValidationError("INVALID_ACTION",
			"action must be one of the registered audit actions")
	}

	now := time.Now().UTC()

	entry := &Entry{
		ID:            uuid.New(),
		Timestamp:     now,
		TimestampNano: now.UnixNano(),
		UserID:        actor.ID,
		UserEmail:     actor.Email,
		Action:        action,
		IPAddress:     actor.IPAddress,
		UserAgent:     actor.UserAgent,
		Details:       make(map[string]string),
		immutable:     false,
	}

	return entry, nil
}

// WithTarget attaches the target entity reference. Must be called before
// ComputeHash.
func (e *Entry) WithTarget(targetType TargetType, targetID string) (*Entry, error) {
	if e.immutable {
		return nil, errors.NewBusinessError("ENTRY_IMMUTABLE",
			"cannot modify entry after hash calculation")
	}
	if !targetType.IsValid() {
		return nil, errors.NewValidationError("INVALID_TARGET_TYPE",
			"target type must be user, contact, settings or session")
	}
	e.TargetType = targetType
	e.TargetID = targetID
	return e, nil
}

// WithDetails attaches opaque metadata. Must be called before ComputeHash.
func (e *Entry) WithDetails(details map[string]string) (*Entry, error) {
	if e.immutable {
		return nil, errors.NewBusinessError("ENTRY_IMMUTABLE",
			"cannot modify entry after hash calculation")
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e, nil
}

// canonicalize produces the deterministic serialization of the hashed
// fields, excluding the hash itself. json.Marshal sorts map keys, which
// gives a fixed canonical field order.
func (e *Entry) canonicalize(previousHash string) ([]byte, error) {
	hashData := map[string]interface{}{
		"v":             canonicalVersion,
		"id":            e.ID.String(),
		"sequence_num":  e.SequenceNum,
		"timestamp":     e.TimestampNano,
		"user_id":       e.UserID,
		"user_email":    e.UserEmail,
		"action":        string(e.Action),
		"target_id":     e.TargetID,
		"target_type":   string(e.TargetType),
		"details":       e.Details,
		"ip_address":    e.IPAddress,
		"user_agent":    e.UserAgent,
		"previous_hash": previousHash,
	}

	jsonBytes, err := json.Marshal(hashData)
	if err != nil {
		return nil, errors.NewInternalError("failed to marshal canonical entry").WithCause(err)
	}
	return jsonBytes, nil
}

// ComputeHash calculates the SHA-256 hash linking this entry to the chain
// and marks the entry immutable.
func (e *Entry) ComputeHash(previousHash string) (string, error) {
	if e.immutable {
		return "", errors.NewBusinessError("ENTRY_IMMUTABLE",
			"cannot compute hash on immutable entry")
	}

	e.PreviousHash = previousHash

	jsonBytes, err := e.canonicalize(previousHash)
	if err != nil {
		return "", err
	}

	hash, err := values.ComputeHashValue(jsonBytes)
	if err != nil {
		return "", errors.NewInternalError("failed to compute entry hash").WithCause(err)
	}

	e.EntryHash = hash.String()
	e.immutable = true

	return e.EntryHash, nil
}

// RecomputeHash recomputes the hash of an already-chained entry without
// mutating it. Used by chain verification.
func (e *Entry) RecomputeHash() (string, error) {
	jsonBytes, err := e.canonicalize(e.PreviousHash)
	if err != nil {
		return "", err
	}

	hash, err := values.ComputeHashValue(jsonBytes)
	if err != nil {
		return "", errors.NewInternalError("failed to recompute entry hash").WithCause(err)
	}
	return hash.String(), nil
}

// IsImmutable returns whether the entry has been made immutable
func (e *Entry) IsImmutable() bool {
	return e.immutable
}

// MarkImmutable restores the immutability marker on entries loaded from
// storage, where the hash has already been computed.
func (e *Entry) MarkImmutable() {
	if e.EntryHash != "" {
		e.immutable = true
	}
}

// Validate performs structural validation of the entry
func (e *Entry) Validate() error {
	if e.ID == uuid.Nil {
		return errors.NewValidationError("MISSING_ID", "entry ID is required")
	}
	if e.UserID == "" {
		return errors.NewValidationError("MISSING_ACTOR_ID", "actor ID is required")
	}
	if e.UserEmail == "" {
		return errors.NewValidationError("MISSING_ACTOR_EMAIL", "actor email is required")
	}
	if !e.Action.IsValid() {
		return errors.NewValidationError("INVALID_ACTION",
			"action must be one of the registered audit actions")
	}
	if e.TargetType != "" && !e.TargetType.IsValid() {
		return errors.NewValidationError("INVALID_TARGET_TYPE",
			"target type must be user, contact, settings or session")
	}
	if e.Timestamp.IsZero() {
		return errors.NewValidationError("MISSING_TIMESTAMP", "timestamp is required")
	}
	// The canonical hash covers TimestampNano; the two representations must
	// agree or an edit to Timestamp would slip past chain verification.
	if e.Timestamp.UnixNano() != e.TimestampNano {
		return errors.NewValidationError("TIMESTAMP_MISMATCH",
			"timestamp does not match its hashed nanosecond representation")
	}
	return nil
}

// Clone creates a deep copy of the entry
func (e *Entry) Clone() *Entry {
	clone := *e

	if e.Details != nil {
		clone.Details = make(map[string]string, len(e.Details))
		for k, v := range e.Details {
			clone.Details[k] = v
		}
	}

	return &clone
}
