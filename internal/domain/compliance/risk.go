package compliance

import (
	"github.com/davidleathers/contact-compliance-backend/internal/domain/values"
)

// Risk weights per outstanding compliance gap
const (
	weightMissingRequiredDoc = 20
	weightRejectedDoc        = 25
	weightExpiredDoc         = 15
	weightFailedCheck        = 30
	weightPendingCheck       = 10
)

// RequiredDocumentTypes are the documents that must be present and verified
// for a record to carry no missing-document risk.
var RequiredDocumentTypes = []DocumentType{
	DocumentTypePAN,
	DocumentTypeGSTIN,
	DocumentTypeAddressProof,
}

// RiskBreakdown itemizes the weighted counts behind a risk score
type RiskBreakdown struct {
	MissingRequiredDocs int `json:"missingRequiredDocs"`
	RejectedDocs        int `json:"rejectedDocs"`
	ExpiredDocs         int `json:"expiredDocs"`
	FailedChecks        int `json:"failedChecks"`
	PendingChecks       int `json:"pendingChecks"`
	Score               int `json:"score"`
}

// ScoreRecord derives the risk score from the record's current documents
// and checks. Deterministic and side-effect free: the same record always
// yields the same score.
func ScoreRecord(r *Record) (values.RiskScore, RiskBreakdown) {
	var breakdown RiskBreakdown

	verified := make(map[DocumentType]bool)
	for _, doc := range r.Documents {
		switch doc.Status {
		case DocumentStatusVerified:
			verified[doc.Type] = true
		case DocumentStatusRejected:
			breakdown.RejectedDocs++
		case DocumentStatusExpired:
			breakdown.ExpiredDocs++
		}
	}

	for _, required := range RequiredDocumentTypes {
		if !verified[required] {
			breakdown.MissingRequiredDocs++
		}
	}

	for _, check := range r.Checks {
		switch check.Status {
		case CheckStatusFailed:
			breakdown.FailedChecks++
		case CheckStatusPending:
			breakdown.PendingChecks++
		}
	}

	total := breakdown.MissingRequiredDocs*weightMissingRequiredDoc +
		breakdown.RejectedDocs*weightRejectedDoc +
		breakdown.ExpiredDocs*weightExpiredDoc +
		breakdown.FailedChecks*weightFailedCheck +
		breakdown.PendingChecks*weightPendingCheck

	score := values.NewRiskScoreCapped(total)
	breakdown.Score = score.Value()

	return score, breakdown
}

// RecalculateRisk re-derives the record's risk score and level in place.
// Idempotent: recalculating an unchanged record yields the same result.
func (r *Record) RecalculateRisk() {
	score, _ := ScoreRecord(r)
	r.RiskScore = score.Value()
	r.RiskLevel = score.Level()
}
