package compliance

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/contact-compliance-backend/internal/domain/errors"
	"github.com/davidleathers/contact-compliance-backend/internal/domain/values"
)

func reviewer() Actor {
	return Actor{ID: "reviewer-1", Name: "Asha Rao"}
}

func TestNewRecord(t *testing.T) {
	t.Run("seeds defaults", func(t *testing.T) {
		record, err := NewRecord("contact-1", "Acme Traders", reviewer())
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, record.ID)
		assert.Equal(t, "contact-1", record.ContactID)
		assert.Equal(t, StatusDraft, record.Status)
		assert.Empty(t, record.Documents)
		require.Len(t, record.Checks, 4)

		types := make(map[CheckType]bool)
		for _, c := range record.Checks {
			types[c.Type] = true
			assert.Equal(t, CheckStatusPending, c.Status)
		}
		assert.True(t, types[CheckTypeIdentity])
		assert.True(t, types[CheckTypeAddress])
		assert.True(t, types[CheckTypeFinancial])
		assert.True(t, types[CheckTypeSanctions])

		sanctions := record.FindCheck(CheckTypeSanctions)
		require.NotNil(t, sanctions)
		assert.True(t, sanctions.Automated)
		assert.False(t, record.FindCheck(CheckTypeIdentity).Automated)

		require.Len(t, record.History, 1)
		assert.Equal(t, "create", record.History[0].Action)

		// 3 missing required docs (60) + 4 pending checks (40) = 100
		assert.Equal(t, 100, record.RiskScore)
		assert.Equal(t, values.RiskLevelCritical, record.RiskLevel)
	})

	t.Run("missing contact id", func(t *testing.T) {
		_, err := NewRecord("", "x", reviewer())
		require.Error(t, err)
	})

	t.Run("missing actor", func(t *testing.T) {
		_, err := NewRecord("contact-1", "x", Actor{})
		require.Error(t, err)
	})
}

func TestRecordAddDocument(t *testing.T) {
	record, err := NewRecord("contact-1", "Acme", reviewer())
	require.NoError(t, err)

	doc, err := record.AddDocument(DocumentTypePAN, "uploaded via portal")
	require.NoError(t, err)
	assert.Equal(t, DocumentStatusPending, doc.Status)
	assert.Len(t, record.Documents, 1)

	_, err = record.AddDocument(DocumentType("license"), "")
	require.Error(t, err)
	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "INVALID_DOCUMENT_TYPE", appErr.Code)
}

func TestRecordVerifyDocument(t *testing.T) {
	record, err := NewRecord("contact-1", "Acme", reviewer())
	require.NoError(t, err)

	doc, err := record.AddDocument(DocumentTypePAN, "")
	require.NoError(t, err)

	t.Run("verify", func(t *testing.T) {
		verified, err := record.VerifyDocument(doc.ID, reviewer(), true, "checked against registry")
		require.NoError(t, err)
		assert.Equal(t, DocumentStatusVerified, verified.Status)
		assert.Equal(t, "reviewer-1", verified.VerifiedBy)
		require.NotNil(t, verified.VerifiedAt)
	})

	t.Run("unknown document", func(t *testing.T) {
		_, err := record.VerifyDocument(uuid.New(), reviewer(), true, "")
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	})
}

func TestRecordCompleteCheck(t *testing.T) {
	record, err := NewRecord("contact-1", "Acme", reviewer())
	require.NoError(t, err)

	t.Run("pass", func(t *testing.T) {
		check, err := record.CompleteCheck(CheckTypeIdentity, reviewer(), true, "identity matches")
		require.NoError(t, err)
		assert.Equal(t, CheckStatusPassed, check.Status)
		assert.Equal(t, "identity matches", check.Findings)
		require.NotNil(t, check.CheckedAt)
	})

	t.Run("fail", func(t *testing.T) {
		check, err := record.CompleteCheck(CheckTypeSanctions, reviewer(), false, "name on watchlist")
		require.NoError(t, err)
		assert.Equal(t, CheckStatusFailed, check.Status)
	})

	t.Run("regulatory check not seeded", func(t *testing.T) {
		_, err := record.CompleteCheck(CheckTypeRegulatory, reviewer(), true, "")
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
	})

	t.Run("unknown check type", func(t *testing.T) {
		_, err := record.CompleteCheck(CheckType("criminal"), reviewer(), true, "")
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
	})
}

func TestStatusHelpers(t *testing.T) {
	assert.True(t, StatusApproved.IsStable())
	assert.True(t, StatusSuspended.IsStable())
	assert.False(t, StatusDraft.IsStable())
	assert.False(t, StatusPendingReview.IsStable())

	assert.True(t, StatusComplianceCheck.IsValid())
	assert.False(t, Status("archived").IsValid())
}
