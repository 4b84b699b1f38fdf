package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/contact-compliance-backend/internal/domain/values"
)

func TestScoreRecordWeights(t *testing.T) {
	t.Run("missing docs and one failed check", func(t *testing.T) {
		// 3 missing required docs (60) + one failed check (30) = 90
		record, err := NewRecord("contact-1", "Acme", reviewer())
		require.NoError(t, err)

		for _, c := range []CheckType{CheckTypeIdentity, CheckTypeAddress, CheckTypeFinancial} {
			record.FindCheck(c).Status = CheckStatusWaived
		}
		_, err = record.CompleteCheck(CheckTypeSanctions, reviewer(), false, "hit")
		require.NoError(t, err)

		score, breakdown := ScoreRecord(record)
		assert.Equal(t, 90, score.Value())
		assert.Equal(t, values.RiskLevelCritical, score.Level())
		assert.Equal(t, 3, breakdown.MissingRequiredDocs)
		assert.Equal(t, 1, breakdown.FailedChecks)
		assert.Equal(t, 0, breakdown.PendingChecks)
	})

	t.Run("fully compliant record scores zero", func(t *testing.T) {
		record, err := NewRecord("contact-1", "Acme", reviewer())
		require.NoError(t, err)

		for _, d := range RequiredDocumentTypes {
			doc, err := record.AddDocument(d, "")
			require.NoError(t, err)
			_, err = record.VerifyDocument(doc.ID, reviewer(), true, "")
			require.NoError(t, err)
		}
		for i := range record.Checks {
			record.Checks[i].Status = CheckStatusPassed
		}
		record.RecalculateRisk()

		assert.Equal(t, 0, record.RiskScore)
		assert.Equal(t, values.RiskLevelLow, record.RiskLevel)
	})

	t.Run("score capped at 100", func(t *testing.T) {
		record, err := NewRecord("contact-1", "Acme", reviewer())
		require.NoError(t, err)

		for i := 0; i < 4; i++ {
			doc, err := record.AddDocument(DocumentTypeOther, "")
			require.NoError(t, err)
			_, err = record.VerifyDocument(doc.ID, reviewer(), false, "forged")
			require.NoError(t, err)
		}

		score, _ := ScoreRecord(record)
		assert.Equal(t, 100, score.Value())
	})

	t.Run("expired and rejected doc weights", func(t *testing.T) {
		record, err := NewRecord("contact-1", "Acme", reviewer())
		require.NoError(t, err)

		for i := range record.Checks {
			record.Checks[i].Status = CheckStatusWaived
		}

		doc, err := record.AddDocument(DocumentTypePassport, "")
		require.NoError(t, err)
		doc.Status = DocumentStatusExpired

		// 3 missing (60) + 1 expired (15) = 75
		score, breakdown := ScoreRecord(record)
		assert.Equal(t, 75, score.Value())
		assert.Equal(t, 1, breakdown.ExpiredDocs)
	})
}

func TestScoreRecordIdempotent(t *testing.T) {
	record, err := NewRecord("contact-1", "Acme", reviewer())
	require.NoError(t, err)

	first, _ := ScoreRecord(record)
	second, _ := ScoreRecord(record)
	assert.Equal(t, first.Value(), second.Value())

	record.RecalculateRisk()
	before := record.RiskScore
	record.RecalculateRisk()
	assert.Equal(t, before, record.RiskScore)
}

// Verifying a previously-unverified required document never increases the
// score; rejecting a document never decreases it.
func TestScoreRecordMonotonic(t *testing.T) {
	t.Run("verification never raises risk", func(t *testing.T) {
		record, err := NewRecord("contact-1", "Acme", reviewer())
		require.NoError(t, err)

		doc, err := record.AddDocument(DocumentTypePAN, "")
		require.NoError(t, err)
		before := record.RiskScore

		_, err = record.VerifyDocument(doc.ID, reviewer(), true, "")
		require.NoError(t, err)

		assert.LessOrEqual(t, record.RiskScore, before)
	})

	t.Run("rejection never lowers risk", func(t *testing.T) {
		record, err := NewRecord("contact-1", "Acme", reviewer())
		require.NoError(t, err)

		doc, err := record.AddDocument(DocumentTypeBankStatement, "")
		require.NoError(t, err)
		before := record.RiskScore

		_, err = record.VerifyDocument(doc.ID, reviewer(), false, "inconsistent")
		require.NoError(t, err)

		assert.GreaterOrEqual(t, record.RiskScore, before)
	})
}
