package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/contact-compliance-backend/internal/domain/errors"
)

func testActor() Actor {
	return Actor{
		ID:        "user-123",
		Email:     "ops@example.com",
		IPAddress: "10.0.0.1",
		UserAgent: "cli/1.0",
	}
}

func TestNewEntry(t *testing.T) {
	t.Run("valid entry", func(t *testing.T) {
		entry, err := NewEntry(testActor(), ActionContactCreate)
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, entry.ID)
		assert.Equal(t, "user-123", entry.UserID)
		assert.Equal(t, "ops@example.com", entry.UserEmail)
		assert.Equal(t, ActionContactCreate, entry.Action)
		assert.Equal(t, entry.Timestamp.UnixNano(), entry.TimestampNano)
		assert.False(t, entry.IsImmutable())
		assert.Empty(t, entry.EntryHash)
	})

	t.Run("missing actor id", func(t *testing.T) {
		actor := testActor()
		actor.ID = ""
		_, err := NewEntry(actor, ActionContactCreate)
		require.Error(t, err)
		var appErr *errors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "MISSING_ACTOR_ID", appErr.Code)
	})

	t.Run("missing actor email", func(t *testing.T) {
		actor := testActor()
		actor.Email = ""
		_, err := NewEntry(actor, ActionContactCreate)
		require.Error(t, err)
	})

	t.Run("unregistered action", func(t *testing.T) {
		_, err := NewEntry(testActor(), Action("contact.destroy"))
		require.Error(t, err)
		var appErr *errors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "INVALID_ACTION", appErr.Code)
	})
}

func TestEntryWithTarget(t *testing.T) {
	entry, err := NewEntry(testActor(), ActionContactUpdate)
	require.NoError(t, err)

	_, err = entry.WithTarget(TargetTypeContact, "contact-9")
	require.NoError(t, err)
	assert.Equal(t, TargetTypeContact, entry.TargetType)
	assert.Equal(t, "contact-9", entry.TargetID)

	_, err = entry.WithTarget(TargetType("invoice"), "x")
	require.Error(t, err)
}

func TestEntryComputeHash(t *testing.T) {
	t.Run("hashing makes entry immutable", func(t *testing.T) {
		entry, err := NewEntry(testActor(), ActionUserLogin)
		require.NoError(t, err)
		entry.SequenceNum = 1

		hash, err := entry.ComputeHash(GenesisHash())
		require.NoError(t, err)
		assert.Len(t, hash, 64)
		assert.Equal(t, hash, entry.EntryHash)
		assert.Equal(t, GenesisHash(), entry.PreviousHash)
		assert.True(t, entry.IsImmutable())
	})

	t.Run("double hashing rejected", func(t *testing.T) {
		entry, err := NewEntry(testActor(), ActionUserLogin)
		require.NoError(t, err)
		entry.SequenceNum = 1

		_, err = entry.ComputeHash(GenesisHash())
		require.NoError(t, err)

		_, err = entry.ComputeHash(GenesisHash())
		require.Error(t, err)
		var appErr *errors.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "ENTRY_IMMUTABLE", appErr.Code)
	})

	t.Run("mutation after hashing rejected", func(t *testing.T) {
		entry, err := NewEntry(testActor(), ActionUserLogin)
		require.NoError(t, err)
		entry.SequenceNum = 1
		_, err = entry.ComputeHash(GenesisHash())
		require.NoError(t, err)

		_, err = entry.WithDetails(map[string]string{"k": "v"})
		require.Error(t, err)
		_, err = entry.WithTarget(TargetTypeUser, "u")
		require.Error(t, err)
	})

	t.Run("hash is deterministic over content", func(t *testing.T) {
		entry, err := NewEntry(testActor(), ActionContactExport)
		require.NoError(t, err)
		_, err = entry.WithDetails(map[string]string{"format": "csv", "count": "12"})
		require.NoError(t, err)
		entry.SequenceNum = 3

		_, err = entry.ComputeHash(GenesisHash())
		require.NoError(t, err)

		recomputed, err := entry.RecomputeHash()
		require.NoError(t, err)
		assert.Equal(t, entry.EntryHash, recomputed)
	})

	t.Run("recompute detects tampering", func(t *testing.T) {
		entry, err := NewEntry(testActor(), ActionContactDelete)
		require.NoError(t, err)
		entry.SequenceNum = 1
		_, err = entry.ComputeHash(GenesisHash())
		require.NoError(t, err)

		entry.Action = ActionContactView

		recomputed, err := entry.RecomputeHash()
		require.NoError(t, err)
		assert.NotEqual(t, entry.EntryHash, recomputed)
	})
}

func TestEntryClone(t *testing.T) {
	entry, err := NewEntry(testActor(), ActionSettingsUpdate)
	require.NoError(t, err)
	_, err = entry.WithDetails(map[string]string{"theme": "dark"})
	require.NoError(t, err)

	clone := entry.Clone()
	clone.Details["theme"] = "light"

	assert.Equal(t, "dark", entry.Details["theme"])
}

func TestEntryValidate(t *testing.T) {
	entry, err := NewEntry(testActor(), ActionUserLogout)
	require.NoError(t, err)
	require.NoError(t, entry.Validate())

	entry.UserID = ""
	require.Error(t, entry.Validate())

	entry, err = NewEntry(testActor(), ActionUserLogout)
	require.NoError(t, err)
	entry.Timestamp = entry.Timestamp.Add(time.Minute)
	require.Error(t, entry.Validate())
}

func TestActionIsValid(t *testing.T) {
	assert.True(t, ActionUserLogin.IsValid())
	assert.True(t, ActionSessionRevoke.IsValid())
	assert.True(t, ActionKYCTransition.IsValid())
	assert.False(t, Action("user.impersonate").IsValid())
}
