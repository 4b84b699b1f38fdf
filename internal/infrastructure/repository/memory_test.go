package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/contact-compliance-backend/internal/domain/audit"
	"github.com/davidleathers/contact-compliance-backend/internal/domain/compliance"
)

func appendEntry(t *testing.T, repo *MemoryEntryRepository, seq int64, previousHash string) *audit.Entry {
	t.Helper()

	entry, err := audit.NewEntry(audit.Actor{
		ID:        "user-1",
		Email:     "user@example.com",
		IPAddress: "10.0.0.1",
		UserAgent: "test/1.0",
	}, audit.ActionContactCreate)
	require.NoError(t, err)
	entry.SequenceNum = seq

	_, err = entry.ComputeHash(previousHash)
	require.NoError(t, err)

	require.NoError(t, repo.Append(context.Background(), entry))
	return entry
}

func TestMemoryEntryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryEntryRepository()

	t.Run("empty log", func(t *testing.T) {
		latest, err := repo.Latest(ctx)
		require.NoError(t, err)
		assert.Nil(t, latest)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("append preserves order", func(t *testing.T) {
		first := appendEntry(t, repo, 1, audit.GenesisHash())
		second := appendEntry(t, repo, 2, first.EntryHash)

		entries, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, first.ID, entries[0].ID)
		assert.Equal(t, second.ID, entries[1].ID)

		latest, err := repo.Latest(ctx)
		require.NoError(t, err)
		assert.Equal(t, second.ID, latest.ID)
	})

	t.Run("list returns copies", func(t *testing.T) {
		entries, err := repo.List(ctx)
		require.NoError(t, err)

		entries[0].Details["mutated"] = "true"

		fresh, err := repo.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, fresh[0].Details, "mutated")
	})

	t.Run("replace and anchors", func(t *testing.T) {
		entries, err := repo.List(ctx)
		require.NoError(t, err)

		anchor := audit.NewArchiveAnchor(entries[:1])
		require.NoError(t, repo.SaveAnchor(ctx, anchor))
		require.NoError(t, repo.Replace(ctx, entries[1:]))

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)

		anchors, err := repo.ListAnchors(ctx)
		require.NoError(t, err)
		require.Len(t, anchors, 1)
		assert.Equal(t, entries[0].EntryHash, anchors[0].FinalHash)
	})
}

func TestMemoryRecordRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRecordRepository()
	actor := compliance.Actor{ID: "reviewer-1", Name: "Asha Rao"}

	record, err := compliance.NewRecord("contact-1", "Acme", actor)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, record))

	t.Run("get by id", func(t *testing.T) {
		found, err := repo.GetByID(ctx, record.ID.String())
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, record.ContactID, found.ContactID)
	})

	t.Run("get by contact", func(t *testing.T) {
		found, err := repo.GetByContactID(ctx, "contact-1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, record.ID, found.ID)
	})

	t.Run("absent record is nil, not error", func(t *testing.T) {
		found, err := repo.GetByID(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("returned record is a copy", func(t *testing.T) {
		found, err := repo.GetByID(ctx, record.ID.String())
		require.NoError(t, err)
		found.Notes = "mutated"

		fresh, err := repo.GetByID(ctx, record.ID.String())
		require.NoError(t, err)
		assert.Empty(t, fresh.Notes)
	})

	t.Run("save overwrites", func(t *testing.T) {
		record.Notes = "escalated"
		require.NoError(t, repo.Save(ctx, record))

		found, err := repo.GetByID(ctx, record.ID.String())
		require.NoError(t, err)
		assert.Equal(t, "escalated", found.Notes)

		all, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}
