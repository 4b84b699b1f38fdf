package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/contact-compliance-backend/internal/domain/audit"
)

func setupTestAuditCache(t *testing.T) (*AuditCache, *miniredis.Miniredis) {
	t.Helper()

	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	c, err := NewAuditCache(client, logger)
	require.NoError(t, err)
	return c, s
}

func cachedEntry(t *testing.T) *audit.Entry {
	t.Helper()

	entry, err := audit.NewEntry(audit.Actor{
		ID:        "user-1",
		Email:     "user@example.com",
		IPAddress: "10.0.0.1",
		UserAgent: "test/1.0",
	}, audit.ActionUserLogin)
	require.NoError(t, err)
	entry.SequenceNum = 7

	_, err = entry.ComputeHash(audit.GenesisHash())
	require.NoError(t, err)
	return entry
}

func TestNewAuditCache(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("nil client", func(t *testing.T) {
		c, err := NewAuditCache(nil, logger)
		assert.Error(t, err)
		assert.Nil(t, c)
	})

	t.Run("nil logger", func(t *testing.T) {
		s := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: s.Addr()})
		c, err := NewAuditCache(client, nil)
		assert.Error(t, err)
		assert.Nil(t, c)
	})
}

func TestAuditCache_Head(t *testing.T) {
	c, s := setupTestAuditCache(t)
	ctx := context.Background()

	t.Run("miss on empty cache", func(t *testing.T) {
		_, _, ok, err := c.GetHead(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("set and get", func(t *testing.T) {
		entry := cachedEntry(t)
		require.NoError(t, c.SetHead(ctx, entry))

		hash, seq, ok, err := c.GetHead(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, entry.EntryHash, hash)
		assert.Equal(t, int64(7), seq)
	})

	t.Run("nil entry rejected", func(t *testing.T) {
		assert.Error(t, c.SetHead(ctx, nil))
	})

	t.Run("expires", func(t *testing.T) {
		entry := cachedEntry(t)
		require.NoError(t, c.SetHead(ctx, entry))

		s.FastForward(HeadCacheTTL + time.Second)

		_, _, ok, err := c.GetHead(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestAuditCache_Verification(t *testing.T) {
	c, _ := setupTestAuditCache(t)
	ctx := context.Background()

	t.Run("miss returns nil", func(t *testing.T) {
		result, err := c.GetVerification(ctx)
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("round trip preserves break position", func(t *testing.T) {
		brokenAt := 3
		stored := &audit.ChainVerificationResult{
			Valid:           false,
			BrokenAt:        &brokenAt,
			TotalEntries:    10,
			VerifiedEntries: 3,
			Reason:          "hash mismatch",
		}
		require.NoError(t, c.SetVerification(ctx, stored))

		result, err := c.GetVerification(ctx)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.False(t, result.Valid)
		require.NotNil(t, result.BrokenAt)
		assert.Equal(t, 3, *result.BrokenAt)
		assert.Equal(t, 3, result.VerifiedEntries)
	})
}

func TestAuditCache_Invalidate(t *testing.T) {
	c, _ := setupTestAuditCache(t)
	ctx := context.Background()

	require.NoError(t, c.SetHead(ctx, cachedEntry(t)))
	require.NoError(t, c.SetVerification(ctx, &audit.ChainVerificationResult{Valid: true}))

	require.NoError(t, c.Invalidate(ctx))

	_, _, ok, err := c.GetHead(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	result, err := c.GetVerification(ctx)
	require.NoError(t, err)
	assert.Nil(t, result)
}
