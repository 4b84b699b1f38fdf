package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/davidleathers/contact-compliance-backend/internal/domain/audit"
	"github.com/davidleathers/contact-compliance-backend/internal/domain/errors"
	"github.com/davidleathers/contact-compliance-backend/internal/infrastructure/config"
)

// Key prefixes for audit cache entries
const (
	headHashKey     = "cce:audit:head:hash"
	headSequenceKey = "cce:audit:head:seq"
	verificationKey = "cce:audit:verification:latest"
	statsKey        = "cce:audit:stats"
)

// TTL values. Head state is written on every append so it stays fresh
// under a short TTL; verification results live until the next run.
const (
	HeadCacheTTL         = 5 * time.Minute
	VerificationCacheTTL = 1 * time.Hour
	StatsCacheTTL        = 5 * time.Minute
)

// NewClient creates a redis client from the cache configuration
func NewClient(cfg *config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	return redis.NewClient(opts), nil
}

// AuditCache keeps hot read state of the audit log in Redis: the chain
// head and the latest verification result. It is cache-aside only; the
// log service treats every cache failure as a miss and falls through to
// storage.
type AuditCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewAuditCache creates a new audit cache
func NewAuditCache(client *redis.Client, logger *slog.Logger) (*AuditCache, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &AuditCache{client: client, logger: logger}, nil
}

// SetHead records the hash and sequence of the most recent entry
func (c *AuditCache) SetHead(ctx context.Context, entry *audit.Entry) error {
	if entry == nil {
		return errors.NewValidationError("INVALID_ENTRY", "entry cannot be nil")
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, headHashKey, entry.EntryHash, HeadCacheTTL)
	pipe.Set(ctx, headSequenceKey, strconv.FormatInt(entry.SequenceNum, 10), HeadCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.NewInternalError("failed to cache chain head").WithCause(err)
	}
	return nil
}

// GetHead returns the cached head hash and sequence. A miss returns
// ok=false with no error.
func (c *AuditCache) GetHead(ctx context.Context) (hash string, sequence int64, ok bool, err error) {
	hash, err = c.client.Get(ctx, headHashKey).Result()
	if err == redis.Nil {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, errors.NewInternalError("failed to read chain head").WithCause(err)
	}

	seqStr, err := c.client.Get(ctx, headSequenceKey).Result()
	if err == redis.Nil {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, errors.NewInternalError("failed to read chain head sequence").WithCause(err)
	}

	sequence, err = strconv.ParseInt(seqStr, 10, 64)
	if err != nil {
		return "", 0, false, errors.NewInternalError("corrupt cached sequence").WithCause(err)
	}
	return hash, sequence, true, nil
}

// SetVerification stores the latest chain verification result
func (c *AuditCache) SetVerification(ctx context.Context, result *audit.ChainVerificationResult) error {
	if result == nil {
		return errors.NewValidationError("INVALID_RESULT", "verification result cannot be nil")
	}

	data, err := json.Marshal(result)
	if err != nil {
		return errors.NewInternalError("failed to marshal verification result").WithCause(err)
	}
	if err := c.client.Set(ctx, verificationKey, data, VerificationCacheTTL).Err(); err != nil {
		return errors.NewInternalError("failed to cache verification result").WithCause(err)
	}
	return nil
}

// GetVerification returns the cached verification result, or nil on miss
func (c *AuditCache) GetVerification(ctx context.Context) (*audit.ChainVerificationResult, error) {
	data, err := c.client.Get(ctx, verificationKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternalError("failed to read verification result").WithCause(err)
	}

	var result audit.ChainVerificationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errors.NewInternalError("failed to unmarshal verification result").WithCause(err)
	}
	return &result, nil
}

// SetStats stores aggregate chain statistics
func (c *AuditCache) SetStats(ctx context.Context, stats *audit.ChainStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return errors.NewInternalError("failed to marshal chain stats").WithCause(err)
	}
	if err := c.client.Set(ctx, statsKey, data, StatsCacheTTL).Err(); err != nil {
		return errors.NewInternalError("failed to cache chain stats").WithCause(err)
	}
	return nil
}

// GetStats returns the cached chain statistics, or nil on miss
func (c *AuditCache) GetStats(ctx context.Context) (*audit.ChainStats, error) {
	data, err := c.client.Get(ctx, statsKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewInternalError("failed to read chain stats").WithCause(err)
	}

	var stats audit.ChainStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, errors.NewInternalError("failed to unmarshal chain stats").WithCause(err)
	}
	return &stats, nil
}

// Invalidate drops all cached audit state. Archive and verification
// failures call this so stale heads never mask a broken chain.
func (c *AuditCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, headHashKey, headSequenceKey, verificationKey, statsKey).Err(); err != nil {
		c.logger.WarnContext(ctx, "failed to invalidate audit cache", "error", err)
		return errors.NewInternalError("failed to invalidate audit cache").WithCause(err)
	}
	return nil
}
