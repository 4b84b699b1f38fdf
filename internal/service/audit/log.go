package audit

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/davidleathers/contact-compliance-backend/internal/domain/audit"
	"github.com/davidleathers/contact-compliance-backend/internal/domain/errors"
	"github.com/davidleathers/contact-compliance-backend/internal/domain/values"
	"github.com/davidleathers/contact-compliance-backend/internal/metrics"
)

// Cache is the optional hot-state cache used by the log service. All cache
// failures and misses degrade to storage reads; they never fail an
// operation.
type Cache interface {
	SetHead(ctx context.Context, entry *audit.Entry) error
	GetHead(ctx context.Context) (hash string, sequence int64, ok bool, err error)
	SetVerification(ctx context.Context, result *audit.ChainVerificationResult) error
	GetVerification(ctx context.Context) (*audit.ChainVerificationResult, error)
	SetStats(ctx context.Context, stats *audit.ChainStats) error
	GetStats(ctx context.Context) (*audit.ChainStats, error)
	Invalidate(ctx context.Context) error
}

// AppendRequest carries everything one audit entry records
type AppendRequest struct {
	Actor      audit.Actor
	Action     audit.Action
	TargetType audit.TargetType
	TargetID   string
	Details    map[string]string
}

// Log is the tamper-evident audit log service. It is the single writer of
// the chain: all appends serialize on one mutex so sequence numbers and
// previous-hash links are assigned race-free, and every entry is hashed
// before it is handed to storage.
type Log struct {
	repo    audit.EntryRepository
	cache   Cache
	logger  *slog.Logger
	metrics *metrics.Registry
	tracer  trace.Tracer

	mu       sync.Mutex
	headHash string
	headSeq  values.SequenceNumber
	primed   bool
}

// NewLog creates the audit log service. cache and registry may be nil.
func NewLog(repo audit.EntryRepository, cache Cache, logger *slog.Logger, registry *metrics.Registry) (*Log, error) {
	if repo == nil {
		return nil, errors.NewInternalError("entry repository is required")
	}
	if logger == nil {
		return nil, errors.NewInternalError("logger is required")
	}

	return &Log{
		repo:    repo,
		cache:   cache,
		logger:  logger,
		metrics: registry,
		tracer:  otel.Tracer("service.audit"),
	}, nil
}

// primeHead loads the chain head from storage. Caller holds l.mu.
func (l *Log) primeHead(ctx context.Context) error {
	latest, err := l.repo.Latest(ctx)
	if err != nil {
		return errors.NewStorageError("failed to load chain head").WithCause(err)
	}

	if latest == nil {
		anchors, err := l.repo.ListAnchors(ctx)
		if err != nil {
			return errors.NewStorageError("failed to load archive anchors").WithCause(err)
		}
		if len(anchors) > 0 {
			last := anchors[len(anchors)-1]
			seq, err := values.NewSequenceNumber(uint64(last.LastSequence))
			if err != nil {
				return errors.NewIntegrityError("BAD_SEQUENCE",
					"stored anchor carries an invalid sequence number").WithCause(err)
			}
			l.headHash = last.FinalHash
			l.headSeq = seq
		} else {
			// Empty chain. The zero sequence is the only place the zero
			// value is legal; Next moves it to the first sequence.
			l.headHash = audit.GenesisHash()
			l.headSeq = values.SequenceNumber{}
		}
	} else {
		seq, err := values.NewSequenceNumber(uint64(latest.SequenceNum))
		if err != nil {
			return errors.NewIntegrityError("BAD_SEQUENCE",
				"stored entry carries an invalid sequence number").WithCause(err)
		}
		l.headHash = latest.EntryHash
		l.headSeq = seq
	}

	l.primed = true
	return nil
}

// Append creates, hashes and persists one entry at the end of the chain
func (l *Log) Append(ctx context.Context, req AppendRequest) (*audit.Entry, error) {
	ctx, span := l.tracer.Start(ctx, "audit.append",
		trace.WithAttributes(attribute.String("audit.action", string(req.Action))))
	defer span.End()

	start := time.Now()

	entry, err := audit.NewEntry(req.Actor, req.Action)
	if err != nil {
		return nil, err
	}
	if req.TargetType != "" || req.TargetID != "" {
		if _, err := entry.WithTarget(req.TargetType, req.TargetID); err != nil {
			return nil, err
		}
	}
	if len(req.Details) > 0 {
		if _, err := entry.WithDetails(req.Details); err != nil {
			return nil, err
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.primed {
		if err := l.primeHead(ctx); err != nil {
			return nil, err
		}
	}

	next, err := l.headSeq.Next()
	if err != nil {
		return nil, err
	}

	entry.SequenceNum = int64(next.Value())
	if _, err := entry.ComputeHash(l.headHash); err != nil {
		return nil, err
	}

	if err := l.repo.Append(ctx, entry); err != nil {
		return nil, err
	}

	l.headHash = entry.EntryHash
	l.headSeq = next

	if l.cache != nil {
		if err := l.cache.SetHead(ctx, entry); err != nil {
			l.logger.WarnContext(ctx, "failed to cache chain head",
				"sequence", entry.SequenceNum, "error", err)
		}
	}

	l.metrics.RecordAppend(ctx, string(entry.Action),
		float64(time.Since(start).Microseconds())/1000)

	l.logger.DebugContext(ctx, "audit entry appended",
		"sequence", entry.SequenceNum,
		"action", entry.Action,
		"user_id", entry.UserID)

	return entry.Clone(), nil
}

// VerifyChain re-verifies the full stored chain. When archive anchors
// exist, the live chain is verified against the newest anchor's final hash
// instead of the genesis constant.
func (l *Log) VerifyChain(ctx context.Context) (*audit.ChainVerificationResult, error) {
	ctx, span := l.tracer.Start(ctx, "audit.verify_chain")
	defer span.End()

	entries, err := l.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	startHash := audit.GenesisHash()
	anchors, err := l.repo.ListAnchors(ctx)
	if err != nil {
		return nil, err
	}
	if len(anchors) > 0 {
		startHash = anchors[len(anchors)-1].FinalHash
	}

	result := audit.VerifyChainFrom(entries, startHash)

	if l.metrics != nil {
		l.metrics.VerifyDuration.Record(ctx,
			float64(result.VerificationTime.Microseconds())/1000)
		if !result.Valid {
			l.metrics.ChainBreakCounter.Add(ctx, 1)
		}
	}

	if result.Valid {
		l.logger.InfoContext(ctx, "chain verification passed",
			"entries", result.VerifiedEntries,
			"duration", result.VerificationTime)
	} else {
		l.logger.ErrorContext(ctx, "chain verification failed",
			"broken_at", *result.BrokenAt,
			"verified", result.VerifiedEntries,
			"total", result.TotalEntries,
			"reason", result.Reason)
	}

	if l.cache != nil {
		if err := l.cache.SetVerification(ctx, result); err != nil {
			l.logger.WarnContext(ctx, "failed to cache verification result", "error", err)
		}
	}

	return result, nil
}

// List returns the full chain in append order
func (l *Log) List(ctx context.Context) ([]*audit.Entry, error) {
	return l.repo.List(ctx)
}

// ByUser returns entries performed by the given user
func (l *Log) ByUser(ctx context.Context, userID string) ([]*audit.Entry, error) {
	return l.filter(ctx, func(e *audit.Entry) bool {
		return e.UserID == userID
	})
}

// ByAction returns entries with the given action
func (l *Log) ByAction(ctx context.Context, action audit.Action) ([]*audit.Entry, error) {
	return l.filter(ctx, func(e *audit.Entry) bool {
		return e.Action == action
	})
}

// ByTarget returns entries touching the given target entity
func (l *Log) ByTarget(ctx context.Context, targetType audit.TargetType, targetID string) ([]*audit.Entry, error) {
	return l.filter(ctx, func(e *audit.Entry) bool {
		return e.TargetType == targetType && e.TargetID == targetID
	})
}

// ByTimeRange returns entries with from <= timestamp < to
func (l *Log) ByTimeRange(ctx context.Context, from, to time.Time) ([]*audit.Entry, error) {
	return l.filter(ctx, func(e *audit.Entry) bool {
		return !e.Timestamp.Before(from) && e.Timestamp.Before(to)
	})
}

// Recent returns the most recent n entries, newest first
func (l *Log) Recent(ctx context.Context, n int) ([]*audit.Entry, error) {
	entries, err := l.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	if n <= 0 || n > len(entries) {
		n = len(entries)
	}

	out := make([]*audit.Entry, 0, n)
	for i := len(entries) - 1; i >= len(entries)-n; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

// Search returns entries whose identity, target or details contain the
// given text, case-insensitive
func (l *Log) Search(ctx context.Context, text string) ([]*audit.Entry, error) {
	needle := strings.ToLower(text)
	return l.filter(ctx, func(e *audit.Entry) bool {
		if strings.Contains(strings.ToLower(e.UserID), needle) ||
			strings.Contains(strings.ToLower(e.UserEmail), needle) ||
			strings.Contains(strings.ToLower(string(e.Action)), needle) ||
			strings.Contains(strings.ToLower(e.TargetID), needle) {
			return true
		}
		for k, v := range e.Details {
			if strings.Contains(strings.ToLower(k), needle) ||
				strings.Contains(strings.ToLower(v), needle) {
				return true
			}
		}
		return false
	})
}

// Head returns the current chain head hash and sequence. A cached head is
// served when present; otherwise the head comes from storage. Appends never
// trust the cache for linking, so a stale cached head can mislead a status
// read at worst.
func (l *Log) Head(ctx context.Context) (string, int64, error) {
	if l.cache != nil {
		hash, seq, ok, err := l.cache.GetHead(ctx)
		if err != nil {
			l.logger.WarnContext(ctx, "failed to read cached chain head", "error", err)
		} else if ok {
			return hash, seq, nil
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.primed {
		if err := l.primeHead(ctx); err != nil {
			return "", 0, err
		}
	}
	return l.headHash, int64(l.headSeq.Value()), nil
}

// LastVerification returns the most recent verification result, serving the
// cached one when present and running a fresh verification otherwise.
func (l *Log) LastVerification(ctx context.Context) (*audit.ChainVerificationResult, error) {
	if l.cache != nil {
		result, err := l.cache.GetVerification(ctx)
		if err != nil {
			l.logger.WarnContext(ctx, "failed to read cached verification result", "error", err)
		} else if result != nil {
			return result, nil
		}
	}
	return l.VerifyChain(ctx)
}

// Stats aggregates counts over the stored chain. Results are cached with a
// short TTL, so stats may trail the chain by a few minutes.
func (l *Log) Stats(ctx context.Context) (*audit.ChainStats, error) {
	if l.cache != nil {
		stats, err := l.cache.GetStats(ctx)
		if err != nil {
			l.logger.WarnContext(ctx, "failed to read cached chain stats", "error", err)
		} else if stats != nil {
			return stats, nil
		}
	}

	entries, err := l.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	stats := audit.ComputeChainStats(entries)

	if l.cache != nil {
		if err := l.cache.SetStats(ctx, stats); err != nil {
			l.logger.WarnContext(ctx, "failed to cache chain stats", "error", err)
		}
	}
	return stats, nil
}

// ArchiveBefore moves the chain prefix older than cutoff out of the live
// log. The full chain is verified first, an anchor recording the archived
// prefix's final hash is persisted, and only then is the live collection
// replaced with the remaining suffix. A broken chain is never archived.
func (l *Log) ArchiveBefore(ctx context.Context, cutoff time.Time) ([]*audit.Entry, *audit.ArchiveAnchor, error) {
	ctx, span := l.tracer.Start(ctx, "audit.archive")
	defer span.End()

	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.repo.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	startHash := audit.GenesisHash()
	anchors, err := l.repo.ListAnchors(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(anchors) > 0 {
		startHash = anchors[len(anchors)-1].FinalHash
	}

	if result := audit.VerifyChainFrom(entries, startHash); !result.Valid {
		return nil, nil, errors.NewIntegrityError("CHAIN_BROKEN",
			"refusing to archive a chain that fails verification")
	}

	cut := 0
	for cut < len(entries) && entries[cut].Timestamp.Before(cutoff) {
		cut++
	}
	if cut == 0 {
		return nil, nil, nil
	}

	archived := entries[:cut]
	remaining := entries[cut:]

	anchor := audit.NewArchiveAnchor(archived)
	if err := l.repo.SaveAnchor(ctx, anchor); err != nil {
		return nil, nil, err
	}
	if err := l.repo.Replace(ctx, remaining); err != nil {
		return nil, nil, err
	}

	if l.metrics != nil {
		l.metrics.EntriesArchived.Add(ctx, int64(len(archived)))
	}
	if l.cache != nil {
		if err := l.cache.Invalidate(ctx); err != nil {
			l.logger.WarnContext(ctx, "failed to invalidate audit cache", "error", err)
		}
	}

	l.logger.InfoContext(ctx, "archived audit entries",
		"archived", len(archived),
		"remaining", len(remaining),
		"final_hash", anchor.FinalHash)

	return archived, anchor, nil
}

func (l *Log) filter(ctx context.Context, keep func(*audit.Entry) bool) ([]*audit.Entry, error) {
	entries, err := l.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*audit.Entry, 0)
	for _, e := range entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out, nil
}
