package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/contact-compliance-backend/internal/domain/values"
)

// GenesisHash is the fixed previous-hash constant for the first entry of a
// chain (64 zero hex characters).
func GenesisHash() string {
	return values.ZeroHash().String()
}

// ChainVerificationResult contains the results of hash chain verification
type ChainVerificationResult struct {
	Valid            bool          `json:"valid"`
	BrokenAt         *int          `json:"brokenAt,omitempty"`
	TotalEntries     int           `json:"totalEntries"`
	VerifiedEntries  int           `json:"verifiedEntries"`
	Reason           string        `json:"reason,omitempty"`
	VerificationTime time.Duration `json:"verificationTime"`
}

// brokenAt marks the result invalid at the given index. Verification stops
// at the first break: everything after an unverifiable link is untrusted.
func brokenAt(result *ChainVerificationResult, index int, reason string) *ChainVerificationResult {
	idx := index
	result.Valid = false
	result.BrokenAt = &idx
	result.VerifiedEntries = index
	result.Reason = reason
	return result
}

// VerifyChain walks entries from genesis and verifies every link and every
// entry hash. On the first failure it reports the broken index; it never
// repairs, since any repair would itself be unverifiable.
func VerifyChain(entries []*Entry) *ChainVerificationResult {
	return VerifyChainFrom(entries, GenesisHash())
}

// VerifyChainFrom verifies a chain segment whose first entry links to
// startHash. Used after archiving, where startHash is the archive anchor's
// final hash instead of the genesis constant.
func VerifyChainFrom(entries []*Entry, startHash string) *ChainVerificationResult {
	startTime := time.Now()

	result := &ChainVerificationResult{
		Valid:        true,
		TotalEntries: len(entries),
	}

	runningHash := startHash

	for i, entry := range entries {
		if entry == nil {
			brokenAt(result, i, "nil entry")
			break
		}

		if err := entry.Validate(); err != nil {
			brokenAt(result, i, "entry validation failed: "+err.Error())
			break
		}

		if entry.PreviousHash != runningHash {
			brokenAt(result, i, "previous hash does not match preceding entry")
			break
		}

		recomputed, err := entry.RecomputeHash()
		if err != nil {
			brokenAt(result, i, "hash recomputation failed: "+err.Error())
			break
		}

		if recomputed != entry.EntryHash {
			brokenAt(result, i, "entry content does not match stored hash")
			break
		}

		result.VerifiedEntries++
		runningHash = entry.EntryHash
	}

	result.VerificationTime = time.Since(startTime)
	return result
}

// ChainStats provides statistical information about a chain of entries
type ChainStats struct {
	TotalEntries    int                `json:"totalEntries"`
	ByAction        map[Action]int     `json:"byAction"`
	ByUser          map[string]int     `json:"byUser"`
	ByTargetType    map[TargetType]int `json:"byTargetType"`
	FirstTimestamp  time.Time          `json:"firstTimestamp"`
	LatestTimestamp time.Time          `json:"latestTimestamp"`
	TimeSpan        time.Duration      `json:"timeSpan"`
}

// ComputeChainStats aggregates counts over a chain of entries
func ComputeChainStats(entries []*Entry) *ChainStats {
	stats := &ChainStats{
		TotalEntries: len(entries),
		ByAction:     make(map[Action]int),
		ByUser:       make(map[string]int),
		ByTargetType: make(map[TargetType]int),
	}

	if len(entries) == 0 {
		return stats
	}

	stats.FirstTimestamp = entries[0].Timestamp
	stats.LatestTimestamp = entries[0].Timestamp

	for _, entry := range entries {
		if entry.Timestamp.Before(stats.FirstTimestamp) {
			stats.FirstTimestamp = entry.Timestamp
		}
		if entry.Timestamp.After(stats.LatestTimestamp) {
			stats.LatestTimestamp = entry.Timestamp
		}

		stats.ByAction[entry.Action]++
		stats.ByUser[entry.UserID]++
		if entry.TargetType != "" {
			stats.ByTargetType[entry.TargetType]++
		}
	}

	stats.TimeSpan = stats.LatestTimestamp.Sub(stats.FirstTimestamp)
	return stats
}

// ArchiveAnchor records the final chain state of an archived log segment so
// the remaining chain stays independently verifiable. There is no silent
// truncation: archiving always leaves an anchor behind.
type ArchiveAnchor struct {
	ID              uuid.UUID `json:"id"`
	ArchivedThrough time.Time `json:"archivedThrough"`
	LastSequence    int64     `json:"lastSequence"`
	FinalHash       string    `json:"finalHash"`
	EntryCount      int       `json:"entryCount"`
	CreatedAt       time.Time `json:"createdAt"`
}

// NewArchiveAnchor builds the anchor for an archived prefix of the chain.
// The archived slice must be non-empty and end at the last archived entry.
func NewArchiveAnchor(archived []*Entry) *ArchiveAnchor {
	last := archived[len(archived)-1]
	return &ArchiveAnchor{
		ID:              uuid.New(),
		ArchivedThrough: last.Timestamp,
		LastSequence:    last.SequenceNum,
		FinalHash:       last.EntryHash,
		EntryCount:      len(archived),
		CreatedAt:       time.Now().UTC(),
	}
}
