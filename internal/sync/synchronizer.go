// Package sync implements the depth-book synchronizer and consistency
// monitor: the core reconciliation between a live incremental update stream
// and a REST-fetched snapshot (spec.md §4.3, §4.4).
package sync

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/anselumana/binance-etl/internal/model"
)

// SnapshotFetcher fetches one REST depth snapshot. Implemented by
// internal/snapshotclient.Client; kept as an interface here so the
// synchronizer can be tested without a network round trip.
type SnapshotFetcher interface {
	FetchDepth(ctx context.Context, symbol string) (model.BookSnapshot, error)
}

// defaultBufferCap bounds buffered_updates per spec.md §4.3 edge case (iii):
// "implementations should cap the buffer (recommend: a few thousand
// updates) and, on overflow, discard the oldest while keeping is_synced
// = false."
const defaultBufferCap = 5000

// SyncResult is returned by TryToSync when the synchronizer transitions to
// synced on this call. It hands the caller (the depth pipeline) everything
// needed to persist the catch-up sequence (spec.md §9, "explicit ownership
// handoff"): the snapshot, and the ordered tail of updates starting at the
// chosen first-update-to-apply, inclusive of the update passed to this call.
type SyncResult struct {
	Snapshot        model.BookSnapshot
	BufferedUpdates []model.DepthUpdate
}

// Synchronizer converts the live diff stream plus one REST snapshot into a
// replayable prefix, per the algorithm in spec.md §4.3.
type Synchronizer struct {
	symbol  string
	fetcher SnapshotFetcher
	log     zerolog.Logger
	bufCap  int

	synced   bool
	buffered []model.DepthUpdate
	snapshot *model.BookSnapshot
}

// NewSynchronizer constructs a Synchronizer for one symbol. bufCap <= 0
// selects defaultBufferCap.
func NewSynchronizer(symbol string, fetcher SnapshotFetcher, log zerolog.Logger, bufCap int) *Synchronizer {
	if bufCap <= 0 {
		bufCap = defaultBufferCap
	}
	return &Synchronizer{
		symbol:  symbol,
		fetcher: fetcher,
		log:     log,
		bufCap:  bufCap,
	}
}

// IsSynced reports the monotone false→true synchronization state.
func (s *Synchronizer) IsSynced() bool {
	return s.synced
}

// TryToSync runs one iteration of the spec.md §4.3 algorithm. It must only
// be called while IsSynced() is false. On success it returns (result,
// true, nil) exactly once; after that call IsSynced() is true and
// TryToSync must not be called again.
func (s *Synchronizer) TryToSync(ctx context.Context, update model.DepthUpdate) (SyncResult, bool, error) {
	if s.synced {
		return SyncResult{}, false, nil
	}

	// 1. Append the update to buffered_updates, discarding the oldest on
	// overflow while remaining unsynced.
	s.buffered = append(s.buffered, update)
	if len(s.buffered) > s.bufCap {
		overflow := len(s.buffered) - s.bufCap
		s.log.Warn().
			Str("symbol", s.symbol).
			Int("overflow", overflow).
			Msg("buffered depth updates exceeded cap, discarding oldest")
		s.buffered = s.buffered[overflow:]
	}

	// 2. Fetch a snapshot if we don't have one yet.
	if s.snapshot == nil {
		snap, err := s.fetcher.FetchDepth(ctx, s.symbol)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", s.symbol).Msg("depth snapshot fetch failed, will retry on next update")
			return SyncResult{}, false, nil
		}
		s.snapshot = &snap
	}

	// 3. valid = updates whose last_update_id exceeds the snapshot's.
	L := s.snapshot.LastUpdateID
	var valid []model.DepthUpdate
	for _, u := range s.buffered {
		if u.LastUpdateID > L {
			valid = append(valid, u)
		}
	}
	if len(valid) == 0 {
		s.log.Warn().Str("symbol", s.symbol).Int64("snapshotLastUpdateId", L).
			Msg("all buffered updates predate snapshot, waiting for fresher frames")
		return SyncResult{}, false, nil
	}

	// 4. Find the first valid update that straddles L+1.
	idx := -1
	for i, u := range valid {
		if s.snapshot.FirstUpdateToApply(u) {
			idx = i
			break
		}
	}
	if idx == -1 {
		// Edge case (ii): the stream has advanced far beyond this
		// snapshot. Discard it and re-fetch on the next arrival.
		s.log.Warn().Str("symbol", s.symbol).Int64("snapshotLastUpdateId", L).
			Msg("no buffered update straddles snapshot, discarding stale snapshot")
		s.snapshot = nil
		return SyncResult{}, false, nil
	}

	// 5. Truncate buffered_updates to [u*, ...] and mark synced.
	tail := append([]model.DepthUpdate(nil), valid[idx:]...)
	result := SyncResult{
		Snapshot:        *s.snapshot,
		BufferedUpdates: tail,
	}
	s.buffered = nil
	s.synced = true
	s.log.Info().Str("symbol", s.symbol).
		Int64("firstUpdateId", tail[0].FirstUpdateID).
		Int64("lastUpdateId", tail[0].LastUpdateID).
		Int("catchUpCount", len(tail)).
		Msg("depth synchronizer synced")
	return result, true, nil
}

// Reset clears synchronization state, re-entering the unsynced phase.
// Called on transport reconnection (spec.md §4.1, Open Question iii).
func (s *Synchronizer) Reset() {
	s.synced = false
	s.buffered = nil
	s.snapshot = nil
}
