package sync

import "github.com/anselumana/binance-etl/internal/model"

// ConsistencyMonitor detects gaps or disorder in the live depth-diff
// stream (spec.md §4.4). It tracks the most recently accepted update and
// reports whether the next one chains from it.
type ConsistencyMonitor struct {
	last *model.DepthUpdate
}

// NewConsistencyMonitor returns an empty monitor; the first update it sees
// has nothing to compare against and is reported consistent.
func NewConsistencyMonitor() *ConsistencyMonitor {
	return &ConsistencyMonitor{}
}

// Check compares update against the last accepted update and reports
// whether the sequence is intact: update.FirstUpdateID must equal
// last.LastUpdateID+1. It unconditionally advances last to update
// regardless of the verdict, per spec.md §4.4 ("Regardless of the
// consistency result, last_update is updated to the current update").
func (m *ConsistencyMonitor) Check(update model.DepthUpdate) bool {
	consistent := true
	if m.last != nil {
		consistent = update.FirstUpdateID == m.last.LastUpdateID+1
	}
	u := update
	m.last = &u
	return consistent
}

// Reset clears the last-accepted-update state, used when the synchronizer
// restarts on a transport reconnect. A stale-snapshot discard inside the
// Synchronizer does not reset the monitor.
func (m *ConsistencyMonitor) Reset() {
	m.last = nil
}
