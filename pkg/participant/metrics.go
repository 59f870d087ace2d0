package participant

import "sync/atomic"

// Metrics is the Participant's counter set. Like the rest of this codebase's
// metrics collectors it is a plain struct of atomics owned by the Service,
// not a hidden package-level singleton.
type Metrics struct {
	preparesTotal  uint64
	commitsTotal   uint64
	rollbacksTotal uint64
}

func (m *Metrics) incPrepares()  { atomic.AddUint64(&m.preparesTotal, 1) }
func (m *Metrics) incCommits()   { atomic.AddUint64(&m.commitsTotal, 1) }
func (m *Metrics) incRollbacks() { atomic.AddUint64(&m.rollbacksTotal, 1) }

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() (prepares, commits, rollbacks uint64) {
	return atomic.LoadUint64(&m.preparesTotal),
		atomic.LoadUint64(&m.commitsTotal),
		atomic.LoadUint64(&m.rollbacksTotal)
}
