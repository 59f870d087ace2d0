package coordinator

import (
	"math"
	"sync"
	"sync/atomic"
)

// ewmaAlpha is the smoothing factor for transfer_latency_ms_avg.
const ewmaAlpha = 0.2

// Metrics is the Coordinator's counter set: request/commit/rollback/hit
// counters plus an EWMA of transfer latency. Like pkg/participant.Metrics,
// this is an explicit service-owned object rather than a package-level
// singleton.
type Metrics struct {
	requestsTotal      uint64
	commitsTotal       uint64
	rollbacksTotal     uint64
	idempotentHits     uint64

	mu         sync.Mutex
	latencyAvg float64 // guarded by mu
}

func (m *Metrics) incRequests()  { atomic.AddUint64(&m.requestsTotal, 1) }
func (m *Metrics) incCommits()   { atomic.AddUint64(&m.commitsTotal, 1) }
func (m *Metrics) incRollbacks() { atomic.AddUint64(&m.rollbacksTotal, 1) }
func (m *Metrics) incIdempotentHits() { atomic.AddUint64(&m.idempotentHits, 1) }

// observeLatency folds a new sample into the EWMA. The running average
// starts at 0.0 rather than being special-cased to the first observation,
// so the very first call's average is 0.2*dt_ms, not dt_ms.
func (m *Metrics) observeLatency(ms float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencyAvg = (1-ewmaAlpha)*m.latencyAvg + ewmaAlpha*ms
}

func (m *Metrics) latency() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return math.Round(m.latencyAvg*100) / 100
}

// Snapshot returns the current counters and latency average.
func (m *Metrics) Snapshot() (requests, commits, rollbacks, idempotentHits uint64, latencyMsAvg float64) {
	return atomic.LoadUint64(&m.requestsTotal),
		atomic.LoadUint64(&m.commitsTotal),
		atomic.LoadUint64(&m.rollbacksTotal),
		atomic.LoadUint64(&m.idempotentHits),
		m.latency()
}
