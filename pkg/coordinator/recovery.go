package coordinator

import (
	"context"
	"log"
	"time"

	"github.com/ledgerflow/twopc/pkg/model"
)

// RecoveryWorker periodically sweeps transactions stuck in PREPARED_ALL —
// both participants voted yes but the Coordinator never heard back from,
// or never issued, the commit phase (e.g. it crashed right after the
// simulated crash_coordinator_after_prepare exit point) — and rolls them
// back once they have sat there longer than RecoveryRollbackAge.
//
// This is a conservative choice, not a recovery of the "correct" outcome:
// both participants already voted yes, so committing would also be valid.
// Rolling back is simpler to reason about: the fallback outcome is always
// "nothing happened" rather than requiring the worker to somehow confirm
// both participants actually committed.
type RecoveryWorker struct {
	co       *Coordinator
	interval time.Duration
	age      time.Duration
}

// NewRecoveryWorker builds a RecoveryWorker for the given Coordinator.
func NewRecoveryWorker(co *Coordinator, interval, age time.Duration) *RecoveryWorker {
	return &RecoveryWorker{co: co, interval: interval, age: age}
}

// Run blocks, sweeping every interval until ctx is cancelled.
func (rw *RecoveryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rw.sweep(ctx)
		}
	}
}

func (rw *RecoveryWorker) sweep(ctx context.Context) {
	stuck, err := rw.co.store.ScanPreparedAll(ctx)
	if err != nil {
		log.Printf("recovery: scan PREPARED_ALL failed: %v", err)
		return
	}

	cutoff := time.Now().Add(-rw.age)
	for _, rec := range stuck {
		preparedAt := rec.CreatedAt
		if rec.PreparedAt != nil {
			preparedAt = *rec.PreparedAt
		}
		if preparedAt.After(cutoff) {
			continue
		}
		rw.reap(ctx, rec)
	}
}

func (rw *RecoveryWorker) reap(ctx context.Context, rec *model.TxnRecord) {
	src, ok1 := rw.co.participants[rec.Src]
	dst, ok2 := rw.co.participants[rec.Dst]
	if !ok1 || !ok2 {
		log.Printf("recovery: txn %s references unknown participant, leaving stuck", rec.TxnID)
		return
	}

	if err := src.Rollback(ctx, rec.TxnID); err != nil {
		log.Printf("recovery: txn %s rollback to %s failed, will retry next sweep: %v", rec.TxnID, rec.Src, err)
		return
	}
	if err := dst.Rollback(ctx, rec.TxnID); err != nil {
		log.Printf("recovery: txn %s rollback to %s failed, will retry next sweep: %v", rec.TxnID, rec.Dst, err)
		return
	}

	rec.State = model.TxnStateAbortedRecovered
	rec.Error = "reaped by recovery worker: stuck in PREPARED_ALL"
	recovered := time.Now()
	rec.RecoveredAt = &recovered
	if err := rw.co.store.UpdateTxn(ctx, rec); err != nil {
		log.Printf("recovery: txn %s log update failed: %v", rec.TxnID, err)
		return
	}
	rw.co.stream.Broadcast(rec)
	log.Printf("recovery: txn %s rolled back and marked ABORTED_RECOVERED", rec.TxnID)
}
