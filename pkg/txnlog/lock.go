package txnlog

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"

	"github.com/ledgerflow/twopc/pkg/model"
)

// LockManager acquires the ordered-pair mutex that serialises transfers
// sharing the same (src, dst) pair. A:B and B:A are distinct locks — this
// is sufficient because the system only ever has two accounts; a general
// N-account implementation should canonicalise the pair key to avoid the
// classic A->B / B->A deadlock.
type LockManager struct {
	rs           *redsync.Redsync
	acquireWait  time.Duration
	holdTimeout  time.Duration
}

// NewLockManager builds a LockManager backed by the given redis client.
func NewLockManager(rdb *goredislib.Client, acquireWait, holdTimeout time.Duration) *LockManager {
	pool := goredis.NewPool(rdb)
	return &LockManager{
		rs:          redsync.New(pool),
		acquireWait: acquireWait,
		holdTimeout: holdTimeout,
	}
}

// PairLock is a held lock on an ordered account pair; release it with
// Unlock once the transfer's 2PC sequence has finished (commit or abort).
type PairLock struct {
	mutex *redsync.Mutex
}

// Acquire blocks for up to the configured acquireWait for the lock on
// "lock:pair:<src>:<dst>", returning model.ErrPairBusy on timeout. The lock
// expires on its own after holdTimeout even if never released, so a
// crashed Coordinator cannot strand it forever.
func (lm *LockManager) Acquire(ctx context.Context, src, dst string) (*PairLock, error) {
	name := fmt.Sprintf("lock:pair:%s:%s", src, dst)
	mutex := lm.rs.NewMutex(
		name,
		redsync.WithExpiry(lm.holdTimeout),
		redsync.WithTries(1),
	)

	acquireCtx, cancel := context.WithTimeout(ctx, lm.acquireWait)
	defer cancel()

	deadline := time.Now().Add(lm.acquireWait)
	for {
		if err := mutex.LockContext(acquireCtx); err == nil {
			return &PairLock{mutex: mutex}, nil
		}
		if time.Now().After(deadline) {
			return nil, model.ErrPairBusy
		}
		select {
		case <-acquireCtx.Done():
			return nil, model.ErrPairBusy
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Unlock releases the pair lock. Errors are non-fatal: the lock's own
// expiry will reclaim it eventually.
func (pl *PairLock) Unlock(ctx context.Context) error {
	if pl == nil || pl.mutex == nil {
		return nil
	}
	_, err := pl.mutex.UnlockContext(ctx)
	return err
}
