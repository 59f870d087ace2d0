package txnlog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ledgerflow/twopc/pkg/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(rdb)
}

func TestCreateAndGetTxnRoundTrips(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rec := &model.TxnRecord{
		TxnID:     "t1",
		State:     model.TxnStateInit,
		Src:       "A",
		Dst:       "B",
		Amount:    500,
		CreatedAt: time.Now(),
	}
	if err := store.CreateTxn(ctx, rec); err != nil {
		t.Fatalf("CreateTxn: %v", err)
	}

	got, err := store.GetTxn(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTxn: %v", err)
	}
	if got.State != model.TxnStateInit || got.Amount != 500 || got.Src != "A" || got.Dst != "B" {
		t.Fatalf("unexpected round-tripped record: %+v", got)
	}
}

func TestGetTxnUnknownReturnsNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetTxn(context.Background(), "missing")
	if err != model.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScanByStateFiltersCorrectly(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	mustCreate := func(id string, state model.TxnState) {
		t.Helper()
		if err := store.CreateTxn(ctx, &model.TxnRecord{TxnID: id, State: state, Src: "A", Dst: "B", Amount: 1, CreatedAt: time.Now()}); err != nil {
			t.Fatalf("CreateTxn(%s): %v", id, err)
		}
	}
	mustCreate("t1", model.TxnStatePreparedAll)
	mustCreate("t2", model.TxnStateCommitted)
	mustCreate("t3", model.TxnStatePreparedAll)

	recs, err := store.ScanPreparedAll(ctx)
	if err != nil {
		t.Fatalf("ScanPreparedAll: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 PREPARED_ALL records, got %d", len(recs))
	}
}

func TestIdempotencySetAndGet(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	resp := model.TransferResponse{TransactionID: "t1", Status: "COMMITTED"}
	if err := store.IdempotencySet(ctx, "key-1", resp); err != nil {
		t.Fatalf("IdempotencySet: %v", err)
	}

	got, err := store.IdempotencyGet(ctx, "key-1")
	if err != nil {
		t.Fatalf("IdempotencyGet: %v", err)
	}
	if got == nil || got.TransactionID != "t1" {
		t.Fatalf("unexpected idempotency record: %+v", got)
	}
}

func TestIdempotencyGetMissReturnsNil(t *testing.T) {
	store := newTestStore(t)
	got, err := store.IdempotencyGet(context.Background(), "never-set")
	if err != nil {
		t.Fatalf("IdempotencyGet: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for unset key, got %+v", got)
	}
}

func TestIdempotencyGetEmptyKeyIsNoop(t *testing.T) {
	store := newTestStore(t)
	got, err := store.IdempotencyGet(context.Background(), "")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil) for empty key, got (%+v, %v)", got, err)
	}
}
