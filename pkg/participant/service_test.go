package participant

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ledgerflow/twopc/pkg/model"
)

func newTestService(t *testing.T, initial int64) *Service {
	t.Helper()
	cfg := &Config{AccountName: "A", InitialBalance: initial, DataPath: t.TempDir()}
	svc, err := NewService(cfg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestPrepareDebitReservesHold(t *testing.T) {
	svc := newTestService(t, 1000)

	if err := svc.Prepare("t1", 100, model.DirectionDebit, false); err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	bal := svc.Balance()
	if bal.Balance != 1000 {
		t.Fatalf("balance should be unchanged until commit, got %d", bal.Balance)
	}
	if bal.Holds["t1"] != 100 {
		t.Fatalf("expected hold of 100 for t1, got %v", bal.Holds)
	}
}

func TestPrepareDebitInsufficientFunds(t *testing.T) {
	svc := newTestService(t, 50)

	err := svc.Prepare("t1", 100, model.DirectionDebit, false)
	if !errors.Is(err, model.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	bal := svc.Balance()
	if len(bal.Holds) != 0 {
		t.Fatalf("no hold should be recorded on rejected prepare, got %v", bal.Holds)
	}
}

func TestPrepareIsIdempotent(t *testing.T) {
	svc := newTestService(t, 1000)

	if err := svc.Prepare("t1", 100, model.DirectionDebit, false); err != nil {
		t.Fatalf("first prepare: %v", err)
	}
	if err := svc.Prepare("t1", 100, model.DirectionDebit, false); err != nil {
		t.Fatalf("replayed prepare should succeed, got %v", err)
	}

	bal := svc.Balance()
	if bal.Holds["t1"] != 100 {
		t.Fatalf("hold amount should be unaffected by replay, got %v", bal.Holds)
	}
}

func TestCommitHoldSubtractsBalance(t *testing.T) {
	svc := newTestService(t, 1000)
	if err := svc.Prepare("t1", 100, model.DirectionDebit, false); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := svc.Commit("t1"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	bal := svc.Balance()
	if bal.Balance != 900 {
		t.Fatalf("expected balance 900 after commit, got %d", bal.Balance)
	}
	if _, ok := bal.Holds["t1"]; ok {
		t.Fatalf("hold should be removed after commit")
	}
}

func TestCommitPendingAddsBalance(t *testing.T) {
	svc := newTestService(t, 1000)
	if err := svc.Prepare("t1", 100, model.DirectionCredit, false); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := svc.Commit("t1"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	bal := svc.Balance()
	if bal.Balance != 1100 {
		t.Fatalf("expected balance 1100 after commit, got %d", bal.Balance)
	}
}

func TestCommitUnknownTxnIsIdempotentSuccess(t *testing.T) {
	svc := newTestService(t, 1000)
	if err := svc.Commit("never-prepared"); err != nil {
		t.Fatalf("commit of unknown txn should succeed, got %v", err)
	}
}

func TestRollbackRemovesHoldWithoutTouchingBalance(t *testing.T) {
	svc := newTestService(t, 1000)
	if err := svc.Prepare("t1", 100, model.DirectionDebit, false); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := svc.Rollback("t1"); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	bal := svc.Balance()
	if bal.Balance != 1000 {
		t.Fatalf("rollback must not touch balance, got %d", bal.Balance)
	}
	if _, ok := bal.Holds["t1"]; ok {
		t.Fatalf("hold should be gone after rollback")
	}
}

func TestRollbackOfUnknownTxnIsNoopSuccess(t *testing.T) {
	svc := newTestService(t, 1000)
	if err := svc.Rollback("never-prepared"); err != nil {
		t.Fatalf("rollback of unknown txn should succeed, got %v", err)
	}
}

func TestFullCycleIdempotentReplaySequence(t *testing.T) {
	// prepare -> prepare -> commit -> commit -> rollback yields the same
	// final balance as prepare -> commit.
	svc := newTestService(t, 1000)

	if err := svc.Prepare("t1", 100, model.DirectionDebit, false); err != nil {
		t.Fatal(err)
	}
	if err := svc.Prepare("t1", 100, model.DirectionDebit, false); err != nil {
		t.Fatal(err)
	}
	if err := svc.Commit("t1"); err != nil {
		t.Fatal(err)
	}
	if err := svc.Commit("t1"); err != nil {
		t.Fatal(err)
	}
	if err := svc.Rollback("t1"); err != nil {
		t.Fatal(err)
	}

	bal := svc.Balance()
	if bal.Balance != 900 {
		t.Fatalf("expected 900 after replayed cycle, got %d", bal.Balance)
	}
}

func TestPrepareWithCrashAfterPrepareStillFlushesHoldFirst(t *testing.T) {
	svc := newTestService(t, 1000)

	err := svc.Prepare("t1", 100, model.DirectionDebit, true)
	if !errors.Is(err, ErrSimulatedCrash) {
		t.Fatalf("expected ErrSimulatedCrash, got %v", err)
	}

	// The hold must already be durable: a real crash happens after the
	// flush, so the only correct behavior is for the hold to survive it.
	bal := svc.Balance()
	if bal.Holds["t1"] != 100 {
		t.Fatalf("hold must be flushed before the simulated crash is signalled, got %v", bal.Holds)
	}
}

func TestStateSurvivesReload(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "acct")
	cfg := &Config{AccountName: "A", InitialBalance: 1000, DataPath: dir}

	svc1, err := NewService(cfg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if err := svc1.Prepare("t1", 100, model.DirectionDebit, false); err != nil {
		t.Fatal(err)
	}

	svc2, err := NewService(cfg)
	if err != nil {
		t.Fatalf("reopen NewService: %v", err)
	}
	bal := svc2.Balance()
	if bal.Holds["t1"] != 100 {
		t.Fatalf("hold should survive a reload from disk, got %v", bal.Holds)
	}

	// Re-seeding must not happen on a subsequent open: InitialBalance is
	// only consulted when state.json does not yet exist.
	cfg2 := &Config{AccountName: "A", InitialBalance: 999999, DataPath: dir}
	svc3, err := NewService(cfg2)
	if err != nil {
		t.Fatalf("reopen with different initial balance: %v", err)
	}
	if svc3.Balance().Balance != 1000 {
		t.Fatalf("existing state file must not be re-seeded, got %d", svc3.Balance().Balance)
	}
}
