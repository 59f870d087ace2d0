package coordinator

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ledgerflow/twopc/pkg/coordclient"
	"github.com/ledgerflow/twopc/pkg/model"
	"github.com/ledgerflow/twopc/pkg/participant"
	"github.com/ledgerflow/twopc/pkg/txnlog"
)

// noopStream satisfies the streamer interface without a real websocket hub.
type noopStream struct{}

func (noopStream) Broadcast(*model.TxnRecord) {}

// testParticipant runs a real participant.Service behind an httptest
// server, so the Coordinator's HTTP client exercises the genuine wire
// protocol rather than a hand-rolled mock.
type testParticipant struct {
	srv *httptest.Server
	svc *participant.Service
}

func newTestParticipant(t *testing.T, account string, initial int64) *testParticipant {
	t.Helper()
	svc, err := participant.NewService(&participant.Config{
		AccountName:    account,
		InitialBalance: initial,
		DataPath:       t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewService(%s): %v", account, err)
	}
	httpSrv := participant.NewServer(&participant.Config{Host: "127.0.0.1", Port: 0}, svc)
	ts := httptest.NewServer(httpSrv.Router())
	t.Cleanup(ts.Close)
	return &testParticipant{srv: ts, svc: svc}
}

func newTestCoordinator(t *testing.T) (*Coordinator, *testParticipant, *testParticipant) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := txnlog.New(rdb)
	locks := txnlog.NewLockManager(rdb, time.Second, 5*time.Second)

	a := newTestParticipant(t, "A", 1000)
	b := newTestParticipant(t, "B", 1000)

	participants := map[string]*coordclient.Client{
		"A": coordclient.New(a.srv.URL, 2*time.Second),
		"B": coordclient.New(b.srv.URL, 2*time.Second),
	}

	cfg := DefaultConfig()
	co := New(cfg, store, locks, participants, nil, noopStream{})
	return co, a, b
}

func TestTransferHappyPathMovesBalances(t *testing.T) {
	co, a, b := newTestCoordinator(t)

	resp, err := co.Transfer(context.Background(), model.TransferRequest{
		FromAccount: "A", ToAccount: "B", Amount: 200,
	})
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	if resp.Status != string(model.TxnStateCommitted) {
		t.Fatalf("expected COMMITTED, got %s", resp.Status)
	}

	if bal := a.svc.Balance(); bal.Balance != 800 {
		t.Fatalf("expected A balance 800, got %d", bal.Balance)
	}
	if bal := b.svc.Balance(); bal.Balance != 1200 {
		t.Fatalf("expected B balance 1200, got %d", bal.Balance)
	}

	rec, err := co.GetTransaction(context.Background(), resp.TransactionID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if rec.State != model.TxnStateCommitted {
		t.Fatalf("expected logged state COMMITTED, got %s", rec.State)
	}
}

func TestTransferInsufficientFundsAborts(t *testing.T) {
	co, a, b := newTestCoordinator(t)

	_, err := co.Transfer(context.Background(), model.TransferRequest{
		FromAccount: "A", ToAccount: "B", Amount: 5000,
	})
	if err == nil {
		t.Fatal("expected an error for an over-limit transfer")
	}

	if bal := a.svc.Balance(); bal.Balance != 1000 {
		t.Fatalf("A balance must be untouched after abort, got %d", bal.Balance)
	}
	if bal := b.svc.Balance(); bal.Balance != 1000 {
		t.Fatalf("B balance must be untouched after abort, got %d", bal.Balance)
	}
}

func TestTransferIdempotentReplayReturnsCachedResponse(t *testing.T) {
	co, a, _ := newTestCoordinator(t)

	req := model.TransferRequest{FromAccount: "A", ToAccount: "B", Amount: 100, IdempotencyKey: "key-1"}
	first, err := co.Transfer(context.Background(), req)
	if err != nil {
		t.Fatalf("first Transfer: %v", err)
	}

	second, err := co.Transfer(context.Background(), req)
	if err != nil {
		t.Fatalf("replayed Transfer: %v", err)
	}
	if second.TransactionID != first.TransactionID {
		t.Fatalf("replay should return the same transaction id, got %s vs %s", second.TransactionID, first.TransactionID)
	}

	if bal := a.svc.Balance(); bal.Balance != 900 {
		t.Fatalf("replay must not debit a second time, got %d", bal.Balance)
	}
}

func TestTransferRejectsSameAccountPair(t *testing.T) {
	co, _, _ := newTestCoordinator(t)

	_, err := co.Transfer(context.Background(), model.TransferRequest{
		FromAccount: "A", ToAccount: "A", Amount: 10,
	})
	if err == nil {
		t.Fatal("expected validation error for from_account == to_account")
	}
}

func TestTransferUnknownAccountIsValidationError(t *testing.T) {
	co, _, _ := newTestCoordinator(t)

	_, err := co.Transfer(context.Background(), model.TransferRequest{
		FromAccount: "A", ToAccount: "Z", Amount: 10,
	})
	if err == nil {
		t.Fatal("expected validation error for unknown account")
	}
}
