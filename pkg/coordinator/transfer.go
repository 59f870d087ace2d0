package coordinator

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerflow/twopc/pkg/archive"
	"github.com/ledgerflow/twopc/pkg/coordclient"
	"github.com/ledgerflow/twopc/pkg/model"
	"github.com/ledgerflow/twopc/pkg/txnlog"
)

// streamer is the minimal surface the Coordinator needs from the websocket
// hub; kept as an interface so transfer.go doesn't need to know about
// gorilla/websocket connection bookkeeping.
type streamer interface {
	Broadcast(rec *model.TxnRecord)
}

// Coordinator orchestrates transfers between exactly two Participants using
// two-phase commit. It never touches account balances directly — every
// balance mutation happens inside a Participant's durable state machine.
type Coordinator struct {
	store        *txnlog.Store
	locks        *txnlog.LockManager
	participants map[string]*coordclient.Client
	archiver     *archive.Writer
	metrics      *Metrics
	stream       streamer
	cfg          *Config
}

// New builds a Coordinator. participants must have an entry for every
// account name the deployment will be asked to move money between.
func New(cfg *Config, store *txnlog.Store, locks *txnlog.LockManager, participants map[string]*coordclient.Client, archiver *archive.Writer, stream streamer) *Coordinator {
	return &Coordinator{
		store:        store,
		locks:        locks,
		participants: participants,
		archiver:     archiver,
		metrics:      &Metrics{},
		stream:       stream,
		cfg:          cfg,
	}
}

// Transfer runs one transfer's full lifecycle: dedup, lock, prepare both
// sides in a fixed debit-then-credit order, commit both sides, finalize.
// Any failure after the pair lock is held aborts the transaction and
// best-effort rolls back both sides.
func (co *Coordinator) Transfer(ctx context.Context, req model.TransferRequest) (*model.TransferResponse, error) {
	co.metrics.incRequests()
	start := time.Now()
	defer func() { co.metrics.observeLatency(float64(time.Since(start).Microseconds()) / 1000.0) }()

	if err := validateTransferRequest(req); err != nil {
		return nil, err
	}

	if req.IdempotencyKey != "" {
		if cached, err := co.store.IdempotencyGet(ctx, req.IdempotencyKey); err != nil {
			return nil, err
		} else if cached != nil {
			co.metrics.incIdempotentHits()
			return cached, nil
		}
	}

	src, ok1 := co.participants[req.FromAccount]
	dst, ok2 := co.participants[req.ToAccount]
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: unknown account in transfer", model.ErrValidation)
	}

	txnID := uuid.NewString()
	now := time.Now()
	rec := &model.TxnRecord{
		TxnID:     txnID,
		State:     model.TxnStateInit,
		Src:       req.FromAccount,
		Dst:       req.ToAccount,
		Amount:    req.Amount,
		CreatedAt: now,
	}
	if err := co.store.CreateTxn(ctx, rec); err != nil {
		return nil, err
	}
	co.stream.Broadcast(rec)

	lock, err := co.locks.Acquire(ctx, req.FromAccount, req.ToAccount)
	if err != nil {
		rec.State = model.TxnStateAborted
		rec.Error = err.Error()
		aborted := time.Now()
		rec.AbortedAt = &aborted
		_ = co.store.UpdateTxn(ctx, rec)
		co.stream.Broadcast(rec)
		return nil, err
	}
	defer func() { _ = lock.Unlock(context.Background()) }()

	crashSrc := simulatedCrash(req, req.FromAccount)
	crashDst := simulatedCrash(req, req.ToAccount)

	if err := src.Prepare(ctx, txnID, req.Amount, model.DirectionDebit, crashSrc); err != nil {
		return nil, co.abort(ctx, rec, []*coordclient.Client{src, dst}, err)
	}
	if err := dst.Prepare(ctx, txnID, req.Amount, model.DirectionCredit, crashDst); err != nil {
		return nil, co.abort(ctx, rec, []*coordclient.Client{src, dst}, err)
	}

	rec.State = model.TxnStatePreparedAll
	prepared := time.Now()
	rec.PreparedAt = &prepared
	if err := co.store.UpdateTxn(ctx, rec); err != nil {
		return nil, co.abort(ctx, rec, []*coordclient.Client{src, dst}, err)
	}
	co.stream.Broadcast(rec)

	if req.Simulate != nil && req.Simulate.CrashCoordinatorAfterPrepare {
		log.Printf("transfer %s: simulated coordinator crash after PREPARED_ALL", txnID)
		os.Exit(1)
	}

	// A commit-phase failure is treated the same as a prepare-phase failure:
	// best-effort rollback to both sides and mark the txn ABORTED. A
	// transfer never sits in limbo after a commit error.
	if err := src.Commit(ctx, txnID); err != nil {
		return nil, co.abort(ctx, rec, []*coordclient.Client{src, dst}, err)
	}
	if err := dst.Commit(ctx, txnID); err != nil {
		return nil, co.abort(ctx, rec, []*coordclient.Client{src, dst}, err)
	}

	rec.State = model.TxnStateCommitted
	committed := time.Now()
	rec.CommittedAt = &committed
	if err := co.store.UpdateTxn(ctx, rec); err != nil {
		log.Printf("transfer %s: committed but log update failed: %v", txnID, err)
	}
	co.stream.Broadcast(rec)
	co.metrics.incCommits()

	if co.archiver != nil {
		if err := co.archiver.Append(rec); err != nil {
			log.Printf("transfer %s: archive append failed: %v", txnID, err)
		}
	}

	resp := &model.TransferResponse{TransactionID: txnID, Status: string(model.TxnStateCommitted)}
	if req.IdempotencyKey != "" {
		if err := co.store.IdempotencySet(ctx, req.IdempotencyKey, *resp); err != nil {
			log.Printf("transfer %s: idempotency snapshot failed: %v", txnID, err)
		}
	}
	return resp, nil
}

// abort calls Rollback on every participant in toRollback regardless of
// whether its prepare was acknowledged (Rollback is a no-op on a
// Participant that never saw a matching Prepare), marks the txn
// ABORTED, and returns the triggering error wrapped in model.ErrTransactionAborted
// so callers (and the HTTP layer) can distinguish an aborted transfer from
// any other failure.
func (co *Coordinator) abort(ctx context.Context, rec *model.TxnRecord, toRollback []*coordclient.Client, cause error) error {
	for _, p := range toRollback {
		if err := p.Rollback(ctx, rec.TxnID); err != nil {
			log.Printf("transfer %s: rollback during abort failed: %v", rec.TxnID, err)
		}
	}

	rec.State = model.TxnStateAborted
	rec.Error = cause.Error()
	aborted := time.Now()
	rec.AbortedAt = &aborted
	if err := co.store.UpdateTxn(ctx, rec); err != nil {
		log.Printf("transfer %s: abort log update failed: %v", rec.TxnID, err)
	}
	co.stream.Broadcast(rec)
	co.metrics.incRollbacks()

	return fmt.Errorf("%w: %w", model.ErrTransactionAborted, cause)
}

func simulatedCrash(req model.TransferRequest, account string) bool {
	if req.Simulate == nil || req.Simulate.CrashParticipant == nil {
		return false
	}
	cp := req.Simulate.CrashParticipant
	return cp.Name == account && cp.Stage == "after_prepare"
}

func validateTransferRequest(req model.TransferRequest) error {
	if req.FromAccount == "" || req.ToAccount == "" {
		return fmt.Errorf("%w: from_account and to_account are required", model.ErrValidation)
	}
	if req.FromAccount == req.ToAccount {
		return fmt.Errorf("%w: from_account and to_account must differ", model.ErrValidation)
	}
	if req.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", model.ErrValidation)
	}
	return nil
}

// GetTransaction returns the log entry for txnID.
func (co *Coordinator) GetTransaction(ctx context.Context, txnID string) (*model.TxnRecord, error) {
	return co.store.GetTxn(ctx, txnID)
}

// ListTransactions returns every log entry in the given state.
func (co *Coordinator) ListTransactions(ctx context.Context, state model.TxnState) ([]*model.TxnRecord, error) {
	return co.store.ScanByState(ctx, state)
}
