// Package participant implements the Participant side of the two-phase
// commit protocol: a single account's durable balance, holds and pending
// credits, serialised behind one exclusive lock per account.
package participant

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/ledgerflow/twopc/pkg/model"
)

// Service owns one account's durable state and serialises every operation
// on it behind a single mutex: reads and writes take the same exclusive
// lock so a prepare can never race a concurrent prepare against the same
// balance.
type Service struct {
	mu        sync.Mutex
	statePath string
	state     *accountState
	metrics   Metrics
}

// NewService loads (or seeds) the account state at cfg.DataPath and returns
// a ready Service.
func NewService(cfg *Config) (*Service, error) {
	st, err := loadOrCreateState(cfg.DataPath, cfg.AccountName, cfg.InitialBalance)
	if err != nil {
		return nil, err
	}
	return &Service{
		statePath: filepath.Join(cfg.DataPath, "state.json"),
		state:     st,
	}, nil
}

// Metrics returns the service's counter set.
func (s *Service) Metrics() *Metrics { return &s.metrics }

// Account returns the account name this service owns.
func (s *Service) Account() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Account
}

// ErrSimulatedCrash is returned by Prepare when the caller asked for
// crash_after_prepare and the durable flush has already landed. The HTTP
// handler is expected to terminate the process abnormally on receiving it,
// simulating a crash between the write and the reply.
var ErrSimulatedCrash = fmt.Errorf("simulated crash after prepare")

// Prepare reserves amount as a hold (debit) or pending credit (credit) for
// txnID. It is idempotent: re-entering for a txn id that already has a
// hold or pending entry (in either direction) returns success for that
// entry without re-validating funds or adding a second one. A debit that would take balance negative fails with
// ErrInsufficientFunds and leaves no state behind.
func (s *Service) Prepare(txnID string, amount int64, direction model.Direction, crashAfterPrepare bool) error {
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", model.ErrValidation)
	}
	if !direction.Valid() {
		return model.ErrInvalidDirection
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A txn id lives in at most one of holds or pendings, so an existing
	// entry of either kind makes this an idempotent replay.
	_, held := s.state.Holds[txnID]
	_, pending := s.state.Pendings[txnID]
	if held || pending {
		return nil
	}

	switch direction {
	case model.DirectionDebit:
		if s.state.Balance < amount {
			return model.ErrInsufficientFunds
		}
		s.state.Holds[txnID] = amount
	case model.DirectionCredit:
		s.state.Pendings[txnID] = amount
	}

	if err := writeStateFile(s.statePath, s.state); err != nil {
		// Roll back the in-memory mutation: the flush is what makes the
		// hold/pending durable, so a failed flush must not leave it visible.
		delete(s.state.Holds, txnID)
		delete(s.state.Pendings, txnID)
		return fmt.Errorf("flush state: %w", err)
	}
	s.metrics.incPrepares()

	if crashAfterPrepare {
		return ErrSimulatedCrash
	}
	return nil
}

// Commit finalises txnID: if it is a hold, its amount is subtracted from
// balance; if it is a pending credit, its amount is added. If txnID is
// neither (already committed, or never prepared on this Participant),
// Commit still returns success — unknown-after-commit is indistinguishable
// from replay in a 2PC participant.
func (s *Service) Commit(txnID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if amount, ok := s.state.Holds[txnID]; ok {
		delete(s.state.Holds, txnID)
		s.state.Balance -= amount
		if err := writeStateFile(s.statePath, s.state); err != nil {
			// Restore so a retry sees the hold again rather than silently
			// dropping the debit.
			s.state.Holds[txnID] = amount
			s.state.Balance += amount
			return fmt.Errorf("flush state: %w", err)
		}
		s.metrics.incCommits()
		return nil
	}

	if amount, ok := s.state.Pendings[txnID]; ok {
		delete(s.state.Pendings, txnID)
		s.state.Balance += amount
		if err := writeStateFile(s.statePath, s.state); err != nil {
			s.state.Pendings[txnID] = amount
			s.state.Balance -= amount
			return fmt.Errorf("flush state: %w", err)
		}
		s.metrics.incCommits()
		return nil
	}

	s.metrics.incCommits()
	return nil
}

// Rollback removes txnID from holds and pendings, flushing only if state
// actually changed. It returns success whether or not txnID was known; the
// only error it reports is a failed flush.
func (s *Service) Rollback(txnID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, hadHold := s.state.Holds[txnID]
	_, hadPending := s.state.Pendings[txnID]
	if !hadHold && !hadPending {
		return nil
	}

	delete(s.state.Holds, txnID)
	delete(s.state.Pendings, txnID)
	if err := writeStateFile(s.statePath, s.state); err != nil {
		return fmt.Errorf("flush state: %w", err)
	}
	s.metrics.incRollbacks()
	return nil
}

// Balance returns the account name, committed balance, and copies of the
// current holds and pendings maps.
func (s *Service) Balance() model.BalanceResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	holds := make(map[string]int64, len(s.state.Holds))
	for k, v := range s.state.Holds {
		holds[k] = v
	}
	pendings := make(map[string]int64, len(s.state.Pendings))
	for k, v := range s.state.Pendings {
		pendings[k] = v
	}

	return model.BalanceResponse{
		Account:  s.state.Account,
		Balance:  s.state.Balance,
		Holds:    holds,
		Pendings: pendings,
	}
}
