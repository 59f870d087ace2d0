// Package model holds the types shared between the Coordinator and
// Participant services: the transaction log schema, the prepare direction
// enum, and the fault-injection knobs. None of it is specific to either
// service's storage backend.
package model

import "time"

// Direction is the side of a transfer a Participant is asked to prepare.
type Direction string

const (
	DirectionDebit  Direction = "debit"
	DirectionCredit Direction = "credit"
)

// Valid reports whether d is one of the two allowed directions.
func (d Direction) Valid() bool {
	return d == DirectionDebit || d == DirectionCredit
}

// TxnState is the lifecycle state of a transaction log entry.
type TxnState string

const (
	TxnStateInit             TxnState = "INIT"
	TxnStatePreparedAll      TxnState = "PREPARED_ALL"
	TxnStateCommitted        TxnState = "COMMITTED"
	TxnStateAborted          TxnState = "ABORTED"
	TxnStateAbortedRecovered TxnState = "ABORTED_RECOVERED"
)

// TxnRecord is the shared transaction log entry, one per transfer id.
// Field names match the `txn:<txn_id>` hash keys in the store so that
// (un)marshalling to/from the store is a straight field-by-field mapping.
type TxnRecord struct {
	TxnID        string     `json:"txn_id" redis:"txn_id"`
	State        TxnState   `json:"state" redis:"state"`
	Src          string     `json:"src" redis:"src"`
	Dst          string     `json:"dst" redis:"dst"`
	Amount       int64      `json:"amount" redis:"amount"`
	Error        string     `json:"error,omitempty" redis:"error"`
	CreatedAt    time.Time  `json:"created_at" redis:"created_at"`
	PreparedAt   *time.Time `json:"prepared_at,omitempty" redis:"prepared_at"`
	CommittedAt  *time.Time `json:"committed_at,omitempty" redis:"committed_at"`
	AbortedAt    *time.Time `json:"aborted_at,omitempty" redis:"aborted_at"`
	RecoveredAt  *time.Time `json:"recovered_at,omitempty" redis:"recovered_at"`
	UpdatedAt    time.Time  `json:"updated_at" redis:"updated_at"`
}

// CrashParticipant selects a participant to crash after it durably flushes
// a prepare, for fault-injection testing.
type CrashParticipant struct {
	Name  string `json:"name"`
	Stage string `json:"stage"` // only "after_prepare" is recognised
}

// Simulate carries the dev-only fault-injection knobs from a transfer
// request. Production deployments should reject or ignore a non-empty one.
type Simulate struct {
	CrashCoordinatorAfterPrepare bool              `json:"crash_coordinator_after_prepare,omitempty"`
	CrashParticipant             *CrashParticipant `json:"crash_participant,omitempty"`
}

// TransferRequest is the body of POST /transfer.
type TransferRequest struct {
	FromAccount    string    `json:"from_account"`
	ToAccount      string    `json:"to_account"`
	Amount         int64     `json:"amount"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	Simulate       *Simulate `json:"simulate,omitempty"`
}

// TransferResponse is the body returned by a successful POST /transfer; it
// is also the value snapshotted under the idempotency key.
type TransferResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// PrepareRequest is the body of POST /prepare against a Participant.
type PrepareRequest struct {
	TransactionID      string    `json:"transaction_id"`
	Amount             int64     `json:"amount"`
	Direction          Direction `json:"direction"`
	CrashAfterPrepare  bool      `json:"crash_after_prepare,omitempty"`
}

// TxnIDRequest is the body of POST /commit and POST /rollback.
type TxnIDRequest struct {
	TransactionID string `json:"transaction_id"`
}

// BalanceResponse is the body of GET /balance.
type BalanceResponse struct {
	Account  string           `json:"account"`
	Balance  int64            `json:"balance"`
	Holds    map[string]int64 `json:"holds"`
	Pendings map[string]int64 `json:"pendings"`
}
