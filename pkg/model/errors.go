package model

import "errors"

var (
	// ErrAuth is returned when a request carries no valid bearer credential.
	ErrAuth = errors.New("missing or invalid bearer credential")

	// ErrValidation is returned for malformed input: bad accounts, non-positive
	// amounts, or from==to.
	ErrValidation = errors.New("validation failed")

	// ErrPairBusy is returned when the pair lock could not be acquired within
	// the configured deadline.
	ErrPairBusy = errors.New("pair busy, try again")

	// ErrInsufficientFunds is returned by a Participant when a debit prepare
	// would take the balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrTransactionAborted wraps any failure between txn creation and commit;
	// the coordinator has already attempted a best-effort rollback.
	ErrTransactionAborted = errors.New("transaction aborted")

	// ErrDependency is returned when the transaction log or a participant is
	// unreachable.
	ErrDependency = errors.New("dependency unavailable")

	// ErrNotFound is returned when a txn_id is unknown.
	ErrNotFound = errors.New("transaction not found")

	// ErrInvalidDirection is returned for a prepare direction outside
	// {debit, credit}.
	ErrInvalidDirection = errors.New("direction must be debit or credit")
)
