// Package ledger owns the rules for mutating account balances and
// appending the matching transaction records. All money movement goes
// through this package; the HTTP layer only translates.
package ledger

import "errors"

// The closed set of failure kinds the core surfaces. Callers classify with
// errors.Is; the HTTP layer maps each to a status code.
var (
	// ErrInvalidArgument covers malformed input: non-positive amounts,
	// unknown account types or currencies, same-account transfers.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound means a referenced customer or account does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientFunds means the withdrawal or transfer amount exceeds
	// the source balance at the revision the write was attempted against.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrCurrencyMismatch means the two transfer accounts hold different
	// currencies.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrTransferFailed means a transfer failed after its debit leg was
	// applied; the accompanying TransferResult says whether the debit was
	// compensated.
	ErrTransferFailed = errors.New("transfer failed")

	// ErrStoreUnavailable means the store did not respond, a write could
	// not be made durable, or the bounded conflict retry was exhausted.
	ErrStoreUnavailable = errors.New("store unavailable")
)
