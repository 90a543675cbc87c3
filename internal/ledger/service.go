package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/bank-ledger/internal/docstore"
)

const (
	// A balance write that loses to a concurrent writer is retried against
	// a fresh read this many times before surfacing ErrStoreUnavailable.
	maxConflictRetries = 3
	conflictBackoff    = 10 * time.Millisecond

	// DefaultListLimit bounds history listings when the caller gives none.
	DefaultListLimit = 50
)

// Service is the transaction-consistency core. Every balance mutation goes
// through a revision-conditioned replace, so per-account mutations are
// serializable even when multiple processes share the store.
type Service struct {
	store  docstore.Store
	logger *slog.Logger
}

func NewService(store docstore.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, logger: logger}
}

// Deposit credits the account and appends a deposit entry. Returns the new
// balance.
func (s *Service) Deposit(ctx context.Context, accountID string, amount decimal.Decimal, note string) (decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("deposit amount must be positive: %w", ErrInvalidArgument)
	}

	acc, err := s.applyBalance(ctx, accountID, func(a *Account) error {
		a.Balance = a.Balance.Add(amount)
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	entry := Entry{
		AccountID: accountID,
		TxType:    EntryDeposit,
		Amount:    amount,
		Currency:  acc.Currency,
		Note:      note,
	}
	if _, err := s.appendEntry(ctx, entry); err != nil {
		rerr := s.revertBalance(ctx, accountID, amount.Neg())
		switch {
		case rerr == nil:
			return decimal.Zero, entryNotRecorded(err)
		case errors.Is(rerr, errRevertOverdraw):
			// A concurrent withdrawal spent the credited funds before the
			// revert could run, so the credit has to stand. Record it after
			// all rather than overdraw the account.
			if _, aerr := s.appendEntry(ctx, entry); aerr == nil {
				return acc.Balance, nil
			}
			s.logger.Error("deposit applied but its entry could not be recorded",
				"account", accountID, "amount", amount, "error", err)
			return decimal.Zero, entryNotRecorded(err)
		default:
			s.logger.Error("balance revert failed after entry append failure",
				"account", accountID, "error", rerr)
			return decimal.Zero, entryNotRecorded(err)
		}
	}

	return acc.Balance, nil
}

// Withdraw debits the account and appends a withdraw entry. The funds
// check and the balance write are evaluated against the same revision, so
// a concurrent withdrawal cannot push the balance below zero.
func (s *Service) Withdraw(ctx context.Context, accountID string, amount decimal.Decimal, note string) (decimal.Decimal, error) {
	if amount.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("withdraw amount must be positive: %w", ErrInvalidArgument)
	}

	acc, err := s.applyBalance(ctx, accountID, func(a *Account) error {
		if a.Balance.LessThan(amount) {
			return fmt.Errorf("balance %s below %s: %w", a.Balance, amount, ErrInsufficientFunds)
		}
		a.Balance = a.Balance.Sub(amount)
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}

	_, err = s.appendEntry(ctx, Entry{
		AccountID: accountID,
		TxType:    EntryWithdraw,
		Amount:    amount,
		Currency:  acc.Currency,
		Note:      note,
	})
	if err != nil {
		if rerr := s.revertBalance(ctx, accountID, amount); rerr != nil {
			s.logger.Error("balance revert failed after entry append failure",
				"account", accountID, "error", rerr)
		}
		return decimal.Zero, entryNotRecorded(err)
	}

	return acc.Balance, nil
}

// TransferState tags how a transfer ended.
type TransferState string

const (
	// TransferCommitted: both balance legs and both entries are durable.
	TransferCommitted TransferState = "committed"
	// TransferCompensated: a later step failed and every applied leg was
	// rolled back; the accounts are as they were before the call.
	TransferCompensated TransferState = "compensated"
	// TransferFailed: a later step failed and compensation also failed;
	// the error records which legs are still applied.
	TransferFailed TransferState = "failed"
)

// TransferResult reports the outcome of a transfer.
type TransferResult struct {
	State       TransferState   `json:"state"`
	FromBalance decimal.Decimal `json:"from_balance"`
	ToBalance   decimal.Decimal `json:"to_balance"`
}

// Transfer moves amount from one account to another: debit the source,
// credit the destination, then append a transfer entry on the source and a
// deposit entry on the destination. The store is only per-document atomic,
// so the four steps cannot commit as one unit; instead any failure after
// the debit triggers compensation so a debit is never left without a
// matching credit.
func (s *Service) Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, note string) (*TransferResult, error) {
	failed := &TransferResult{State: TransferFailed}

	if amount.Sign() <= 0 {
		return failed, fmt.Errorf("transfer amount must be positive: %w", ErrInvalidArgument)
	}
	if fromID == toID {
		return failed, fmt.Errorf("transfer within the same account: %w", ErrInvalidArgument)
	}

	from, _, err := s.loadAccount(ctx, fromID)
	if err != nil {
		return failed, err
	}
	to, _, err := s.loadAccount(ctx, toID)
	if err != nil {
		return failed, err
	}
	if from.Currency != to.Currency {
		return failed, fmt.Errorf("%s vs %s: %w", from.Currency, to.Currency, ErrCurrencyMismatch)
	}
	if from.Balance.LessThan(amount) {
		// Early reject on the snapshot read; the debit below re-checks
		// against the revision it writes.
		return failed, fmt.Errorf("balance %s below %s: %w", from.Balance, amount, ErrInsufficientFunds)
	}

	// Step 1: debit the source.
	from, err = s.applyBalance(ctx, fromID, func(a *Account) error {
		if a.Balance.LessThan(amount) {
			return fmt.Errorf("balance %s below %s: %w", a.Balance, amount, ErrInsufficientFunds)
		}
		a.Balance = a.Balance.Sub(amount)
		return nil
	})
	if err != nil {
		return failed, err
	}

	// Step 2: credit the destination. On failure, re-credit the source.
	to, err = s.applyBalance(ctx, toID, func(a *Account) error {
		a.Balance = a.Balance.Add(amount)
		return nil
	})
	if err != nil {
		return s.compensate(ctx, fromID, toID, amount, false, err)
	}

	// Step 3: transfer entry on the source, destination recorded.
	_, err = s.appendEntry(ctx, Entry{
		AccountID:   fromID,
		TxType:      EntryTransfer,
		Amount:      amount,
		Currency:    from.Currency,
		Note:        note,
		ToAccountID: toID,
	})
	if err != nil {
		return s.compensate(ctx, fromID, toID, amount, true, err)
	}

	// Step 4: deposit entry on the destination. The source reference is a
	// structured field; the note keeps the original feed's wording for
	// consumers that still read it.
	_, err = s.appendEntry(ctx, Entry{
		AccountID:     toID,
		TxType:        EntryDeposit,
		Amount:        amount,
		Currency:      to.Currency,
		Note:          fmt.Sprintf("Transfer from %s", fromID),
		FromAccountID: fromID,
	})
	if err != nil {
		res, cerr := s.compensate(ctx, fromID, toID, amount, true, err)
		if res.State != TransferCompensated {
			return res, cerr
		}
		// The source's transfer entry is already durable and the entry
		// log is append-only, so the re-credit is recorded as a reversing
		// deposit to keep the entry stream consistent with the restored
		// balance.
		if _, rerr := s.appendEntry(ctx, Entry{
			AccountID:     fromID,
			TxType:        EntryDeposit,
			Amount:        amount,
			Currency:      from.Currency,
			Note:          fmt.Sprintf("Reversal of transfer to %s", toID),
			FromAccountID: toID,
		}); rerr != nil {
			s.logger.Error("transfer reversal entry not recorded",
				"from_account", fromID, "to_account", toID, "error", rerr)
		}
		return res, cerr
	}

	return &TransferResult{
		State:       TransferCommitted,
		FromBalance: from.Balance,
		ToBalance:   to.Balance,
	}, nil
}

// compensate undoes the applied transfer legs after cause interrupted the
// operation: debit the destination back when the credit leg had landed,
// then re-credit the source.
func (s *Service) compensate(ctx context.Context, fromID, toID string, amount decimal.Decimal, creditApplied bool, cause error) (*TransferResult, error) {
	if creditApplied {
		_, err := s.applyBalance(ctx, toID, func(a *Account) error {
			if a.Balance.LessThan(amount) {
				// The destination spent the credited funds before we
				// could take them back; balances stay non-negative.
				return fmt.Errorf("destination balance %s below %s: %w", a.Balance, amount, ErrInsufficientFunds)
			}
			a.Balance = a.Balance.Sub(amount)
			return nil
		})
		if err != nil {
			s.logger.Error("transfer compensation failed on destination leg",
				"from_account", fromID, "to_account", toID, "error", err)
			return &TransferResult{State: TransferFailed},
				fmt.Errorf("credit to %s not reverted after %v: %w", toID, cause, ErrTransferFailed)
		}
	}

	_, err := s.applyBalance(ctx, fromID, func(a *Account) error {
		a.Balance = a.Balance.Add(amount)
		return nil
	})
	if err != nil {
		s.logger.Error("transfer compensation failed on source leg",
			"from_account", fromID, "to_account", toID, "error", err)
		return &TransferResult{State: TransferFailed},
			fmt.Errorf("debit of %s not re-credited after %v: %w", fromID, cause, ErrTransferFailed)
	}

	s.logger.Warn("transfer compensated",
		"from_account", fromID, "to_account", toID, "amount", amount, "cause", cause)
	return &TransferResult{State: TransferCompensated},
		fmt.Errorf("compensated after %v: %w", cause, ErrTransferFailed)
}

// applyBalance runs fn against a fresh read of the account and writes the
// result under the read's revision. When a concurrent writer wins the
// revision race the whole read-check-write is retried, so preconditions
// inside fn always hold for the state that is actually written.
func (s *Service) applyBalance(ctx context.Context, accountID string, fn func(*Account) error) (*Account, error) {
	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * conflictBackoff)
		}

		acc, rev, err := s.loadAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if err := fn(acc); err != nil {
			return nil, err
		}

		data, err := json.Marshal(acc)
		if err != nil {
			return nil, fmt.Errorf("encode account %s: %w", accountID, err)
		}

		err = s.store.Replace(ctx, docstore.Accounts, accountID, data, rev)
		switch {
		case err == nil:
			return acc, nil
		case errors.Is(err, docstore.ErrConflict):
			lastErr = err
			continue
		case errors.Is(err, docstore.ErrNotFound):
			return nil, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
		default:
			return nil, fmt.Errorf("write account %s: %v: %w", accountID, err, ErrStoreUnavailable)
		}
	}
	return nil, fmt.Errorf("account %s: retries exhausted on write conflict: %v: %w", accountID, lastErr, ErrStoreUnavailable)
}

// errRevertOverdraw reports that undoing a credit would push the balance
// below zero because the credited funds were spent in the meantime.
var errRevertOverdraw = errors.New("revert would overdraw the account")

// revertBalance undoes a committed balance change after the matching entry
// could not be appended, so storage never shows a balance move without its
// entry. Balances stay non-negative: a revert that would overdraw the
// account is refused with errRevertOverdraw and the caller reconciles.
func (s *Service) revertBalance(ctx context.Context, accountID string, delta decimal.Decimal) error {
	_, err := s.applyBalance(ctx, accountID, func(a *Account) error {
		next := a.Balance.Add(delta)
		if next.Sign() < 0 {
			return errRevertOverdraw
		}
		a.Balance = next
		return nil
	})
	return err
}

func entryNotRecorded(cause error) error {
	return fmt.Errorf("entry not recorded: %v: %w", cause, ErrStoreUnavailable)
}

func (s *Service) loadAccount(ctx context.Context, accountID string) (*Account, int64, error) {
	doc, err := s.store.Get(ctx, docstore.Accounts, accountID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, 0, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
		}
		return nil, 0, fmt.Errorf("load account %s: %v: %w", accountID, err, ErrStoreUnavailable)
	}

	var acc Account
	if err := json.Unmarshal(doc.Data, &acc); err != nil {
		return nil, 0, fmt.Errorf("decode account %s: %w", accountID, err)
	}
	acc.ID = accountID
	return &acc, doc.Rev, nil
}

func (s *Service) appendEntry(ctx context.Context, e Entry) (Entry, error) {
	e.ID = uuid.NewString()
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(e)
	if err != nil {
		return e, fmt.Errorf("encode entry: %w", err)
	}

	seq, err := s.store.Insert(ctx, docstore.Transactions, e.ID, data)
	if err != nil {
		return e, fmt.Errorf("append entry for %s: %v: %w", e.AccountID, err, ErrStoreUnavailable)
	}
	e.Seq = seq
	return e, nil
}
