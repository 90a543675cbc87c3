package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is the referenced owner entity. Accounts hold its ID; the
// reference is validated at account creation only.
type Customer struct {
	ID       string `json:"_id,omitempty"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
	IsActive bool   `json:"is_active"`
}

type AccountType string

const (
	Checking AccountType = "checking"
	Savings  AccountType = "savings"
)

// Account holds a non-negative balance in a single currency. The balance
// is mutated only by the core's operations, never written directly.
type Account struct {
	ID          string          `json:"_id,omitempty"`
	CustomerID  string          `json:"customer_id"`
	AccountType AccountType     `json:"account_type"`
	Balance     decimal.Decimal `json:"balance"`
	Currency    string          `json:"currency"`
	Nickname    string          `json:"nickname,omitempty"`
}

type EntryType string

const (
	EntryDeposit  EntryType = "deposit"
	EntryWithdraw EntryType = "withdraw"
	EntryTransfer EntryType = "transfer"
)

// Entry is an append-only record of a single balance-affecting event on
// one account. A transfer produces two: a transfer-typed entry on the
// source carrying ToAccountID, and a deposit-typed entry on the
// destination carrying FromAccountID.
type Entry struct {
	ID            string          `json:"_id,omitempty"`
	Seq           int64           `json:"seq,omitempty"`
	AccountID     string          `json:"account_id"`
	TxType        EntryType       `json:"tx_type"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Note          string          `json:"note,omitempty"`
	ToAccountID   string          `json:"to_account_id,omitempty"`
	FromAccountID string          `json:"from_account_id,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

var currencies = map[string]bool{
	"USD": true,
	"EUR": true,
	"GBP": true,
	"INR": true,
	"JPY": true,
	"AUD": true,
}

func validCurrency(code string) bool { return currencies[code] }

func validAccountType(t AccountType) bool { return t == Checking || t == Savings }
