package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/example/bank-ledger/internal/ledger"
	"github.com/example/bank-ledger/internal/security"
)

type createCustomerRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	IsActive *bool  `json:"is_active"`
}

type createdResponse struct {
	CorrelationID string `json:"correlation_id"`
	ID            string `json:"_id"`
}

type listCustomersResponse struct {
	CorrelationID string             `json:"correlation_id"`
	Customers     []*ledger.Customer `json:"customers"`
}

type createAccountRequest struct {
	CustomerID  string          `json:"customer_id"`
	AccountType string          `json:"account_type"`
	Balance     decimal.Decimal `json:"balance"`
	Currency    string          `json:"currency"`
	Nickname    string          `json:"nickname"`
}

type listAccountsResponse struct {
	CorrelationID string            `json:"correlation_id"`
	Accounts      []*ledger.Account `json:"accounts"`
}

type accountResponse struct {
	CorrelationID string          `json:"correlation_id"`
	Account       *ledger.Account `json:"account"`
}

type moveMoneyRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

type balanceResponse struct {
	CorrelationID string          `json:"correlation_id"`
	AccountID     string          `json:"account_id"`
	Balance       decimal.Decimal `json:"balance"`
}

type transferRequest struct {
	FromAccountID string          `json:"from_account_id"`
	ToAccountID   string          `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Note          string          `json:"note"`
}

type transferResponse struct {
	CorrelationID string               `json:"correlation_id"`
	Status        ledger.TransferState `json:"status"`
	FromBalance   decimal.Decimal      `json:"from_balance"`
	ToBalance     decimal.Decimal      `json:"to_balance"`
}

type listEntriesResponse struct {
	CorrelationID string          `json:"correlation_id"`
	Transactions  []*ledger.Entry `json:"transactions"`
}

// writeCoreError maps the core's failure kinds to HTTP statuses. Unknown
// errors are treated as store trouble; nothing internal leaks to callers.
func writeCoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidArgument):
		security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_argument", "request rejected")
	case errors.Is(err, ledger.ErrCurrencyMismatch):
		security.WriteJSONError(w, r, http.StatusBadRequest, "currency_mismatch", "accounts hold different currencies")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		security.WriteJSONError(w, r, http.StatusBadRequest, "insufficient_funds", "amount exceeds balance")
	case errors.Is(err, ledger.ErrNotFound):
		security.WriteJSONError(w, r, http.StatusNotFound, "not_found", "no such record")
	case errors.Is(err, ledger.ErrTransferFailed):
		security.WriteJSONError(w, r, http.StatusInternalServerError, "transfer_failed", "transfer did not complete")
	default:
		security.WriteJSONError(w, r, http.StatusInternalServerError, "store_unavailable", "try again later")
	}
}

func handleCreateCustomer(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCustomerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json", "")
			return
		}

		active := true
		if req.IsActive != nil {
			active = *req.IsActive
		}

		customer, err := deps.Writer.CreateCustomer(r.Context(), ledger.Customer{
			FullName: req.FullName,
			Email:    req.Email,
			Phone:    req.Phone,
			Address:  req.Address,
			IsActive: active,
		})
		if err != nil {
			writeCoreError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusCreated, createdResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			ID:            customer.ID,
		})
	}
}

func handleListCustomers(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customers, err := deps.Reader.ListCustomers(r.Context(), queryLimit(r))
		if err != nil {
			writeCoreError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, listCustomersResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Customers:     customers,
		})
	}
}

func handleCreateAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAccountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json", "")
			return
		}

		account, err := deps.Writer.CreateAccount(r.Context(), ledger.Account{
			CustomerID:  req.CustomerID,
			AccountType: ledger.AccountType(req.AccountType),
			Balance:     req.Balance,
			Currency:    req.Currency,
			Nickname:    req.Nickname,
		})
		if err != nil {
			writeCoreError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusCreated, createdResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			ID:            account.ID,
		})
	}
}

func handleListAccounts(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accounts, err := deps.Reader.ListAccounts(r.Context(), r.URL.Query().Get("customer_id"), queryLimit(r))
		if err != nil {
			writeCoreError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, listAccountsResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Accounts:      accounts,
		})
	}
}

func handleGetAccount(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := chi.URLParam(r, "account_id")
		if accountID == "" {
			security.WriteJSONError(w, r, http.StatusBadRequest, "validation_error", "account_id is required")
			return
		}

		account, err := deps.Reader.GetAccount(r.Context(), accountID)
		if err != nil {
			writeCoreError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, accountResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Account:       account,
		})
	}
}

type moveMoneyFunc func(ctx context.Context, accountID string, amount decimal.Decimal, note string) (decimal.Decimal, error)

func handleDeposit(deps Dependencies) http.HandlerFunc {
	return handleMoveMoney(deps.Writer.Deposit)
}

func handleWithdraw(deps Dependencies) http.HandlerFunc {
	return handleMoveMoney(deps.Writer.Withdraw)
}

func handleMoveMoney(move moveMoneyFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID := r.URL.Query().Get("account_id")
		if accountID == "" {
			security.WriteJSONError(w, r, http.StatusBadRequest, "validation_error", "account_id is required")
			return
		}

		var req moveMoneyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json", "")
			return
		}

		balance, err := move(r.Context(), accountID, req.Amount, req.Note)
		if err != nil {
			writeCoreError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, balanceResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			AccountID:     accountID,
			Balance:       balance,
		})
	}
}

func handleTransfer(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req transferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			security.WriteJSONError(w, r, http.StatusBadRequest, "invalid_json", "")
			return
		}

		result, err := deps.Writer.Transfer(r.Context(), req.FromAccountID, req.ToAccountID, req.Amount, req.Note)
		if err != nil {
			writeCoreError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, transferResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Status:        result.State,
			FromBalance:   result.FromBalance,
			ToBalance:     result.ToBalance,
		})
	}
}

func handleListTransactions(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := deps.Reader.ListEntries(r.Context(), r.URL.Query().Get("account_id"), queryLimit(r))
		if err != nil {
			writeCoreError(w, r, err)
			return
		}

		writeJSON(w, r, http.StatusOK, listEntriesResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Transactions:  entries,
		})
	}
}

func queryLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return 0
}
