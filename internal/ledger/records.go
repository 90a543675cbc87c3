package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/example/bank-ledger/internal/docstore"
)

// CreateCustomer stores a new customer record and returns it with its
// assigned ID.
func (s *Service) CreateCustomer(ctx context.Context, c Customer) (*Customer, error) {
	if strings.TrimSpace(c.FullName) == "" {
		return nil, fmt.Errorf("full_name is required: %w", ErrInvalidArgument)
	}
	if !strings.Contains(c.Email, "@") {
		return nil, fmt.Errorf("email %q is not an address: %w", c.Email, ErrInvalidArgument)
	}

	c.ID = uuid.NewString()
	if err := s.insert(ctx, docstore.Customers, c.ID, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCustomers returns customers, newest first.
func (s *Service) ListCustomers(ctx context.Context, limit int) ([]*Customer, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	docs, err := s.store.List(ctx, docstore.Customers, "", "", limit)
	if err != nil {
		return nil, fmt.Errorf("list customers: %v: %w", err, ErrStoreUnavailable)
	}

	out := make([]*Customer, 0, len(docs))
	for _, doc := range docs {
		var c Customer
		if err := json.Unmarshal(doc.Data, &c); err != nil {
			return nil, fmt.Errorf("decode customer %s: %w", doc.ID, err)
		}
		c.ID = doc.ID
		out = append(out, &c)
	}
	return out, nil
}

// CreateAccount stores a new account after validating its shape and that
// the owning customer exists. The customer reference is not re-validated
// afterwards; customers are never deleted in this system.
func (s *Service) CreateAccount(ctx context.Context, a Account) (*Account, error) {
	if !validAccountType(a.AccountType) {
		return nil, fmt.Errorf("account type %q: %w", a.AccountType, ErrInvalidArgument)
	}
	if !validCurrency(a.Currency) {
		return nil, fmt.Errorf("currency %q: %w", a.Currency, ErrInvalidArgument)
	}
	if a.Balance.Sign() < 0 {
		return nil, fmt.Errorf("opening balance must not be negative: %w", ErrInvalidArgument)
	}

	_, err := s.store.Get(ctx, docstore.Customers, a.CustomerID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("customer %s: %w", a.CustomerID, ErrNotFound)
		}
		return nil, fmt.Errorf("load customer %s: %v: %w", a.CustomerID, err, ErrStoreUnavailable)
	}

	a.ID = uuid.NewString()
	if err := s.insert(ctx, docstore.Accounts, a.ID, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccount returns the account's current snapshot.
func (s *Service) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	acc, _, err := s.loadAccount(ctx, accountID)
	return acc, err
}

// ListAccounts returns accounts, newest first, optionally restricted to
// one customer.
func (s *Service) ListAccounts(ctx context.Context, customerID string, limit int) ([]*Account, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	field := ""
	if customerID != "" {
		field = "customer_id"
	}
	docs, err := s.store.List(ctx, docstore.Accounts, field, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %v: %w", err, ErrStoreUnavailable)
	}

	out := make([]*Account, 0, len(docs))
	for _, doc := range docs {
		var a Account
		if err := json.Unmarshal(doc.Data, &a); err != nil {
			return nil, fmt.Errorf("decode account %s: %w", doc.ID, err)
		}
		a.ID = doc.ID
		out = append(out, &a)
	}
	return out, nil
}

// ListEntries returns ledger entries, newest first, optionally restricted
// to one account.
func (s *Service) ListEntries(ctx context.Context, accountID string, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	field := ""
	if accountID != "" {
		field = "account_id"
	}
	docs, err := s.store.List(ctx, docstore.Transactions, field, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %v: %w", err, ErrStoreUnavailable)
	}

	out := make([]*Entry, 0, len(docs))
	for _, doc := range docs {
		var e Entry
		if err := json.Unmarshal(doc.Data, &e); err != nil {
			return nil, fmt.Errorf("decode entry %s: %w", doc.ID, err)
		}
		e.ID = doc.ID
		e.Seq = doc.Seq
		out = append(out, &e)
	}
	return out, nil
}

func (s *Service) insert(ctx context.Context, collection, id string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	if _, err := s.store.Insert(ctx, collection, id, data); err != nil {
		return fmt.Errorf("insert %s/%s: %v: %w", collection, id, err, ErrStoreUnavailable)
	}
	return nil
}
