// Package api is the HTTP front of the record-keeper. It validates and
// decodes requests, calls the ledger core, and maps the core's failure
// kinds to status codes; no money rules live here.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/example/bank-ledger/internal/ledger"
	"github.com/example/bank-ledger/internal/security"
)

type Dependencies struct {
	Logger *slog.Logger

	Reader interface {
		ListCustomers(ctx context.Context, limit int) ([]*ledger.Customer, error)
		ListAccounts(ctx context.Context, customerID string, limit int) ([]*ledger.Account, error)
		GetAccount(ctx context.Context, accountID string) (*ledger.Account, error)
		ListEntries(ctx context.Context, accountID string, limit int) ([]*ledger.Entry, error)
	}
	Writer interface {
		CreateCustomer(ctx context.Context, c ledger.Customer) (*ledger.Customer, error)
		CreateAccount(ctx context.Context, a ledger.Account) (*ledger.Account, error)
		Deposit(ctx context.Context, accountID string, amount decimal.Decimal, note string) (decimal.Decimal, error)
		Withdraw(ctx context.Context, accountID string, amount decimal.Decimal, note string) (decimal.Decimal, error)
		Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, note string) (*ledger.TransferResult, error)
	}
	Status interface {
		Ping(ctx context.Context) error
		Collections(ctx context.Context) ([]string, error)
	}

	RateLimiter  *security.RedisTokenBucket
	IPAllowlist  []*net.IPNet
	MaxBodyBytes int64
}

func NewRouter(deps Dependencies) (http.Handler, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	customerV, err := security.NewJSONSchemaValidator(createCustomerSchema)
	if err != nil {
		return nil, err
	}
	accountV, err := security.NewJSONSchemaValidator(createAccountSchema)
	if err != nil {
		return nil, err
	}
	moveV, err := security.NewJSONSchemaValidator(moveMoneySchema)
	if err != nil {
		return nil, err
	}
	transferV, err := security.NewJSONSchemaValidator(transferSchema)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(security.CorrelationID)
	r.Use(RequestLogger(deps.Logger))
	r.Use(security.BodySizeLimit(deps.MaxBodyBytes))
	r.Use(security.IPAllowlist(deps.IPAllowlist))
	if deps.RateLimiter != nil {
		r.Use(security.RateLimitMiddleware(deps.RateLimiter, rateLimitKeyByIP))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/statusz", handleStatus(deps))

	r.Route("/api", func(r chi.Router) {
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", handleListCustomers(deps))
			r.With(customerV.Middleware).Post("/", handleCreateCustomer(deps))
		})

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", handleListAccounts(deps))
			r.Get("/{account_id}", handleGetAccount(deps))
			r.With(accountV.Middleware).Post("/", handleCreateAccount(deps))
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", handleListTransactions(deps))
			r.With(moveV.Middleware).Post("/deposit", handleDeposit(deps))
			r.With(moveV.Middleware).Post("/withdraw", handleWithdraw(deps))
			r.With(transferV.Middleware).Post("/transfer", handleTransfer(deps))
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusNotFound, "not_found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		security.WriteJSONError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "")
	})

	return r, nil
}

func rateLimitKeyByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ""
	}
	return "ip:" + host
}

type statusResponse struct {
	CorrelationID string   `json:"correlation_id"`
	Backend       string   `json:"backend"`
	Store         string   `json:"store"`
	Collections   []string `json:"collections"`
}

// handleStatus reports store connectivity the way operators expect from
// the original service's probe endpoint: always 200, state in the body.
func handleStatus(deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{
			CorrelationID: security.CorrelationIDFromContext(r.Context()),
			Backend:       "running",
			Store:         "unavailable",
			Collections:   []string{},
		}

		if deps.Status != nil {
			if err := deps.Status.Ping(r.Context()); err == nil {
				resp.Store = "connected"
				if cols, err := deps.Status.Collections(r.Context()); err == nil {
					if len(cols) > 10 {
						cols = cols[:10]
					}
					resp.Collections = cols
				}
			}
		}

		writeJSON(w, r, http.StatusOK, resp)
	}
}
