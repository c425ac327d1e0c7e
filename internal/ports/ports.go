// Package ports declares the persistence interfaces the services depend on.
package ports

import (
	"context"
	"io"

	"finlens/internal/core"
)

// TransactionFilter narrows a transaction listing. Zero values do not filter.
type TransactionFilter struct {
	UserID       string
	AccountID    string
	Category     string
	From         core.Date
	To           core.Date
	ExpensesOnly bool
	Limit        int
	Offset       int
}

type (
	UserStore interface {
		UpsertUser(ctx context.Context, u core.User) (core.User, error)
		GetUser(ctx context.Context, id string) (core.User, error)
	}

	AccountStore interface {
		// UpsertAccount inserts the account or refreshes it when the provider
		// account id is already known. The stored record is returned.
		UpsertAccount(ctx context.Context, a core.Account) (core.Account, error)
		GetAccount(ctx context.Context, id string) (core.Account, error)
		ListAccounts(ctx context.Context, userID string) ([]core.Account, error)
		ListActiveAccounts(ctx context.Context) ([]core.Account, error)
		UpdateBalances(ctx context.Context, id string, current, available float64) error
	}

	TransactionStore interface {
		// InsertTransaction stores t unless its provider id already exists.
		InsertTransaction(ctx context.Context, t core.Transaction) (inserted bool, err error)
		TransactionExists(ctx context.Context, providerTxnID string) (bool, error)
		GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
		// ListTransactions returns matches newest first.
		ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error)
		CountTransactions(ctx context.Context, f TransactionFilter) (int, error)
	}

	BudgetStore interface {
		CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error)
		GetBudget(ctx context.Context, userID, id string) (core.Budget, error)
		ListBudgets(ctx context.Context, userID string, activeOnly bool) ([]core.Budget, error)
		UpdateBudget(ctx context.Context, b core.Budget) error
		DeleteBudget(ctx context.Context, userID, id string) error
	}

	AlertStore interface {
		CreateAlert(ctx context.Context, a core.Alert) (core.Alert, error)
		ListAlerts(ctx context.Context, userID string, unreadOnly bool) ([]core.Alert, error)
		AlertExists(ctx context.Context, userID string, alertType core.AlertType, message string) (bool, error)
		MarkAlertRead(ctx context.Context, userID, id string) error
		MarkAllAlertsRead(ctx context.Context, userID string) (int, error)
	}

	// Store groups every persistence port behind one backend.
	Store interface {
		UserStore
		AccountStore
		TransactionStore
		BudgetStore
		AlertStore
		io.Closer
	}
)
