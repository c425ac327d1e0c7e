package services

import (
	"context"
	"fmt"

	"finlens/internal/core"
	"finlens/internal/ports"
)

const (
	accountListRecent   = 10
	accountDetailRecent = 50
	defaultPageSize     = 50
	maxPageSize         = 500
)

// AccountView is an account with its most recent transactions.
type AccountView struct {
	core.Account
	Transactions []core.Transaction `json:"transactions"`
}

// TransactionPage is one page of a filtered transaction listing.
type TransactionPage struct {
	Transactions []core.Transaction `json:"transactions"`
	Total        int                `json:"total"`
	// Limit is the page size applied after defaulting and capping.
	Limit int `json:"limit"`
}

// AccountService answers read queries over accounts and transactions.
type AccountService struct {
	store ports.Store
}

func NewAccountService(store ports.Store) *AccountService {
	return &AccountService{store: store}
}

// List returns the user's active accounts, each with its latest transactions.
func (s *AccountService) List(ctx context.Context, userID string) ([]AccountView, error) {
	accounts, err := s.store.ListAccounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	views := make([]AccountView, 0, len(accounts))
	for _, a := range accounts {
		if !a.Active {
			continue
		}
		v, err := s.view(ctx, a, accountListRecent)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *AccountService) Get(ctx context.Context, userID, id string) (AccountView, error) {
	a, err := ownedAccount(ctx, s.store, userID, id)
	if err != nil {
		return AccountView{}, err
	}
	return s.view(ctx, a, accountDetailRecent)
}

func (s *AccountService) view(ctx context.Context, a core.Account, recent int) (AccountView, error) {
	txns, err := s.store.ListTransactions(ctx, ports.TransactionFilter{
		UserID:    a.UserID,
		AccountID: a.ID,
		Limit:     recent,
	})
	if err != nil {
		return AccountView{}, fmt.Errorf("list transactions for account %s: %w", a.ID, err)
	}
	return AccountView{Account: a, Transactions: txns}, nil
}

// Transactions lists the user's transactions newest first. A zero limit
// means the default page size.
func (s *AccountService) Transactions(ctx context.Context, f ports.TransactionFilter) (TransactionPage, error) {
	if f.UserID == "" {
		return TransactionPage{}, fmt.Errorf("%w: user id is required", core.ErrInvalidInput)
	}
	if f.Limit < 0 || f.Offset < 0 {
		return TransactionPage{}, fmt.Errorf("%w: limit and offset must not be negative", core.ErrInvalidInput)
	}
	if f.Limit == 0 {
		f.Limit = defaultPageSize
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From.Time) {
		return TransactionPage{}, core.ErrInvalidDateRange
	}

	txns, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return TransactionPage{}, fmt.Errorf("list transactions: %w", err)
	}
	total, err := s.store.CountTransactions(ctx, f)
	if err != nil {
		return TransactionPage{}, fmt.Errorf("count transactions: %w", err)
	}
	return TransactionPage{Transactions: txns, Total: total, Limit: f.Limit}, nil
}

func (s *AccountService) Transaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return t, nil
}

// ownedAccount loads an account and hides accounts owned by someone else
// behind ErrNotFound.
func ownedAccount(ctx context.Context, accounts ports.AccountStore, userID, id string) (core.Account, error) {
	a, err := accounts.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, fmt.Errorf("get account %s: %w", id, err)
	}
	if a.UserID != userID {
		return core.Account{}, fmt.Errorf("get account %s: %w", id, core.ErrNotFound)
	}
	return a, nil
}
