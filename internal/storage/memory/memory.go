// Package memory is an in-process implementation of the persistence ports
// used for local development and tests.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"finlens/internal/core"
	"finlens/internal/ports"
)

type Store struct {
	mu         sync.Mutex
	users      map[string]core.User
	accounts   map[string]core.Account
	byProvider map[string]string // provider account id -> account id
	txns       map[string]core.Transaction
	txnIDs     map[string]string // provider transaction id -> transaction id
	budgets    map[string]core.Budget
	alerts     []core.Alert
	now        func() time.Time
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:      make(map[string]core.User),
		accounts:   make(map[string]core.Account),
		byProvider: make(map[string]string),
		txns:       make(map[string]core.Transaction),
		txnIDs:     make(map[string]string),
		budgets:    make(map[string]core.Budget),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) UpsertUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[u.ID]; ok {
		u.CreatedAt = existing.CreatedAt
	} else if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetUser(_ context.Context, id string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}

func (s *Store) UpsertAccount(_ context.Context, a core.Account) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byProvider[a.ProviderAccountID]; ok {
		existing := s.accounts[id]
		a.ID = existing.ID
		a.CreatedAt = existing.CreatedAt
	} else {
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = s.now()
		}
	}
	s.accounts[a.ID] = a
	s.byProvider[a.ProviderAccountID] = a.ID
	return a, nil
}

func (s *Store) GetAccount(_ context.Context, id string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return core.Account{}, core.ErrNotFound
	}
	return a, nil
}

func (s *Store) ListAccounts(_ context.Context, userID string) ([]core.Account, error) {
	return s.listAccounts(func(a core.Account) bool { return a.UserID == userID }), nil
}

func (s *Store) ListActiveAccounts(_ context.Context) ([]core.Account, error) {
	return s.listAccounts(func(a core.Account) bool { return a.Active }), nil
}

func (s *Store) listAccounts(keep func(core.Account) bool) []core.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Account{}
	for _, a := range s.accounts {
		if keep(a) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b core.Account) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (s *Store) UpdateBalances(_ context.Context, id string, current, available float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return core.ErrNotFound
	}
	a.CurrentBalance = current
	a.AvailableBalance = available
	s.accounts[id] = a
	return nil
}

func (s *Store) InsertTransaction(_ context.Context, t core.Transaction) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txnIDs[t.ProviderTxnID]; ok {
		return false, nil
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.ProviderCategory = slices.Clone(t.ProviderCategory)
	s.txns[t.ID] = t
	s.txnIDs[t.ProviderTxnID] = t.ID
	return true, nil
}

func (s *Store) TransactionExists(_ context.Context, providerTxnID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.txnIDs[providerTxnID]
	return ok, nil
}

func (s *Store) GetTransaction(_ context.Context, userID, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.txns[id]
	if !ok || s.accounts[t.AccountID].UserID != userID {
		return core.Transaction{}, core.ErrNotFound
	}
	return t, nil
}

func (s *Store) ListTransactions(_ context.Context, f ports.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.filter(f)
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []core.Transaction{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) CountTransactions(_ context.Context, f ports.TransactionFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filter(f)), nil
}

func (s *Store) filter(f ports.TransactionFilter) []core.Transaction {
	out := []core.Transaction{}
	for _, t := range s.txns {
		if f.UserID != "" && s.accounts[t.AccountID].UserID != f.UserID {
			continue
		}
		if f.AccountID != "" && t.AccountID != f.AccountID {
			continue
		}
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if !f.From.IsZero() && t.Date.Before(f.From.Time) {
			continue
		}
		if !f.To.IsZero() && t.Date.After(f.To.Time) {
			continue
		}
		if f.ExpensesOnly && !t.IsExpense() {
			continue
		}
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b core.Transaction) int {
		if c := b.Date.Compare(a.Date.Time); c != 0 {
			return c
		}
		return strings.Compare(a.ProviderTxnID, b.ProviderTxnID)
	})
	return out
}

func (s *Store) CreateBudget(_ context.Context, b core.Budget) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	s.budgets[b.ID] = b
	return b, nil
}

func (s *Store) GetBudget(_ context.Context, userID, id string) (core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok || b.UserID != userID {
		return core.Budget{}, core.ErrNotFound
	}
	return b, nil
}

func (s *Store) ListBudgets(_ context.Context, userID string, activeOnly bool) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Budget{}
	for _, b := range s.budgets {
		if b.UserID != userID || (activeOnly && !b.Active) {
			continue
		}
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b core.Budget) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (s *Store) UpdateBudget(_ context.Context, b core.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.budgets[b.ID]
	if !ok || existing.UserID != b.UserID {
		return core.ErrNotFound
	}
	b.CreatedAt = existing.CreatedAt
	s.budgets[b.ID] = b
	return nil
}

func (s *Store) DeleteBudget(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.budgets[id]
	if !ok || b.UserID != userID {
		return core.ErrNotFound
	}
	delete(s.budgets, id)
	return nil
}

func (s *Store) CreateAlert(_ context.Context, a core.Alert) (core.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	s.alerts = append(s.alerts, a)
	return a, nil
}

// ListAlerts returns alerts newest first.
func (s *Store) ListAlerts(_ context.Context, userID string, unreadOnly bool) ([]core.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Alert{}
	for i := len(s.alerts) - 1; i >= 0; i-- {
		a := s.alerts[i]
		if a.UserID != userID || (unreadOnly && a.Read) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) AlertExists(_ context.Context, userID string, alertType core.AlertType, message string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.UserID == userID && a.Type == alertType && a.Message == message {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) MarkAlertRead(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if s.alerts[i].ID == id && s.alerts[i].UserID == userID {
			s.alerts[i].Read = true
			return nil
		}
	}
	return core.ErrNotFound
}

func (s *Store) MarkAllAlertsRead(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.alerts {
		if s.alerts[i].UserID == userID && !s.alerts[i].Read {
			s.alerts[i].Read = true
			n++
		}
	}
	return n, nil
}
