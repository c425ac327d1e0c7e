package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finlens/internal/core"
	"finlens/internal/ports"
)

// UserProfile is the current user with the records hanging off it.
type UserProfile struct {
	core.User
	Accounts []core.Account `json:"accounts"`
	Budgets  []core.Budget  `json:"budgets"`
}

// UserService mirrors identities asserted by the upstream gateway into
// local user records.
type UserService struct {
	store ports.Store
}

func NewUserService(store ports.Store) *UserService {
	return &UserService{store: store}
}

// Sync returns the stored user, creating it on first sight. Existing
// records are not overwritten.
func (s *UserService) Sync(ctx context.Context, userID, email, fullName string) (core.User, error) {
	if strings.TrimSpace(userID) == "" {
		return core.User{}, fmt.Errorf("%w: user id is required", core.ErrInvalidInput)
	}
	u, err := s.store.GetUser(ctx, userID)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	u, err = s.store.UpsertUser(ctx, core.User{ID: userID, Email: email, FullName: fullName})
	if err != nil {
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *UserService) Profile(ctx context.Context, userID string) (UserProfile, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return UserProfile{}, fmt.Errorf("get user: %w", err)
	}
	accounts, err := s.store.ListAccounts(ctx, userID)
	if err != nil {
		return UserProfile{}, fmt.Errorf("list accounts: %w", err)
	}
	budgets, err := s.store.ListBudgets(ctx, userID, false)
	if err != nil {
		return UserProfile{}, fmt.Errorf("list budgets: %w", err)
	}
	return UserProfile{User: u, Accounts: accounts, Budgets: budgets}, nil
}

// ensureUser creates a bare user row so records owned by userID satisfy
// foreign keys in persistent backends.
func ensureUser(ctx context.Context, users ports.UserStore, userID string) error {
	_, err := users.GetUser(ctx, userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("get user: %w", err)
	}
	if _, err := users.UpsertUser(ctx, core.User{ID: userID}); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
