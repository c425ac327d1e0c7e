package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finlens/internal/core"
	"finlens/internal/ports"
)

type BudgetInput struct {
	Category  string            `json:"category"`
	Amount    float64           `json:"amount"`
	Period    core.BudgetPeriod `json:"period"`
	StartDate core.Date         `json:"startDate"`
	EndDate   core.Date         `json:"endDate"`
}

// BudgetPatch holds the fields an update may change. Nil fields are kept.
type BudgetPatch struct {
	Category *string            `json:"category"`
	Amount   *float64           `json:"amount"`
	Period   *core.BudgetPeriod `json:"period"`
	Active   *bool              `json:"isActive"`
}

type BudgetService struct {
	store ports.Store
	now   func() time.Time
}

func NewBudgetService(store ports.Store) *BudgetService {
	return &BudgetService{store: store, now: time.Now}
}

// List returns the user's active budgets, newest first.
func (s *BudgetService) List(ctx context.Context, userID string) ([]core.Budget, error) {
	budgets, err := s.store.ListBudgets(ctx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	return budgets, nil
}

func (s *BudgetService) Create(ctx context.Context, userID string, in BudgetInput) (core.Budget, error) {
	b := core.Budget{
		UserID:    userID,
		Category:  strings.TrimSpace(in.Category),
		Amount:    in.Amount,
		Period:    in.Period,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Active:    true,
	}
	if b.StartDate.IsZero() {
		b.StartDate = core.DateOf(s.now())
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, fmt.Errorf("%w: %w", core.ErrInvalidInput, err)
	}
	if err := ensureUser(ctx, s.store, userID); err != nil {
		return core.Budget{}, err
	}

	created, err := s.store.CreateBudget(ctx, b)
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	return created, nil
}

func (s *BudgetService) Update(ctx context.Context, userID, id string, patch BudgetPatch) (core.Budget, error) {
	b, err := s.store.GetBudget(ctx, userID, id)
	if err != nil {
		return core.Budget{}, fmt.Errorf("get budget %s: %w", id, err)
	}

	if patch.Category != nil {
		b.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Amount != nil {
		b.Amount = *patch.Amount
	}
	if patch.Period != nil {
		b.Period = *patch.Period
	}
	if patch.Active != nil {
		b.Active = *patch.Active
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, fmt.Errorf("%w: %w", core.ErrInvalidInput, err)
	}

	if err := s.store.UpdateBudget(ctx, b); err != nil {
		return core.Budget{}, fmt.Errorf("update budget %s: %w", id, err)
	}
	return b, nil
}

func (s *BudgetService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteBudget(ctx, userID, id); err != nil {
		return fmt.Errorf("delete budget %s: %w", id, err)
	}
	return nil
}

// Statuses evaluates every active budget against the expenses inside its
// current window.
func (s *BudgetService) Statuses(ctx context.Context, userID string, now time.Time) ([]core.BudgetStatus, error) {
	return budgetStatuses(ctx, s.store, userID, now)
}

func budgetStatuses(ctx context.Context, store ports.Store, userID string, now time.Time) ([]core.BudgetStatus, error) {
	budgets, err := store.ListBudgets(ctx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	statuses := make([]core.BudgetStatus, 0, len(budgets))
	if len(budgets) == 0 {
		return statuses, nil
	}

	// One query covering the union of all windows.
	var from, to core.Date
	for i, b := range budgets {
		f, t := b.Window(now)
		if i == 0 || f.Before(from.Time) {
			from = f
		}
		if i == 0 || t.After(to.Time) {
			to = t
		}
	}
	txns, err := store.ListTransactions(ctx, ports.TransactionFilter{
		UserID:       userID,
		From:         from,
		To:           to,
		ExpensesOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	for _, b := range budgets {
		statuses = append(statuses, core.EvaluateBudget(b, txns, now))
	}
	return statuses, nil
}

// budgetExceededMessage identifies one budget window, so repeated syncs in
// the same window produce the same text.
func budgetExceededMessage(st core.BudgetStatus) string {
	return fmt.Sprintf("Budget exceeded: %s limit %s for %s to %s.",
		st.Budget.Category, core.FormatAmount(st.Budget.Amount), st.From, st.To)
}
