package core

import "time"

// DashboardSummary is the 30-day overview shown on the dashboard.
type DashboardSummary struct {
	TotalBalance  float64         `json:"totalBalance"`
	CashFlow                      // embedded totals
	TopCategories []CategoryTotal `json:"topCategories"`
	AccountCount  int             `json:"accountCount"`
	ActiveBudgets int             `json:"activeBudgets"`
}

// BudgetStatus compares a budget against spending inside its current window.
type BudgetStatus struct {
	Budget    Budget  `json:"budget"`
	From      Date    `json:"from"`
	To        Date    `json:"to"`
	Spent     float64 `json:"spent"`
	Remaining float64 `json:"remaining"`
	Exceeded  bool    `json:"exceeded"`
}

// EvaluateBudget sums the budget category's expenses that fall inside the
// budget window for now.
func EvaluateBudget(b Budget, txns []Transaction, now time.Time) BudgetStatus {
	from, to := b.Window(now)

	var inWindow []Transaction
	for _, t := range txns {
		if t.Date.Before(from.Time) || t.Date.After(to.Time) {
			continue
		}
		inWindow = append(inWindow, t)
	}

	var spent float64
	for _, ct := range AggregateByCategory(inWindow, 0) {
		if ct.Category == b.Category {
			spent = ct.Amount
			break
		}
	}

	return BudgetStatus{
		Budget:    b,
		From:      from,
		To:        to,
		Spent:     spent,
		Remaining: b.Amount - spent,
		Exceeded:  spent > b.Amount,
	}
}
