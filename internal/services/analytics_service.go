package services

import (
	"context"
	"fmt"
	"time"

	"finlens/internal/cache"
	"finlens/internal/core"
	"finlens/internal/log"
	"finlens/internal/ports"
	"finlens/internal/providers/ai"
)

const (
	dashboardWindowDays  = 30
	dashboardTopK        = 5
	predictionWindowDays = 90
	anomalyHistoryDays   = 90

	DashboardCacheTTL  = time.Minute
	dashboardCacheSize = 1024
)

// AnalyticsService computes spending views over a user's stored
// transactions. Dashboards are cached per user until the next sync.
type AnalyticsService struct {
	store      ports.Store
	ai         ai.Provider
	dashboards *cache.LRUCache[core.DashboardSummary]
	logger     *log.Logger
}

func NewAnalyticsService(store ports.Store, provider ai.Provider, logger *log.Logger) *AnalyticsService {
	return &AnalyticsService{
		store:      store,
		ai:         provider,
		dashboards: cache.NewLRUCache[core.DashboardSummary](dashboardCacheSize, DashboardCacheTTL),
		logger:     logger.WithComponent(log.ComponentAnalytics),
	}
}

// DashboardCache exposes the cache so it can be registered for cleanup.
func (s *AnalyticsService) DashboardCache() *cache.LRUCache[core.DashboardSummary] {
	return s.dashboards
}

// InvalidateDashboard drops the cached dashboard for userID.
func (s *AnalyticsService) InvalidateDashboard(userID string) {
	s.dashboards.Delete(userID)
}

func daysBefore(now time.Time, days int) core.Date {
	return core.DateOf(now.AddDate(0, 0, -days))
}

func (s *AnalyticsService) recent(ctx context.Context, userID string, now time.Time, days int, expensesOnly bool) ([]core.Transaction, error) {
	txns, err := s.store.ListTransactions(ctx, ports.TransactionFilter{
		UserID:       userID,
		From:         daysBefore(now, days),
		ExpensesOnly: expensesOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txns, nil
}

// Dashboard summarizes the last 30 days.
func (s *AnalyticsService) Dashboard(ctx context.Context, userID string, now time.Time) (core.DashboardSummary, error) {
	return s.dashboards.GetOrLoad(userID, func() (core.DashboardSummary, error) {
		return s.buildDashboard(ctx, userID, now)
	})
}

func (s *AnalyticsService) buildDashboard(ctx context.Context, userID string, now time.Time) (core.DashboardSummary, error) {
	accounts, err := s.store.ListAccounts(ctx, userID)
	if err != nil {
		return core.DashboardSummary{}, fmt.Errorf("list accounts: %w", err)
	}
	budgets, err := s.store.ListBudgets(ctx, userID, true)
	if err != nil {
		return core.DashboardSummary{}, fmt.Errorf("list budgets: %w", err)
	}
	txns, err := s.recent(ctx, userID, now, dashboardWindowDays, false)
	if err != nil {
		return core.DashboardSummary{}, err
	}

	var balance float64
	for _, a := range accounts {
		balance += a.CurrentBalance
	}

	return core.DashboardSummary{
		TotalBalance:  balance,
		CashFlow:      core.SummarizeCashFlow(txns),
		TopCategories: core.AggregateByCategory(txns, dashboardTopK),
		AccountCount:  len(accounts),
		ActiveBudgets: len(budgets),
	}, nil
}

// SpendingByCategory breaks down expenses between from and to. Zero dates
// leave that side open.
func (s *AnalyticsService) SpendingByCategory(ctx context.Context, userID string, from, to core.Date) ([]core.CategoryTotal, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from.Time) {
		return nil, core.ErrInvalidDateRange
	}
	txns, err := s.store.ListTransactions(ctx, ports.TransactionFilter{
		UserID:       userID,
		From:         from,
		To:           to,
		ExpensesOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return core.AggregateByCategory(txns, 0), nil
}

// Predictions estimates next-period spend per category from the last 90
// days of expenses.
func (s *AnalyticsService) Predictions(ctx context.Context, userID string, now time.Time) ([]core.CategoryForecast, error) {
	txns, err := s.recent(ctx, userID, now, predictionWindowDays, true)
	if err != nil {
		return nil, err
	}
	return core.EstimateForward(txns), nil
}

func (s *AnalyticsService) Insights(ctx context.Context, userID string, now time.Time) ([]string, error) {
	txns, err := s.recent(ctx, userID, now, dashboardWindowDays, false)
	if err != nil {
		return nil, err
	}
	budgets, err := s.store.ListBudgets(ctx, userID, false)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}

	insights, err := s.ai.Insights(ctx, ai.InsightsInput{Transactions: txns, Budgets: budgets})
	if err != nil {
		return nil, fmt.Errorf("generate insights: %w", err)
	}
	return insights, nil
}

func (s *AnalyticsService) SavingSuggestions(ctx context.Context, userID string, now time.Time) ([]string, error) {
	txns, err := s.recent(ctx, userID, now, dashboardWindowDays, false)
	if err != nil {
		return nil, err
	}
	cf := core.SummarizeCashFlow(txns)

	suggestions, err := s.ai.SavingSuggestions(ctx, ai.SavingsInput{Income: cf.Income, Expenses: cf.Spent})
	if err != nil {
		return nil, fmt.Errorf("generate saving suggestions: %w", err)
	}
	return suggestions, nil
}

// CheckTransaction compares a stored transaction with the user's other
// transactions from the 90 days up to its date.
func (s *AnalyticsService) CheckTransaction(ctx context.Context, userID, txnID string) (core.AnomalyVerdict, error) {
	t, err := s.store.GetTransaction(ctx, userID, txnID)
	if err != nil {
		return core.AnomalyVerdict{}, fmt.Errorf("get transaction %s: %w", txnID, err)
	}
	history, err := s.store.ListTransactions(ctx, ports.TransactionFilter{
		UserID: userID,
		From:   core.DateOf(t.Date.AddDate(0, 0, -anomalyHistoryDays)),
		To:     t.Date,
	})
	if err != nil {
		return core.AnomalyVerdict{}, fmt.Errorf("list history: %w", err)
	}
	return core.DetectAnomaly(t, anomalyPeers(t, history)), nil
}

// anomalyPeers keeps the history inside the 90 days up to t, excluding t.
func anomalyPeers(t core.Transaction, history []core.Transaction) []core.Transaction {
	from := t.Date.AddDate(0, 0, -anomalyHistoryDays)
	peers := make([]core.Transaction, 0, len(history))
	for _, h := range history {
		if h.ID == t.ID || h.Date.Before(from) || h.Date.After(t.Date.Time) {
			continue
		}
		peers = append(peers, h)
	}
	return peers
}

func (s *AnalyticsService) BudgetStatuses(ctx context.Context, userID string, now time.Time) ([]core.BudgetStatus, error) {
	return budgetStatuses(ctx, s.store, userID, now)
}
