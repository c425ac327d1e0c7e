package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"finlens/internal/core"
	"finlens/internal/log"
	"finlens/internal/providers/ai"
	"finlens/internal/storage/memory"
)

type seeded struct {
	store   *memory.Store
	account core.Account
}

func seedStore(t *testing.T) seeded {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	if _, err := store.UpsertUser(ctx, core.User{ID: "user-1"}); err != nil {
		t.Fatal(err)
	}
	a, err := store.UpsertAccount(ctx, core.Account{UserID: "user-1", ProviderAccountID: "p-1", Name: "Checking", CurrentBalance: 100, Active: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.UpsertAccount(ctx, core.Account{UserID: "user-1", ProviderAccountID: "p-2", Name: "Savings", CurrentBalance: 500, Active: true}); err != nil {
		t.Fatal(err)
	}
	return seeded{store: store, account: a}
}

func (s seeded) add(t *testing.T, providerID, category string, amount float64, date core.Date) core.Transaction {
	t.Helper()
	tx := core.Transaction{
		ID:            "id-" + providerID,
		AccountID:     s.account.ID,
		ProviderTxnID: providerID,
		Name:          providerID,
		Category:      category,
		Amount:        amount,
		Date:          date,
	}
	if _, err := s.store.InsertTransaction(context.Background(), tx); err != nil {
		t.Fatal(err)
	}
	return tx
}

func newAnalytics(s seeded) *AnalyticsService {
	return NewAnalyticsService(s.store, ai.NewMock(), log.New(log.DefaultConfig()))
}

func TestAnalyticsService_Dashboard(t *testing.T) {
	s := seedStore(t)
	s.add(t, "food", "Food & Dining", 40, june(10))
	s.add(t, "shop", "Shopping", 60, june(12))
	s.add(t, "pay", "Income", -1000, june(1))
	s.add(t, "old", "Food & Dining", 500, core.NewDate(2025, 4, 1))
	svc := newAnalytics(s)
	ctx := context.Background()

	got, err := svc.Dashboard(ctx, "user-1", fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	want := core.DashboardSummary{
		TotalBalance:  600,
		CashFlow:      core.CashFlow{Spent: 100, Income: 1000, Net: 900},
		TopCategories: []core.CategoryTotal{{Category: "Shopping", Amount: 60}, {Category: "Food & Dining", Amount: 40}},
		AccountCount:  2,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Dashboard() = %+v, want %+v", got, want)
	}

	s.add(t, "late", "Travel", 300, june(15))
	cached, _ := svc.Dashboard(ctx, "user-1", fixedNow)
	if cached.Spent != 100 {
		t.Fatalf("expected cached dashboard, got spent %v", cached.Spent)
	}

	svc.InvalidateDashboard("user-1")
	fresh, _ := svc.Dashboard(ctx, "user-1", fixedNow)
	if fresh.Spent != 400 || fresh.TopCategories[0].Category != "Travel" {
		t.Fatalf("expected refreshed dashboard, got %+v", fresh)
	}
}

func TestAnalyticsService_SpendingAndPredictions(t *testing.T) {
	s := seedStore(t)
	s.add(t, "a", "Shopping", 30, june(1))
	s.add(t, "b", "Shopping", 60, june(5))
	s.add(t, "c", "", 4, june(6))
	s.add(t, "d", "Income", -1500, june(7))
	s.add(t, "e", "Travel", 900, core.NewDate(2025, 1, 5))
	svc := newAnalytics(s)
	ctx := context.Background()

	spending, err := svc.SpendingByCategory(ctx, "user-1", june(1), june(30))
	if err != nil {
		t.Fatal(err)
	}
	wantSpending := []core.CategoryTotal{{Category: "Shopping", Amount: 90}, {Category: "Other", Amount: 4}}
	if !reflect.DeepEqual(spending, wantSpending) {
		t.Fatalf("SpendingByCategory() = %v", spending)
	}

	all, _ := svc.SpendingByCategory(ctx, "user-1", core.Date{}, core.Date{})
	if len(all) != 3 || all[0].Category != "Travel" {
		t.Fatalf("open range = %v", all)
	}

	if _, err := svc.SpendingByCategory(ctx, "user-1", june(30), june(1)); !errors.Is(err, core.ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}

	predictions, err := svc.Predictions(ctx, "user-1", fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	if len(predictions) != 2 {
		t.Fatalf("Predictions() = %v", predictions)
	}
	for _, p := range predictions {
		if p.Category == "Shopping" && p.Predicted != 45 {
			t.Fatalf("Shopping prediction = %v, want 45", p.Predicted)
		}
	}

	empty, err := svc.Predictions(ctx, "nobody", fixedNow)
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil predictions, got %v (err=%v)", empty, err)
	}
}

func TestAnalyticsService_CheckTransaction(t *testing.T) {
	s := seedStore(t)
	for i := 1; i <= 5; i++ {
		s.add(t, fmt.Sprintf("h%d", i), "Food & Dining", 10, june(i))
	}
	s.add(t, "ancient", "Food & Dining", 10000, core.NewDate(2024, 1, 1))
	big := s.add(t, "big", "Food & Dining", 80, june(15))
	small := s.add(t, "small", "Food & Dining", 10, june(16))
	svc := newAnalytics(s)
	ctx := context.Background()

	v, err := svc.CheckTransaction(ctx, "user-1", big.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsUnusual {
		t.Fatal("expected unusual verdict")
	}

	// the 80 is now a peer and lifts the threshold
	v, _ = svc.CheckTransaction(ctx, "user-1", small.ID)
	if v.IsUnusual || v.Reason != "" {
		t.Fatalf("unexpected verdict %+v", v)
	}

	if _, err := svc.CheckTransaction(ctx, "user-2", big.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAnalyticsService_ProviderBackedViews(t *testing.T) {
	s := seedStore(t)
	s.add(t, "food", "Food & Dining", 40, june(10))
	s.add(t, "pay", "Income", -1000, june(1))
	svc := newAnalytics(s)
	ctx := context.Background()

	insights, err := svc.Insights(ctx, "user-1", fixedNow)
	if err != nil || len(insights) == 0 {
		t.Fatalf("Insights() = %v, %v", insights, err)
	}
	suggestions, err := svc.SavingSuggestions(ctx, "user-1", fixedNow)
	if err != nil || len(suggestions) == 0 {
		t.Fatalf("SavingSuggestions() = %v, %v", suggestions, err)
	}
}

func TestAnomalyPeers(t *testing.T) {
	cand := core.Transaction{ID: "x", Date: june(10)}
	history := []core.Transaction{
		{ID: "x", Date: june(10)},
		{ID: "same-day", Date: june(10)},
		{ID: "later", Date: june(11)},
		{ID: "edge", Date: core.DateOf(june(10).AddDate(0, 0, -90))},
		{ID: "too-old", Date: core.DateOf(june(10).AddDate(0, 0, -91))},
	}
	var ids []string
	for _, p := range anomalyPeers(cand, history) {
		ids = append(ids, p.ID)
	}
	if !reflect.DeepEqual(ids, []string{"same-day", "edge"}) {
		t.Fatalf("anomalyPeers() = %v", ids)
	}
}
