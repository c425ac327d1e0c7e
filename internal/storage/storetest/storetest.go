// Package storetest holds behaviour tests shared by every ports.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"finlens/internal/core"
	"finlens/internal/ports"
)

// Run exercises the store returned by open. Each subtest gets a fresh store.
func Run(t *testing.T, open func(t *testing.T) ports.Store) {
	t.Run("users", func(t *testing.T) { testUsers(t, open(t)) })
	t.Run("accounts", func(t *testing.T) { testAccounts(t, open(t)) })
	t.Run("transactions", func(t *testing.T) { testTransactions(t, open(t)) })
	t.Run("budgets", func(t *testing.T) { testBudgets(t, open(t)) })
	t.Run("alerts", func(t *testing.T) { testAlerts(t, open(t)) })
}

func seedAccount(t *testing.T, s ports.Store, userID, providerID string) core.Account {
	t.Helper()
	ctx := context.Background()
	if _, err := s.UpsertUser(ctx, core.User{ID: userID, Email: userID + "@example.com"}); err != nil {
		t.Fatalf("upsert user: %v", err)
	}
	a, err := s.UpsertAccount(ctx, core.Account{
		UserID:            userID,
		ProviderAccountID: providerID,
		ProviderItemID:    "item-1",
		Name:              "Checking",
		Type:              "depository",
		Currency:          "USD",
		Active:            true,
		AccessToken:       "sealed",
	})
	if err != nil {
		t.Fatalf("upsert account: %v", err)
	}
	return a
}

func testUsers(t *testing.T, s ports.Store) {
	ctx := context.Background()

	if _, err := s.GetUser(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	u, err := s.UpsertUser(ctx, core.User{ID: "u1", Email: "a@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if u.CreatedAt.IsZero() {
		t.Fatal("expected created at to be set")
	}

	if _, err := s.UpsertUser(ctx, core.User{ID: "u1", Email: "b@example.com", FullName: "Bea"}); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Email != "b@example.com" || got.FullName != "Bea" {
		t.Fatalf("user not updated: %+v", got)
	}
}

func testAccounts(t *testing.T, s ports.Store) {
	ctx := context.Background()
	a := seedAccount(t, s, "u1", "plaid-acc-1")
	if a.ID == "" {
		t.Fatal("expected generated id")
	}

	relinked := a
	relinked.ID = ""
	relinked.Name = "Renamed"
	relinked.CurrentBalance = 99.5
	again, err := s.UpsertAccount(ctx, relinked)
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != a.ID || again.Name != "Renamed" {
		t.Fatalf("expected upsert to keep id and refresh fields, got %+v", again)
	}

	if err := s.UpdateBalances(ctx, a.ID, 1200.25, 1100); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentBalance != 1200.25 || got.AvailableBalance != 1100 || !got.Active || got.AccessToken != "sealed" {
		t.Fatalf("unexpected account %+v", got)
	}

	if err := s.UpdateBalances(ctx, "missing", 1, 1); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	other := seedAccount(t, s, "u2", "plaid-acc-2")
	mine, err := s.ListAccounts(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 1 || mine[0].ID != a.ID {
		t.Fatalf("expected only u1 account, got %+v", mine)
	}

	active, err := s.ListActiveAccounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 {
		t.Fatalf("expected 2 active accounts, got %d", len(active))
	}
	_ = other
}

func testTransactions(t *testing.T, s ports.Store) {
	ctx := context.Background()
	acc := seedAccount(t, s, "u1", "p-1")
	foreign := seedAccount(t, s, "u2", "p-2")

	txns := []core.Transaction{
		{AccountID: acc.ID, ProviderTxnID: "t1", Name: "Starbucks", Amount: 5.5, Category: "Food & Dining", Date: core.NewDate(2025, 6, 1), ProviderCategory: []string{"Food and Drink", "Coffee"}},
		{AccountID: acc.ID, ProviderTxnID: "t2", Name: "Salary", Amount: -2500, Category: "Income", Date: core.NewDate(2025, 6, 3)},
		{AccountID: acc.ID, ProviderTxnID: "t3", Name: "Amazon", Amount: 80, Category: "Shopping", Date: core.NewDate(2025, 6, 3), Pending: true},
		{AccountID: acc.ID, ProviderTxnID: "t4", Name: "Uber", Amount: 20, Date: core.NewDate(2025, 5, 20)},
		{AccountID: foreign.ID, ProviderTxnID: "t5", Name: "Other user", Amount: 1, Date: core.NewDate(2025, 6, 2)},
	}
	for _, tx := range txns {
		inserted, err := s.InsertTransaction(ctx, tx)
		if err != nil || !inserted {
			t.Fatalf("insert %s: inserted=%v err=%v", tx.ProviderTxnID, inserted, err)
		}
	}

	dup, err := s.InsertTransaction(ctx, core.Transaction{AccountID: acc.ID, ProviderTxnID: "t1", Name: "dup", Amount: 1, Date: core.NewDate(2025, 6, 1)})
	if err != nil {
		t.Fatal(err)
	}
	if dup {
		t.Fatal("duplicate provider id must not be inserted")
	}

	exists, err := s.TransactionExists(ctx, "t3")
	if err != nil || !exists {
		t.Fatalf("expected t3 to exist (err=%v)", err)
	}

	all, err := s.ListTransactions(ctx, ports.TransactionFilter{UserID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	var order []string
	for _, tx := range all {
		order = append(order, tx.ProviderTxnID)
	}
	if want := []string{"t2", "t3", "t1", "t4"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("expected order %v, got %v", want, order)
	}

	first := all[2]
	if !reflect.DeepEqual(first.ProviderCategory, []string{"Food and Drink", "Coffee"}) {
		t.Fatalf("provider category not preserved: %v", first.ProviderCategory)
	}
	if !all[1].Pending {
		t.Fatal("pending flag not preserved")
	}

	got, err := s.GetTransaction(ctx, "u1", first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Starbucks" || got.Date.String() != "2025-06-01" {
		t.Fatalf("unexpected transaction %+v", got)
	}
	if _, err := s.GetTransaction(ctx, "u2", first.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another user, got %v", err)
	}

	cases := []struct {
		name   string
		filter ports.TransactionFilter
		want   []string
	}{
		{"expenses only", ports.TransactionFilter{UserID: "u1", ExpensesOnly: true}, []string{"t3", "t1", "t4"}},
		{"category", ports.TransactionFilter{UserID: "u1", Category: "Shopping"}, []string{"t3"}},
		{"date range", ports.TransactionFilter{UserID: "u1", From: core.NewDate(2025, 6, 1), To: core.NewDate(2025, 6, 2)}, []string{"t1"}},
		{"account", ports.TransactionFilter{AccountID: foreign.ID}, []string{"t5"}},
		{"limit offset", ports.TransactionFilter{UserID: "u1", Limit: 2, Offset: 1}, []string{"t3", "t1"}},
		{"offset only", ports.TransactionFilter{UserID: "u1", Offset: 3}, []string{"t4"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.ListTransactions(ctx, tc.filter)
			if err != nil {
				t.Fatal(err)
			}
			ids := []string{}
			for _, tx := range got {
				ids = append(ids, tx.ProviderTxnID)
			}
			if !reflect.DeepEqual(ids, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, ids)
			}
		})
	}

	n, err := s.CountTransactions(ctx, ports.TransactionFilter{UserID: "u1", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("count should ignore paging, got %d", n)
	}
}

func testBudgets(t *testing.T, s ports.Store) {
	ctx := context.Background()
	seedAccount(t, s, "u1", "p-1")
	seedAccount(t, s, "u2", "p-2")

	b, err := s.CreateBudget(ctx, core.Budget{
		UserID:    "u1",
		Category:  "Food & Dining",
		Amount:    300,
		Period:    core.Monthly,
		StartDate: core.NewDate(2025, 1, 1),
		Active:    true,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	inactive, err := s.CreateBudget(ctx, core.Budget{
		UserID:    "u1",
		Category:  "Travel",
		Amount:    1000,
		Period:    core.Yearly,
		StartDate: core.NewDate(2025, 1, 1),
		EndDate:   core.NewDate(2025, 12, 31),
		CreatedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}

	all, err := s.ListBudgets(ctx, "u1", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID != inactive.ID {
		t.Fatalf("expected newest first, got %+v", all)
	}
	if all[0].EndDate.String() != "2025-12-31" || !all[1].EndDate.IsZero() {
		t.Fatalf("end dates not preserved: %+v", all)
	}

	active, err := s.ListBudgets(ctx, "u1", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 1 || active[0].ID != b.ID {
		t.Fatalf("expected only the active budget, got %+v", active)
	}

	b.Amount = 350
	if err := s.UpdateBudget(ctx, b); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetBudget(ctx, "u1", b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Amount != 350 || got.Period != core.Monthly {
		t.Fatalf("unexpected budget %+v", got)
	}

	if _, err := s.GetBudget(ctx, "u2", b.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another user, got %v", err)
	}
	stolen := b
	stolen.UserID = "u2"
	if err := s.UpdateBudget(ctx, stolen); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound when updating another user's budget, got %v", err)
	}
	if err := s.DeleteBudget(ctx, "u2", b.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound when deleting another user's budget, got %v", err)
	}
	if err := s.DeleteBudget(ctx, "u1", b.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetBudget(ctx, "u1", b.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected deleted budget to be gone, got %v", err)
	}
}

func testAlerts(t *testing.T, s ports.Store) {
	ctx := context.Background()
	seedAccount(t, s, "u1", "p-1")

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	first, err := s.CreateAlert(ctx, core.Alert{UserID: "u1", TransactionID: "tx-1", Type: core.AlertUnusualActivity, Message: "big", CreatedAt: base})
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.CreateAlert(ctx, core.Alert{UserID: "u1", Type: core.AlertBudgetExceeded, Message: "over", CreatedAt: base.Add(time.Minute)})
	if err != nil {
		t.Fatal(err)
	}

	list, err := s.ListAlerts(ctx, "u1", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].TransactionID != "tx-1" {
		t.Fatalf("unexpected alerts %+v", list)
	}

	exists, err := s.AlertExists(ctx, "u1", core.AlertBudgetExceeded, "over")
	if err != nil || !exists {
		t.Fatalf("expected alert to exist (err=%v)", err)
	}
	exists, err = s.AlertExists(ctx, "u1", core.AlertUnusualActivity, "over")
	if err != nil || exists {
		t.Fatalf("type must be part of the match (err=%v)", err)
	}

	if err := s.MarkAlertRead(ctx, "u1", first.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkAlertRead(ctx, "u2", second.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another user, got %v", err)
	}

	unread, err := s.ListAlerts(ctx, "u1", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(unread) != 1 || unread[0].ID != second.ID {
		t.Fatalf("expected one unread alert, got %+v", unread)
	}

	n, err := s.MarkAllAlertsRead(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 alert marked, got %d", n)
	}
	unread, _ = s.ListAlerts(ctx, "u1", true)
	if len(unread) != 0 {
		t.Fatalf("expected no unread alerts, got %+v", unread)
	}
}
