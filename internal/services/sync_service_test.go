package services

import (
	"context"
	"errors"
	"testing"

	"finlens/internal/core"
	"finlens/internal/ports"
	"finlens/internal/providers/ai"
)

func TestSyncService_LinkAccountsSyncsInline(t *testing.T) {
	f := newSyncFixture(t, nil, nil)
	f.bank.setTransactions(
		chk("t1", "Cafe Luna", 12.5, june(10)),
		chk("t2", "ACME Payroll", -2000, june(1)),
		bankTxnForAccount("t3", "p-unknown", june(2)),
		chk("t4", "Old Cafe", 9, core.NewDate(2025, 4, 1)),
	)
	ctx := context.Background()

	accounts, err := f.svc.LinkAccounts(ctx, "user-1", "public-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(accounts))
	}
	if accounts[0].AccessToken == "" || accounts[0].AccessToken == "access-public-1" {
		t.Fatal("access token must be stored sealed")
	}
	if accounts[0].ProviderItemID != "item-public-1" || !accounts[0].Active {
		t.Fatalf("unexpected account %+v", accounts[0])
	}
	if _, err := f.store.GetUser(ctx, "user-1"); err != nil {
		t.Fatalf("user not created: %v", err)
	}

	txns, _ := f.store.ListTransactions(ctx, ports.TransactionFilter{UserID: "user-1"})
	if len(txns) != 2 {
		t.Fatalf("expected 2 stored transactions in the 30-day window, got %d", len(txns))
	}
	got := map[string]string{}
	for _, tx := range txns {
		got[tx.ProviderTxnID] = tx.Category
		if tx.AccountID != accounts[0].ID {
			t.Errorf("transaction %s mapped to %s", tx.ProviderTxnID, tx.AccountID)
		}
	}
	if got["t1"] != "Food & Dining" || got["t2"] != "Income" {
		t.Fatalf("unexpected categories %v", got)
	}
	if len(f.invalidator.users) == 0 {
		t.Fatal("dashboard was not invalidated")
	}
	for _, token := range f.bank.tokens {
		if token != "access-public-1" {
			t.Fatalf("bank called with %q", token)
		}
	}
}

func TestSyncService_LinkAccountsQueuesWhenBrokerAvailable(t *testing.T) {
	req := &fakeRequester{}
	f := newSyncFixture(t, nil, req)
	f.bank.setTransactions(chk("t1", "Cafe Luna", 12.5, june(10)))

	accounts, err := f.svc.LinkAccounts(context.Background(), "user-1", "public-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(req.msgs) != 1 {
		t.Fatalf("expected one queued request, got %d", len(req.msgs))
	}
	msg := req.msgs[0]
	if msg.AccountID != accounts[0].ID || msg.UserID != "user-1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.StartDate.String() != "2025-05-19" || msg.EndDate.String() != "2025-06-18" {
		t.Fatalf("unexpected window %s..%s", msg.StartDate, msg.EndDate)
	}
	if n, _ := f.store.CountTransactions(context.Background(), ports.TransactionFilter{UserID: "user-1"}); n != 0 {
		t.Fatalf("queued link must not sync inline, stored %d", n)
	}

	if err := f.svc.HandleSyncRequest(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
	if n, _ := f.store.CountTransactions(context.Background(), ports.TransactionFilter{UserID: "user-1"}); n != 1 {
		t.Fatalf("expected worker sync to store 1 transaction, got %d", n)
	}
}

func TestSyncService_QueueFailureFallsBackInline(t *testing.T) {
	req := &fakeRequester{err: errors.New("circuit breaker is open")}
	f := newSyncFixture(t, nil, req)
	f.bank.setTransactions(chk("t1", "Cafe Luna", 12.5, june(10)))
	ctx := context.Background()

	accounts, err := f.svc.LinkAccounts(ctx, "user-1", "public-1")
	if err != nil {
		t.Fatal(err)
	}
	out, err := f.svc.RequestSync(ctx, "user-1", accounts[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if out.Queued || out.Result == nil || out.Result.Skipped != 1 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestSyncService_SyncSkipsKnownTransactions(t *testing.T) {
	f := newSyncFixture(t, nil, nil)
	ctx := context.Background()
	accounts, err := f.svc.LinkAccounts(ctx, "user-1", "public-1")
	if err != nil {
		t.Fatal(err)
	}

	f.bank.setTransactions(chk("t1", "Cafe Luna", 12.5, june(10)), chk("t2", "Amazon", 30, june(11)))
	first, err := f.svc.SyncAccount(ctx, accounts[0].ID, june(1), june(18))
	if err != nil {
		t.Fatal(err)
	}
	if first.Fetched != 2 || first.Inserted != 2 || first.Skipped != 0 {
		t.Fatalf("unexpected first sync %+v", first)
	}

	second, err := f.svc.SyncAccount(ctx, accounts[0].ID, june(1), june(18))
	if err != nil {
		t.Fatal(err)
	}
	if second.Inserted != 0 || second.Skipped != 2 {
		t.Fatalf("unexpected second sync %+v", second)
	}
}

func TestSyncService_SyncRefreshesBalances(t *testing.T) {
	f := newSyncFixture(t, nil, nil)
	ctx := context.Background()
	accounts, _ := f.svc.LinkAccounts(ctx, "user-1", "public-1")

	f.bank.accounts[0].CurrentBalance = 42
	if _, err := f.svc.SyncAccount(ctx, accounts[0].ID, june(1), june(18)); err != nil {
		t.Fatal(err)
	}
	a, _ := f.store.GetAccount(ctx, accounts[0].ID)
	if a.CurrentBalance != 42 {
		t.Fatalf("balance not refreshed: %v", a.CurrentBalance)
	}
}

func TestSyncService_UnusualActivityRaisesAlert(t *testing.T) {
	f := newSyncFixture(t, nil, nil)
	ctx := context.Background()
	accounts, _ := f.svc.LinkAccounts(ctx, "user-1", "public-1")

	f.bank.setTransactions(
		chk("c1", "Cafe Luna", 10, june(1)),
		chk("c2", "Cafe Luna", 10, june(2)),
		chk("c3", "Cafe Luna", 10, june(3)),
		chk("c4", "Cafe Luna", 10, june(4)),
		chk("c5", "Cafe Luna", 10, june(5)),
		chk("big", "Cafe Luna", 100, june(10)),
	)
	res, err := f.svc.SyncAccount(ctx, accounts[0].ID, june(1), june(18))
	if err != nil {
		t.Fatal(err)
	}
	if res.Alerts != 1 {
		t.Fatalf("expected one alert, got %+v", res)
	}

	alerts, _ := f.store.ListAlerts(ctx, "user-1", true)
	if len(alerts) != 1 || alerts[0].Type != core.AlertUnusualActivity {
		t.Fatalf("unexpected alerts %+v", alerts)
	}
	want := "This transaction is significantly higher than your average Food & Dining spending."
	if alerts[0].Message != want {
		t.Fatalf("message = %q", alerts[0].Message)
	}
	big, err := f.store.GetTransaction(ctx, "user-1", alerts[0].TransactionID)
	if err != nil || big.ProviderTxnID != "big" {
		t.Fatalf("alert points at %+v (err=%v)", big, err)
	}

	if len(f.events.events) != 1 {
		t.Fatalf("expected one event, got %d", len(f.events.events))
	}
	e := f.events.events[0]
	if e.AlertID != alerts[0].ID || e.Category != "Food & Dining" || e.Amount != 100 {
		t.Fatalf("unexpected event %+v", e)
	}
}

func TestSyncService_BudgetExceededAlertOncePerWindow(t *testing.T) {
	f := newSyncFixture(t, nil, nil)
	ctx := context.Background()
	accounts, _ := f.svc.LinkAccounts(ctx, "user-1", "public-1")

	budgets := NewBudgetService(f.store)
	if _, err := budgets.Create(ctx, "user-1", BudgetInput{
		Category:  "Food & Dining",
		Amount:    50,
		Period:    core.Monthly,
		StartDate: core.NewDate(2025, 1, 1),
	}); err != nil {
		t.Fatal(err)
	}

	f.bank.setTransactions(chk("c1", "Cafe Luna", 30, june(2)), chk("c2", "Cafe Luna", 30, june(3)))
	res, err := f.svc.SyncAccount(ctx, accounts[0].ID, june(1), june(18))
	if err != nil {
		t.Fatal(err)
	}
	if res.Alerts != 1 {
		t.Fatalf("expected budget alert, got %+v", res)
	}

	f.bank.setTransactions(chk("c1", "Cafe Luna", 30, june(2)), chk("c2", "Cafe Luna", 30, june(3)), chk("c3", "Cafe Luna", 5, june(4)))
	res, err = f.svc.SyncAccount(ctx, accounts[0].ID, june(1), june(18))
	if err != nil {
		t.Fatal(err)
	}
	if res.Inserted != 1 || res.Alerts != 0 {
		t.Fatalf("expected no duplicate alert, got %+v", res)
	}

	alerts, _ := f.store.ListAlerts(ctx, "user-1", false)
	if len(alerts) != 1 {
		t.Fatalf("expected one alert, got %d", len(alerts))
	}
	want := "Budget exceeded: Food & Dining limit 50.00 for 2025-06-01 to 2025-06-30."
	if alerts[0].Type != core.AlertBudgetExceeded || alerts[0].Message != want {
		t.Fatalf("unexpected alert %+v", alerts[0])
	}
}

func TestSyncService_CategorizationFailureFallsBack(t *testing.T) {
	f := newSyncFixture(t, failingAI{ai.NewMock()}, nil)
	ctx := context.Background()
	accounts, _ := f.svc.LinkAccounts(ctx, "user-1", "public-1")

	f.bank.setTransactions(chk("c1", "Cafe Luna", 30, june(2)))
	if _, err := f.svc.SyncAccount(ctx, accounts[0].ID, june(1), june(18)); err != nil {
		t.Fatal(err)
	}
	txns, _ := f.store.ListTransactions(ctx, ports.TransactionFilter{UserID: "user-1"})
	if len(txns) != 1 || txns[0].Category != core.OtherCategory || txns[0].Subcategory != ai.FallbackSubcategory {
		t.Fatalf("unexpected transactions %+v", txns)
	}
}

func TestSyncService_Errors(t *testing.T) {
	f := newSyncFixture(t, nil, nil)
	ctx := context.Background()

	if _, err := f.svc.LinkAccounts(ctx, "user-1", " "); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.svc.SyncAccount(ctx, "missing", june(1), june(2)); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	accounts, _ := f.svc.LinkAccounts(ctx, "user-1", "public-1")
	if _, err := f.svc.SyncAccount(ctx, accounts[0].ID, june(5), june(1)); !errors.Is(err, core.ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
	if _, err := f.svc.RequestSync(ctx, "user-2", accounts[0].ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("foreign account must look missing, got %v", err)
	}

	boom := errors.New("aggregator down")
	f.bank.txnErr = boom
	if _, err := f.svc.SyncAccount(ctx, accounts[0].ID, june(1), june(2)); !errors.Is(err, boom) {
		t.Fatalf("expected aggregator error, got %v", err)
	}
}

func TestSyncService_SyncAllActiveOncePerItem(t *testing.T) {
	f := newSyncFixture(t, nil, nil)
	ctx := context.Background()
	if _, err := f.svc.LinkAccounts(ctx, "user-1", "public-1"); err != nil {
		t.Fatal(err)
	}
	f.bank.setTransactions(chk("c1", "Cafe Luna", 30, june(2)))
	f.bank.tokens = nil

	if err := f.svc.SyncAllActive(ctx); err != nil {
		t.Fatal(err)
	}
	// one balance refresh for the single linked item
	if len(f.bank.tokens) != 1 {
		t.Fatalf("expected one item sync, got %d", len(f.bank.tokens))
	}
	if n, _ := f.store.CountTransactions(ctx, ports.TransactionFilter{UserID: "user-1"}); n != 1 {
		t.Fatalf("expected 1 stored transaction, got %d", n)
	}
}
