package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"finlens/internal/core"
	"finlens/internal/ports"
)

func TestAccountService_ListAndGet(t *testing.T) {
	s := seedStore(t)
	for i := 1; i <= 12; i++ {
		s.add(t, fmt.Sprintf("t%02d", i), "Shopping", float64(i), june(i))
	}
	ctx := context.Background()
	if _, err := s.store.UpsertAccount(ctx, core.Account{UserID: "user-1", ProviderAccountID: "p-closed", Active: false}); err != nil {
		t.Fatal(err)
	}
	svc := NewAccountService(s.store)

	views, err := svc.List(ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 active accounts, got %d", len(views))
	}
	for _, v := range views {
		if v.ID == s.account.ID && (len(v.Transactions) != 10 || v.Transactions[0].ProviderTxnID != "t12") {
			t.Fatalf("expected 10 newest transactions, got %d", len(v.Transactions))
		}
	}

	detail, err := svc.Get(ctx, "user-1", s.account.ID)
	if err != nil || len(detail.Transactions) != 12 {
		t.Fatalf("Get() = %d transactions, err %v", len(detail.Transactions), err)
	}
	if _, err := svc.Get(ctx, "user-2", s.account.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccountService_Transactions(t *testing.T) {
	s := seedStore(t)
	for i := 1; i <= 5; i++ {
		s.add(t, fmt.Sprintf("t%d", i), "Shopping", 10, june(i))
	}
	s.add(t, "food", "Food & Dining", 10, june(9))
	svc := NewAccountService(s.store)
	ctx := context.Background()

	page, err := svc.Transactions(ctx, ports.TransactionFilter{UserID: "user-1", Category: "Shopping", Limit: 2, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if page.Total != 5 || len(page.Transactions) != 2 || page.Transactions[0].ProviderTxnID != "t4" {
		t.Fatalf("unexpected page %+v", page)
	}

	all, _ := svc.Transactions(ctx, ports.TransactionFilter{UserID: "user-1"})
	if all.Total != 6 || len(all.Transactions) != 6 {
		t.Fatalf("default page = %+v", all)
	}

	cases := []ports.TransactionFilter{
		{},
		{UserID: "user-1", Limit: -1},
		{UserID: "user-1", From: june(5), To: june(1)},
	}
	for _, f := range cases {
		if _, err := svc.Transactions(ctx, f); err == nil {
			t.Errorf("Transactions(%+v) should fail", f)
		}
	}

	if _, err := svc.Transaction(ctx, "user-1", "id-food"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Transaction(ctx, "user-2", "id-food"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserService(t *testing.T) {
	s := seedStore(t)
	svc := NewUserService(s.store)
	ctx := context.Background()

	u, err := svc.Sync(ctx, "user-9", "nine@example.com", "Nine")
	if err != nil || u.Email != "nine@example.com" {
		t.Fatalf("Sync() = %+v, %v", u, err)
	}
	again, _ := svc.Sync(ctx, "user-9", "other@example.com", "")
	if again.Email != "nine@example.com" {
		t.Fatal("existing user must not be overwritten")
	}
	if _, err := svc.Sync(ctx, "", "", ""); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	p, err := svc.Profile(ctx, "user-1")
	if err != nil || len(p.Accounts) != 2 {
		t.Fatalf("Profile() = %+v, %v", p, err)
	}
	if _, err := svc.Profile(ctx, "ghost"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAlertService(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()
	for i := 0; i < 60; i++ {
		if _, err := s.store.CreateAlert(ctx, core.Alert{UserID: "user-1", Type: core.AlertUnusualActivity, Message: fmt.Sprint(i)}); err != nil {
			t.Fatal(err)
		}
	}
	svc := NewAlertService(s.store)

	alerts, err := svc.List(ctx, "user-1", false)
	if err != nil || len(alerts) != 50 {
		t.Fatalf("List() = %d alerts, err %v", len(alerts), err)
	}
	if err := svc.MarkRead(ctx, "user-1", alerts[0].ID); err != nil {
		t.Fatal(err)
	}
	if err := svc.MarkRead(ctx, "user-2", alerts[1].ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	n, err := svc.MarkAllRead(ctx, "user-1")
	if err != nil || n != 59 {
		t.Fatalf("MarkAllRead() = %d, %v", n, err)
	}
	unread, _ := svc.List(ctx, "user-1", true)
	if len(unread) != 0 {
		t.Fatalf("expected no unread alerts, got %d", len(unread))
	}
}
