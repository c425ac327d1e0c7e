package bank

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finlens/internal/core"
	"finlens/internal/httpclient"
)

func newTestPlaid(t *testing.T, handler http.HandlerFunc) *Plaid {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := NewPlaid(PlaidConfig{ClientID: "id", Secret: "secret", BaseURL: srv.URL},
		httpclient.New(httpclient.Options{RequestsPerSec: 100, MaxRetryTimeout: time.Second}))
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNewPlaidUnknownEnvironment(t *testing.T) {
	if _, err := NewPlaid(PlaidConfig{Env: "staging"}, nil); err == nil {
		t.Fatal("expected error for unknown environment")
	}
	p, err := NewPlaid(PlaidConfig{Env: "development"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if p.baseURL != "https://development.plaid.com" {
		t.Fatalf("unexpected base url %s", p.baseURL)
	}
}

func TestPlaidExchangeAndAccounts(t *testing.T) {
	p := newTestPlaid(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("PLAID-CLIENT-ID") != "id" || r.Header.Get("PLAID-SECRET") != "secret" {
			t.Errorf("missing credentials headers")
		}
		switch r.URL.Path {
		case "/item/public_token/exchange":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["public_token"] != "public-1" {
				t.Errorf("unexpected public token %q", body["public_token"])
			}
			_, _ = w.Write([]byte(`{"access_token":"access-1","item_id":"item-1"}`))
		case "/accounts/get":
			_, _ = w.Write([]byte(`{"accounts":[
				{"account_id":"a1","name":"Checking","official_name":null,"type":"depository","subtype":"checking","mask":"0000",
				 "balances":{"current":100.5,"available":null,"iso_currency_code":null}}]}`))
		default:
			http.NotFound(w, r)
		}
	})

	access, item, err := p.ExchangePublicToken(context.Background(), "public-1")
	if err != nil {
		t.Fatal(err)
	}
	if access != "access-1" || item != "item-1" {
		t.Fatalf("unexpected tokens %s %s", access, item)
	}

	accounts, err := p.Accounts(context.Background(), access)
	if err != nil {
		t.Fatal(err)
	}
	want := Account{AccountID: "a1", Name: "Checking", Type: "depository", Subtype: "checking", Mask: "0000",
		CurrentBalance: 100.5, Currency: "USD"}
	if len(accounts) != 1 || accounts[0] != want {
		t.Fatalf("unexpected accounts %+v", accounts)
	}
}

func TestPlaidTransactionsPaginates(t *testing.T) {
	calls := 0
	p := newTestPlaid(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body struct {
			StartDate string         `json:"start_date"`
			EndDate   string         `json:"end_date"`
			Options   map[string]int `json:"options"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.StartDate != "2025-06-01" || body.EndDate != "2025-06-30" {
			t.Errorf("unexpected window %s..%s", body.StartDate, body.EndDate)
		}
		if body.Options["offset"] == 0 {
			_, _ = w.Write([]byte(`{"total_transactions":2,"transactions":[
				{"transaction_id":"t1","account_id":"a1","amount":12.5,"date":"2025-06-20","name":"Cafe","category":["Food and Drink"]}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"total_transactions":2,"transactions":[
			{"transaction_id":"t2","account_id":"a1","amount":-1000,"date":"2025-06-15","name":"Payroll","merchant_name":"ACME","pending":true}]}`))
	})

	txns, err := p.Transactions(context.Background(), "access", core.NewDate(2025, 6, 1), core.NewDate(2025, 6, 30))
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 pages, got %d", calls)
	}
	if len(txns) != 2 || txns[0].TransactionID != "t1" || txns[1].MerchantName != "ACME" || !txns[1].Pending {
		t.Fatalf("unexpected transactions %+v", txns)
	}
	if txns[0].Date.String() != "2025-06-20" {
		t.Fatalf("unexpected date %s", txns[0].Date)
	}
}

func TestPlaidAPIError(t *testing.T) {
	p := newTestPlaid(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_type":"INVALID_INPUT","error_code":"INVALID_PUBLIC_TOKEN","error_message":"bad token"}`))
	})

	_, _, err := p.ExchangePublicToken(context.Background(), "nope")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.ErrorCode != "INVALID_PUBLIC_TOKEN" || apiErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected error %+v", apiErr)
	}
}

func TestMockAccountsAreScopedToItem(t *testing.T) {
	m := NewMock(1)
	ctx := context.Background()

	a, _ := m.Accounts(ctx, "access-sandbox-1")
	b, _ := m.Accounts(ctx, "access-sandbox-2")
	if len(a) != 3 || len(b) != 3 {
		t.Fatalf("expected three accounts each")
	}
	if a[0].AccountID == b[0].AccountID {
		t.Fatal("account ids collide across items")
	}
	if a[2].Type != "credit" || a[2].CurrentBalance != -845.32 {
		t.Fatalf("unexpected credit account %+v", a[2])
	}
}

func TestMockTransactions(t *testing.T) {
	m := NewMock(42)
	start, end := core.NewDate(2025, 6, 1), core.NewDate(2025, 6, 30)

	txns, err := m.Transactions(context.Background(), "access-sandbox-1", start, end)
	if err != nil {
		t.Fatal(err)
	}
	if len(txns) != MockTransactionCount {
		t.Fatalf("expected %d transactions, got %d", MockTransactionCount, len(txns))
	}

	accounts, _ := m.Accounts(context.Background(), "access-sandbox-1")
	for i, tx := range txns {
		if tx.Date.Before(start.Time) || tx.Date.After(end.Time) {
			t.Fatalf("transaction %s outside window: %s", tx.TransactionID, tx.Date)
		}
		if i > 0 && tx.Date.After(txns[i-1].Date.Time) {
			t.Fatal("transactions not sorted newest first")
		}
		if tx.AccountID != accounts[0].AccountID {
			t.Fatalf("unexpected account %s", tx.AccountID)
		}
		if tx.Name == "Salary Deposit" {
			if tx.Amount > -3500 || tx.Amount < -4000 {
				t.Fatalf("unexpected income amount %v", tx.Amount)
			}
		} else if tx.Amount < 10 || tx.Amount > 210 {
			t.Fatalf("unexpected expense amount %v", tx.Amount)
		}
	}

	if _, err := m.Transactions(context.Background(), "x", end, start); !errors.Is(err, core.ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
}

func TestMockTokens(t *testing.T) {
	m := NewMock(1)
	link, _ := m.CreateLinkToken(context.Background(), "user-1")
	if !strings.HasPrefix(link, "link-sandbox-user-1-") {
		t.Fatalf("unexpected link token %s", link)
	}
	a1, i1, err := m.ExchangePublicToken(context.Background(), "public")
	if err != nil {
		t.Fatal(err)
	}
	a2, _, _ := m.ExchangePublicToken(context.Background(), "public")
	if a1 == a2 || !strings.HasPrefix(i1, "item-sandbox-") {
		t.Fatalf("unexpected tokens %s %s %s", a1, a2, i1)
	}
	if _, _, err := m.ExchangePublicToken(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty public token")
	}
}
