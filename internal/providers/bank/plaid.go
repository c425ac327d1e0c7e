package bank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"finlens/internal/core"
	"finlens/internal/httpclient"
)

var plaidEnvironments = map[string]string{
	"sandbox":     "https://sandbox.plaid.com",
	"development": "https://development.plaid.com",
	"production":  "https://production.plaid.com",
}

type PlaidConfig struct {
	ClientID string
	Secret   string
	Env      string
	// BaseURL overrides the environment URL.
	BaseURL    string
	ClientName string
}

// Plaid talks to the Plaid REST API.
type Plaid struct {
	http       *httpclient.Client
	baseURL    string
	clientID   string
	secret     string
	clientName string
}

var _ Provider = (*Plaid)(nil)

func NewPlaid(cfg PlaidConfig, client *httpclient.Client) (*Plaid, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		var ok bool
		if baseURL, ok = plaidEnvironments[cfg.Env]; !ok {
			return nil, fmt.Errorf("unknown plaid environment %q", cfg.Env)
		}
	}
	if client == nil {
		client = httpclient.New(httpclient.Options{Timeout: 30 * time.Second, RequestsPerSec: 5})
	}
	name := cfg.ClientName
	if name == "" {
		name = "finlens"
	}
	return &Plaid{
		http:       client,
		baseURL:    baseURL,
		clientID:   cfg.ClientID,
		secret:     cfg.Secret,
		clientName: name,
	}, nil
}

func (p *Plaid) Name() string { return "plaid" }

// APIError is the error body Plaid returns with 4xx responses.
type APIError struct {
	StatusCode   int    `json:"-"`
	ErrorType    string `json:"error_type"`
	ErrorCode    string `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("plaid %s %s: %s", e.ErrorType, e.ErrorCode, e.ErrorMessage)
}

func (p *Plaid) post(ctx context.Context, path string, in, out any) error {
	headers := map[string]string{
		"PLAID-CLIENT-ID": p.clientID,
		"PLAID-SECRET":    p.secret,
	}
	err := p.http.PostJSON(ctx, p.baseURL+path, headers, in, out)
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		apiErr := &APIError{StatusCode: statusErr.StatusCode}
		if json.Unmarshal(statusErr.Body, apiErr) == nil && apiErr.ErrorCode != "" {
			return fmt.Errorf("%s: %w", path, apiErr)
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func (p *Plaid) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	req := map[string]any{
		"user":          map[string]string{"client_user_id": userID},
		"client_name":   p.clientName,
		"products":      []string{"transactions", "auth"},
		"country_codes": []string{"US"},
		"language":      "en",
	}
	var resp struct {
		LinkToken string `json:"link_token"`
	}
	if err := p.post(ctx, "/link/token/create", req, &resp); err != nil {
		return "", err
	}
	return resp.LinkToken, nil
}

func (p *Plaid) ExchangePublicToken(ctx context.Context, publicToken string) (string, string, error) {
	var resp struct {
		AccessToken string `json:"access_token"`
		ItemID      string `json:"item_id"`
	}
	if err := p.post(ctx, "/item/public_token/exchange", map[string]string{"public_token": publicToken}, &resp); err != nil {
		return "", "", err
	}
	return resp.AccessToken, resp.ItemID, nil
}

type plaidAccount struct {
	AccountID    string  `json:"account_id"`
	Name         string  `json:"name"`
	OfficialName *string `json:"official_name"`
	Type         string  `json:"type"`
	Subtype      *string `json:"subtype"`
	Mask         *string `json:"mask"`
	Balances     struct {
		Current         *float64 `json:"current"`
		Available       *float64 `json:"available"`
		ISOCurrencyCode *string  `json:"iso_currency_code"`
	} `json:"balances"`
}

func (a plaidAccount) toAccount() Account {
	currency := deref(a.Balances.ISOCurrencyCode)
	if currency == "" {
		currency = "USD"
	}
	return Account{
		AccountID:        a.AccountID,
		Name:             a.Name,
		OfficialName:     deref(a.OfficialName),
		Type:             a.Type,
		Subtype:          deref(a.Subtype),
		Mask:             deref(a.Mask),
		CurrentBalance:   deref(a.Balances.Current),
		AvailableBalance: deref(a.Balances.Available),
		Currency:         currency,
	}
}

func (p *Plaid) Accounts(ctx context.Context, accessToken string) ([]Account, error) {
	var resp struct {
		Accounts []plaidAccount `json:"accounts"`
	}
	if err := p.post(ctx, "/accounts/get", map[string]string{"access_token": accessToken}, &resp); err != nil {
		return nil, err
	}
	out := make([]Account, 0, len(resp.Accounts))
	for _, a := range resp.Accounts {
		out = append(out, a.toAccount())
	}
	return out, nil
}

type plaidTransaction struct {
	TransactionID  string   `json:"transaction_id"`
	AccountID      string   `json:"account_id"`
	Amount         float64  `json:"amount"`
	Date           string   `json:"date"`
	Name           string   `json:"name"`
	MerchantName   *string  `json:"merchant_name"`
	Category       []string `json:"category"`
	Pending        bool     `json:"pending"`
	PaymentChannel string   `json:"payment_channel"`
}

// maxPageSize is the largest count /transactions/get accepts.
const maxPageSize = 500

// Transactions pages through /transactions/get until every transaction in
// the window has been read.
func (p *Plaid) Transactions(ctx context.Context, accessToken string, start, end core.Date) ([]Transaction, error) {
	var out []Transaction
	for {
		req := map[string]any{
			"access_token": accessToken,
			"start_date":   start.String(),
			"end_date":     end.String(),
			"options": map[string]int{
				"count":  maxPageSize,
				"offset": len(out),
			},
		}
		var resp struct {
			Transactions      []plaidTransaction `json:"transactions"`
			TotalTransactions int                `json:"total_transactions"`
		}
		if err := p.post(ctx, "/transactions/get", req, &resp); err != nil {
			return nil, err
		}

		for _, t := range resp.Transactions {
			date, err := core.ParseDate(t.Date)
			if err != nil {
				return nil, fmt.Errorf("transaction %s: invalid date %q: %w", t.TransactionID, t.Date, err)
			}
			out = append(out, Transaction{
				TransactionID:  t.TransactionID,
				AccountID:      t.AccountID,
				Name:           t.Name,
				MerchantName:   deref(t.MerchantName),
				Category:       t.Category,
				Amount:         t.Amount,
				Date:           date,
				Pending:        t.Pending,
				PaymentChannel: t.PaymentChannel,
			})
		}

		if len(resp.Transactions) == 0 || len(out) >= resp.TotalTransactions {
			return out, nil
		}
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
