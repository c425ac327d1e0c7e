// Package bank links bank accounts and fetches their balances and
// transactions from an aggregator.
package bank

import (
	"context"

	"finlens/internal/core"
)

type Account struct {
	AccountID        string
	Name             string
	OfficialName     string
	Type             string
	Subtype          string
	Mask             string
	CurrentBalance   float64
	AvailableBalance float64
	Currency         string
}

// Transaction uses the aggregator sign convention: positive amounts are
// money leaving the account.
type Transaction struct {
	TransactionID  string
	AccountID      string
	Name           string
	MerchantName   string
	Category       []string
	Amount         float64
	Date           core.Date
	Pending        bool
	PaymentChannel string
}

type Provider interface {
	Name() string
	CreateLinkToken(ctx context.Context, userID string) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (accessToken, itemID string, err error)
	Accounts(ctx context.Context, accessToken string) ([]Account, error)
	Transactions(ctx context.Context, accessToken string, start, end core.Date) ([]Transaction, error)
}
