package bank

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"finlens/internal/core"
)

// MockTransactionCount is how many transactions Mock returns per call.
const MockTransactionCount = 50

type mockMerchant struct {
	name     string
	category []string
}

var mockMerchants = []mockMerchant{
	{"Groceries", []string{"Food and Drink", "Groceries"}},
	{"Gas Station", []string{"Transportation", "Gas"}},
	{"Restaurant", []string{"Food and Drink", "Restaurants"}},
	{"Amazon", []string{"Shops", "Online"}},
	{"Netflix", []string{"Entertainment", "Streaming"}},
	{"Gym Membership", []string{"Recreation", "Gyms"}},
	{"Salary Deposit", []string{"Income", "Payroll"}},
}

// Mock is a sandbox aggregator producing three accounts and a random
// spread of transactions per linked item.
type Mock struct {
	mu  sync.Mutex
	rng *rand.Rand
	seq atomic.Int64
	now func() time.Time
}

var _ Provider = (*Mock)(nil)

func NewMock(seed int64) *Mock {
	return &Mock{rng: rand.New(rand.NewSource(seed)), now: time.Now}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) CreateLinkToken(_ context.Context, userID string) (string, error) {
	return fmt.Sprintf("link-sandbox-%s-%d", userID, m.now().UnixNano()), nil
}

func (m *Mock) ExchangePublicToken(_ context.Context, publicToken string) (string, string, error) {
	if strings.TrimSpace(publicToken) == "" {
		return "", "", fmt.Errorf("public token is required")
	}
	n := fmt.Sprintf("%d%d", m.now().UnixNano(), m.seq.Add(1))
	return "access-sandbox-" + n, "item-sandbox-" + n, nil
}

// itemKey keeps provider account ids unique across linked items.
func itemKey(accessToken string) string {
	h := fnv.New32a()
	h.Write([]byte(accessToken))
	return fmt.Sprintf("mock-%08x", h.Sum32())
}

func (m *Mock) Accounts(_ context.Context, accessToken string) ([]Account, error) {
	key := itemKey(accessToken)
	return []Account{
		{
			AccountID:        key + "-checking-001",
			Name:             "Checking",
			OfficialName:     "Premium Checking",
			Type:             "depository",
			Subtype:          "checking",
			Mask:             "0000",
			CurrentBalance:   2540.76,
			AvailableBalance: 2540.76,
			Currency:         "USD",
		},
		{
			AccountID:        key + "-savings-001",
			Name:             "Savings",
			OfficialName:     "High Yield Savings",
			Type:             "depository",
			Subtype:          "savings",
			Mask:             "1111",
			CurrentBalance:   15200.50,
			AvailableBalance: 15200.50,
			Currency:         "USD",
		},
		{
			AccountID:        key + "-credit-001",
			Name:             "Credit Card",
			OfficialName:     "Rewards Credit Card",
			Type:             "credit",
			Subtype:          "credit card",
			Mask:             "2222",
			CurrentBalance:   -845.32,
			AvailableBalance: 4154.68,
			Currency:         "USD",
		},
	}, nil
}

// Transactions returns MockTransactionCount checking-account transactions
// dated inside [start, end], newest first.
func (m *Mock) Transactions(_ context.Context, accessToken string, start, end core.Date) ([]Transaction, error) {
	if end.Before(start.Time) {
		return nil, core.ErrInvalidDateRange
	}
	key := itemKey(accessToken)
	days := int(end.Sub(start.Time).Hours()/24) + 1

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Transaction, 0, MockTransactionCount)
	for i := 0; i < MockTransactionCount; i++ {
		merchant := mockMerchants[m.rng.Intn(len(mockMerchants))]
		var amount float64
		if merchant.name == "Salary Deposit" {
			amount = -3500 - m.rng.Float64()*500
		} else {
			amount = 10 + m.rng.Float64()*200
		}
		out = append(out, Transaction{
			TransactionID:  fmt.Sprintf("%s-txn-%d", key, i),
			AccountID:      key + "-checking-001",
			Name:           merchant.name,
			MerchantName:   merchant.name,
			Category:       slices.Clone(merchant.category),
			Amount:         core.RoundCents(amount),
			Date:           core.DateOf(start.AddDate(0, 0, m.rng.Intn(days))),
			Pending:        m.rng.Float64() > 0.9,
			PaymentChannel: "online",
		})
	}

	slices.SortStableFunc(out, func(a, b Transaction) int {
		return b.Date.Compare(a.Date.Time)
	})
	return out, nil
}
