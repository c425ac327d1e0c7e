package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finlens/internal/amqp"
	"finlens/internal/core"
	"finlens/internal/crypto"
	"finlens/internal/events"
	"finlens/internal/log"
	"finlens/internal/providers/ai"
	"finlens/internal/providers/bank"
	"finlens/internal/storage/memory"
)

var fixedNow = time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)

type fakeBank struct {
	mu       sync.Mutex
	accounts []bank.Account
	txns     []bank.Transaction
	txnErr   error
	tokens   []string
}

func (b *fakeBank) Name() string { return "fake" }

func (b *fakeBank) CreateLinkToken(_ context.Context, userID string) (string, error) {
	return "link-" + userID, nil
}

func (b *fakeBank) ExchangePublicToken(_ context.Context, publicToken string) (string, string, error) {
	return "access-" + publicToken, "item-" + publicToken, nil
}

func (b *fakeBank) Accounts(_ context.Context, accessToken string) ([]bank.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = append(b.tokens, accessToken)
	return append([]bank.Account(nil), b.accounts...), nil
}

func (b *fakeBank) Transactions(_ context.Context, accessToken string, start, end core.Date) ([]bank.Transaction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.txnErr != nil {
		return nil, b.txnErr
	}
	var out []bank.Transaction
	for _, t := range b.txns {
		if t.Date.Before(start.Time) || t.Date.After(end.Time) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (b *fakeBank) setTransactions(txns ...bank.Transaction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.txns = txns
}

type fakePublisher struct {
	mu     sync.Mutex
	events []events.AlertEvent
}

func (p *fakePublisher) PublishAlert(_ context.Context, e events.AlertEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

type fakeRequester struct {
	msgs []*amqp.SyncRequestMessage
	err  error
}

func (r *fakeRequester) PublishSyncRequest(_ context.Context, msg *amqp.SyncRequestMessage) error {
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

type failingAI struct{ *ai.Mock }

func (failingAI) Categorize(context.Context, string, float64, []string) (ai.Categorization, error) {
	return ai.Categorization{}, errors.New("model unavailable")
}

type countingInvalidator struct{ users []string }

func (c *countingInvalidator) InvalidateDashboard(userID string) { c.users = append(c.users, userID) }

type syncFixture struct {
	svc         *SyncService
	store       *memory.Store
	bank        *fakeBank
	events      *fakePublisher
	invalidator *countingInvalidator
}

func newSyncFixture(t *testing.T, provider ai.Provider, requester SyncRequester) *syncFixture {
	t.Helper()
	sealer, err := crypto.NewEphemeral()
	if err != nil {
		t.Fatal(err)
	}
	if provider == nil {
		provider = ai.NewMock()
	}
	f := &syncFixture{
		store: memory.New(),
		bank: &fakeBank{accounts: []bank.Account{
			{AccountID: "p-chk", Name: "Checking", Type: "depository", CurrentBalance: 100, AvailableBalance: 90, Currency: "USD"},
			{AccountID: "p-sav", Name: "Savings", Type: "depository", CurrentBalance: 500, AvailableBalance: 500, Currency: "USD"},
		}},
		events:      &fakePublisher{},
		invalidator: &countingInvalidator{},
	}
	f.svc = NewSyncService(SyncDeps{
		Store:       f.store,
		Bank:        f.bank,
		AI:          provider,
		Sealer:      sealer,
		Events:      f.events,
		Requester:   requester,
		Invalidator: f.invalidator,
		Logger:      log.New(log.DefaultConfig()),
	}, SyncConfig{Concurrency: 4})
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func chk(id, name string, amount float64, date core.Date) bank.Transaction {
	return bank.Transaction{TransactionID: id, AccountID: "p-chk", Name: name, Amount: amount, Date: date}
}

func june(day int) core.Date { return core.NewDate(2025, 6, day) }

func bankTxnForAccount(id, account string, date core.Date) bank.Transaction {
	tx := chk(id, "Mystery", 5, date)
	tx.AccountID = account
	return tx
}
