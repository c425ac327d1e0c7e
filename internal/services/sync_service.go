package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"finlens/internal/amqp"
	"finlens/internal/core"
	"finlens/internal/crypto"
	"finlens/internal/events"
	"finlens/internal/log"
	"finlens/internal/ports"
	"finlens/internal/providers/ai"
	"finlens/internal/providers/bank"
)

const (
	initialSyncDays = 30
	resyncDays      = 30
)

// SyncRequester hands sync work to a background worker.
type SyncRequester interface {
	PublishSyncRequest(ctx context.Context, msg *amqp.SyncRequestMessage) error
}

// DashboardInvalidator is told when a user's data changed.
type DashboardInvalidator interface {
	InvalidateDashboard(userID string)
}

type SyncConfig struct {
	// Concurrency bounds in-flight categorization calls per sync.
	Concurrency int
}

// SyncDeps wires the collaborators of a SyncService. Requester and
// Invalidator are optional; without a requester syncs run inline.
type SyncDeps struct {
	Store       ports.Store
	Bank        bank.Provider
	AI          ai.Provider
	Sealer      *crypto.Sealer
	Events      events.Publisher
	Requester   SyncRequester
	Invalidator DashboardInvalidator
	Logger      *log.Logger
}

// SyncResult reports what one account sync changed.
type SyncResult struct {
	AccountID string `json:"accountId"`
	Fetched   int    `json:"fetched"`
	Inserted  int    `json:"inserted"`
	Skipped   int    `json:"skipped"`
	Alerts    int    `json:"alerts"`
}

// SyncOutcome is returned to callers requesting a sync: either the work was
// queued or it ran inline and Result is set.
type SyncOutcome struct {
	Queued bool        `json:"queued"`
	Result *SyncResult `json:"result,omitempty"`
}

type SyncService struct {
	store       ports.Store
	bank        bank.Provider
	ai          ai.Provider
	sealer      *crypto.Sealer
	events      events.Publisher
	requester   SyncRequester
	invalidator DashboardInvalidator
	cfg         SyncConfig
	logger      *log.Logger
	now         func() time.Time
}

func NewSyncService(deps SyncDeps, cfg SyncConfig) *SyncService {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	publisher := deps.Events
	if publisher == nil {
		publisher = events.NewLogPublisher(logger)
	}
	return &SyncService{
		store:       deps.Store,
		bank:        deps.Bank,
		ai:          deps.AI,
		sealer:      deps.Sealer,
		events:      publisher,
		requester:   deps.Requester,
		invalidator: deps.Invalidator,
		cfg:         cfg,
		logger:      logger.WithComponent(log.ComponentSync),
		now:         time.Now,
	}
}

func (s *SyncService) CreateLinkToken(ctx context.Context, userID string) (string, error) {
	token, err := s.bank.CreateLinkToken(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("create link token: %w", err)
	}
	return token, nil
}

// LinkAccounts exchanges a public token, stores the item's accounts with the
// sealed access token and requests the initial 30-day sync.
func (s *SyncService) LinkAccounts(ctx context.Context, userID, publicToken string) ([]core.Account, error) {
	if strings.TrimSpace(publicToken) == "" {
		return nil, fmt.Errorf("%w: public token is required", core.ErrInvalidInput)
	}
	if err := ensureUser(ctx, s.store, userID); err != nil {
		return nil, err
	}

	accessToken, itemID, err := s.bank.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return nil, fmt.Errorf("exchange public token: %w", err)
	}
	remote, err := s.bank.Accounts(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("fetch accounts: %w", err)
	}
	sealed, err := s.sealer.Seal(accessToken)
	if err != nil {
		return nil, fmt.Errorf("seal access token: %w", err)
	}

	linked := make([]core.Account, 0, len(remote))
	for _, ra := range remote {
		a, err := s.store.UpsertAccount(ctx, core.Account{
			UserID:            userID,
			ProviderAccountID: ra.AccountID,
			ProviderItemID:    itemID,
			Name:              ra.Name,
			OfficialName:      ra.OfficialName,
			Type:              ra.Type,
			Subtype:           ra.Subtype,
			Mask:              ra.Mask,
			CurrentBalance:    ra.CurrentBalance,
			AvailableBalance:  ra.AvailableBalance,
			Currency:          ra.Currency,
			Active:            true,
			AccessToken:       sealed,
		})
		if err != nil {
			return nil, fmt.Errorf("store account %s: %w", ra.AccountID, err)
		}
		linked = append(linked, a)
	}

	s.logger.InfoContext(ctx, "Linked accounts",
		log.FieldUserID, userID,
		log.FieldCount, len(linked),
		log.FieldProvider, s.bank.Name())

	if len(linked) > 0 {
		// One item shares a token, so one sync covers all of its accounts.
		end := core.DateOf(s.now())
		start := daysBefore(s.now(), initialSyncDays)
		if _, err := s.dispatch(ctx, linked[0], start, end, "link"); err != nil {
			s.logger.WarnContext(ctx, "Initial sync failed",
				log.FieldAccountID, linked[0].ID,
				log.FieldError, err)
		}
	}
	s.invalidate(userID)
	return linked, nil
}

// RequestSync syncs the last 30 days of one of the user's accounts, through
// the worker queue when one is configured.
func (s *SyncService) RequestSync(ctx context.Context, userID, accountID string) (SyncOutcome, error) {
	a, err := ownedAccount(ctx, s.store, userID, accountID)
	if err != nil {
		return SyncOutcome{}, err
	}
	end := core.DateOf(s.now())
	return s.dispatch(ctx, a, daysBefore(s.now(), resyncDays), end, "manual")
}

func (s *SyncService) dispatch(ctx context.Context, a core.Account, start, end core.Date, reason string) (SyncOutcome, error) {
	if s.requester != nil {
		msg := amqp.NewSyncRequestMessage(a.UserID, a.ID, start, end, reason)
		err := s.requester.PublishSyncRequest(ctx, msg)
		if err == nil {
			return SyncOutcome{Queued: true}, nil
		}
		s.logger.WarnContext(ctx, "Failed to queue sync, running inline",
			log.FieldAccountID, a.ID,
			log.FieldError, err)
	}

	res, err := s.SyncAccount(ctx, a.ID, start, end)
	if err != nil {
		return SyncOutcome{}, err
	}
	return SyncOutcome{Result: &res}, nil
}

// HandleSyncRequest runs a queued sync request.
func (s *SyncService) HandleSyncRequest(ctx context.Context, msg *amqp.SyncRequestMessage) error {
	start, end := msg.StartDate, msg.EndDate
	if end.IsZero() {
		end = core.DateOf(s.now())
	}
	if start.IsZero() {
		start = core.DateOf(end.AddDate(0, 0, -resyncDays))
	}
	_, err := s.SyncAccount(ctx, msg.AccountID, start, end)
	return err
}

// SyncAccount pulls the transactions of the account's item between start
// and end and stores the ones not seen before. New expenses are checked for
// unusual activity and budgets are re-evaluated afterwards.
func (s *SyncService) SyncAccount(ctx context.Context, accountID string, start, end core.Date) (SyncResult, error) {
	if end.Before(start.Time) {
		return SyncResult{}, core.ErrInvalidDateRange
	}
	account, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("get account %s: %w", accountID, err)
	}
	accessToken, err := s.sealer.Open(account.AccessToken)
	if err != nil {
		return SyncResult{}, fmt.Errorf("open access token for account %s: %w", accountID, err)
	}

	owned, err := s.store.ListAccounts(ctx, account.UserID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("list accounts: %w", err)
	}
	byProvider := make(map[string]core.Account, len(owned))
	for _, a := range owned {
		byProvider[a.ProviderAccountID] = a
	}

	s.refreshBalances(ctx, accessToken, byProvider)

	remote, err := s.bank.Transactions(ctx, accessToken, start, end)
	if err != nil {
		return SyncResult{}, fmt.Errorf("fetch transactions: %w", err)
	}

	res := SyncResult{AccountID: accountID, Fetched: len(remote)}
	fresh := make([]core.Transaction, 0, len(remote))
	for _, rt := range remote {
		stored, ok := byProvider[rt.AccountID]
		if !ok {
			res.Skipped++
			continue
		}
		exists, err := s.store.TransactionExists(ctx, rt.TransactionID)
		if err != nil {
			return res, fmt.Errorf("check transaction %s: %w", rt.TransactionID, err)
		}
		if exists {
			res.Skipped++
			continue
		}
		fresh = append(fresh, core.Transaction{
			ID:               uuid.NewString(),
			AccountID:        stored.ID,
			ProviderTxnID:    rt.TransactionID,
			Name:             rt.Name,
			MerchantName:     rt.MerchantName,
			ProviderCategory: rt.Category,
			Amount:           rt.Amount,
			Date:             rt.Date,
			Pending:          rt.Pending,
			PaymentChannel:   rt.PaymentChannel,
		})
	}

	if err := s.categorize(ctx, fresh); err != nil {
		return res, err
	}

	inserted := make([]core.Transaction, 0, len(fresh))
	for _, t := range fresh {
		ok, err := s.store.InsertTransaction(ctx, t)
		if err != nil {
			return res, fmt.Errorf("store transaction %s: %w", t.ProviderTxnID, err)
		}
		if !ok {
			res.Skipped++
			continue
		}
		inserted = append(inserted, t)
	}
	res.Inserted = len(inserted)

	if len(inserted) > 0 {
		alerts, err := s.raiseAlerts(ctx, account.UserID, inserted)
		res.Alerts = alerts
		if err != nil {
			return res, err
		}
	}

	s.invalidate(account.UserID)
	s.logger.InfoContext(ctx, "Account synced",
		log.FieldAccountID, accountID,
		log.FieldUserID, account.UserID,
		"fetched", res.Fetched,
		"inserted", res.Inserted,
		"skipped", res.Skipped,
		"alerts", res.Alerts)
	return res, nil
}

func (s *SyncService) refreshBalances(ctx context.Context, accessToken string, byProvider map[string]core.Account) {
	remote, err := s.bank.Accounts(ctx, accessToken)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to refresh balances", log.FieldError, err)
		return
	}
	for _, ra := range remote {
		a, ok := byProvider[ra.AccountID]
		if !ok {
			continue
		}
		if err := s.store.UpdateBalances(ctx, a.ID, ra.CurrentBalance, ra.AvailableBalance); err != nil {
			s.logger.WarnContext(ctx, "Failed to update balances",
				log.FieldAccountID, a.ID,
				log.FieldError, err)
		}
	}
}

// categorize assigns categories in place. Provider failures fall back to
// Other rather than failing the sync; only cancellation aborts.
func (s *SyncService) categorize(ctx context.Context, txns []core.Transaction) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i := range txns {
		g.Go(func() error {
			t := &txns[i]
			c, err := s.ai.Categorize(gctx, t.Name, t.Amount, t.ProviderCategory)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.logger.WarnContext(gctx, "Categorization failed, using fallback",
					log.FieldTxnID, t.ProviderTxnID,
					log.FieldError, err)
				c = ai.Fallback()
			}
			t.Category, t.Subcategory = c.Category, c.Subcategory
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("categorize transactions: %w", err)
	}
	return nil
}

func (s *SyncService) raiseAlerts(ctx context.Context, userID string, inserted []core.Transaction) (int, error) {
	earliest := inserted[0].Date
	for _, t := range inserted[1:] {
		if t.Date.Before(earliest.Time) {
			earliest = t.Date
		}
	}
	history, err := s.store.ListTransactions(ctx, ports.TransactionFilter{
		UserID: userID,
		From:   core.DateOf(earliest.AddDate(0, 0, -anomalyHistoryDays)),
	})
	if err != nil {
		return 0, fmt.Errorf("list history: %w", err)
	}

	raised := 0
	for _, t := range inserted {
		if !t.IsExpense() {
			continue
		}
		verdict := core.DetectAnomaly(t, anomalyPeers(t, history))
		if !verdict.IsUnusual {
			continue
		}
		err := s.raise(ctx, core.Alert{
			UserID:        userID,
			TransactionID: t.ID,
			Type:          core.AlertUnusualActivity,
			Message:       verdict.Reason,
		}, t.Amount, t.ResolvedCategory())
		if err != nil {
			return raised, err
		}
		raised++
	}

	statuses, err := budgetStatuses(ctx, s.store, userID, s.now())
	if err != nil {
		return raised, err
	}
	for _, st := range statuses {
		if !st.Exceeded {
			continue
		}
		msg := budgetExceededMessage(st)
		exists, err := s.store.AlertExists(ctx, userID, core.AlertBudgetExceeded, msg)
		if err != nil {
			return raised, fmt.Errorf("check budget alert: %w", err)
		}
		if exists {
			continue
		}
		err = s.raise(ctx, core.Alert{
			UserID:  userID,
			Type:    core.AlertBudgetExceeded,
			Message: msg,
		}, st.Spent, st.Budget.Category)
		if err != nil {
			return raised, err
		}
		raised++
	}
	return raised, nil
}

// raise stores the alert and publishes it. Publish failures are logged; the
// stored alert stays authoritative.
func (s *SyncService) raise(ctx context.Context, a core.Alert, amount float64, category string) error {
	stored, err := s.store.CreateAlert(ctx, a)
	if err != nil {
		return fmt.Errorf("create %s alert: %w", a.Type, err)
	}

	e := events.NewAlertEvent(stored)
	e.Amount = core.RoundCents(amount)
	e.Category = category
	if err := s.events.PublishAlert(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish alert event",
			log.FieldUserID, a.UserID,
			log.FieldError, err)
	}
	return nil
}

// SyncAllActive re-syncs every active item once. Failures are collected and
// do not stop the remaining items.
func (s *SyncService) SyncAllActive(ctx context.Context) error {
	accounts, err := s.store.ListActiveAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list active accounts: %w", err)
	}

	end := core.DateOf(s.now())
	start := daysBefore(s.now(), resyncDays)
	seen := make(map[string]bool)
	var errs []error
	for _, a := range accounts {
		key := a.ProviderItemID
		if key == "" {
			key = a.ID
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := s.SyncAccount(ctx, a.ID, start, end); err != nil {
			s.logger.ErrorContext(ctx, "Scheduled sync failed",
				log.FieldAccountID, a.ID,
				log.FieldError, err)
			errs = append(errs, fmt.Errorf("account %s: %w", a.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *SyncService) invalidate(userID string) {
	if s.invalidator != nil {
		s.invalidator.InvalidateDashboard(userID)
	}
}
