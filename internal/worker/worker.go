// Package worker runs the background side of finlens: queued sync requests,
// the periodic re-sync of active accounts and the optional monthly report
// export.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"finlens/internal/amqp"
	"finlens/internal/core"
	"finlens/internal/log"
	"finlens/internal/sheets"
)

type (
	// Syncer performs account syncs.
	Syncer interface {
		HandleSyncRequest(ctx context.Context, msg *amqp.SyncRequestMessage) error
		SyncAllActive(ctx context.Context) error
	}

	// Consumer delivers queued sync requests until ctx ends.
	Consumer interface {
		ConsumeSyncRequests(ctx context.Context, handler func(context.Context, *amqp.SyncRequestMessage) error) error
	}

	// SpendingSource aggregates a user's spending by category.
	SpendingSource interface {
		SpendingByCategory(ctx context.Context, userID string, from, to core.Date) ([]core.CategoryTotal, error)
	}

	// AccountLister finds the accounts whose owners get a report.
	AccountLister interface {
		ListActiveAccounts(ctx context.Context) ([]core.Account, error)
	}
)

// Config holds the worker schedule.
type Config struct {
	// SyncInterval is how often every active account is re-synced (default: 6h).
	SyncInterval time.Duration

	// ExportInterval is how often monthly reports are rewritten (default: 1h).
	ExportInterval time.Duration

	// LateDays keeps the previous month in the export for this many days into
	// a new month so late-posting transactions still reach its report (default: 3).
	LateDays int

	// SyncOnStart runs one full re-sync before waiting for the first tick.
	SyncOnStart bool
}

func DefaultConfig() Config {
	return Config{
		SyncInterval:   6 * time.Hour,
		ExportInterval: time.Hour,
		LateDays:       3,
		SyncOnStart:    true,
	}
}

// Deps are the collaborators of a Worker. Consumer and Reports may be nil,
// which disables queued syncs and the report export respectively.
type Deps struct {
	Syncer   Syncer
	Consumer Consumer
	Spending SpendingSource
	Accounts AccountLister
	Reports  sheets.ReportWriter
	Logger   *log.Logger
}

type Worker struct {
	deps   Deps
	config Config
	logger *log.Logger
	now    func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	err     error
}

func New(deps Deps, cfg Config) *Worker {
	def := DefaultConfig()
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = def.SyncInterval
	}
	if cfg.ExportInterval <= 0 {
		cfg.ExportInterval = def.ExportInterval
	}
	if cfg.LateDays < 0 {
		cfg.LateDays = 0
	}
	return &Worker{
		deps:   deps,
		config: cfg,
		logger: deps.Logger.WithComponent(log.ComponentWorker),
		now:    time.Now,
	}
}

// Start launches the consumer and the schedule loop. It returns an error if
// the worker is already running.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("worker is already running")
	}
	if w.deps.Syncer == nil {
		return errors.New("worker needs a syncer")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.running = true
	w.cancel = cancel
	w.doneCh = make(chan struct{})
	w.err = nil

	g, gctx := errgroup.WithContext(runCtx)
	if w.deps.Consumer != nil {
		g.Go(func() error {
			err := w.deps.Consumer.ConsumeSyncRequests(gctx, w.deps.Syncer.HandleSyncRequest)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		w.logger.InfoContext(ctx, "No broker configured, queued syncs disabled")
	}
	g.Go(func() error {
		w.runLoop(gctx)
		return nil
	})

	go func() {
		err := g.Wait()
		if err != nil {
			w.logger.Error("Worker stopped with error", log.FieldError, err)
		}
		w.mu.Lock()
		w.err = err
		w.running = false
		w.mu.Unlock()
		cancel()
		close(w.doneCh)
	}()

	w.logger.InfoContext(ctx, "Worker started",
		"sync_interval", w.config.SyncInterval,
		"export_interval", w.config.ExportInterval,
		"queued_syncs", w.deps.Consumer != nil,
		"report_export", w.exportEnabled())
	return nil
}

// Stop cancels the worker and waits for in-flight work or ctx, whichever
// comes first.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.doneCh == nil {
		w.mu.Unlock()
		return nil
	}
	cancel, done := w.cancel, w.doneCh
	w.mu.Unlock()

	cancel()
	select {
	case <-done:
		w.logger.InfoContext(ctx, "Worker stopped gracefully")
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Worker stop timed out")
		return ctx.Err()
	}
}

// Done is closed once the worker has fully stopped. It is nil before Start.
func (w *Worker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doneCh
}

// Err reports why the worker stopped, if it failed.
func (w *Worker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) exportEnabled() bool {
	return w.deps.Reports != nil && w.deps.Spending != nil && w.deps.Accounts != nil
}

func (w *Worker) runLoop(ctx context.Context) {
	syncTicker := time.NewTicker(w.config.SyncInterval)
	defer syncTicker.Stop()

	var exportC <-chan time.Time
	if w.exportEnabled() {
		exportTicker := time.NewTicker(w.config.ExportInterval)
		defer exportTicker.Stop()
		exportC = exportTicker.C
	}

	if w.config.SyncOnStart {
		w.resync(ctx)
	}
	if exportC != nil {
		w.export(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-syncTicker.C:
			w.resync(ctx)
		case <-exportC:
			w.export(ctx)
		}
	}
}

func (w *Worker) resync(ctx context.Context) {
	start := time.Now()
	if err := w.deps.Syncer.SyncAllActive(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.ErrorContext(ctx, "Periodic sync failed", log.FieldError, err)
		return
	}
	w.logger.InfoContext(ctx, "Periodic sync finished", "duration", time.Since(start))
}

func (w *Worker) export(ctx context.Context) {
	n, err := w.ExportReports(ctx)
	if err != nil && ctx.Err() == nil {
		w.logger.ErrorContext(ctx, "Report export failed",
			log.FieldOperation, log.OpExport,
			log.FieldError, err)
	}
	if n > 0 {
		w.logger.InfoContext(ctx, "Report export finished",
			log.FieldOperation, log.OpExport,
			log.FieldCount, n)
	}
}

// ExportReports writes the month-to-date category breakdown of every user
// with an active account. Within the first LateDays of a month the previous
// month is rewritten as well. It returns the number of reports written.
func (w *Worker) ExportReports(ctx context.Context) (int, error) {
	if !w.exportEnabled() {
		return 0, nil
	}
	accounts, err := w.deps.Accounts.ListActiveAccounts(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active accounts: %w", err)
	}
	users := distinctUsers(accounts)

	now := w.now().UTC()
	months := []time.Time{monthStart(now)}
	if now.Day() <= w.config.LateDays {
		months = append([]time.Time{monthStart(now).AddDate(0, -1, 0)}, months...)
	}

	written := 0
	var errs []error
	for _, m := range months {
		from := core.DateOf(m)
		to := core.DateOf(m.AddDate(0, 1, -1))
		for _, userID := range users {
			if err := ctx.Err(); err != nil {
				return written, err
			}
			totals, err := w.deps.Spending.SpendingByCategory(ctx, userID, from, to)
			if err != nil {
				errs = append(errs, fmt.Errorf("user %s: %w", userID, err))
				continue
			}
			report := sheets.MonthlyReport{
				UserID:     userID,
				Year:       m.Year(),
				Month:      int(m.Month()),
				Categories: totals,
			}
			if err := w.deps.Reports.WriteMonthlyReport(ctx, report); err != nil {
				errs = append(errs, fmt.Errorf("user %s %s: %w", userID, report.Period(), err))
				continue
			}
			written++
		}
	}
	return written, errors.Join(errs...)
}

func distinctUsers(accounts []core.Account) []string {
	seen := make(map[string]struct{}, len(accounts))
	out := make([]string, 0, len(accounts))
	for _, a := range accounts {
		if _, ok := seen[a.UserID]; ok || a.UserID == "" {
			continue
		}
		seen[a.UserID] = struct{}{}
		out = append(out, a.UserID)
	}
	sort.Strings(out)
	return out
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
