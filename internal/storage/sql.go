// Package storage implements the persistence ports on database/sql for
// SQLite (modernc.org/sqlite) and PostgreSQL (lib/pq).
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"finlens/internal/core"
	"finlens/internal/ports"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	return string(d)
}

// SQLStore implements ports.Store. Query text is written with ? placeholders
// and rebound for PostgreSQL.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

var _ ports.Store = (*SQLStore)(nil)

// NewSQLiteStore opens (creating if needed) the database file at dbPath and
// applies migrations.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return open(ctx, DialectSQLite, dbPath)
}

// NewPostgresStore connects to databaseURL and applies migrations.
func NewPostgresStore(ctx context.Context, databaseURL string) (*SQLStore, error) {
	return open(ctx, DialectPostgres, databaseURL)
}

func open(ctx context.Context, dialect Dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dialect == DialectSQLite {
		// Writers serialize on the file lock anyway.
		db.SetMaxOpenConns(1)
	}

	if err := RunMigrations(dialect, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLStore{
		db:      db,
		dialect: dialect,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, rebind(s.dialect, query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, rebind(s.dialect, query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, rebind(s.dialect, query), args...)
}

// Fixed width so text ordering matches time ordering.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timestampLayout, s)
	return t
}

func parseDate(s string) core.Date {
	if s == "" {
		return core.Date{}
	}
	d, _ := core.ParseDate(s)
	return d
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	return err
}

func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// Users

func (s *SQLStore) UpsertUser(ctx context.Context, u core.User) (core.User, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	_, err := s.exec(ctx, `
		INSERT INTO users (id, email, full_name, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET email = excluded.email, full_name = excluded.full_name`,
		u.ID, u.Email, u.FullName, formatTime(u.CreatedAt))
	if err != nil {
		return core.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return s.GetUser(ctx, u.ID)
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (core.User, error) {
	var (
		u       core.User
		created string
	)
	err := s.queryRow(ctx, `SELECT id, email, full_name, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &u.FullName, &created)
	if err != nil {
		return core.User{}, notFound(err)
	}
	u.CreatedAt = parseTime(created)
	return u, nil
}

// Accounts

const accountColumns = `id, user_id, provider_account_id, provider_item_id, name, official_name,
	type, subtype, mask, current_balance, available_balance, currency, is_active, access_token, created_at`

func scanAccount(sc interface{ Scan(...any) error }) (core.Account, error) {
	var (
		a       core.Account
		created string
	)
	err := sc.Scan(&a.ID, &a.UserID, &a.ProviderAccountID, &a.ProviderItemID, &a.Name, &a.OfficialName,
		&a.Type, &a.Subtype, &a.Mask, &a.CurrentBalance, &a.AvailableBalance, &a.Currency, &a.Active,
		&a.AccessToken, &created)
	if err != nil {
		return core.Account{}, err
	}
	a.CreatedAt = parseTime(created)
	return a, nil
}

func (s *SQLStore) UpsertAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	_, err := s.exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider_account_id) DO UPDATE SET
			provider_item_id = excluded.provider_item_id,
			name = excluded.name,
			official_name = excluded.official_name,
			type = excluded.type,
			subtype = excluded.subtype,
			mask = excluded.mask,
			current_balance = excluded.current_balance,
			available_balance = excluded.available_balance,
			currency = excluded.currency,
			is_active = excluded.is_active,
			access_token = excluded.access_token`,
		a.ID, a.UserID, a.ProviderAccountID, a.ProviderItemID, a.Name, a.OfficialName,
		a.Type, a.Subtype, a.Mask, a.CurrentBalance, a.AvailableBalance, a.Currency, a.Active,
		a.AccessToken, formatTime(a.CreatedAt))
	if err != nil {
		return core.Account{}, fmt.Errorf("upsert account: %w", err)
	}

	stored, err := scanAccount(s.queryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE provider_account_id = ?`, a.ProviderAccountID))
	if err != nil {
		return core.Account{}, fmt.Errorf("reload account: %w", err)
	}
	return stored, nil
}

func (s *SQLStore) GetAccount(ctx context.Context, id string) (core.Account, error) {
	a, err := scanAccount(s.queryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id))
	if err != nil {
		return core.Account{}, notFound(err)
	}
	return a, nil
}

func (s *SQLStore) ListAccounts(ctx context.Context, userID string) ([]core.Account, error) {
	return s.listAccounts(ctx, `SELECT `+accountColumns+` FROM accounts WHERE user_id = ? ORDER BY created_at, id`, userID)
}

func (s *SQLStore) ListActiveAccounts(ctx context.Context) ([]core.Account, error) {
	return s.listAccounts(ctx, `SELECT `+accountColumns+` FROM accounts WHERE is_active = ? ORDER BY created_at, id`, true)
}

func (s *SQLStore) listAccounts(ctx context.Context, q string, args ...any) ([]core.Account, error) {
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	out := []core.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateBalances(ctx context.Context, id string, current, available float64) error {
	res, err := s.exec(ctx, `UPDATE accounts SET current_balance = ?, available_balance = ? WHERE id = ?`,
		current, available, id)
	if err != nil {
		return fmt.Errorf("update balances: %w", err)
	}
	return affectedOrNotFound(res)
}

// Transactions

const transactionColumns = `t.id, t.account_id, t.provider_transaction_id, t.name, t.merchant_name,
	t.provider_category, t.amount, t.category, t.subcategory, t.date, t.pending, t.payment_channel`

func scanTransaction(sc interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t        core.Transaction
		category string
		date     string
	)
	err := sc.Scan(&t.ID, &t.AccountID, &t.ProviderTxnID, &t.Name, &t.MerchantName,
		&category, &t.Amount, &t.Category, &t.Subcategory, &date, &t.Pending, &t.PaymentChannel)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := json.Unmarshal([]byte(category), &t.ProviderCategory); err != nil {
		return core.Transaction{}, fmt.Errorf("decode provider category: %w", err)
	}
	t.Date = parseDate(date)
	return t, nil
}

func (s *SQLStore) InsertTransaction(ctx context.Context, t core.Transaction) (bool, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	categories := t.ProviderCategory
	if categories == nil {
		categories = []string{}
	}
	encoded, err := json.Marshal(categories)
	if err != nil {
		return false, fmt.Errorf("encode provider category: %w", err)
	}

	res, err := s.exec(ctx, `
		INSERT INTO transactions (id, account_id, provider_transaction_id, name, merchant_name,
			provider_category, amount, category, subcategory, date, pending, payment_channel)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider_transaction_id) DO NOTHING`,
		t.ID, t.AccountID, t.ProviderTxnID, t.Name, t.MerchantName, string(encoded), t.Amount,
		t.Category, t.Subcategory, t.Date.String(), t.Pending, t.PaymentChannel)
	if err != nil {
		return false, fmt.Errorf("insert transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert transaction: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) TransactionExists(ctx context.Context, providerTxnID string) (bool, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE provider_transaction_id = ?`, providerTxnID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check transaction: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	t, err := scanTransaction(s.queryRow(ctx, `
		SELECT `+transactionColumns+` FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE t.id = ? AND a.user_id = ?`, id, userID))
	if err != nil {
		return core.Transaction{}, notFound(err)
	}
	return t, nil
}

func transactionWhere(f ports.TransactionFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.UserID != "" {
		conds = append(conds, "a.user_id = ?")
		args = append(args, f.UserID)
	}
	if f.AccountID != "" {
		conds = append(conds, "t.account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Category != "" {
		conds = append(conds, "t.category = ?")
		args = append(args, f.Category)
	}
	if !f.From.IsZero() {
		conds = append(conds, "t.date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		conds = append(conds, "t.date <= ?")
		args = append(args, f.To.String())
	}
	if f.ExpensesOnly {
		conds = append(conds, "t.amount > 0")
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	return ` FROM transactions t JOIN accounts a ON a.id = t.account_id` + where, args
}

func (s *SQLStore) ListTransactions(ctx context.Context, f ports.TransactionFilter) ([]core.Transaction, error) {
	from, args := transactionWhere(f)
	q := `SELECT ` + transactionColumns + from + ` ORDER BY t.date DESC, t.provider_transaction_id`
	if f.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, f.Limit)
		if f.Offset > 0 {
			q += ` OFFSET ?`
			args = append(args, f.Offset)
		}
	} else if f.Offset > 0 {
		if s.dialect == DialectSQLite {
			q += ` LIMIT -1`
		}
		q += ` OFFSET ?`
		args = append(args, f.Offset)
	}

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) CountTransactions(ctx context.Context, f ports.TransactionFilter) (int, error) {
	from, args := transactionWhere(f)
	var n int
	if err := s.queryRow(ctx, `SELECT COUNT(*)`+from, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

// Budgets

const budgetColumns = `id, user_id, category, amount, period, start_date, end_date, is_active, created_at`

func scanBudget(sc interface{ Scan(...any) error }) (core.Budget, error) {
	var (
		b                     core.Budget
		period                string
		start, end, createdAt string
	)
	if err := sc.Scan(&b.ID, &b.UserID, &b.Category, &b.Amount, &period, &start, &end, &b.Active, &createdAt); err != nil {
		return core.Budget{}, err
	}
	b.Period = core.BudgetPeriod(period)
	b.StartDate = parseDate(start)
	b.EndDate = parseDate(end)
	b.CreatedAt = parseTime(createdAt)
	return b, nil
}

func (s *SQLStore) CreateBudget(ctx context.Context, b core.Budget) (core.Budget, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	_, err := s.exec(ctx, `INSERT INTO budgets (`+budgetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.Category, b.Amount, string(b.Period), b.StartDate.String(), b.EndDate.String(),
		b.Active, formatTime(b.CreatedAt))
	if err != nil {
		return core.Budget{}, fmt.Errorf("create budget: %w", err)
	}
	return b, nil
}

func (s *SQLStore) GetBudget(ctx context.Context, userID, id string) (core.Budget, error) {
	b, err := scanBudget(s.queryRow(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ? AND user_id = ?`, id, userID))
	if err != nil {
		return core.Budget{}, notFound(err)
	}
	return b, nil
}

func (s *SQLStore) ListBudgets(ctx context.Context, userID string, activeOnly bool) ([]core.Budget, error) {
	q := `SELECT ` + budgetColumns + ` FROM budgets WHERE user_id = ?`
	args := []any{userID}
	if activeOnly {
		q += ` AND is_active = ?`
		args = append(args, true)
	}
	q += ` ORDER BY created_at DESC, id`

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	out := []core.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLStore) UpdateBudget(ctx context.Context, b core.Budget) error {
	res, err := s.exec(ctx, `
		UPDATE budgets SET category = ?, amount = ?, period = ?, start_date = ?, end_date = ?, is_active = ?
		WHERE id = ? AND user_id = ?`,
		b.Category, b.Amount, string(b.Period), b.StartDate.String(), b.EndDate.String(), b.Active, b.ID, b.UserID)
	if err != nil {
		return fmt.Errorf("update budget: %w", err)
	}
	return affectedOrNotFound(res)
}

func (s *SQLStore) DeleteBudget(ctx context.Context, userID, id string) error {
	res, err := s.exec(ctx, `DELETE FROM budgets WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete budget: %w", err)
	}
	return affectedOrNotFound(res)
}

// Alerts

const alertColumns = `id, user_id, transaction_id, type, message, is_read, created_at`

func (s *SQLStore) CreateAlert(ctx context.Context, a core.Alert) (core.Alert, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	_, err := s.exec(ctx, `INSERT INTO alerts (`+alertColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.TransactionID, string(a.Type), a.Message, a.Read, formatTime(a.CreatedAt))
	if err != nil {
		return core.Alert{}, fmt.Errorf("create alert: %w", err)
	}
	return a, nil
}

func (s *SQLStore) ListAlerts(ctx context.Context, userID string, unreadOnly bool) ([]core.Alert, error) {
	q := `SELECT ` + alertColumns + ` FROM alerts WHERE user_id = ?`
	args := []any{userID}
	if unreadOnly {
		q += ` AND is_read = ?`
		args = append(args, false)
	}
	q += ` ORDER BY created_at DESC, id`

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	out := []core.Alert{}
	for rows.Next() {
		var (
			a         core.Alert
			alertType string
			createdAt string
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.TransactionID, &alertType, &a.Message, &a.Read, &createdAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Type = core.AlertType(alertType)
		a.CreatedAt = parseTime(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) AlertExists(ctx context.Context, userID string, alertType core.AlertType, message string) (bool, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(*) FROM alerts WHERE user_id = ? AND type = ? AND message = ?`,
		userID, string(alertType), message).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check alert: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) MarkAlertRead(ctx context.Context, userID, id string) error {
	res, err := s.exec(ctx, `UPDATE alerts SET is_read = ? WHERE id = ? AND user_id = ?`, true, id, userID)
	if err != nil {
		return fmt.Errorf("mark alert read: %w", err)
	}
	return affectedOrNotFound(res)
}

func (s *SQLStore) MarkAllAlertsRead(ctx context.Context, userID string) (int, error) {
	res, err := s.exec(ctx, `UPDATE alerts SET is_read = ? WHERE user_id = ? AND is_read = ?`, true, userID, false)
	if err != nil {
		return 0, fmt.Errorf("mark all alerts read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
