package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Weekly  BudgetPeriod = "weekly"
	Monthly BudgetPeriod = "monthly"
	Yearly  BudgetPeriod = "yearly"
)

const (
	AlertUnusualActivity AlertType = "unusual_activity"
	AlertBudgetExceeded  AlertType = "budget_exceeded"
)

// OtherCategory is the label used for transactions without an assigned category.
const OtherCategory = "Other"

type (
	BudgetPeriod string
	AlertType    string

	// Date is a calendar date serialized as YYYY-MM-DD.
	Date struct {
		time.Time
	}

	User struct {
		ID        string    `json:"id"`
		Email     string    `json:"email"`
		FullName  string    `json:"fullName,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
	}

	Account struct {
		ID                string    `json:"id"`
		UserID            string    `json:"userId"`
		ProviderAccountID string    `json:"providerAccountId"`
		ProviderItemID    string    `json:"providerItemId"`
		Name              string    `json:"name"`
		OfficialName      string    `json:"officialName,omitempty"`
		Type              string    `json:"type"`
		Subtype           string    `json:"subtype,omitempty"`
		Mask              string    `json:"mask,omitempty"`
		CurrentBalance    float64   `json:"currentBalance"`
		AvailableBalance  float64   `json:"availableBalance"`
		Currency          string    `json:"currency"`
		Active            bool      `json:"isActive"`
		AccessToken       string    `json:"-"` // sealed
		CreatedAt         time.Time `json:"createdAt"`
	}

	// Transaction is a posted or pending movement on an account.
	// Positive amounts leave the account, negative amounts enter it.
	Transaction struct {
		ID               string   `json:"id"`
		AccountID        string   `json:"accountId"`
		ProviderTxnID    string   `json:"providerTransactionId"`
		Name             string   `json:"name"`
		MerchantName     string   `json:"merchantName,omitempty"`
		ProviderCategory []string `json:"providerCategory,omitempty"`
		Amount           float64  `json:"amount"`
		Category         string   `json:"category,omitempty"`
		Subcategory      string   `json:"subcategory,omitempty"`
		Date             Date     `json:"date"`
		Pending          bool     `json:"pending"`
		PaymentChannel   string   `json:"paymentChannel,omitempty"`
	}

	Budget struct {
		ID        string       `json:"id"`
		UserID    string       `json:"userId"`
		Category  string       `json:"category"`
		Amount    float64      `json:"amount"`
		Period    BudgetPeriod `json:"period"`
		StartDate Date         `json:"startDate"`
		EndDate   Date         `json:"endDate"`
		Active    bool         `json:"isActive"`
		CreatedAt time.Time    `json:"createdAt"`
	}

	Alert struct {
		ID            string    `json:"id"`
		UserID        string    `json:"userId"`
		TransactionID string    `json:"transactionId,omitempty"`
		Type          AlertType `json:"type"`
		Message       string    `json:"message"`
		Read          bool      `json:"isRead"`
		CreatedAt     time.Time `json:"createdAt"`
	}
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyCategory    = errors.New("empty category")
	ErrInvalidPeriod    = errors.New("invalid budget period")
	ErrInvalidDateRange = errors.New("end date must not be before start date")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	// Accept full timestamps as well as plain dates.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		*d = DateOf(t)
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ResolvedCategory returns the assigned category or OtherCategory when unset.
func (t Transaction) ResolvedCategory() string {
	if t.Category == "" {
		return OtherCategory
	}
	return t.Category
}

// IsExpense reports whether money left the account.
func (t Transaction) IsExpense() bool {
	return t.Amount > 0
}

func (p BudgetPeriod) IsValid() bool {
	switch p {
	case Weekly, Monthly, Yearly:
		return true
	default:
		return false
	}
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if b.Amount <= 0 {
		return ErrInvalidAmount
	}
	if !b.Period.IsValid() {
		return ErrInvalidPeriod
	}
	if b.StartDate.IsZero() {
		return errors.New("start date cannot be zero")
	}
	if !b.EndDate.IsZero() && b.EndDate.Before(b.StartDate.Time) {
		return ErrInvalidDateRange
	}
	return nil
}

// Window returns the budget period containing now, clipped to the budget's
// start and end dates.
func (b Budget) Window(now time.Time) (from, to Date) {
	today := DateOf(now)
	switch b.Period {
	case Weekly:
		offset := (int(today.Weekday()) + 6) % 7 // weeks start on Monday
		from = Date{Time: today.AddDate(0, 0, -offset)}
		to = Date{Time: from.AddDate(0, 0, 6)}
	case Yearly:
		from = NewDate(today.Year(), 1, 1)
		to = NewDate(today.Year(), 12, 31)
	default:
		from = NewDate(today.Year(), int(today.Month()), 1)
		to = Date{Time: from.AddDate(0, 1, -1)}
	}
	if from.Before(b.StartDate.Time) {
		from = b.StartDate
	}
	if !b.EndDate.IsZero() && to.After(b.EndDate.Time) {
		to = b.EndDate
	}
	return from, to
}
