package core

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDateJSON(t *testing.T) {
	d := NewDate(2025, 3, 9)
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"2025-03-09"` {
		t.Fatalf("unexpected encoding %s", b)
	}

	var back Date
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if !back.Equal(d.Time) {
		t.Fatalf("round trip mismatch: %v vs %v", back, d)
	}

	var fromTimestamp Date
	if err := json.Unmarshal([]byte(`"2025-03-09T18:30:00Z"`), &fromTimestamp); err != nil {
		t.Fatal(err)
	}
	if !fromTimestamp.Equal(d.Time) {
		t.Fatalf("timestamp not truncated: %v", fromTimestamp)
	}

	var empty Date
	if err := json.Unmarshal([]byte(`null`), &empty); err != nil || !empty.IsZero() {
		t.Fatalf("expected zero date, got %v (err=%v)", empty, err)
	}
}

func TestResolvedCategory(t *testing.T) {
	if got := (Transaction{}).ResolvedCategory(); got != OtherCategory {
		t.Fatalf("expected %q, got %q", OtherCategory, got)
	}
	if got := (Transaction{Category: "Travel"}).ResolvedCategory(); got != "Travel" {
		t.Fatalf("expected Travel, got %q", got)
	}
}

func TestBudgetValidate(t *testing.T) {
	good := Budget{
		Category:  "Food & Dining",
		Amount:    300,
		Period:    Monthly,
		StartDate: NewDate(2025, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Budget)
		want   error
	}{
		{"empty category", func(b *Budget) { b.Category = " " }, ErrEmptyCategory},
		{"zero amount", func(b *Budget) { b.Amount = 0 }, ErrInvalidAmount},
		{"bad period", func(b *Budget) { b.Period = "daily" }, ErrInvalidPeriod},
		{"end before start", func(b *Budget) { b.EndDate = NewDate(2024, 12, 31) }, ErrInvalidDateRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := good
			tc.mutate(&b)
			if err := b.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	noStart := good
	noStart.StartDate = Date{}
	if err := noStart.Validate(); err == nil {
		t.Fatal("expected error for zero start date")
	}
}

func TestBudgetWindow(t *testing.T) {
	// Wednesday
	now := time.Date(2025, 6, 18, 15, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		budget   Budget
		from, to Date
	}{
		{
			name:   "monthly",
			budget: Budget{Period: Monthly, StartDate: NewDate(2025, 1, 1)},
			from:   NewDate(2025, 6, 1),
			to:     NewDate(2025, 6, 30),
		},
		{
			name:   "weekly starts monday",
			budget: Budget{Period: Weekly, StartDate: NewDate(2025, 1, 1)},
			from:   NewDate(2025, 6, 16),
			to:     NewDate(2025, 6, 22),
		},
		{
			name:   "yearly",
			budget: Budget{Period: Yearly, StartDate: NewDate(2024, 1, 1)},
			from:   NewDate(2025, 1, 1),
			to:     NewDate(2025, 12, 31),
		},
		{
			name:   "clipped to start and end",
			budget: Budget{Period: Monthly, StartDate: NewDate(2025, 6, 10), EndDate: NewDate(2025, 6, 20)},
			from:   NewDate(2025, 6, 10),
			to:     NewDate(2025, 6, 20),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			from, to := tc.budget.Window(now)
			if !from.Equal(tc.from.Time) || !to.Equal(tc.to.Time) {
				t.Fatalf("expected %s..%s, got %s..%s", tc.from, tc.to, from, to)
			}
		})
	}
}
