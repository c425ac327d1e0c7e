package core

import (
	"math"
	"reflect"
	"testing"
	"time"
)

func txn(category string, amount float64) Transaction {
	return Transaction{Category: category, Amount: amount}
}

func TestAggregateByCategory(t *testing.T) {
	cases := []struct {
		name string
		in   []Transaction
		topK int
		want []CategoryTotal
	}{
		{
			name: "sums and sorts descending",
			in: []Transaction{
				txn("Food & Dining", 20),
				txn("Shopping", 100),
				txn("Food & Dining", 30),
				txn("", 10),
				txn("Income", -2000),
			},
			topK: 5,
			want: []CategoryTotal{
				{"Shopping", 100},
				{"Food & Dining", 50},
				{"Other", 10},
			},
		},
		{
			name: "ties keep first encounter order",
			in:   []Transaction{txn("A", 5), txn("B", 5)},
			topK: 5,
			want: []CategoryTotal{{"A", 5}, {"B", 5}},
		},
		{
			name: "ties keep first encounter order reversed input",
			in:   []Transaction{txn("B", 5), txn("A", 5)},
			topK: 5,
			want: []CategoryTotal{{"B", 5}, {"A", 5}},
		},
		{
			name: "truncates to top k",
			in:   []Transaction{txn("A", 1), txn("B", 2), txn("C", 3)},
			topK: 2,
			want: []CategoryTotal{{"C", 3}, {"B", 2}},
		},
		{
			name: "non positive k is unrestricted",
			in:   []Transaction{txn("A", 1), txn("B", 2), txn("C", 3)},
			topK: 0,
			want: []CategoryTotal{{"C", 3}, {"B", 2}, {"A", 1}},
		},
		{
			name: "zero and negative amounts are ignored",
			in:   []Transaction{txn("A", 0), txn("B", -4)},
			topK: 5,
			want: []CategoryTotal{},
		},
		{
			name: "empty input",
			in:   nil,
			topK: 5,
			want: []CategoryTotal{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AggregateByCategory(tc.in, tc.topK)
			if got == nil {
				t.Fatal("expected non-nil slice")
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestAggregateByCategoryIsPure(t *testing.T) {
	in := []Transaction{txn("A", 1), txn("B", 2)}
	snapshot := append([]Transaction(nil), in...)
	_ = AggregateByCategory(in, 1)
	if !reflect.DeepEqual(in, snapshot) {
		t.Fatal("input was modified")
	}
}

func TestDetectAnomaly(t *testing.T) {
	history := []Transaction{
		txn("Food & Dining", 10),
		txn("Food & Dining", 12),
		txn("Food & Dining", 11),
		txn("Food & Dining", 9),
		txn("Food & Dining", 13),
		txn("Shopping", 500),
	}

	cases := []struct {
		name      string
		candidate Transaction
		history   []Transaction
		want      AnomalyVerdict
	}{
		{
			name:      "well above threshold",
			candidate: txn("Food & Dining", 80),
			history:   history,
			want: AnomalyVerdict{
				IsUnusual: true,
				Reason:    "This transaction is significantly higher than your average Food & Dining spending.",
			},
		},
		{
			name:      "just below threshold",
			candidate: txn("Food & Dining", 13.8),
			history:   history,
			want:      AnomalyVerdict{},
		},
		{
			name:      "unusually low is not flagged",
			candidate: txn("Food & Dining", -500),
			history:   history,
			want:      AnomalyVerdict{},
		},
		{
			name:      "not enough peers",
			candidate: txn("Shopping", 10000),
			history:   history,
			want:      AnomalyVerdict{},
		},
		{
			name:      "category match is case sensitive",
			candidate: txn("food & dining", 80),
			history:   history,
			want:      AnomalyVerdict{},
		},
		{
			name:      "zero deviation equal amount",
			candidate: txn("Bills & Utilities", 50),
			history:   repeat("Bills & Utilities", 50, 5),
			want:      AnomalyVerdict{},
		},
		{
			name:      "zero deviation higher amount",
			candidate: txn("Bills & Utilities", 50.01),
			history:   repeat("Bills & Utilities", 50, 5),
			want: AnomalyVerdict{
				IsUnusual: true,
				Reason:    "This transaction is significantly higher than your average Bills & Utilities spending.",
			},
		},
		{
			name:      "unassigned resolves to Other",
			candidate: txn("", 1000),
			history:   repeat("Other", 10, 5),
			want: AnomalyVerdict{
				IsUnusual: true,
				Reason:    "This transaction is significantly higher than your average Other spending.",
			},
		},
		{
			name:      "empty history",
			candidate: txn("Travel", 1000),
			history:   nil,
			want:      AnomalyVerdict{},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectAnomaly(tc.candidate, tc.history)
			if got != tc.want {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestDetectAnomalyThresholdIsStrict(t *testing.T) {
	// mean 10, population deviation 2, threshold exactly 14
	history := []Transaction{
		txn("A", 8), txn("A", 12), txn("A", 8), txn("A", 12), txn("A", 8), txn("A", 12),
	}
	mean, sd := populationStats([]float64{8, 12, 8, 12, 8, 12})
	if mean != 10 || sd != 2 {
		t.Fatalf("unexpected stats mean=%v sd=%v", mean, sd)
	}
	threshold := mean + AnomalyStdDevs*sd

	if DetectAnomaly(txn("A", threshold), history).IsUnusual {
		t.Fatal("amount equal to threshold must not be unusual")
	}
	if !DetectAnomaly(txn("A", math.Nextafter(threshold, math.Inf(1))), history).IsUnusual {
		t.Fatal("amount above threshold must be unusual")
	}
}

func TestEstimateForward(t *testing.T) {
	in := []Transaction{
		txn("Shopping", 30),
		txn("Food & Dining", 10),
		txn("Shopping", 60),
		txn("", 4),
		txn("Income", -1500),
		txn("Food & Dining", 20),
	}
	want := []CategoryForecast{
		{"Shopping", 45},
		{"Food & Dining", 15},
		{"Other", 4},
	}
	got := EstimateForward(in)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if got := EstimateForward([]Transaction{txn("Income", -10)}); len(got) != 0 {
		t.Fatalf("expected no forecasts, got %v", got)
	}
}

func TestSummarizeCashFlow(t *testing.T) {
	got := SummarizeCashFlow([]Transaction{
		txn("Food & Dining", 40),
		txn("Income", -1000),
		txn("Shopping", 60),
		txn("Other", 0),
	})
	want := CashFlow{Spent: 100, Income: 1000, Net: 900}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestEvaluateBudget(t *testing.T) {
	now := time.Date(2025, 6, 18, 0, 0, 0, 0, time.UTC)
	b := Budget{Category: "Food & Dining", Amount: 50, Period: Monthly, StartDate: NewDate(2025, 1, 1)}

	in := []Transaction{
		{Category: "Food & Dining", Amount: 30, Date: NewDate(2025, 6, 2)},
		{Category: "Food & Dining", Amount: 25, Date: NewDate(2025, 6, 17)},
		{Category: "Food & Dining", Amount: 999, Date: NewDate(2025, 5, 31)},
		{Category: "Shopping", Amount: 100, Date: NewDate(2025, 6, 3)},
	}
	st := EvaluateBudget(b, in, now)
	if st.Spent != 55 || st.Remaining != -5 || !st.Exceeded {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.From.String() != "2025-06-01" || st.To.String() != "2025-06-30" {
		t.Fatalf("unexpected window %s..%s", st.From, st.To)
	}

	under := EvaluateBudget(b, in[:1], now)
	if under.Exceeded || under.Remaining != 20 {
		t.Fatalf("unexpected status %+v", under)
	}
}

func repeat(category string, amount float64, n int) []Transaction {
	out := make([]Transaction, n)
	for i := range out {
		out[i] = txn(category, amount)
	}
	return out
}
