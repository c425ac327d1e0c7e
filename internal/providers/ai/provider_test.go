package ai

import (
	"context"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"finlens/internal/core"
	"finlens/internal/log"
)

func TestNormalizeCategory(t *testing.T) {
	cases := []struct {
		in   Categorization
		want Categorization
	}{
		{Categorization{"Shopping", "Online"}, Categorization{"Shopping", "Online"}},
		{Categorization{" food & dining ", "Coffee"}, Categorization{"Food & Dining", "Coffee"}},
		{Categorization{"Groceries", "Weekly"}, Categorization{"Other", "Weekly"}},
		{Categorization{"Travel", ""}, Categorization{"Travel", "Miscellaneous"}},
		{Categorization{"", ""}, Categorization{"Other", "Miscellaneous"}},
	}
	for _, tc := range cases {
		if got := NormalizeCategory(tc.in); got != tc.want {
			t.Errorf("NormalizeCategory(%+v) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestParseCategorization(t *testing.T) {
	cases := map[string]Categorization{
		`{"category": "Travel", "subcategory": "Flights"}`:                        {"Travel", "Flights"},
		"```json\n{\"category\": \"Shopping\", \"subcategory\": \"Online\"}\n```": {"Shopping", "Online"},
		`Sure! Here you go: {"category":"Income","subcategory":"Salary"} Thanks`:   {"Income", "Salary"},
		`not json at all`: Fallback(),
		``:                Fallback(),
	}
	for raw, want := range cases {
		if got := parseCategorization(raw); got != want {
			t.Errorf("parseCategorization(%q) = %+v, want %+v", raw, got, want)
		}
	}
}

func TestParseStringList(t *testing.T) {
	got := parseStringList("```json\n[\"a\", \"\", \"b\"]\n```", FallbackInsight)
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("unexpected list %v", got)
	}
	if got := parseStringList(`{"insights": 1}`, FallbackInsight); !reflect.DeepEqual(got, []string{FallbackInsight}) {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := parseStringList(`[]`, FallbackSuggestion); !reflect.DeepEqual(got, []string{FallbackSuggestion}) {
		t.Fatalf("expected fallback for empty list, got %v", got)
	}
}

func TestPrompts(t *testing.T) {
	req := categorizeRequest("Starbucks", 5.5, []string{"Food and Drink", "Coffee"})
	for _, want := range []string{"Transaction: Starbucks", "Amount: $5.50", "Food and Drink > Coffee", "Bills & Utilities"} {
		if !strings.Contains(req.prompt, want) {
			t.Errorf("categorize prompt missing %q:\n%s", want, req.prompt)
		}
	}
	if req.temperature != 0.3 || req.maxTokens != 100 {
		t.Errorf("unexpected categorize params %+v", req)
	}

	ins := insightsRequest(InsightsInput{
		Transactions: []core.Transaction{
			{Category: "Shopping", Amount: 10},
			{Category: "Travel", Amount: 5},
			{Category: "Travel", Amount: 5},
		},
		Budgets: []core.Budget{{Category: "Travel", Amount: 200, Period: core.Monthly}},
	})
	for _, want := range []string{"Total transactions: 3", "Total spent: $20.00", "Top categories: Travel, Shopping", "Travel: $200.00/monthly"} {
		if !strings.Contains(ins.prompt, want) {
			t.Errorf("insights prompt missing %q:\n%s", want, ins.prompt)
		}
	}

	sav := savingsRequest(SavingsInput{Income: 4000, Expenses: 3000})
	if !strings.Contains(sav.prompt, "Savings Rate: 25.0%") || sav.maxTokens != 400 {
		t.Errorf("unexpected savings request %+v", sav)
	}
	if got := savingsRate(SavingsInput{Income: 0, Expenses: 10}); got != "n/a" {
		t.Errorf("expected n/a, got %s", got)
	}
}

type fakeCompleter struct {
	answers []string
	errs    []error
	calls   int
}

func (f *fakeCompleter) complete(ctx context.Context, _ request) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.answers) {
		return f.answers[i], nil
	}
	return "", permanent(errors.New("no more answers"))
}

func testProvider(c completer) *modelProvider {
	p := newModelProvider("fake", c, log.New(log.Config{Output: io.Discard}))
	p.maxElapsed = 2 * time.Second
	return p
}

func TestModelProviderRetriesTransientErrors(t *testing.T) {
	fake := &fakeCompleter{
		errs:    []error{errors.New("connection reset"), nil},
		answers: []string{"", `{"category":"Travel","subcategory":"Hotels"}`},
	}
	got, err := testProvider(fake).Categorize(context.Background(), "Hilton", 300, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != (Categorization{"Travel", "Hotels"}) || fake.calls != 2 {
		t.Fatalf("unexpected result %+v after %d calls", got, fake.calls)
	}
}

func TestModelProviderFallbacks(t *testing.T) {
	failing := func() *fakeCompleter {
		return &fakeCompleter{errs: []error{permanent(errors.New("invalid api key"))}}
	}
	ctx := context.Background()

	cat, err := testProvider(failing()).Categorize(ctx, "x", 1, nil)
	if err != nil || cat != Fallback() {
		t.Fatalf("expected categorization fallback, got %+v (err=%v)", cat, err)
	}

	ins, err := testProvider(failing()).Insights(ctx, InsightsInput{})
	if err != nil || !reflect.DeepEqual(ins, []string{FallbackInsight}) {
		t.Fatalf("expected insights fallback, got %v (err=%v)", ins, err)
	}

	sug, err := testProvider(failing()).SavingSuggestions(ctx, SavingsInput{})
	if err != nil || !reflect.DeepEqual(sug, []string{FallbackSuggestion}) {
		t.Fatalf("expected suggestions fallback, got %v (err=%v)", sug, err)
	}
}

func TestModelProviderHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := testProvider(&fakeCompleter{}).Categorize(ctx, "x", 1, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMockCategorize(t *testing.T) {
	m := NewMock()
	cases := []struct {
		name     string
		provider []string
		want     Categorization
	}{
		{"Salary Deposit", []string{"Income", "Payroll"}, Categorization{"Income", "Salary"}},
		{"Groceries", []string{"Food and Drink", "Groceries"}, Categorization{"Food & Dining", "Groceries"}},
		{"Gas Station", nil, Categorization{"Transportation", "Gas"}},
		{"Netflix", nil, Categorization{"Entertainment", "Streaming"}},
		{"Gym Membership", []string{"Recreation", "Gyms"}, Categorization{"Healthcare", "Fitness"}},
		{"Corner Shop 42", []string{"Shops", "Convenience"}, Categorization{"Shopping", "Convenience"}},
		{"ACME LLC", []string{"Unknown"}, Fallback()},
		{"ACME LLC", nil, Fallback()},
	}
	for _, tc := range cases {
		got, err := m.Categorize(context.Background(), tc.name, 10, tc.provider)
		if err != nil {
			t.Fatal(err)
		}
		if got != tc.want {
			t.Errorf("Categorize(%q, %v) = %+v, want %+v", tc.name, tc.provider, got, tc.want)
		}
		if NormalizeCategory(got) != got {
			t.Errorf("mock produced a category outside the allowed set: %+v", got)
		}
	}
}

func TestMockInsights(t *testing.T) {
	m := NewMock()
	got, err := m.Insights(context.Background(), InsightsInput{
		Transactions: []core.Transaction{
			{Category: "Food & Dining", Amount: 75},
			{Category: "Shopping", Amount: 25},
			{Category: "Income", Amount: -500},
		},
		Budgets: []core.Budget{{Category: "Food & Dining", Amount: 150, Period: core.Monthly}},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"You spent $100.00 across 3 transactions in this period.",
		"Food & Dining is your largest spending category at $75.00 (75% of spending).",
		"You have used 50% of your monthly Food & Dining budget.",
		"Income exceeded spending by $400.00. Consider moving part of it to savings.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected insights:\n%q\nwant\n%q", got, want)
	}

	empty, _ := m.Insights(context.Background(), InsightsInput{})
	if len(empty) != 1 {
		t.Fatalf("expected a single hint for empty input, got %v", empty)
	}
}

func TestMockSavingSuggestions(t *testing.T) {
	m := NewMock()
	got, err := m.SavingSuggestions(context.Background(), SavingsInput{Income: 4000, Expenses: 3800})
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != "Your savings rate is 5.0%." || !strings.Contains(got[1], "at least 10%") {
		t.Fatalf("unexpected suggestions %v", got)
	}
	if got[len(got)-1] != FallbackSuggestion {
		t.Fatalf("expected standing suggestion last, got %v", got)
	}

	noIncome, _ := m.SavingSuggestions(context.Background(), SavingsInput{Expenses: 10})
	if len(noIncome) != 2 {
		t.Fatalf("unexpected suggestions %v", noIncome)
	}
}
