package ai

import (
	"context"
	"fmt"
	"strings"

	"finlens/internal/core"
)

type rule struct {
	keywords    []string
	category    string
	subcategory string
}

// Merchant name rules are checked before bank category rules.
var nameRules = []rule{
	{[]string{"salary", "payroll", "direct dep"}, "Income", "Salary"},
	{[]string{"transfer to savings", "savings transfer"}, "Savings", "Transfer"},
	{[]string{"grocer", "supermarket", "whole foods", "trader joe"}, "Food & Dining", "Groceries"},
	{[]string{"restaurant", "starbucks", "mcdonald", "cafe", "pizza"}, "Food & Dining", "Restaurants"},
	{[]string{"gas station", "shell", "chevron", "exxon"}, "Transportation", "Gas"},
	{[]string{"uber", "lyft", "taxi", "metro"}, "Transportation", "Rideshare"},
	{[]string{"netflix", "spotify", "hulu", "disney+"}, "Entertainment", "Streaming"},
	{[]string{"cinema", "theater", "concert"}, "Entertainment", "Events"},
	{[]string{"gym", "fitness"}, "Healthcare", "Fitness"},
	{[]string{"pharmacy", "cvs", "walgreens", "doctor", "dental"}, "Healthcare", "Medical"},
	{[]string{"airline", "hotel", "airbnb", "expedia"}, "Travel", "Lodging & Flights"},
	{[]string{"electric", "water bill", "internet", "comcast", "verizon", "at&t"}, "Bills & Utilities", "Utilities"},
	{[]string{"amazon", "target", "walmart", "ebay"}, "Shopping", "Online"},
}

var bankCategoryRules = map[string]string{
	"food and drink": "Food & Dining",
	"transportation": "Transportation",
	"travel":         "Travel",
	"shops":          "Shopping",
	"entertainment":  "Entertainment",
	"recreation":     "Entertainment",
	"healthcare":     "Healthcare",
	"medical":        "Healthcare",
	"service":        "Bills & Utilities",
	"utilities":      "Bills & Utilities",
	"income":         "Income",
	"payroll":        "Income",
	"transfer":       "Savings",
}

// Mock is a deterministic Provider for development and tests.
type Mock struct{}

var _ Provider = (*Mock)(nil)

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Categorize(ctx context.Context, name string, _ float64, providerCategory []string) (Categorization, error) {
	if err := ctx.Err(); err != nil {
		return Categorization{}, err
	}

	lower := strings.ToLower(name)
	for _, r := range nameRules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return Categorization{Category: r.category, Subcategory: r.subcategory}, nil
			}
		}
	}

	if len(providerCategory) > 0 {
		if category, ok := bankCategoryRules[strings.ToLower(providerCategory[0])]; ok {
			sub := FallbackSubcategory
			if len(providerCategory) > 1 {
				sub = providerCategory[len(providerCategory)-1]
			}
			return Categorization{Category: category, Subcategory: sub}, nil
		}
	}

	return Fallback(), nil
}

func (m *Mock) Insights(ctx context.Context, in InsightsInput) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(in.Transactions) == 0 {
		return []string{"No recent transactions yet. Link an account to start receiving insights."}, nil
	}

	cf := core.SummarizeCashFlow(in.Transactions)
	totals := core.AggregateByCategory(in.Transactions, 0)

	insights := []string{
		fmt.Sprintf("You spent $%s across %d transactions in this period.", core.FormatAmount(cf.Spent), len(in.Transactions)),
	}

	if len(totals) > 0 && cf.Spent > 0 {
		top := totals[0]
		insights = append(insights, fmt.Sprintf("%s is your largest spending category at $%s (%.0f%% of spending).",
			top.Category, core.FormatAmount(top.Amount), top.Amount/cf.Spent*100))
	}

	for _, b := range in.Budgets {
		if len(insights) >= 4 {
			break
		}
		var spent float64
		for _, t := range totals {
			if t.Category == b.Category {
				spent = t.Amount
			}
		}
		insights = append(insights, fmt.Sprintf("You have used %.0f%% of your %s %s budget.", spent/b.Amount*100, b.Period, b.Category))
	}

	if cf.Net >= 0 {
		insights = append(insights, fmt.Sprintf("Income exceeded spending by $%s. Consider moving part of it to savings.", core.FormatAmount(cf.Net)))
	} else {
		insights = append(insights, fmt.Sprintf("Spending exceeded income by $%s. Review your top categories for cuts.", core.FormatAmount(-cf.Net)))
	}
	return insights, nil
}

func (m *Mock) SavingSuggestions(ctx context.Context, in SavingsInput) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in.Income <= 0 {
		return []string{
			"No income was recorded in this period. Track your income sources so savings targets can be set.",
			FallbackSuggestion,
		}, nil
	}

	rate := (in.Income - in.Expenses) / in.Income * 100
	out := []string{fmt.Sprintf("Your savings rate is %.1f%%.", rate)}
	switch {
	case rate < 0:
		out = append(out, "You are spending more than you earn. Set category budgets for your largest expenses.")
	case rate < 10:
		out = append(out, "Aim for a savings rate of at least 10% by trimming discretionary spending.")
	case rate >= 20:
		out = append(out, "You are saving well. Consider investing the surplus for long-term goals.")
	default:
		out = append(out, "You are on track. Increasing your savings rate to 20% would build reserves faster.")
	}
	out = append(out,
		fmt.Sprintf("Automatically transfer $%s (10%% of income) to savings each month.", core.FormatAmount(in.Income*0.1)),
		FallbackSuggestion,
	)
	return out, nil
}
