package ai

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"finlens/internal/core"
)

const (
	systemCategorize = "You are a financial categorization expert."
	systemInsights   = "You are a personal financial advisor."
	systemSavings    = "You are a financial planning expert."
)

type request struct {
	system      string
	prompt      string
	temperature float32
	maxTokens   int
}

func categorizeRequest(name string, amount float64, providerCategory []string) request {
	var b strings.Builder
	fmt.Fprintf(&b, "Categorize this transaction:\nTransaction: %s\nAmount: $%s\n", name, core.FormatAmount(amount))
	if len(providerCategory) > 0 {
		fmt.Fprintf(&b, "Bank Category: %s\n", strings.Join(providerCategory, " > "))
	}
	b.WriteString("\nProvide a more specific category and subcategory for personal finance tracking.\n")
	b.WriteString(`Respond in JSON format: {"category": "...", "subcategory": "..."}`)
	b.WriteString("\n\nCategories should be one of: ")
	b.WriteString(strings.Join(Categories, ", "))

	return request{system: systemCategorize, prompt: b.String(), temperature: 0.3, maxTokens: 100}
}

func insightsRequest(in InsightsInput) request {
	cf := core.SummarizeCashFlow(in.Transactions)

	budgets := make([]string, 0, len(in.Budgets))
	for _, bud := range in.Budgets {
		budgets = append(budgets, fmt.Sprintf("%s: $%s/%s", bud.Category, core.FormatAmount(bud.Amount), bud.Period))
	}

	var b strings.Builder
	b.WriteString("Analyze these financial transactions and budgets, provide 3-5 actionable insights:\n\n")
	b.WriteString("Transactions summary:\n")
	fmt.Fprintf(&b, "- Total transactions: %d\n", len(in.Transactions))
	fmt.Fprintf(&b, "- Total spent: $%s\n", core.FormatAmount(cf.Spent))
	fmt.Fprintf(&b, "- Top categories: %s\n\n", strings.Join(topCategoriesByCount(in.Transactions, 3), ", "))
	fmt.Fprintf(&b, "Budgets: %s\n\n", strings.Join(budgets, ", "))
	b.WriteString("Provide insights as a JSON array of strings.")

	return request{system: systemInsights, prompt: b.String(), temperature: 0.7, maxTokens: 500}
}

func savingsRequest(in SavingsInput) request {
	var b strings.Builder
	b.WriteString("Based on this financial data, provide 3-5 personalized saving suggestions:\n\n")
	fmt.Fprintf(&b, "Monthly Income: $%s\n", core.FormatAmount(in.Income))
	fmt.Fprintf(&b, "Monthly Expenses: $%s\n", core.FormatAmount(in.Expenses))
	fmt.Fprintf(&b, "Savings Rate: %s\n\n", savingsRate(in))
	b.WriteString("Provide suggestions as a JSON array of strings.")

	return request{system: systemSavings, prompt: b.String(), temperature: 0.7, maxTokens: 400}
}

func savingsRate(in SavingsInput) string {
	if in.Income <= 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", (in.Income-in.Expenses)/in.Income*100)
}

// topCategoriesByCount ranks assigned categories by how many transactions
// carry them. Ties keep first-seen order.
func topCategoriesByCount(txns []core.Transaction, n int) []string {
	type count struct {
		category string
		n        int
	}
	var counts []count
	index := map[string]int{}
	for _, t := range txns {
		if t.Category == "" {
			continue
		}
		i, ok := index[t.Category]
		if !ok {
			i = len(counts)
			index[t.Category] = i
			counts = append(counts, count{category: t.Category})
		}
		counts[i].n++
	}
	slices.SortStableFunc(counts, func(a, b count) int { return cmp.Compare(b.n, a.n) })

	out := make([]string, 0, n)
	for i := 0; i < len(counts) && i < n; i++ {
		out = append(out, counts[i].category)
	}
	return out
}
