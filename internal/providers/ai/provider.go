// Package ai provides transaction categorization and narrative financial
// advice behind a single Provider interface.
package ai

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"finlens/internal/core"
)

// Categories is the fixed set a categorizer may assign.
var Categories = []string{
	"Food & Dining",
	"Shopping",
	"Transportation",
	"Bills & Utilities",
	"Entertainment",
	"Healthcare",
	"Travel",
	"Income",
	"Savings",
	core.OtherCategory,
}

const (
	FallbackSubcategory = "Miscellaneous"
	FallbackInsight     = "Unable to generate insights at this time."
	FallbackSuggestion  = "Consider setting up automatic transfers to your savings account."
)

type Categorization struct {
	Category    string `json:"category"`
	Subcategory string `json:"subcategory"`
}

// Fallback is returned when a model answer is unusable.
func Fallback() Categorization {
	return Categorization{Category: core.OtherCategory, Subcategory: FallbackSubcategory}
}

type InsightsInput struct {
	Transactions []core.Transaction
	Budgets      []core.Budget
}

type SavingsInput struct {
	Income   float64
	Expenses float64
}

// Provider is implemented by every categorization backend. Implementations
// never fail on unusable model output; they return the documented fallbacks.
// Errors are reserved for cancelled contexts.
type Provider interface {
	Name() string
	Categorize(ctx context.Context, name string, amount float64, providerCategory []string) (Categorization, error)
	Insights(ctx context.Context, in InsightsInput) ([]string, error)
	SavingSuggestions(ctx context.Context, in SavingsInput) ([]string, error)
}

// NormalizeCategory maps a free-form model answer onto Categories, matching
// case-insensitively. Unknown values become Other.
func NormalizeCategory(c Categorization) Categorization {
	category := strings.TrimSpace(c.Category)
	idx := slices.IndexFunc(Categories, func(known string) bool {
		return strings.EqualFold(known, category)
	})
	if idx < 0 {
		c.Category = core.OtherCategory
	} else {
		c.Category = Categories[idx]
	}
	c.Subcategory = strings.TrimSpace(c.Subcategory)
	if c.Subcategory == "" {
		c.Subcategory = FallbackSubcategory
	}
	return c
}

// parseCategorization decodes a model answer, falling back on any problem.
func parseCategorization(raw string) Categorization {
	var c Categorization
	if err := json.Unmarshal([]byte(cleanModelJSON(raw, '{', '}')), &c); err != nil {
		return Fallback()
	}
	return NormalizeCategory(c)
}

// parseStringList decodes a JSON array of strings, returning fallback when
// the answer is not one or is empty.
func parseStringList(raw, fallback string) []string {
	var out []string
	if err := json.Unmarshal([]byte(cleanModelJSON(raw, '[', ']')), &out); err != nil {
		return []string{fallback}
	}
	out = slices.DeleteFunc(out, func(s string) bool { return strings.TrimSpace(s) == "" })
	if len(out) == 0 {
		return []string{fallback}
	}
	return out
}

// cleanModelJSON strips Markdown fences and surrounding prose, keeping the
// text between the first open and the last close delimiter.
func cleanModelJSON(raw string, open, close byte) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.IndexByte(s, open); start != -1 {
		if end := strings.LastIndexByte(s, close); end > start {
			s = s[start : end+1]
		}
	}
	return s
}
