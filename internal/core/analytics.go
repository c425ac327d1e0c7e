package core

import (
	"math"
	"slices"
)

const (
	// MinAnomalyPeers is the minimum same-category history needed to judge a transaction.
	MinAnomalyPeers = 5
	// AnomalyStdDevs is the upper threshold distance from the mean, in standard deviations.
	AnomalyStdDevs = 2.0
)

// CategoryTotal is the accumulated expense amount for one category.
type CategoryTotal struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// AnomalyVerdict is the outcome of checking one transaction against its history.
type AnomalyVerdict struct {
	IsUnusual bool   `json:"isUnusual"`
	Reason    string `json:"reason,omitempty"`
}

// CategoryForecast is the flat-average expected spend for one category.
type CategoryForecast struct {
	Category  string  `json:"category"`
	Predicted float64 `json:"predicted"`
}

// CashFlow summarizes money in and out over a set of transactions.
type CashFlow struct {
	Spent  float64 `json:"totalSpent"`
	Income float64 `json:"totalIncome"`
	Net    float64 `json:"netSavings"`
}

// AggregateByCategory sums expense amounts per resolved category and returns
// them ordered by descending total. Equal totals keep the order in which the
// categories first appeared. A topK of zero or less returns every category.
func AggregateByCategory(txns []Transaction, topK int) []CategoryTotal {
	totals := []CategoryTotal{}
	index := make(map[string]int)

	for _, t := range txns {
		if !t.IsExpense() {
			continue
		}
		cat := t.ResolvedCategory()
		i, ok := index[cat]
		if !ok {
			i = len(totals)
			index[cat] = i
			totals = append(totals, CategoryTotal{Category: cat})
		}
		totals[i].Amount += t.Amount
	}

	slices.SortStableFunc(totals, func(a, b CategoryTotal) int {
		switch {
		case a.Amount > b.Amount:
			return -1
		case a.Amount < b.Amount:
			return 1
		default:
			return 0
		}
	})

	if topK > 0 && len(totals) > topK {
		totals = totals[:topK]
	}
	return totals
}

// DetectAnomaly flags candidate when its amount is strictly above the mean
// plus two population standard deviations of same-category history.
func DetectAnomaly(candidate Transaction, history []Transaction) AnomalyVerdict {
	cat := candidate.ResolvedCategory()

	var amounts []float64
	for _, h := range history {
		if h.ResolvedCategory() == cat {
			amounts = append(amounts, h.Amount)
		}
	}
	if len(amounts) < MinAnomalyPeers {
		return AnomalyVerdict{}
	}

	mean, stdDev := populationStats(amounts)
	if candidate.Amount > mean+AnomalyStdDevs*stdDev {
		return AnomalyVerdict{
			IsUnusual: true,
			Reason:    "This transaction is significantly higher than your average " + cat + " spending.",
		}
	}
	return AnomalyVerdict{}
}

// EstimateForward predicts each category's next amount as the mean of its
// historical expenses. Categories are listed in first-seen order.
func EstimateForward(txns []Transaction) []CategoryForecast {
	type acc struct {
		sum   float64
		count int
	}
	var order []string
	sums := make(map[string]*acc)

	for _, t := range txns {
		if !t.IsExpense() {
			continue
		}
		cat := t.ResolvedCategory()
		a, ok := sums[cat]
		if !ok {
			a = &acc{}
			sums[cat] = a
			order = append(order, cat)
		}
		a.sum += t.Amount
		a.count++
	}

	out := make([]CategoryForecast, 0, len(order))
	for _, cat := range order {
		a := sums[cat]
		out = append(out, CategoryForecast{Category: cat, Predicted: a.sum / float64(a.count)})
	}
	return out
}

// SummarizeCashFlow totals expenses and income. Income is reported as a
// positive magnitude.
func SummarizeCashFlow(txns []Transaction) CashFlow {
	var cf CashFlow
	for _, t := range txns {
		switch {
		case t.Amount > 0:
			cf.Spent += t.Amount
		case t.Amount < 0:
			cf.Income += math.Abs(t.Amount)
		}
	}
	cf.Net = cf.Income - cf.Spent
	return cf
}

func populationStats(values []float64) (mean, stdDev float64) {
	n := float64(len(values))
	for _, v := range values {
		mean += v
	}
	mean /= n

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / n)
}
