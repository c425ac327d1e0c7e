package google

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"finlens/internal/core"
	"finlens/internal/sheets"
)

// TotalCategory labels the closing row of each user and month block.
const TotalCategory = "Total"

type reportRow struct {
	Period   string
	UserID   string
	Category string
	Amount   float64
}

func (r reportRow) values() []any {
	return []any{r.Period, r.UserID, r.Category, core.RoundCents(r.Amount)}
}

// parseReportRows reads the sheet body, skipping the header and any row
// that is too short or carries an unreadable amount.
func parseReportRows(values [][]any) []reportRow {
	out := make([]reportRow, 0, len(values))
	for i, raw := range values {
		cols := toStrings(raw)
		if len(cols) < 4 {
			continue
		}
		if i == 0 && strings.EqualFold(cols[0], "Month") {
			continue
		}
		amount, ok := parseAmount(cols[3])
		if !ok || cols[0] == "" || cols[1] == "" {
			continue
		}
		out = append(out, reportRow{Period: cols[0], UserID: cols[1], Category: cols[2], Amount: amount})
	}
	return out
}

// mergeReport drops the rows already present for the report's user and
// month, appends the fresh block and sorts by month then user. Rows inside
// one block keep their order.
func mergeReport(existing []reportRow, r sheets.MonthlyReport) []reportRow {
	period := r.Period()
	out := make([]reportRow, 0, len(existing)+len(r.Categories)+1)
	for _, row := range existing {
		if row.Period == period && row.UserID == r.UserID {
			continue
		}
		out = append(out, row)
	}
	for _, c := range r.Categories {
		out = append(out, reportRow{Period: period, UserID: r.UserID, Category: c.Category, Amount: c.Amount})
	}
	out = append(out, reportRow{Period: period, UserID: r.UserID, Category: TotalCategory, Amount: r.Total()})

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Period != out[j].Period {
			return out[i].Period < out[j].Period
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return core.RoundCents(f), true
}
