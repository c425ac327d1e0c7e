// Package sheets declares the outbound port used to export spending reports
// to a spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"

	"finlens/internal/core"
)

// MonthlyReport is one user's spending by category for a calendar month.
type MonthlyReport struct {
	UserID     string
	Year       int
	Month      int
	Categories []core.CategoryTotal
}

// Period renders the report month as YYYY-MM.
func (r MonthlyReport) Period() string {
	return fmt.Sprintf("%04d-%02d", r.Year, r.Month)
}

// Total sums every category amount, rounded to cents.
func (r MonthlyReport) Total() float64 {
	var sum float64
	for _, c := range r.Categories {
		sum += c.Amount
	}
	return core.RoundCents(sum)
}

// ReportWriter stores monthly reports. Writing the same user and month again
// replaces the earlier rows.
type ReportWriter interface {
	WriteMonthlyReport(ctx context.Context, r MonthlyReport) error
}

// Fanout writes each report to every writer in order. A failing writer does
// not stop the rest; their errors are joined.
type Fanout []ReportWriter

func (f Fanout) WriteMonthlyReport(ctx context.Context, r MonthlyReport) error {
	var errs []error
	for _, w := range f {
		if err := w.WriteMonthlyReport(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
