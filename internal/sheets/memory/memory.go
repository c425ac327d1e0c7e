package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"finlens/internal/sheets"
)

// Store keeps reports in memory, keyed by user and month.
type Store struct {
	mu      sync.Mutex
	reports map[string]sheets.MonthlyReport
	writes  int
}

var _ sheets.ReportWriter = (*Store)(nil)

func New() *Store {
	return &Store{reports: make(map[string]sheets.MonthlyReport)}
}

func key(userID, period string) string { return userID + "|" + period }

// WriteMonthlyReport replaces any stored report for the same user and month.
func (s *Store) WriteMonthlyReport(ctx context.Context, r sheets.MonthlyReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.UserID == "" {
		return fmt.Errorf("report without user")
	}
	cats := append(r.Categories[:0:0], r.Categories...)
	r.Categories = cats

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[key(r.UserID, r.Period())] = r
	s.writes++
	return nil
}

// Report returns the stored report for the user and period (YYYY-MM).
func (s *Store) Report(userID, period string) (sheets.MonthlyReport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[key(userID, period)]
	return r, ok
}

// Users lists the users with at least one stored report, sorted.
func (s *Store) Users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]struct{}{}
	out := make([]string, 0, len(s.reports))
	for _, r := range s.reports {
		if _, ok := seen[r.UserID]; ok {
			continue
		}
		seen[r.UserID] = struct{}{}
		out = append(out, r.UserID)
	}
	sort.Strings(out)
	return out
}

// Writes counts successful writes, replacements included.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}
