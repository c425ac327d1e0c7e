package http

import (
	"net/http"
)

type transactionPageView struct {
	Transactions []transactionView `json:"transactions"`
	Total        int               `json:"total"`
	Limit        int               `json:"limit"`
	Offset       int               `json:"offset"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, userID string) {
	f, err := ParseTransactionFilter(userID, r.URL.Query())
	if err != nil {
		s.writeError(w, r, "list_transactions", err)
		return
	}
	page, err := s.svc.Accounts.Transactions(r.Context(), f)
	if err != nil {
		s.writeError(w, r, "list_transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, transactionPageView{
		Transactions: newTransactionViews(page.Transactions),
		Total:        page.Total,
		Limit:        page.Limit,
		Offset:       f.Offset,
	})
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request, userID string) {
	t, err := s.svc.Accounts.Transaction(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, "get_transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionView(t))
}

func (s *Server) handleCheckAnomaly(w http.ResponseWriter, r *http.Request, userID string) {
	verdict, err := s.svc.Analytics.CheckTransaction(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, "check_anomaly", err)
		return
	}
	writeJSON(w, http.StatusOK, verdict)
}

func (s *Server) handleSpendingByCategory(w http.ResponseWriter, r *http.Request, userID string) {
	from, to, err := parseDateRange(r.URL.Query())
	if err != nil {
		s.writeError(w, r, "spending_by_category", err)
		return
	}
	totals, err := s.svc.Analytics.SpendingByCategory(r.Context(), userID, from, to)
	if err != nil {
		s.writeError(w, r, "spending_by_category", err)
		return
	}
	writeJSON(w, http.StatusOK, newCategoryTotalViews(totals))
}
