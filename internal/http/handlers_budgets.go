package http

import (
	"net/http"

	"finlens/internal/services"
)

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request, userID string) {
	budgets, err := s.svc.Budgets.List(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, "list_budgets", err)
		return
	}
	writeJSON(w, http.StatusOK, newBudgetViews(budgets))
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request, userID string) {
	var in services.BudgetInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, "create_budget", err)
		return
	}
	in.Category = sanitizeInput(in.Category)

	b, err := s.svc.Budgets.Create(r.Context(), userID, in)
	if err != nil {
		s.writeError(w, r, "create_budget", err)
		return
	}
	writeJSON(w, http.StatusCreated, newBudgetView(b))
}

func (s *Server) handleUpdateBudget(w http.ResponseWriter, r *http.Request, userID string) {
	var patch services.BudgetPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.writeError(w, r, "update_budget", err)
		return
	}
	if patch.Category != nil {
		c := sanitizeInput(*patch.Category)
		patch.Category = &c
	}

	b, err := s.svc.Budgets.Update(r.Context(), userID, r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, "update_budget", err)
		return
	}
	writeJSON(w, http.StatusOK, newBudgetView(b))
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.svc.Budgets.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		s.writeError(w, r, "delete_budget", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request, userID string) {
	statuses, err := s.svc.Budgets.Statuses(r.Context(), userID, s.now())
	if err != nil {
		s.writeError(w, r, "budget_status", err)
		return
	}
	writeJSON(w, http.StatusOK, newBudgetStatusViews(statuses))
}
