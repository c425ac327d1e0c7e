package http

import (
	"net/http"
)

type authSyncRequest struct {
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

func (s *Server) handleAuthSync(w http.ResponseWriter, r *http.Request, userID string) {
	var req authSyncRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, "auth_sync", err)
		return
	}
	u, err := s.svc.Users.Sync(r.Context(), userID, sanitizeInput(req.Email), sanitizeInput(req.FullName))
	if err != nil {
		s.writeError(w, r, "auth_sync", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, userID string) {
	p, err := s.svc.Users.Profile(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, "profile", err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileView(p))
}

func (s *Server) handleLinkToken(w http.ResponseWriter, r *http.Request, userID string) {
	token, err := s.svc.Sync.CreateLinkToken(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, "link_token", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"linkToken": token})
}

type linkExchangeRequest struct {
	PublicToken string `json:"publicToken"`
}

func (s *Server) handleLinkExchange(w http.ResponseWriter, r *http.Request, userID string) {
	var req linkExchangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, "link_exchange", err)
		return
	}
	accounts, err := s.svc.Sync.LinkAccounts(r.Context(), userID, sanitizeInput(req.PublicToken))
	if err != nil {
		s.writeError(w, r, "link_exchange", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"accounts": newAccountSummaryViews(accounts)})
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request, userID string) {
	views, err := s.svc.Accounts.List(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, "list_accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountViews(views))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request, userID string) {
	v, err := s.svc.Accounts.Get(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, "get_account", err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(v))
}

// handleSyncAccount answers 202 when the sync was queued for the worker and
// 200 with the result when it ran inline.
func (s *Server) handleSyncAccount(w http.ResponseWriter, r *http.Request, userID string) {
	outcome, err := s.svc.Sync.RequestSync(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, "sync_account", err)
		return
	}
	status := http.StatusOK
	if outcome.Queued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, outcome)
}
