package http

import (
	"net/http"

	"finlens/internal/core"
)

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request, userID string) {
	alerts, err := s.svc.Alerts.List(r.Context(), userID, parseBoolParam(r.URL.Query(), "unreadOnly"))
	if err != nil {
		s.writeError(w, r, "list_alerts", err)
		return
	}
	if alerts == nil {
		alerts = []core.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleMarkAlertRead(w http.ResponseWriter, r *http.Request, userID string) {
	if err := s.svc.Alerts.MarkRead(r.Context(), userID, r.PathValue("id")); err != nil {
		s.writeError(w, r, "mark_alert_read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleMarkAllAlertsRead(w http.ResponseWriter, r *http.Request, userID string) {
	n, err := s.svc.Alerts.MarkAllRead(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, "mark_all_alerts_read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}
