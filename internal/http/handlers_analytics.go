package http

import (
	"net/http"
)

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, userID string) {
	d, err := s.svc.Analytics.Dashboard(r.Context(), userID, s.now())
	if err != nil {
		s.writeError(w, r, "dashboard", err)
		return
	}
	writeJSON(w, http.StatusOK, newDashboardView(d))
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request, userID string) {
	insights, err := s.svc.Analytics.Insights(r.Context(), userID, s.now())
	if err != nil {
		s.writeError(w, r, "insights", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"insights": nonNil(insights)})
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request, userID string) {
	forecasts, err := s.svc.Analytics.Predictions(r.Context(), userID, s.now())
	if err != nil {
		s.writeError(w, r, "predictions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"predictions": newForecastViews(forecasts)})
}

func (s *Server) handleSavingSuggestions(w http.ResponseWriter, r *http.Request, userID string) {
	suggestions, err := s.svc.Analytics.SavingSuggestions(r.Context(), userID, s.now())
	if err != nil {
		s.writeError(w, r, "saving_suggestions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": nonNil(suggestions)})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
