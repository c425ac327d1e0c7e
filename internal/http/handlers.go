package http

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady reports not_ready while the store is unreachable.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]any{
		"rate_limiter": map[string]any{"active_clients": s.rateLimiter.ActiveClients()},
	}
	status, code := "ready", http.StatusOK

	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.ready.Ping(ctx); err != nil {
			checks["store"] = fmt.Sprintf("failed: %v", err)
			status, code = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["store"] = "ok"
		}
	}
	if s.svc.Analytics != nil {
		st := s.svc.Analytics.DashboardCache().Stats()
		checks["dashboard_cache"] = map[string]any{"entries": st.Size}
	}

	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "counter", "HTTP responses with a 5xx status", traceMetrics.ServerErrors)
	metric("rate_limit_hits_total", "counter", "Requests rejected by the rate limiter", rateMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Requests matching probe patterns", securityMetrics.SuspiciousRequests)

	if s.svc.Analytics != nil {
		st := s.svc.Analytics.DashboardCache().Stats()
		metric("dashboard_cache_entries", "gauge", "Cached dashboards", st.Size)
		metric("dashboard_cache_hits_total", "counter", "Dashboard cache hits", st.Hits)
		metric("dashboard_cache_misses_total", "counter", "Dashboard cache misses", st.Misses)
	}
	metric("uptime_seconds", "gauge", "Process uptime in seconds", int64(time.Since(s.startedAt).Seconds()))
}
