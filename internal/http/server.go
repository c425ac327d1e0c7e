package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"finlens/internal/log"
	"finlens/internal/middleware/ratelimit"
	"finlens/internal/middleware/security"
	"finlens/internal/middleware/trace"
	"finlens/internal/services"
)

const handlerTimeout = 30 * time.Second

// Services are the application services the API exposes.
type Services struct {
	Users     *services.UserService
	Accounts  *services.AccountService
	Budgets   *services.BudgetService
	Alerts    *services.AlertService
	Analytics *services.AnalyticsService
	Sync      *services.SyncService
}

// Pinger is implemented by stores that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	RateLimit ratelimit.Config
	// Ready is checked by /readyz when set.
	Ready Pinger
}

type Server struct {
	http.Server
	svc    Services
	logger *log.Logger
	ready  Pinger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	headers          *security.HeadersMiddleware

	startedAt    time.Time
	now          func() time.Time
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc Services, logger *log.Logger, opts Options) *Server {
	mux := http.NewServeMux()

	detector := security.NewDetector()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      45 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16,
		},
		svc:              svc,
		logger:           logger.WithComponent(log.ComponentHTTP),
		ready:            opts.Ready,
		rateLimiter:      ratelimit.NewLimiter(opts.RateLimit),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, logger),
		headers:          security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		startedAt:        time.Now(),
		now:              time.Now,
	}

	s.routes(mux)
	s.Handler = s.chain(mux)
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.Handle("POST /api/auth/sync", s.authed(s.handleAuthSync))
	mux.Handle("GET /api/auth/me", s.authed(s.handleMe))

	mux.Handle("POST /api/accounts/link/token", s.authed(s.handleLinkToken))
	mux.Handle("POST /api/accounts/link/exchange", s.authed(s.handleLinkExchange))
	mux.Handle("GET /api/accounts", s.authed(s.handleListAccounts))
	mux.Handle("GET /api/accounts/{id}", s.authed(s.handleGetAccount))
	mux.Handle("POST /api/accounts/{id}/sync", s.authed(s.handleSyncAccount))

	mux.Handle("GET /api/transactions", s.authed(s.handleListTransactions))
	mux.Handle("GET /api/transactions/analytics/by-category", s.authed(s.handleSpendingByCategory))
	mux.Handle("GET /api/transactions/{id}", s.authed(s.handleGetTransaction))
	mux.Handle("GET /api/transactions/{id}/anomaly", s.authed(s.handleCheckAnomaly))

	mux.Handle("GET /api/budgets", s.authed(s.handleListBudgets))
	mux.Handle("POST /api/budgets", s.authed(s.handleCreateBudget))
	mux.Handle("GET /api/budgets/status", s.authed(s.handleBudgetStatus))
	mux.Handle("PUT /api/budgets/{id}", s.authed(s.handleUpdateBudget))
	mux.Handle("DELETE /api/budgets/{id}", s.authed(s.handleDeleteBudget))

	mux.Handle("GET /api/analytics/dashboard", s.authed(s.handleDashboard))
	mux.Handle("GET /api/analytics/insights", s.authed(s.handleInsights))
	mux.Handle("GET /api/analytics/predictions", s.authed(s.handlePredictions))
	mux.Handle("GET /api/analytics/savings-suggestions", s.authed(s.handleSavingSuggestions))

	mux.Handle("GET /api/alerts", s.authed(s.handleListAlerts))
	mux.Handle("PUT /api/alerts/read-all", s.authed(s.handleMarkAllAlertsRead))
	mux.Handle("PUT /api/alerts/{id}/read", s.authed(s.handleMarkAlertRead))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeErrorMessage(w, http.StatusNotFound, "route not found")
	})
}

// chain wraps h so the outermost middleware runs first: tracing, headers,
// probe detection, then rate limiting.
func (s *Server) chain(h http.Handler) http.Handler {
	h = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
			log.FieldPath, r.URL.Path)
		writeErrorMessage(w, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
	})(h)
	h = s.securityDetector.Middleware(s.logger)(h)
	h = s.headers.Middleware(h)
	return s.traceMiddleware.Middleware(h)
}

type authedHandler func(w http.ResponseWriter, r *http.Request, userID string)

// authed resolves the gateway identity and bounds the handler's runtime.
func (s *Server) authed(h authedHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromRequest(r)
		if err != nil {
			s.writeError(w, r, "auth", err)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
		defer cancel()
		ctx = log.NewContext(ctx, log.FromContext(ctx).With(log.FieldUserID, userID))
		h(w, r.WithContext(ctx), userID)
	})
}

// Shutdown stops background routines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
