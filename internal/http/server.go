// Package http exposes the manual tick, account and transaction endpoints as
// a small JSON API.
package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"simbank/internal/auth"
	applog "simbank/internal/log"
	"simbank/internal/middleware/ratelimit"
	"simbank/internal/middleware/security"
	"simbank/internal/middleware/trace"
	"simbank/internal/services"
)

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Ticks    *services.TickService
	Query    *services.QueryService
	Accounts *services.AccountService
	Verifier auth.Verifier
	Logger   *applog.Logger

	Pinger         Pinger           // optional, consulted by /readyz
	RateLimit      ratelimit.Config // zero value uses ratelimit.DefaultConfig
	TrustedProxies []string
	Now            func() time.Time // defaults to time.Now
}

// Server wraps http.Server with the API routes and their middleware.
type Server struct {
	http.Server

	ticks    *services.TickService
	query    *services.QueryService
	accounts *services.AccountService
	verifier auth.Verifier
	pinger   Pinger
	now      func() time.Time

	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, d Deps) (*Server, error) {
	if d.Ticks == nil || d.Query == nil || d.Accounts == nil || d.Verifier == nil {
		return nil, errors.New("http server: missing dependency")
	}
	detector, err := security.NewDetector(d.TrustedProxies...)
	if err != nil {
		return nil, err
	}
	logger := d.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		ticks:    d.Ticks,
		query:    d.Query,
		accounts: d.Accounts,
		verifier: d.Verifier,
		pinger:   d.Pinger,
		now:      now,
		limiter:  ratelimit.NewLimiter(d.RateLimit),
		detector: detector,
	}
	s.tracer = trace.NewMiddleware(logger, detector.ClientIP)

	limited := s.limiter.Middleware(detector.ClientIP, s.handleRateLimited)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	s.Server = http.Server{
		Addr:              addr,
		Handler:           headers.Middleware(s.tracer.Middleware(s.withProbes(limited(http.HandlerFunc(s.route))))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// route dispatches on the path with trailing slashes removed, so /account and
// /account/ are the same endpoint.
func (s *Server) route(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET, OPTIONS")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	path := strings.TrimRight(r.URL.Path, "/")
	switch path {
	case "/healthz":
		s.handleHealth(w, r)
	case "/readyz":
		s.handleReady(w, r)
	case "/tick":
		s.authenticated(s.handleTick)(w, r)
	case "/api/account", "/account":
		s.authenticated(s.handleAccount)(w, r)
	case "/api/transactions", "/transactions":
		s.authenticated(s.handleTransactions)(w, r)
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "Not found", "path": path})
	}
}

// authenticated verifies the bearer token, registers the caller for the
// scheduled sweep and hands the user id to next. Nothing is written to the
// store when authentication fails.
func (s *Server) authenticated(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		token, ok := auth.BearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Missing Bearer token")
			return
		}
		userID, err := s.verifier.Verify(ctx, token)
		if err != nil {
			applog.FromContext(ctx).WithComponent(applog.ComponentAuth).WarnContext(ctx, "Token rejected",
				applog.NewFields().WithError(err).WithOperation(applog.OpValidate).ToSlice()...)
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}
		if err := s.accounts.RegisterUser(ctx, userID, s.now()); err != nil {
			s.internalError(w, r, "Failed to register user", err)
			return
		}
		next(w, r, userID)
	}
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()
	res, err := s.ticks.ManualTick(ctx, userID, r.URL.Query().Get("account"), s.now())

	var exceeded *services.QuotaExceededError
	switch {
	case errors.As(err, &exceeded):
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":     "daily_limit_reached",
			"used":      exceeded.Used,
			"cap":       exceeded.Cap,
			"remaining": 0,
			"account":   exceeded.Account,
		})
	case err != nil:
		s.internalError(w, r, "Manual tick failed", err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":        true,
			"remaining": res.Remaining,
			"item":      newTransactionJSON(res.Transaction),
			"account":   res.Account,
		})
	}
}

func (s *Server) handleAccount(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()
	ref, err := s.accounts.Resolve(userID, r.URL.Query().Get("account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	now := s.now()
	acct, err := s.accounts.Ensure(ctx, ref, now)
	if err != nil {
		s.internalError(w, r, "Failed to load account", err)
		return
	}
	usage, err := s.ticks.ManualStatus(ctx, ref, now)
	if err != nil {
		s.internalError(w, r, "Failed to read manual quota", err)
		return
	}
	body := newAccountJSON(acct)
	body.Manual = manualJSON{Used: usage.Used, Cap: usage.Cap, Remaining: usage.Remaining()}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request, userID string) {
	ctx := r.Context()
	opts, err := parseListOptions(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ref, err := s.accounts.Resolve(userID, r.URL.Query().Get("account"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.accounts.Ensure(ctx, ref, s.now()); err != nil {
		s.internalError(w, r, "Failed to load account", err)
		return
	}

	txs, err := s.query.ListTransactions(ctx, ref, opts)
	if err != nil {
		s.internalError(w, r, "Failed to list transactions", err)
		return
	}
	items := make([]transactionJSON, 0, len(txs))
	for _, tx := range txs {
		items = append(items, newTransactionJSON(tx))
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": ref.Type, "items": items})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			applog.FromContext(ctx).WithComponent(applog.ComponentStorage).WarnContext(ctx, "Readiness check failed",
				applog.FieldError, err.Error())
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	applog.FromContext(ctx).WithComponent(applog.ComponentRateLimit).WarnContext(ctx, "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ClientIP(r), applog.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "rate_limited")
}

// withProbes answers scanner traffic with a bare 404 before it reaches auth.
func (s *Server) withProbes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.IsProbe(r) {
			ctx := r.Context()
			applog.FromContext(ctx).WarnContext(ctx, "Suspicious request",
				applog.FieldClientIP, s.detector.ClientIP(r), applog.FieldPath, r.URL.Path)
			writeError(w, http.StatusNotFound, "Not found")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	ctx := r.Context()
	applog.NewStructuredLogger(applog.FromContext(ctx)).LogError(ctx, msg, err, applog.OpRead,
		applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, ""))
	writeError(w, http.StatusInternalServerError, "internal error")
}

// TraceMetrics exposes the request counters for the shutdown summary.
func (s *Server) TraceMetrics() trace.Metrics {
	return s.tracer.Metrics()
}

// Shutdown stops the rate limiter and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
