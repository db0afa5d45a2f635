// Package trace stamps every request with an id and logs its start and end.
package trace

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	applog "simbank/internal/log"
)

type contextKey struct{}

// Middleware handles request tracing and logging.
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *applog.Logger
	log       *applog.StructuredLogger

	totalRequests atomic.Int64
	serverErrors  atomic.Int64
	lastDuration  atomic.Int64 // microseconds
}

// Metrics is a snapshot of the in-process request counters.
type Metrics struct {
	TotalRequests    int64
	ServerErrors     int64
	LastResponseTime time.Duration
}

func NewMiddleware(logger *applog.Logger, extractIP func(*http.Request) string) *Middleware {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentTrace)
	return &Middleware{
		extractIP: extractIP,
		logger:    logger,
		log:       applog.NewStructuredLogger(logger),
	}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), contextKey{}, requestID)
		ctx = applog.WithContext(ctx, m.logger.With(applog.FieldRequestID, requestID))
		r = r.WithContext(ctx)

		m.log.LogHTTPStart(ctx, r, clientIP)
		m.totalRequests.Add(1)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		m.lastDuration.Store(duration.Microseconds())
		if rw.statusCode >= 500 {
			m.serverErrors.Add(1)
		}
		m.log.LogHTTPEnd(ctx, r, rw.statusCode, duration.Milliseconds(), clientIP)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// GenerateRequestID returns "req_" followed by 16 hex digits.
func GenerateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}

// RequestID returns the id the middleware stored in ctx, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}

func (m *Middleware) Metrics() Metrics {
	return Metrics{
		TotalRequests:    m.totalRequests.Load(),
		ServerErrors:     m.serverErrors.Load(),
		LastResponseTime: time.Duration(m.lastDuration.Load()) * time.Microsecond,
	}
}
