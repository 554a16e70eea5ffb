package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"receiptdash/internal/cache"
	"receiptdash/internal/dashboard"
	"receiptdash/internal/identity"
	"receiptdash/internal/log"
	"receiptdash/internal/middleware/ratelimit"
)

type Server struct {
	http.Server
	logger     *log.Logger
	controller *dashboard.Controller
	idp        *identity.Client

	rateLimiter *ratelimit.Limiter

	// LRU cache for rendered dashboard payloads, keyed by dataset
	// version plus the chart controls. A new version changes the key,
	// so committed data is never served stale.
	snapshotCache *cache.LRUCache[[]byte]
	cacheManager  *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// The identity client may be nil when running against the memory backend.
func NewServer(addr string, controller *dashboard.Controller, idp *identity.Client, logger *log.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger:        logger.WithComponent(log.ComponentHTTP),
		controller:    controller,
		idp:           idp,
		rateLimiter:   ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		snapshotCache: cache.NewLRUCache[[]byte](100, 5*time.Minute),
		cacheManager:  cache.NewManager(),
	}

	s.cacheManager.Register(s.snapshotCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/api/dashboard", s.withSecurityHeaders(s.handleDashboard))
	mux.HandleFunc("/api/refresh", s.withSecurityHeaders(s.handleRefresh))
	mux.HandleFunc("/api/chart/toggle", s.withSecurityHeaders(s.handleChartToggle))
	mux.HandleFunc("/api/receipts", s.withSecurityHeaders(s.handleReceipts))
	mux.HandleFunc("/export.csv", s.withSecurityHeaders(s.handleExportCSV))

	mux.HandleFunc("/auth/signup", s.withSecurityHeaders(s.handleSignUp))
	mux.HandleFunc("/auth/confirm", s.withSecurityHeaders(s.handleConfirm))
	mux.HandleFunc("/auth/signin", s.withSecurityHeaders(s.handleSignIn))
	mux.HandleFunc("/auth/signout", s.withSecurityHeaders(s.handleSignOut))

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurityHeaders adds security headers, rate limiting, and request logging to responses
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := clientAddress(r)
		requestID := "req_" + uuid.NewString()

		ctx := r.Context()
		reqLogger := s.logger.With(log.FieldRequestID, requestID)

		reqLogger.InfoContext(ctx, "Request started",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP,
			log.FieldUserAgent, r.Header.Get("User-Agent"))

		// Rate limit mutating requests only; dashboard reads are cheap.
		if r.Method == http.MethodPost && !s.rateLimiter.Allow(clientIP) {
			reqLogger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeMessage(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.", toastError)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Request-ID", requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		reqLogger.InfoContext(ctx, "Request completed",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, duration.Milliseconds(),
			log.FieldClientIP, clientIP)
	}
}

// clientAddress extracts the client IP, considering proxies.
func clientAddress(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
