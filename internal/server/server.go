package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jonathan/ai-visibility/internal/config"
	"github.com/jonathan/ai-visibility/internal/correlation"
	"github.com/jonathan/ai-visibility/internal/deepdive"
	"github.com/jonathan/ai-visibility/internal/orchestrator"
	"github.com/jonathan/ai-visibility/internal/report"
	"github.com/jonathan/ai-visibility/internal/server/middleware"
	"github.com/jonathan/ai-visibility/internal/server/ratelimit"
	"github.com/jonathan/ai-visibility/internal/subscription"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Config holds server configuration
type Config struct {
	Port       int
	BackendURL string // shown by the config check; empty in local mode
}

// Deps are the services behind the API. Runs, Reports, Resolver, Business
// and DeepDives are required. A nil Usage tracker counts in memory; a nil
// JWT disables every route that needs a caller identity.
type Deps struct {
	Runs      *orchestrator.Service
	Reports   *report.Builder
	Resolver  *correlation.Resolver
	Business  *config.BusinessStore
	DeepDives *deepdive.Service
	Usage     *subscription.Tracker
	JWT       *JWTService
	Passwords *config.PasswordConfig
	Admin     *config.AdminConfig
	RateLimit *ratelimit.Config
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	backendURL  string
	runs        *orchestrator.Service
	reports     *report.Builder
	resolver    *correlation.Resolver
	business    *config.BusinessStore
	deepDives   *deepdive.Service
	usage       *subscription.Tracker
	jwt         *JWTService
	passwords   *config.PasswordConfig
	admin       *config.AdminConfig
	rateLimiter *ratelimit.Limiter
}

// New creates a new server instance
func New(cfg Config, deps Deps) (*Server, error) {
	switch {
	case deps.Runs == nil:
		return nil, fmt.Errorf("server: run service is required")
	case deps.Reports == nil || deps.Resolver == nil:
		return nil, fmt.Errorf("server: report builder and resolver are required")
	case deps.Business == nil:
		return nil, fmt.Errorf("server: business store is required")
	case deps.DeepDives == nil:
		return nil, fmt.Errorf("server: deep dive service is required")
	}
	if deps.Usage == nil {
		deps.Usage = subscription.NewTracker(subscription.NewMemoryUsage())
	}

	s := &Server{
		backendURL:  cfg.BackendURL,
		runs:        deps.Runs,
		reports:     deps.Reports,
		resolver:    deps.Resolver,
		business:    deps.Business,
		deepDives:   deps.DeepDives,
		usage:       deps.Usage,
		jwt:         deps.JWT,
		passwords:   deps.Passwords,
		admin:       deps.Admin,
		rateLimiter: ratelimit.NewLimiter(deps.RateLimit),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	// Test runs
	mux.Handle("POST /api/test/run", s.optionalUser(s.handleTestRun))
	mux.HandleFunc("GET /api/test/status/{id}", s.handleTestStatus)
	mux.HandleFunc("GET /api/test/status/{id}/stream", s.handleTestStream)
	mux.HandleFunc("GET /api/test/config-check", s.handleConfigCheck)

	// Usage and tier gating
	mux.Handle("GET /api/test/usage", s.requireUser(s.handleGetUsage))
	mux.Handle("POST /api/test/usage", s.requireUser(s.handleIncrementUsage))
	mux.Handle("GET /api/user/can-run-test", s.requireUser(s.handleCanRunTest))

	// Business profile
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("POST /api/config", s.handleSaveConfig)

	// Reports
	mux.HandleFunc("GET /api/reports", s.handleListReports)
	mux.HandleFunc("GET /api/reports/{id}", s.handleGetReport)
	mux.HandleFunc("GET /api/reports/{id}/html", s.handleReportHTML)
	mux.HandleFunc("GET /api/reports/{id}/responses", s.handleReportResponses)
	mux.HandleFunc("GET /api/reports/{id}/download", s.handleDownloadQueries)
	mux.HandleFunc("GET /api/reports/{id}/download-responses", s.handleDownloadResponses)
	mux.HandleFunc("DELETE /api/reports/{id}", s.handleDeleteReport)

	// Deep dives
	mux.HandleFunc("POST /api/deep-dive/submit", s.handleSubmitDeepDive)
	mux.HandleFunc("GET /api/deep-dive/track/{id}", s.handleTrackDeepDive)
	mux.Handle("GET /api/deep-dive/admin/all", s.requireAdmin(s.handleListDeepDives))
	mux.Handle("POST /api/deep-dive/admin/update", s.requireAdmin(s.handleUpdateDeepDive))
	mux.Handle("DELETE /api/deep-dive/admin/delete", s.requireAdmin(s.handleDeleteDeepDive))

	mux.HandleFunc("POST /api/admin/login", s.handleAdminLogin)

	// Remote runs block for up to the poll ceiling, so writes get more
	// time than the five minutes of polling.
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(mux))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 330 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[server] listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		s.rateLimiter.Stop()
		return fmt.Errorf("server error: %w", err)
	}
	log.Println("[server] shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.rateLimiter.Stop()
	log.Println("[server] stopped")
	return nil
}

// Close stops background work without serving; used when Start is not.
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

// requireUser wraps h with mandatory authentication.
func (s *Server) requireUser(h http.HandlerFunc) http.Handler {
	if s.jwt == nil {
		return s.authDisabled()
	}
	return middleware.AuthMiddleware(s.jwt.AsTokenValidator())(h)
}

// optionalUser attaches the caller's identity when a token is sent.
func (s *Server) optionalUser(h http.HandlerFunc) http.Handler {
	if s.jwt == nil {
		return h
	}
	return middleware.OptionalAuth(s.jwt.AsTokenValidator())(h)
}

// requireAdmin wraps h so only admin tokens get through.
func (s *Server) requireAdmin(h http.HandlerFunc) http.Handler {
	if s.jwt == nil {
		return s.authDisabled()
	}
	return middleware.RequireAdmin(s.jwt.AsTokenValidator())(h)
}

func (s *Server) authDisabled() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, config.ErrAuthDisabled)
	})
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(clientID(r), r.URL.Path, r.Method)
		if info.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
		}
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimitResponse writes a 429 Too Many Requests response.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	body := map[string]any{
		"error":    "rate_limit_exceeded",
		"message":  "Rate limit exceeded. Please try again later.",
		"limit":    info.Limit,
		"reset_at": info.ResetTime.Format(time.RFC3339),
	}
	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds()) + 1
		body["retry_after"] = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	log.Printf("[rate-limit] limit=%d reset=%s", info.Limit, info.ResetTime.Format(time.RFC3339))
	s.jsonResponse(w, http.StatusTooManyRequests, body)
}

// clientID identifies the caller by remote IP.
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	mode := "local"
	if s.runs.RemoteMode() {
		mode = "remote"
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok", "mode": mode})
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[server] error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// writeError maps err to a status and JSON body. Server-side failures are
// logged.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[server] %v", err)
	}
	s.jsonResponse(w, status, errorBody(err))
}

// writeDownload sends a file body; attachment sets the download filename.
func (s *Server) writeDownload(w http.ResponseWriter, d *report.Download, attachment bool) {
	w.Header().Set("Content-Type", d.ContentType)
	if attachment && d.Filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.Filename))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(d.Body); err != nil {
		log.Printf("[server] error writing %s: %v", d.Filename, err)
	}
}
