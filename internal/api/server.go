// Package api provides the HTTP server for kami: the public card
// verification endpoint plus the token-protected admin surface.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/KeaPin/kami/internal/app/redeem"
	"github.com/KeaPin/kami/internal/infra/auth"
	"github.com/KeaPin/kami/internal/infra/observability"
	"github.com/KeaPin/kami/internal/infra/sqlite"
)

// Error codes returned in the response envelope.
const (
	codeMissingCardKey      = "MISSING_CARD_KEY"
	codeInvalidFormat       = "INVALID_FORMAT"
	codeInvalidCard         = "INVALID_CARD"
	codeInvalidRequest      = "INVALID_REQUEST"
	codeInvalidCount        = "INVALID_COUNT"
	codeInvalidMaxUses      = "INVALID_MAX_USES"
	codeMissingResources    = "MISSING_RESOURCES"
	codeUnknownResource     = "UNKNOWN_RESOURCE"
	codeGenerationExhausted = "GENERATION_EXHAUSTED"
	codeInvalidCredentials  = "INVALID_CREDENTIALS"
	codeNotFound            = "NOT_FOUND"
	codeServerError         = "SERVER_ERROR"
)

// Server is the kami HTTP API server.
type Server struct {
	store   *sqlite.DB
	engine  *redeem.Engine
	issuer  *redeem.Issuer
	auth    *auth.Service
	metrics *observability.Metrics

	// Verification attempts allowed per client IP per minute.
	verifyPerMinute int
}

// NewServer wires the API server.
func NewServer(store *sqlite.DB, engine *redeem.Engine, issuer *redeem.Issuer, authSvc *auth.Service, metrics *observability.Metrics, verifyPerMinute int) *Server {
	return &Server{
		store:           store,
		engine:          engine,
		issuer:          issuer,
		auth:            authSvc,
		metrics:         metrics,
		verifyPerMinute: verifyPerMinute,
	}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", s.metrics.Handler())

	// Public verification endpoint. Rate limited per IP so the code space
	// cannot be brute forced at interesting speed.
	r.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.verifyPerMinute, time.Minute))
		r.Post("/api/verify", s.handleVerify)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Post("/auth", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(s.auth.TokenAuth()))
			r.Use(jwtauth.Authenticator)

			r.Route("/cards", func(r chi.Router) {
				r.Get("/", s.handleListCards)
				r.Post("/", s.handleCreateCards)
				r.Get("/{id}", s.handleGetCard)
				r.Delete("/{id}", s.handleDeleteCard)
				r.Post("/{id}/disable", s.handleDisableCard)
				r.Get("/{id}/usage", s.handleCardUsage)
			})

			r.Route("/resources", func(r chi.Router) {
				r.Get("/", s.handleListResources)
				r.Post("/", s.handleCreateResource)
				r.Delete("/{id}", s.handleDeleteResource)
				r.Post("/{id}/disable", s.handleDisableResource)
			})

			r.Get("/stats", s.handleStats)
		})
	})

	return r
}

// ─── Response Envelope ──────────────────────────────────────────────────────
// Every endpoint answers {"success": true, "data": ...} or
// {"success": false, "error": {"code": ..., "message": ...}}.

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: &apiError{Code: code, Message: msg}})
}

// requestLogger logs one line per request with method, path, status, and
// duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start).String(),
			"remote":   r.RemoteAddr,
		}).Info("request")
	})
}
