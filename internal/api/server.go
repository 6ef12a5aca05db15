// Package api implements the Trainer HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/andrew-thompson-55/trainer-2.0/internal/agent"
	"github.com/andrew-thompson-55/trainer-2.0/internal/auth"
	"github.com/andrew-thompson-55/trainer-2.0/internal/buildinfo"
	"github.com/andrew-thompson-55/trainer-2.0/internal/push"
	"github.com/andrew-thompson-55/trainer-2.0/internal/store"
	"github.com/andrew-thompson-55/trainer-2.0/internal/strava"
)

// writeJSON encodes v as JSON to w, logging any errors at debug level.
// Errors here typically mean the client disconnected mid-response,
// which is not actionable but worth tracking for debugging.
func writeJSON(w http.ResponseWriter, v any, logger *slog.Logger) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("failed to write JSON response", "error", err)
	}
}

// Server is the HTTP API server.
type Server struct {
	address         string
	port            int
	loop            *agent.Loop
	store           *store.Store
	sessions        *auth.Sessions
	google          *auth.GoogleVerifier
	stravaClient    *strava.Client
	reconciler      *strava.Reconciler
	hub             *push.Hub
	stravaVerifyTok string
	logger          *slog.Logger
	server          *http.Server
}

// NewServer creates a new API server. The Strava client, reconciler
// and agent loop may be nil when the integrations are unconfigured;
// their routes return 503.
func NewServer(address string, port int, st *store.Store, sessions *auth.Sessions, google *auth.GoogleVerifier, logger *slog.Logger) *Server {
	return &Server{
		address:  address,
		port:     port,
		store:    st,
		sessions: sessions,
		google:   google,
		hub:      push.NewHub(logger),
		logger:   logger,
	}
}

// SetLoop configures the agent loop for the chat endpoints.
func (s *Server) SetLoop(loop *agent.Loop) {
	s.loop = loop
}

// SetStrava configures the Strava integration endpoints.
func (s *Server) SetStrava(client *strava.Client, rec *strava.Reconciler, verifyToken string) {
	s.stravaClient = client
	s.reconciler = rec
	s.stravaVerifyTok = verifyToken
}

// Hub returns the push hub so other components can deliver messages.
func (s *Server) Hub() *push.Hub {
	return s.hub
}

// Start begins serving HTTP requests.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.address, s.port),
		Handler:      s.withLogging(s.routes()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // agent runs can be slow
	}

	addr := s.address
	if addr == "" {
		addr = "0.0.0.0"
	}
	s.logger.Info("starting API server", "address", addr, "port", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Auth and account endpoints
	mux.HandleFunc("POST /v1/auth/google", s.handleGoogleLogin)
	mux.HandleFunc("GET /v1/auth/verify", s.requireAuth(s.handleAuthVerify))
	mux.HandleFunc("PUT /v1/users/profile", s.requireAuth(s.handleUpdateProfile))
	mux.HandleFunc("DELETE /v1/users/me", s.requireAuth(s.handleDeleteAccount))

	// Settings
	mux.HandleFunc("GET /v1/settings", s.requireAuth(s.handleGetSettings))
	mux.HandleFunc("PUT /v1/settings", s.requireAuth(s.handleUpdateSettings))

	// Coach chat
	mux.HandleFunc("POST /v1/chat", s.requireAuth(s.handleChat))
	mux.HandleFunc("GET /v1/chat/ws", s.requireAuth(s.handleChatSocket))

	// Training plan
	mux.HandleFunc("POST /v1/workouts", s.requireAuth(s.handleCreateWorkout))
	mux.HandleFunc("GET /v1/workouts", s.requireAuth(s.handleListWorkouts))
	mux.HandleFunc("GET /v1/workouts/{id}", s.requireAuth(s.handleGetWorkout))
	mux.HandleFunc("PATCH /v1/workouts/{id}", s.requireAuth(s.handleUpdateWorkout))
	mux.HandleFunc("DELETE /v1/workouts/{id}", s.requireAuth(s.handleDeleteWorkout))
	mux.HandleFunc("GET /v1/workouts/{id}/activity", s.requireAuth(s.handleWorkoutActivity))

	// Wellness logs
	mux.HandleFunc("PUT /v1/daily-logs/{date}", s.requireAuth(s.handleUpsertDailyLog))
	mux.HandleFunc("GET /v1/daily-logs/{date}", s.requireAuth(s.handleGetDailyLog))
	mux.HandleFunc("GET /v1/daily-logs", s.requireAuth(s.handleListDailyLogs))

	// Completed activities
	mux.HandleFunc("GET /v1/activities", s.requireAuth(s.handleListActivities))

	// Strava integration
	mux.HandleFunc("GET /v1/integrations/strava/auth-url", s.requireAuth(s.handleStravaAuthURL))
	mux.HandleFunc("POST /v1/integrations/strava/exchange", s.requireAuth(s.handleStravaExchange))
	mux.HandleFunc("POST /v1/integrations/strava/backfill", s.requireAuth(s.handleStravaBackfill))
	mux.HandleFunc("GET /v1/webhooks/strava", s.handleStravaWebhookVerify)
	mux.HandleFunc("POST /v1/webhooks/strava", s.handleStravaWebhookEvent)

	// Health endpoints
	mux.HandleFunc("GET /v1/version", s.handleVersion)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /", s.handleRoot)

	return mux
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// requireAuth validates the Bearer token and stashes the user id in
// the request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.errorResponse(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		userID, err := s.sessions.Verify(token)
		if err != nil {
			s.errorResponse(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) <= len(prefix) || h[:len(prefix)] != prefix {
		return "", false
	}
	return h[len(prefix):], true
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"name":    "Trainer",
		"version": buildinfo.Version,
		"status":  "ok",
	}, s.logger)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, buildinfo.Info(), s.logger)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "healthy"}, s.logger)
}

func (s *Server) errorResponse(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	writeJSON(w, map[string]any{
		"error": map[string]any{
			"message": message,
			"code":    code,
		},
	}, s.logger)
}

// storeError maps store failures onto HTTP status codes.
func (s *Server) storeError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	if isNotFound(err) {
		s.errorResponse(w, http.StatusNotFound, "not found")
		return
	}
	s.errorResponse(w, http.StatusBadRequest, err.Error())
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
