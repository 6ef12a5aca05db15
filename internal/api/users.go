package api

import (
	"encoding/json"
	"net/http"

	"github.com/andrew-thompson-55/trainer-2.0/internal/auth"
	"github.com/andrew-thompson-55/trainer-2.0/internal/store"
)

type googleLoginRequest struct {
	IDToken string `json:"id_token"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	User      *store.User `json:"user"`
	IsNewUser bool        `json:"is_new_user"`
}

// handleGoogleLogin verifies a Google ID token, finds or creates the
// account, and issues a session token.
func (s *Server) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	var req googleLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDToken == "" {
		s.errorResponse(w, http.StatusBadRequest, "id_token is required")
		return
	}

	ident, err := s.google.Verify(r.Context(), req.IDToken)
	if err != nil {
		s.logger.Warn("google token rejected", "error", err)
		s.errorResponse(w, http.StatusUnauthorized, "invalid Google token")
		return
	}

	existing, err := s.store.GetUserByEmail(r.Context(), ident.Email)
	if err != nil && !isNotFound(err) {
		s.errorResponse(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	isNew := existing == nil

	user, err := s.store.GetOrCreateUser(r.Context(), ident.Email, ident.Name, ident.Subject)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "account creation failed")
		return
	}

	token, err := s.sessions.Issue(user.ID, user.Email)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "token issue failed")
		return
	}

	s.logger.Info("user signed in", "user_id", user.ID, "new", isNew)
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, loginResponse{Token: token, User: user, IsNewUser: isNew}, s.logger)
}

// handleAuthVerify confirms the session token and returns the account.
func (s *Server) handleAuthVerify(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUser(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "account no longer exists")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"valid": true, "user": user}, s.logger)
}

type profileUpdateRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req profileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		s.errorResponse(w, http.StatusBadRequest, "name is required")
		return
	}

	user, err := s.store.GetUser(r.Context(), userID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	user, err = s.store.GetOrCreateUser(r.Context(), user.Email, req.Name, user.GoogleID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "profile update failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, user, s.logger)
}

// handleDeleteAccount removes the account and everything under it.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if err := s.store.DeleteUser(r.Context(), userID); err != nil {
		s.storeError(w, err)
		return
	}
	s.logger.Info("account deleted", "user_id", userID)
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "deleted"}, s.logger)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetSettings(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, settingsResponse(settings), s.logger)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var upd store.SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	settings, err := s.store.UpdateSettings(r.Context(), auth.UserID(r.Context()), &upd)
	if err != nil {
		s.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, settingsResponse(settings), s.logger)
}

// settingsResponse augments the settings row with the connection flag
// without exposing the stored tokens.
func settingsResponse(st *store.Settings) map[string]any {
	return map[string]any{
		"settings":         st,
		"strava_connected": st.StravaConnected(),
	}
}
