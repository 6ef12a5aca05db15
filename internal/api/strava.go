package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/andrew-thompson-55/trainer-2.0/internal/auth"
	"github.com/andrew-thompson-55/trainer-2.0/internal/strava"
)

// handleStravaAuthURL returns the OAuth consent URL the app should
// open in a browser.
func (s *Server) handleStravaAuthURL(w http.ResponseWriter, r *http.Request) {
	if s.stravaClient == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "strava is not configured")
		return
	}

	redirectURI := r.URL.Query().Get("redirect_uri")
	if redirectURI == "" {
		s.errorResponse(w, http.StatusBadRequest, "redirect_uri is required")
		return
	}
	state := r.URL.Query().Get("state")

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{
		"url": s.stravaClient.AuthorizeURL(redirectURI, state),
	}, s.logger)
}

type stravaExchangeRequest struct {
	Code string `json:"code"`
}

// handleStravaExchange trades the OAuth code for tokens and kicks off
// a background backfill of recent history.
func (s *Server) handleStravaExchange(w http.ResponseWriter, r *http.Request) {
	if s.stravaClient == nil || s.reconciler == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "strava is not configured")
		return
	}

	var req stravaExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		s.errorResponse(w, http.StatusBadRequest, "code is required")
		return
	}

	userID := auth.UserID(r.Context())
	athleteID, err := s.stravaClient.ExchangeCode(r.Context(), userID, req.Code)
	if err != nil {
		s.logger.Warn("strava code exchange failed", "user_id", userID, "error", err)
		s.errorResponse(w, http.StatusBadGateway, "code exchange failed")
		return
	}

	// Pull the last month of history without holding the request.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if res, err := s.reconciler.Backfill(ctx, userID, 30); err != nil {
			s.logger.Warn("initial backfill failed", "user_id", userID, "error", err)
		} else {
			s.logger.Info("initial backfill complete", "user_id", userID,
				"synced", res.Synced, "errors", res.Errors)
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"connected": true, "athlete_id": athleteID}, s.logger)
}

type backfillRequest struct {
	Days int `json:"days"`
}

func (s *Server) handleStravaBackfill(w http.ResponseWriter, r *http.Request) {
	if s.reconciler == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "strava is not configured")
		return
	}

	var req backfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.reconciler.Backfill(r.Context(), auth.UserID(r.Context()), req.Days)
	if err != nil {
		s.errorResponse(w, http.StatusBadGateway, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, result, s.logger)
}

// handleStravaWebhookVerify answers the subscription validation
// handshake: echo hub.challenge when the verify token matches.
func (s *Server) handleStravaWebhookVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.verify_token") != s.stravaVerifyTok || s.stravaVerifyTok == "" {
		s.errorResponse(w, http.StatusForbidden, "verify token mismatch")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"hub.challenge": q.Get("hub.challenge")}, s.logger)
}

// handleStravaWebhookEvent acknowledges immediately and processes in
// the background; Strava retries deliveries that take too long.
func (s *Server) handleStravaWebhookEvent(w http.ResponseWriter, r *http.Request) {
	var ev strava.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid event payload")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "accepted"}, s.logger)

	if s.reconciler == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.reconciler.HandleEvent(ctx, &ev); err != nil {
			s.logger.Warn("webhook event failed",
				"object_id", ev.ObjectID, "aspect", ev.AspectType, "error", err)
		}
	}()
}
