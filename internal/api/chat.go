package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/andrew-thompson-55/trainer-2.0/internal/auth"
	"github.com/andrew-thompson-55/trainer-2.0/internal/push"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The mobile app connects from a custom scheme; token auth
	// already gates the upgrade.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type chatRequest struct {
	Message string `json:"message"`
}

// handleChat runs one agent turn and returns the coach's reply. The
// reply is also pushed to any open websocket so other devices stay in
// sync.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.loop == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "coach is not configured")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		s.errorResponse(w, http.StatusBadRequest, "message is required")
		return
	}

	userID := auth.UserID(r.Context())
	result, err := s.loop.Run(r.Context(), userID, req.Message)
	if err != nil {
		s.logger.Error("agent run failed", "user_id", userID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "coach is unavailable right now")
		return
	}

	s.hub.Send(userID, &push.Message{Type: "coach_reply", Payload: result})

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, result, s.logger)
}

// handleChatSocket upgrades to a websocket and registers it with the
// push hub. The connection is read until the client goes away; pushed
// messages are the only server-to-client traffic.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	s.hub.Register(userID, conn)
	s.logger.Info("websocket connected", "user_id", userID)

	go func() {
		defer s.hub.Unregister(userID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
