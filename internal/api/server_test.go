package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/andrew-thompson-55/trainer-2.0/internal/auth"
	"github.com/andrew-thompson-55/trainer-2.0/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	s := NewServer("", 0, st, auth.NewSessions("test-secret", 1), auth.NewGoogleVerifier("client-id", logger), logger)
	return s, st
}

// authedRequest builds a request carrying a valid session token for
// the given user.
func authedRequest(t *testing.T, s *Server, method, path, body string) *http.Request {
	t.Helper()
	token, err := s.sessions.Issue("u1", "athlete@example.com")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	var rd io.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	return rec
}

func TestAuth_MissingToken(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, httptest.NewRequest("GET", "/v1/workouts", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAuth_BadToken(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/v1/workouts", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := doRequest(s, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestGoogleLogin_MissingToken(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, httptest.NewRequest("POST", "/v1/auth/google", strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestWorkouts_CreateAndGet(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"title":"Tempo run","activity_type":"run","start_time":"2026-03-10T07:00:00Z","end_time":"2026-03-10T08:00:00Z"}`
	rec := doRequest(s, authedRequest(t, s, "POST", "/v1/workouts", body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}

	var created store.Workout
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != store.StatusPlanned {
		t.Errorf("status = %q, want planned", created.Status)
	}

	rec = doRequest(s, authedRequest(t, s, "GET", "/v1/workouts/"+created.ID, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got store.Workout
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Title != "Tempo run" {
		t.Errorf("title = %q", got.Title)
	}
}

func TestWorkouts_CreateDefaultsEndTime(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"title":"Easy spin","activity_type":"bike","start_time":"2026-03-10T07:00:00Z"}`
	rec := doRequest(s, authedRequest(t, s, "POST", "/v1/workouts", body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}

	var created store.Workout
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := created.EndTime.Sub(created.StartTime); got != time.Hour {
		t.Errorf("duration = %v, want 1h", got)
	}
}

func TestWorkouts_PatchStatus(t *testing.T) {
	s, st := newTestServer(t)

	start := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	w, err := st.CreateWorkout(context.Background(), &store.Workout{
		UserID:       "u1",
		Title:        "Long run",
		ActivityType: store.ActivityRun,
		StartTime:    start,
		EndTime:      start.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("seed workout: %v", err)
	}

	rec := doRequest(s, authedRequest(t, s, "PATCH", "/v1/workouts/"+w.ID, `{"status":"completed"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got store.Workout
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != store.StatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if !got.StartTime.Equal(start) {
		t.Errorf("start moved to %v", got.StartTime)
	}
}

func TestWorkouts_GetMissing(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, authedRequest(t, s, "GET", "/v1/workouts/nope", ""))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestWorkouts_OtherUserInvisible(t *testing.T) {
	s, st := newTestServer(t)

	start := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	w, err := st.CreateWorkout(context.Background(), &store.Workout{
		UserID:       "u2",
		Title:        "Private",
		ActivityType: store.ActivityRun,
		StartTime:    start,
		EndTime:      start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("seed workout: %v", err)
	}

	rec := doRequest(s, authedRequest(t, s, "GET", "/v1/workouts/"+w.ID, ""))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDailyLogs_PutAndGet(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, authedRequest(t, s, "PUT", "/v1/daily-logs/2026-03-10", `{"sleep_total":7.5,"soreness":3}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(s, authedRequest(t, s, "GET", "/v1/daily-logs/2026-03-10", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got store.DailyLog
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SleepTotal == nil || *got.SleepTotal != 7.5 {
		t.Errorf("sleep_total = %v, want 7.5", got.SleepTotal)
	}
	if got.Soreness == nil || *got.Soreness != 3 {
		t.Errorf("soreness = %v, want 3", got.Soreness)
	}
}

func TestSettings_UpdateRoundTrip(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, authedRequest(t, s, "PUT", "/v1/settings", `{"training_goals":"sub-3 marathon","timezone":"America/Denver"}`))
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(s, authedRequest(t, s, "GET", "/v1/settings", ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got struct {
		Settings        store.Settings `json:"settings"`
		StravaConnected bool           `json:"strava_connected"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Settings.TrainingGoals != "sub-3 marathon" {
		t.Errorf("training_goals = %q", got.Settings.TrainingGoals)
	}
	if got.StravaConnected {
		t.Error("strava_connected = true before connecting")
	}
}

func TestChat_Unconfigured(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, authedRequest(t, s, "POST", "/v1/chat", `{"message":"hello"}`))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestStravaWebhook_VerifyChallenge(t *testing.T) {
	s, _ := newTestServer(t)
	s.SetStrava(nil, nil, "hook-token")

	rec := doRequest(s, httptest.NewRequest("GET", "/v1/webhooks/strava?hub.verify_token=hook-token&hub.challenge=abc123", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["hub.challenge"] != "abc123" {
		t.Errorf("challenge = %q, want abc123", got["hub.challenge"])
	}
}

func TestStravaWebhook_VerifyRejectsBadToken(t *testing.T) {
	s, _ := newTestServer(t)
	s.SetStrava(nil, nil, "hook-token")

	rec := doRequest(s, httptest.NewRequest("GET", "/v1/webhooks/strava?hub.verify_token=wrong&hub.challenge=abc123", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestStravaWebhook_EventAcceptedWithoutReconciler(t *testing.T) {
	s, _ := newTestServer(t)

	body := `{"object_type":"activity","object_id":42,"aspect_type":"create","owner_id":9137}`
	rec := doRequest(s, httptest.NewRequest("POST", "/v1/webhooks/strava", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestStrava_UnconfiguredEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, authedRequest(t, s, "GET", "/v1/integrations/strava/auth-url?redirect_uri=app://done", ""))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("auth-url status = %d, want 503", rec.Code)
	}

	rec = doRequest(s, authedRequest(t, s, "POST", "/v1/integrations/strava/backfill", `{"days":7}`))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("backfill status = %d, want 503", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(s, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["status"] != "healthy" {
		t.Errorf("status = %q", got["status"])
	}
}

func TestDeleteAccount(t *testing.T) {
	s, st := newTestServer(t)

	if _, err := st.CreateWorkout(context.Background(), &store.Workout{
		UserID:       "u1",
		Title:        "Doomed",
		ActivityType: store.ActivityRun,
		StartTime:    time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC),
		EndTime:      time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("seed workout: %v", err)
	}
	user, err := st.GetOrCreateUser(context.Background(), "athlete@example.com", "Athlete", "g1")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	token, err := s.sessions.Issue(user.ID, user.Email)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req := httptest.NewRequest("DELETE", "/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := doRequest(s, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d, body %s", rec.Code, rec.Body.String())
	}

	if _, err := st.GetUser(context.Background(), user.ID); err == nil {
		t.Error("user still exists after delete")
	}
}
