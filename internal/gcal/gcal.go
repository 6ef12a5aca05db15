// Package gcal mirrors planned workouts into a Google Calendar.
// Sync is strictly best-effort: every exported method logs failures
// and returns them, but callers are expected to fire-and-forget.
package gcal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/andrew-thompson-55/trainer-2.0/internal/httpkit"
	"github.com/andrew-thompson-55/trainer-2.0/internal/store"
)

const (
	calendarBaseURL = "https://www.googleapis.com/calendar/v3"
	googleTokenURL  = "https://oauth2.googleapis.com/token"
)

// Calendar is what the workout mutation paths need. A nil Calendar is
// valid and means sync is disabled.
type Calendar interface {
	// SyncWorkout creates or updates the event for a workout and
	// records the event id back on the workout row.
	SyncWorkout(ctx context.Context, w *store.Workout) error
	// DeleteEvent removes a previously synced event.
	DeleteEvent(ctx context.Context, eventID string) error
}

// Client syncs against the Calendar v3 REST API using a long-lived
// OAuth refresh token.
type Client struct {
	calendarID   string
	clientID     string
	clientSecret string
	refreshToken string
	tokenURL     string
	baseURL      string
	st           *store.Store
	httpClient   *http.Client
	logger       *slog.Logger

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

// New builds a calendar client. The store is used to write event ids
// back onto workout rows after a successful sync.
func New(calendarID, clientID, clientSecret, refreshToken string, st *store.Store, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		calendarID:   calendarID,
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		tokenURL:     googleTokenURL,
		baseURL:      calendarBaseURL,
		st:           st,
		httpClient:   httpkit.NewClient(httpkit.WithTimeout(30 * time.Second)),
		logger:       logger.With("component", "gcal"),
	}
}

func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.expiresAt.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {c.refreshToken},
		"grant_type":    {"refresh_token"},
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token refresh %d: %s", resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 2048))
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("decode token: %w", err)
	}
	c.accessToken = tok.AccessToken
	c.expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

type calendarEvent struct {
	ID          string       `json:"id,omitempty"`
	Summary     string       `json:"summary"`
	Description string       `json:"description,omitempty"`
	Start       calendarTime `json:"start"`
	End         calendarTime `json:"end"`
}

type calendarTime struct {
	DateTime string `json:"dateTime"`
}

// SyncWorkout upserts the workout's event. A workout that already has
// an event id gets a PUT, otherwise a POST and the new id is stored.
func (c *Client) SyncWorkout(ctx context.Context, w *store.Workout) error {
	tok, err := c.token(ctx)
	if err != nil {
		c.logger.Warn("calendar sync skipped", "workout_id", w.ID, "error", err)
		return err
	}

	ev := calendarEvent{
		Summary:     w.Title,
		Description: w.Description,
		Start:       calendarTime{DateTime: w.StartTime.Format(time.RFC3339)},
		End:         calendarTime{DateTime: w.EndTime.Format(time.RFC3339)},
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	method := "POST"
	url := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, c.calendarID)
	if w.GoogleEventID != "" {
		method = "PUT"
		url += "/" + w.GoogleEventID
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create event request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("calendar sync failed", "workout_id", w.ID, "error", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 2048)
		c.logger.Warn("calendar sync rejected", "workout_id", w.ID, "status", resp.StatusCode, "body", errBody)
		return fmt.Errorf("calendar API error %d: %s", resp.StatusCode, errBody)
	}

	var created calendarEvent
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}

	now := time.Now().UTC()
	_, err = c.st.UpdateWorkout(ctx, w.UserID, w.ID, store.WorkoutUpdate{
		GoogleEventID: &created.ID,
		LastSyncedAt:  &now,
	})
	if err != nil {
		c.logger.Warn("event id not recorded", "workout_id", w.ID, "error", err)
	}
	return nil
}

// DeleteEvent removes the event. A 404/410 from the API is treated as
// success since the event is already gone.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	tok, err := c.token(ctx)
	if err != nil {
		c.logger.Warn("calendar delete skipped", "event_id", eventID, "error", err)
		return err
	}

	url := fmt.Sprintf("%s/calendars/%s/events/%s", c.baseURL, c.calendarID, eventID)
	req, err := http.NewRequestWithContext(ctx, "DELETE", url, nil)
	if err != nil {
		return fmt.Errorf("create delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("calendar delete failed", "event_id", eventID, "error", err)
		return err
	}
	defer httpkit.DrainAndClose(resp.Body, 1024)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent, http.StatusNotFound, http.StatusGone:
		return nil
	}
	return fmt.Errorf("calendar delete error %d", resp.StatusCode)
}
