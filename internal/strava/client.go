// Package strava integrates the external activity tracker: OAuth
// token lifecycle, activity fetch, and reconciliation of reported
// activities against the training plan.
package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andrew-thompson-55/trainer-2.0/internal/httpkit"
	"github.com/andrew-thompson-55/trainer-2.0/internal/store"
)

const (
	defaultAPIURL   = "https://www.strava.com/api/v3"
	defaultTokenURL = "https://www.strava.com/oauth/token"
	authorizeURL    = "https://www.strava.com/oauth/authorize"

	// refresh the access token this close to its expiry
	tokenExpiryBuffer = 60 * time.Second
)

// Client talks to the Strava API on behalf of connected users, keeping
// their tokens fresh in storage.
type Client struct {
	clientID     string
	clientSecret string
	apiURL       string
	tokenURL     string
	st           *store.Store
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewClient builds a Strava client.
func NewClient(clientID, clientSecret string, st *store.Store, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		clientID:     clientID,
		clientSecret: clientSecret,
		apiURL:       defaultAPIURL,
		tokenURL:     defaultTokenURL,
		st:           st,
		httpClient:   httpkit.NewClient(httpkit.WithTimeout(30 * time.Second)),
		logger:       logger.With("component", "strava"),
	}
}

// Activity is the tracker's activity detail, reduced to the fields the
// reconciler consumes.
type Activity struct {
	ID                 int64   `json:"id"`
	Type               string  `json:"type"`
	StartDate          string  `json:"start_date"`
	StartDateLocal     string  `json:"start_date_local"`
	Distance           float64 `json:"distance"`
	MovingTime         int     `json:"moving_time"`
	ElapsedTime        int     `json:"elapsed_time"`
	TotalElevationGain float64 `json:"total_elevation_gain"`
	AverageHeartrate   float64 `json:"average_heartrate"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
	Athlete      *struct {
		ID int64 `json:"id"`
	} `json:"athlete"`
}

// AuthorizeURL builds the OAuth consent URL. state is round-tripped so
// the mobile app's deep link survives the browser hop.
func (c *Client) AuthorizeURL(redirectURI, state string) string {
	params := url.Values{
		"client_id":       {c.clientID},
		"response_type":   {"code"},
		"redirect_uri":    {redirectURI},
		"approval_prompt": {"force"},
		"scope":           {"read,activity:read_all"},
		"state":           {state},
	}
	return authorizeURL + "?" + params.Encode()
}

// ExchangeCode trades an OAuth authorization code for tokens and
// stores them, connecting the user's Strava account. Returns the
// Strava athlete id.
func (c *Client) ExchangeCode(ctx context.Context, userID, code string) (string, error) {
	tok, err := c.tokenRequest(ctx, url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
	})
	if err != nil {
		return "", fmt.Errorf("strava exchange failed: %w", err)
	}
	if tok.Athlete == nil {
		return "", fmt.Errorf("strava exchange failed: no athlete in response")
	}
	athleteID := strconv.FormatInt(tok.Athlete.ID, 10)
	if err := c.st.SetStravaTokens(ctx, userID, athleteID, tok.AccessToken, tok.RefreshToken, tok.ExpiresAt); err != nil {
		return "", err
	}
	c.logger.Info("strava connected", "user_id", userID, "athlete_id", athleteID)
	return athleteID, nil
}

// AccessToken returns a valid access token for the user, refreshing
// and persisting rotated tokens only when the stored one is expired or
// about to expire.
func (c *Client) AccessToken(ctx context.Context, userID string) (string, error) {
	settings, err := c.st.GetSettings(ctx, userID)
	if err != nil {
		return "", err
	}
	if settings.StravaRefreshToken == "" {
		return "", fmt.Errorf("strava not connected for user %s", userID)
	}

	expiry := time.Unix(settings.StravaExpiresAt, 0)
	if settings.StravaAccessToken != "" && time.Now().Before(expiry.Add(-tokenExpiryBuffer)) {
		return settings.StravaAccessToken, nil
	}

	tok, err := c.tokenRequest(ctx, url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {settings.StravaRefreshToken},
		"grant_type":    {"refresh_token"},
	})
	if err != nil {
		return "", fmt.Errorf("strava token refresh: %w", err)
	}

	// Strava may rotate the refresh token; persist whatever came back.
	if err := c.st.SetStravaTokens(ctx, userID, settings.StravaAthleteID, tok.AccessToken, tok.RefreshToken, tok.ExpiresAt); err != nil {
		return "", err
	}
	c.logger.Debug("strava token refreshed", "user_id", userID)
	return tok.AccessToken, nil
}

func (c *Client) tokenRequest(ctx context.Context, form url.Values) (*tokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token endpoint %d: %s", resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 2048))
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	return &tok, nil
}

// FetchActivity retrieves one activity's detail.
func (c *Client) FetchActivity(ctx context.Context, token string, activityID int64) (*Activity, error) {
	var act Activity
	url := fmt.Sprintf("%s/activities/%d", c.apiURL, activityID)
	if err := c.get(ctx, token, url, &act); err != nil {
		return nil, fmt.Errorf("fetch activity %d: %w", activityID, err)
	}
	return &act, nil
}

// ListActivities retrieves one page of the athlete's activities after
// the given time, newest first per the API's default ordering.
func (c *Client) ListActivities(ctx context.Context, token string, after time.Time, page, perPage int) ([]*Activity, error) {
	params := url.Values{
		"after":    {strconv.FormatInt(after.Unix(), 10)},
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(perPage)},
	}
	var acts []*Activity
	url := c.apiURL + "/athlete/activities?" + params.Encode()
	if err := c.get(ctx, token, url, &acts); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return acts, nil
}

func (c *Client) get(ctx context.Context, token, url string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("strava API %d: %s", resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 2048))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
