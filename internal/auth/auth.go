// Package auth issues and verifies session tokens, and validates
// Google sign-in tokens against the tokeninfo endpoint.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/andrew-thompson-55/trainer-2.0/internal/httpkit"
)

const defaultTokeninfoURL = "https://oauth2.googleapis.com/tokeninfo"

type userIDKey struct{}

// WithUserID attaches the authenticated user id to a context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserID returns the authenticated user id, or "" when unauthenticated.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

// Sessions issues and verifies HS256 session tokens.
type Sessions struct {
	secret []byte
	ttl    time.Duration
}

// NewSessions creates a session signer. ttlDays falls back to 30 when
// non-positive.
func NewSessions(secret string, ttlDays int) *Sessions {
	if ttlDays <= 0 {
		ttlDays = 30
	}
	return &Sessions{
		secret: []byte(secret),
		ttl:    time.Duration(ttlDays) * 24 * time.Hour,
	}
}

// Issue mints a session token for a user.
func (s *Sessions) Issue(userID, email string) (string, error) {
	claims := jwt.MapClaims{
		"sub":   userID,
		"email": email,
		"exp":   time.Now().Add(s.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates a session token and returns the user id.
func (s *Sessions) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("invalid token payload")
	}
	return sub, nil
}

// GoogleIdentity is the verified identity behind a Google ID token.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
}

// GoogleVerifier checks ID tokens against Google's tokeninfo endpoint.
type GoogleVerifier struct {
	clientID   string
	verifyURL  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGoogleVerifier creates a verifier bound to an OAuth client id.
func NewGoogleVerifier(clientID string, logger *slog.Logger) *GoogleVerifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoogleVerifier{
		clientID:   clientID,
		verifyURL:  defaultTokeninfoURL,
		httpClient: httpkit.NewClient(httpkit.WithTimeout(10 * time.Second)),
		logger:     logger.With("component", "auth"),
	}
}

// Verify validates a Google ID token and returns the identity. The
// token's audience must match the configured client id.
func (g *GoogleVerifier) Verify(ctx context.Context, idToken string) (*GoogleIdentity, error) {
	u := g.verifyURL + "?" + url.Values{"id_token": {idToken}}.Encode()
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tokeninfo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("invalid google token: status %d", resp.StatusCode)
	}

	var info struct {
		Aud   string `json:"aud"`
		Sub   string `json:"sub"`
		Email string `json:"email"`
		Name  string `json:"name"`
		Exp   string `json:"exp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode tokeninfo: %w", err)
	}
	if info.Aud != g.clientID {
		return nil, fmt.Errorf("invalid google token: audience mismatch")
	}
	if info.Sub == "" || info.Email == "" {
		return nil, fmt.Errorf("invalid google token: missing identity")
	}

	name := info.Name
	if name == "" {
		name = "Athlete"
	}
	return &GoogleIdentity{Subject: info.Sub, Email: info.Email, Name: name}, nil
}
