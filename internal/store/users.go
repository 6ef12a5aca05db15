package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User is an authenticated athlete account.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	GoogleID  string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// GetOrCreateUser looks a user up by email, creating the account on
// first sign-in. Name and Google subject are refreshed on every call
// so a renamed Google profile propagates.
func (s *Store) GetOrCreateUser(ctx context.Context, email, name, googleID string) (*User, error) {
	u, err := s.GetUserByEmail(ctx, email)
	if err == nil {
		if (name != "" && name != u.Name) || (googleID != "" && googleID != u.GoogleID) {
			_, uerr := s.db.ExecContext(ctx,
				"UPDATE users SET name = ?, google_id = ? WHERE id = ?",
				nullString(name), nullString(googleID), u.ID)
			if uerr != nil {
				return nil, fmt.Errorf("update user: %w", uerr)
			}
			u.Name = name
			u.GoogleID = googleID
		}
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	u = &User{
		ID:        uuid.NewString(),
		Email:     email,
		Name:      name,
		GoogleID:  googleID,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO users (id, email, name, google_id, created_at) VALUES (?, ?, ?, ?, ?)",
		u.ID, u.Email, nullString(u.Name), nullString(u.GoogleID), formatTime(u.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// GetUserByEmail fetches a user by email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, email, name, google_id, created_at FROM users WHERE email = ?", email)
	return scanUser(row)
}

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, email, name, google_id, created_at FROM users WHERE id = ?", id)
	return scanUser(row)
}

// DeleteUser removes the account. Dependent rows are cleaned up here
// rather than relying on foreign key enforcement being enabled.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	for _, q := range []string{
		"DELETE FROM chat_logs WHERE user_id = ?",
		"DELETE FROM completed_activities WHERE user_id = ?",
		"DELETE FROM daily_logs WHERE user_id = ?",
		"DELETE FROM planned_workouts WHERE user_id = ?",
		"DELETE FROM user_settings WHERE user_id = ?",
	} {
		if _, err := s.db.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("delete user data: %w", err)
		}
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User
	var name, googleID sql.NullString
	var createdStr string
	err := row.Scan(&u.ID, &u.Email, &name, &googleID, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Name = name.String
	u.GoogleID = googleID.String
	u.CreatedAt = parseTime(createdStr)
	return &u, nil
}
