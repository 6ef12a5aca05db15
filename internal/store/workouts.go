package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a row does not exist for the given user.
var ErrNotFound = errors.New("not found")

const workoutColumns = "id, user_id, title, description, activity_type, start_time, end_time, status, google_event_id, last_synced_at, created_at, updated_at"

// Workout is a planned entry in the athlete's training calendar.
type Workout struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	ActivityType  string    `json:"activity_type"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Status        string    `json:"status"`
	GoogleEventID string    `json:"google_event_id,omitempty"`
	LastSyncedAt  time.Time `json:"last_synced_at,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// WorkoutUpdate carries optional field changes for UpdateWorkout.
// Nil fields are left untouched.
type WorkoutUpdate struct {
	Title         *string
	Description   *string
	StartTime     *time.Time
	EndTime       *time.Time
	Status        *string
	GoogleEventID *string
	LastSyncedAt  *time.Time
}

// CreateWorkout inserts a new planned workout. The id and timestamps
// are assigned here; status defaults to planned when empty.
func (s *Store) CreateWorkout(ctx context.Context, w *Workout) (*Workout, error) {
	if w.EndTime.Before(w.StartTime) {
		return nil, fmt.Errorf("end_time before start_time")
	}
	if !ValidActivityType(w.ActivityType) {
		return nil, fmt.Errorf("invalid activity_type %q", w.ActivityType)
	}
	if w.Status == "" {
		w.Status = StatusPlanned
	}
	if !ValidStatus(w.Status) {
		return nil, fmt.Errorf("invalid status %q", w.Status)
	}

	w.ID = uuid.NewString()
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO planned_workouts (id, user_id, title, description, activity_type, start_time, end_time, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.UserID, w.Title, nullString(w.Description), w.ActivityType,
		formatTime(w.StartTime), formatTime(w.EndTime), w.Status,
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert workout: %w", err)
	}
	return w, nil
}

// GetWorkout fetches a single workout owned by userID.
func (s *Store) GetWorkout(ctx context.Context, userID, id string) (*Workout, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+workoutColumns+" FROM planned_workouts WHERE id = ? AND user_id = ?", id, userID)
	return scanWorkout(row)
}

// ListWorkouts returns the user's workouts with start_time in
// [start, end], ordered ascending by start_time. Zero times disable
// the corresponding bound.
func (s *Store) ListWorkouts(ctx context.Context, userID string, start, end time.Time) ([]*Workout, error) {
	query := "SELECT " + workoutColumns + " FROM planned_workouts WHERE user_id = ?"
	args := []any{userID}
	if !start.IsZero() {
		query += " AND start_time >= ?"
		args = append(args, formatTime(start))
	}
	if !end.IsZero() {
		query += " AND start_time <= ?"
		args = append(args, formatTime(end))
	}
	query += " ORDER BY start_time ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	defer rows.Close()

	var result []*Workout
	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// ListWorkoutsByStatus returns workouts in [start, end] filtered to a
// status, ascending by start_time. Used by reconciliation to gather
// link candidates.
func (s *Store) ListWorkoutsByStatus(ctx context.Context, userID string, start, end time.Time, status string) ([]*Workout, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+workoutColumns+` FROM planned_workouts
		 WHERE user_id = ? AND status = ? AND start_time >= ? AND start_time <= ?
		 ORDER BY start_time ASC`,
		userID, status, formatTime(start), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("list workouts by status: %w", err)
	}
	defer rows.Close()

	var result []*Workout
	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, w)
	}
	return result, rows.Err()
}

// UpdateWorkout applies the non-nil fields of u to the user's workout.
func (s *Store) UpdateWorkout(ctx context.Context, userID, id string, u WorkoutUpdate) (*Workout, error) {
	var sets []string
	var args []any

	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *u.Title)
	}
	if u.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *u.Description)
	}
	if u.StartTime != nil {
		sets = append(sets, "start_time = ?")
		args = append(args, formatTime(*u.StartTime))
	}
	if u.EndTime != nil {
		sets = append(sets, "end_time = ?")
		args = append(args, formatTime(*u.EndTime))
	}
	if u.Status != nil {
		if !ValidStatus(*u.Status) {
			return nil, fmt.Errorf("invalid status %q", *u.Status)
		}
		sets = append(sets, "status = ?")
		args = append(args, *u.Status)
	}
	if u.GoogleEventID != nil {
		sets = append(sets, "google_event_id = ?")
		args = append(args, *u.GoogleEventID)
	}
	if u.LastSyncedAt != nil {
		sets = append(sets, "last_synced_at = ?")
		args = append(args, formatTime(*u.LastSyncedAt))
	}
	if len(sets) == 0 {
		return s.GetWorkout(ctx, userID, id)
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(time.Now()))
	args = append(args, id, userID)

	res, err := s.db.ExecContext(ctx,
		"UPDATE planned_workouts SET "+strings.Join(sets, ", ")+" WHERE id = ? AND user_id = ?",
		args...)
	if err != nil {
		return nil, fmt.Errorf("update workout: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.GetWorkout(ctx, userID, id)
}

// DeleteWorkout removes the user's workout.
func (s *Store) DeleteWorkout(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM planned_workouts WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return fmt.Errorf("delete workout: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanWorkout(row interface{ Scan(...any) error }) (*Workout, error) {
	var w Workout
	var desc, eventID, syncedAt sql.NullString
	var startStr, endStr, createdStr, updatedStr string

	err := row.Scan(&w.ID, &w.UserID, &w.Title, &desc, &w.ActivityType,
		&startStr, &endStr, &w.Status, &eventID, &syncedAt, &createdStr, &updatedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan workout: %w", err)
	}

	w.Description = desc.String
	w.GoogleEventID = eventID.String
	if syncedAt.Valid {
		w.LastSyncedAt = parseTime(syncedAt.String)
	}
	w.StartTime = parseTime(startStr)
	w.EndTime = parseTime(endStr)
	w.CreatedAt = parseTime(createdStr)
	w.UpdatedAt = parseTime(updatedStr)
	return &w, nil
}
