package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Completed activity sources.
const (
	SourceStrava = "strava"
	SourceManual = "manual"
)

const activityColumns = "id, user_id, source_type, source_id, activity_type, start_time, distance_meters, moving_time_seconds, elapsed_time_seconds, total_elevation_gain, average_heartrate, planned_workout_id, raw_payload, created_at, updated_at"

// Activity is a completed effort reported by a tracker or entered
// manually. (user_id, source_type, source_id) is unique; re-ingestion
// of the same source activity updates the row in place.
type Activity struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	SourceType         string    `json:"source_type"`
	SourceID           string    `json:"source_id"`
	ActivityType       string    `json:"activity_type"`
	StartTime          time.Time `json:"start_time"`
	DistanceMeters     *float64  `json:"distance_meters,omitempty"`
	MovingTimeSeconds  *int      `json:"moving_time_seconds,omitempty"`
	ElapsedTimeSeconds *int      `json:"elapsed_time_seconds,omitempty"`
	ElevationGain      *float64  `json:"total_elevation_gain,omitempty"`
	AvgHeartrate       *int      `json:"average_heartrate,omitempty"`
	PlannedWorkoutID   string    `json:"planned_workout_id,omitempty"`
	RawPayload         string    `json:"-"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// UpsertActivity inserts or updates the row keyed on
// (user_id, source_type, source_id) and returns the stored row.
// An update never clears an existing plan link.
func (s *Store) UpsertActivity(ctx context.Context, a *Activity) (*Activity, error) {
	if !ValidActivityType(a.ActivityType) {
		return nil, fmt.Errorf("invalid activity_type %q", a.ActivityType)
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO completed_activities (id, user_id, source_type, source_id, activity_type, start_time, distance_meters, moving_time_seconds, elapsed_time_seconds, total_elevation_gain, average_heartrate, raw_payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, source_type, source_id) DO UPDATE SET
			activity_type = excluded.activity_type,
			start_time = excluded.start_time,
			distance_meters = excluded.distance_meters,
			moving_time_seconds = excluded.moving_time_seconds,
			elapsed_time_seconds = excluded.elapsed_time_seconds,
			total_elevation_gain = excluded.total_elevation_gain,
			average_heartrate = excluded.average_heartrate,
			raw_payload = excluded.raw_payload,
			updated_at = excluded.updated_at`,
		uuid.NewString(), a.UserID, a.SourceType, a.SourceID, a.ActivityType,
		formatTime(a.StartTime), nullFloat(a.DistanceMeters),
		nullInt(a.MovingTimeSeconds), nullInt(a.ElapsedTimeSeconds),
		nullFloat(a.ElevationGain), nullInt(a.AvgHeartrate),
		nullString(a.RawPayload), formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert activity: %w", err)
	}
	return s.GetActivityBySource(ctx, a.UserID, a.SourceType, a.SourceID)
}

// GetActivityBySource fetches by the external identity key.
func (s *Store) GetActivityBySource(ctx context.Context, userID, sourceType, sourceID string) (*Activity, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+activityColumns+` FROM completed_activities
		 WHERE user_id = ? AND source_type = ? AND source_id = ?`,
		userID, sourceType, sourceID)
	return scanActivity(row)
}

// GetActivityByWorkout fetches the activity linked to a planned workout,
// if any.
func (s *Store) GetActivityByWorkout(ctx context.Context, userID, workoutID string) (*Activity, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+activityColumns+` FROM completed_activities
		 WHERE user_id = ? AND planned_workout_id = ?`,
		userID, workoutID)
	return scanActivity(row)
}

// ListActivities returns activities with start_time in [start, end],
// ascending.
func (s *Store) ListActivities(ctx context.Context, userID string, start, end time.Time) ([]*Activity, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+activityColumns+` FROM completed_activities
		 WHERE user_id = ? AND start_time >= ? AND start_time <= ?
		 ORDER BY start_time ASC`,
		userID, formatTime(start), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var result []*Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// LinkActivity sets (or clears, with empty workoutID) the plan link.
func (s *Store) LinkActivity(ctx context.Context, userID, activityID, workoutID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE completed_activities SET planned_workout_id = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		nullString(workoutID), formatTime(time.Now()), activityID, userID)
	if err != nil {
		return fmt.Errorf("link activity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteActivityBySource removes an activity after the source reported
// its deletion. Returns the deleted row so callers can unwind the plan
// link.
func (s *Store) DeleteActivityBySource(ctx context.Context, userID, sourceType, sourceID string) (*Activity, error) {
	a, err := s.GetActivityBySource(ctx, userID, sourceType, sourceID)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		"DELETE FROM completed_activities WHERE id = ? AND user_id = ?", a.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("delete activity: %w", err)
	}
	return a, nil
}

func scanActivity(row interface{ Scan(...any) error }) (*Activity, error) {
	var a Activity
	var distance, elevation sql.NullFloat64
	var moving, elapsed, hr sql.NullInt64
	var planID, payload sql.NullString
	var startStr, createdStr, updatedStr string

	err := row.Scan(&a.ID, &a.UserID, &a.SourceType, &a.SourceID, &a.ActivityType,
		&startStr, &distance, &moving, &elapsed, &elevation, &hr,
		&planID, &payload, &createdStr, &updatedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan activity: %w", err)
	}

	a.DistanceMeters = floatPtr(distance)
	a.MovingTimeSeconds = intPtr(moving)
	a.ElapsedTimeSeconds = intPtr(elapsed)
	a.ElevationGain = floatPtr(elevation)
	a.AvgHeartrate = intPtr(hr)
	a.PlannedWorkoutID = planID.String
	a.RawPayload = payload.String
	a.StartTime = parseTime(startStr)
	a.CreatedAt = parseTime(createdStr)
	a.UpdatedAt = parseTime(updatedStr)
	return &a, nil
}
