package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Settings holds per-user coaching preferences and the Strava token
// set. A row is created lazily the first time anything touches it.
type Settings struct {
	UserID                  string   `json:"user_id"`
	Timezone                string   `json:"timezone,omitempty"`
	TrainingGoals           string   `json:"training_goals,omitempty"`
	TargetRace              string   `json:"target_race,omitempty"`
	TargetRaceDate          string   `json:"target_race_date,omitempty"`
	WeeklyVolumeTargetHours *float64 `json:"weekly_volume_target_hours,omitempty"`
	PreferredWorkoutTime    string   `json:"preferred_workout_time,omitempty"`
	InjuryNotes             string   `json:"injury_notes,omitempty"`
	CoachNotes              string   `json:"coach_notes,omitempty"`
	StravaAthleteID         string   `json:"-"`
	StravaAccessToken       string   `json:"-"`
	StravaRefreshToken      string   `json:"-"`
	StravaExpiresAt         int64    `json:"-"`
}

// StravaConnected reports whether the user has linked a Strava account.
func (s *Settings) StravaConnected() bool {
	return s.StravaRefreshToken != ""
}

// SettingsUpdate is a patch for the coaching preference fields. Nil
// fields are left untouched.
type SettingsUpdate struct {
	Timezone                *string  `json:"timezone,omitempty"`
	TrainingGoals           *string  `json:"training_goals,omitempty"`
	TargetRace              *string  `json:"target_race,omitempty"`
	TargetRaceDate          *string  `json:"target_race_date,omitempty"`
	WeeklyVolumeTargetHours *float64 `json:"weekly_volume_target_hours,omitempty"`
	PreferredWorkoutTime    *string  `json:"preferred_workout_time,omitempty"`
	InjuryNotes             *string  `json:"injury_notes,omitempty"`
}

// GetSettings returns the user's settings row, creating an empty one
// if none exists yet.
func (s *Store) GetSettings(ctx context.Context, userID string) (*Settings, error) {
	if err := s.ensureSettings(ctx, userID); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, timezone, training_goals, target_race, target_race_date,
		       weekly_volume_target_hours, preferred_workout_time, injury_notes,
		       coach_notes, strava_athlete_id, strava_access_token,
		       strava_refresh_token, strava_expires_at
		FROM user_settings WHERE user_id = ?`, userID)

	var st Settings
	var tz, goals, race, raceDate, prefTime, injury, notes sql.NullString
	var athleteID, access, refresh sql.NullString
	var volume sql.NullFloat64
	var expires sql.NullInt64
	err := row.Scan(&st.UserID, &tz, &goals, &race, &raceDate, &volume,
		&prefTime, &injury, &notes, &athleteID, &access, &refresh, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	st.Timezone = tz.String
	st.TrainingGoals = goals.String
	st.TargetRace = race.String
	st.TargetRaceDate = raceDate.String
	st.WeeklyVolumeTargetHours = floatPtr(volume)
	st.PreferredWorkoutTime = prefTime.String
	st.InjuryNotes = injury.String
	st.CoachNotes = notes.String
	st.StravaAthleteID = athleteID.String
	st.StravaAccessToken = access.String
	st.StravaRefreshToken = refresh.String
	st.StravaExpiresAt = expires.Int64
	return &st, nil
}

func (s *Store) ensureSettings(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO user_settings (user_id, updated_at) VALUES (?, ?)",
		userID, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("ensure settings: %w", err)
	}
	return nil
}

// UpdateSettings applies a patch to the preference fields.
func (s *Store) UpdateSettings(ctx context.Context, userID string, upd *SettingsUpdate) (*Settings, error) {
	if err := s.ensureSettings(ctx, userID); err != nil {
		return nil, err
	}

	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if upd.Timezone != nil {
		add("timezone", nullString(*upd.Timezone))
	}
	if upd.TrainingGoals != nil {
		add("training_goals", nullString(*upd.TrainingGoals))
	}
	if upd.TargetRace != nil {
		add("target_race", nullString(*upd.TargetRace))
	}
	if upd.TargetRaceDate != nil {
		add("target_race_date", nullString(*upd.TargetRaceDate))
	}
	if upd.WeeklyVolumeTargetHours != nil {
		add("weekly_volume_target_hours", *upd.WeeklyVolumeTargetHours)
	}
	if upd.PreferredWorkoutTime != nil {
		add("preferred_workout_time", nullString(*upd.PreferredWorkoutTime))
	}
	if upd.InjuryNotes != nil {
		add("injury_notes", nullString(*upd.InjuryNotes))
	}
	if len(sets) > 0 {
		add("updated_at", formatTime(time.Now()))
		args = append(args, userID)
		_, err := s.db.ExecContext(ctx,
			"UPDATE user_settings SET "+strings.Join(sets, ", ")+" WHERE user_id = ?", args...)
		if err != nil {
			return nil, fmt.Errorf("update settings: %w", err)
		}
	}
	return s.GetSettings(ctx, userID)
}

// SetStravaTokens records the token set after an exchange or refresh.
func (s *Store) SetStravaTokens(ctx context.Context, userID, athleteID, access, refresh string, expiresAt int64) error {
	if err := s.ensureSettings(ctx, userID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE user_settings SET strava_athlete_id = ?, strava_access_token = ?,
			strava_refresh_token = ?, strava_expires_at = ?, updated_at = ?
		WHERE user_id = ?`,
		nullString(athleteID), nullString(access), nullString(refresh),
		expiresAt, formatTime(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("set strava tokens: %w", err)
	}
	return nil
}

// ClearStravaTokens disconnects the Strava account.
func (s *Store) ClearStravaTokens(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE user_settings SET strava_athlete_id = NULL, strava_access_token = NULL,
			strava_refresh_token = NULL, strava_expires_at = NULL, updated_at = ?
		WHERE user_id = ?`,
		formatTime(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("clear strava tokens: %w", err)
	}
	return nil
}

// AppendCoachNote adds a dated line to the running coach notes.
func (s *Store) AppendCoachNote(ctx context.Context, userID, note string) error {
	if err := s.ensureSettings(ctx, userID); err != nil {
		return err
	}
	line := fmt.Sprintf("[%s] %s", time.Now().UTC().Format("2006-01-02"), note)
	_, err := s.db.ExecContext(ctx, `
		UPDATE user_settings
		SET coach_notes = CASE
			WHEN coach_notes IS NULL OR coach_notes = '' THEN ?
			ELSE coach_notes || char(10) || ?
		END, updated_at = ?
		WHERE user_id = ?`,
		line, line, formatTime(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("append coach note: %w", err)
	}
	return nil
}

// FindUserByStravaAthleteID resolves a webhook owner to a local user.
func (s *Store) FindUserByStravaAthleteID(ctx context.Context, athleteID string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id FROM user_settings WHERE strava_athlete_id = ?", athleteID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("find user by athlete: %w", err)
	}
	return userID, nil
}
