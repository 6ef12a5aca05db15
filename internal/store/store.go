// Package store provides SQLite persistence for the training domain.
// Every query that touches athlete data filters by user id; callers
// never see another user's rows.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Activity type taxonomy. Every planned workout and completed activity
// carries exactly one of these.
const (
	ActivityRun      = "run"
	ActivityBike     = "bike"
	ActivitySwim     = "swim"
	ActivityStrength = "strength"
	ActivityOther    = "other"
)

// Planned workout status values.
const (
	StatusPlanned   = "planned"
	StatusCompleted = "completed"
	StatusMissed    = "missed"
)

// ValidActivityType reports whether s is a member of the taxonomy.
func ValidActivityType(s string) bool {
	switch s {
	case ActivityRun, ActivityBike, ActivitySwim, ActivityStrength, ActivityOther:
		return true
	}
	return false
}

// ValidStatus reports whether s is a recognized workout status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPlanned, StatusCompleted, StatusMissed:
		return true
	}
	return false
}

// Store manages all persistence in a single SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens (or creates) the database at path and runs migrations.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite serializes writes; a single connection avoids SQLITE_BUSY
	// under concurrent request handlers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT,
			google_id TEXT,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS user_settings (
			user_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			timezone TEXT,
			training_goals TEXT,
			target_race TEXT,
			target_race_date TEXT,
			weekly_volume_target_hours REAL,
			preferred_workout_time TEXT,
			injury_notes TEXT,
			coach_notes TEXT,
			strava_athlete_id TEXT,
			strava_access_token TEXT,
			strava_refresh_token TEXT,
			strava_expires_at INTEGER,
			updated_at TEXT
		);

		CREATE TABLE IF NOT EXISTS planned_workouts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			activity_type TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'planned',
			google_event_id TEXT,
			last_synced_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_workouts_user_start ON planned_workouts(user_id, start_time);

		CREATE TABLE IF NOT EXISTS daily_logs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			date TEXT NOT NULL,
			sleep_total REAL,
			deep_sleep REAL,
			rem_sleep REAL,
			hrv_score REAL,
			motivation INTEGER,
			soreness INTEGER,
			stress INTEGER,
			body_weight_kg REAL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(user_id, date)
		);

		CREATE TABLE IF NOT EXISTS completed_activities (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			source_type TEXT NOT NULL,
			source_id TEXT NOT NULL,
			activity_type TEXT NOT NULL,
			start_time TEXT NOT NULL,
			distance_meters REAL,
			moving_time_seconds INTEGER,
			elapsed_time_seconds INTEGER,
			total_elevation_gain REAL,
			average_heartrate INTEGER,
			planned_workout_id TEXT,
			raw_payload TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(user_id, source_type, source_id)
		);
		CREATE INDEX IF NOT EXISTS idx_activities_user_start ON completed_activities(user_id, start_time);

		CREATE TABLE IF NOT EXISTS chat_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			user_message TEXT NOT NULL,
			ai_response TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_chat_logs_user_created ON chat_logs(user_id, created_at);
	`)
	return err
}

// Timestamps are stored as RFC3339 TEXT in UTC.

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	i := int(n.Int64)
	return &i
}
