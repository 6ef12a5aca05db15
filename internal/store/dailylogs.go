package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const dailyLogColumns = "id, user_id, date, sleep_total, deep_sleep, rem_sleep, hrv_score, motivation, soreness, stress, body_weight_kg, created_at, updated_at"

// DailyLog holds one day's wellness entries. At most one row exists
// per user per calendar day; writes go through UpsertDailyLog.
type DailyLog struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Date         string    `json:"date"` // YYYY-MM-DD
	SleepTotal   *float64  `json:"sleep_total,omitempty"`
	DeepSleep    *float64  `json:"deep_sleep,omitempty"`
	RemSleep     *float64  `json:"rem_sleep,omitempty"`
	HRVScore     *float64  `json:"hrv_score,omitempty"`
	Motivation   *int      `json:"motivation,omitempty"`
	Soreness     *int      `json:"soreness,omitempty"`
	Stress       *int      `json:"stress,omitempty"`
	BodyWeightKg *float64  `json:"body_weight_kg,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UpsertDailyLog inserts or overwrites the row keyed on (user_id, date).
func (s *Store) UpsertDailyLog(ctx context.Context, l *DailyLog) (*DailyLog, error) {
	if _, err := time.Parse("2006-01-02", l.Date); err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", l.Date, err)
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO daily_logs (id, user_id, date, sleep_total, deep_sleep, rem_sleep, hrv_score, motivation, soreness, stress, body_weight_kg, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET
			sleep_total = excluded.sleep_total,
			deep_sleep = excluded.deep_sleep,
			rem_sleep = excluded.rem_sleep,
			hrv_score = excluded.hrv_score,
			motivation = excluded.motivation,
			soreness = excluded.soreness,
			stress = excluded.stress,
			body_weight_kg = excluded.body_weight_kg,
			updated_at = excluded.updated_at`,
		uuid.NewString(), l.UserID, l.Date,
		nullFloat(l.SleepTotal), nullFloat(l.DeepSleep), nullFloat(l.RemSleep),
		nullFloat(l.HRVScore), nullInt(l.Motivation), nullInt(l.Soreness),
		nullInt(l.Stress), nullFloat(l.BodyWeightKg),
		formatTime(now), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert daily log: %w", err)
	}
	return s.GetDailyLog(ctx, l.UserID, l.Date)
}

// GetDailyLog fetches the log for one calendar day.
func (s *Store) GetDailyLog(ctx context.Context, userID, date string) (*DailyLog, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+dailyLogColumns+" FROM daily_logs WHERE user_id = ? AND date = ?", userID, date)
	return scanDailyLog(row)
}

// ListDailyLogs returns logs with date in [start, end], ascending.
// Dates are YYYY-MM-DD strings, which sort lexicographically.
func (s *Store) ListDailyLogs(ctx context.Context, userID, start, end string) ([]*DailyLog, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+dailyLogColumns+` FROM daily_logs
		 WHERE user_id = ? AND date >= ? AND date <= ? ORDER BY date ASC`,
		userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list daily logs: %w", err)
	}
	defer rows.Close()

	var result []*DailyLog
	for rows.Next() {
		l, err := scanDailyLog(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	return result, rows.Err()
}

func scanDailyLog(row interface{ Scan(...any) error }) (*DailyLog, error) {
	var l DailyLog
	var sleep, deep, rem, hrv, weight sql.NullFloat64
	var motivation, soreness, stress sql.NullInt64
	var createdStr, updatedStr string

	err := row.Scan(&l.ID, &l.UserID, &l.Date, &sleep, &deep, &rem, &hrv,
		&motivation, &soreness, &stress, &weight, &createdStr, &updatedStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan daily log: %w", err)
	}

	l.SleepTotal = floatPtr(sleep)
	l.DeepSleep = floatPtr(deep)
	l.RemSleep = floatPtr(rem)
	l.HRVScore = floatPtr(hrv)
	l.Motivation = intPtr(motivation)
	l.Soreness = intPtr(soreness)
	l.Stress = intPtr(stress)
	l.BodyWeightKg = floatPtr(weight)
	l.CreatedAt = parseTime(createdStr)
	l.UpdatedAt = parseTime(updatedStr)
	return &l, nil
}
