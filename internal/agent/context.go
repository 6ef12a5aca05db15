// Package agent drives the AI coaching conversation: it assembles the
// athlete's training context, runs the bounded tool-calling loop
// against the model, and logs completed exchanges.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/andrew-thompson-55/trainer-2.0/internal/store"
)

// Snapshot is the athlete's state at one moment, gathered for prompt
// injection. Lists are ascending by time. Missing sources leave zero
// values; assembly never fails outright.
type Snapshot struct {
	Name            string
	Timezone        string
	LocalTime       time.Time
	TrainingGoals   string
	TargetRace      string
	TargetRaceDate  string
	WeeklyVolume    *float64
	PreferredTime   string
	InjuryNotes     string
	CoachNotes      string
	StravaConnected bool
	Upcoming        []*store.Workout
	RecentLogs      []*store.DailyLog
	RecentActivity  []*store.Activity
}

// Assembler builds context snapshots from storage.
type Assembler struct {
	store     *store.Store
	defaultTZ string
	logger    *slog.Logger
	now       func() time.Time
}

// NewAssembler creates an assembler. defaultTZ is used when the user
// has no stored timezone.
func NewAssembler(st *store.Store, defaultTZ string, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		store:     st,
		defaultTZ: defaultTZ,
		logger:    logger.With("component", "context"),
		now:       time.Now,
	}
}

// BuildSnapshot gathers the athlete's state. Each source is fetched
// independently; a failing source logs a warning and contributes its
// zero value rather than aborting the snapshot.
func (a *Assembler) BuildSnapshot(ctx context.Context, userID string) *Snapshot {
	snap := &Snapshot{Timezone: a.defaultTZ}

	if user, err := a.store.GetUser(ctx, userID); err != nil {
		a.logger.Warn("profile fetch failed", "user_id", userID, "error", err)
	} else {
		snap.Name = user.Name
	}

	if settings, err := a.store.GetSettings(ctx, userID); err != nil {
		a.logger.Warn("settings fetch failed", "user_id", userID, "error", err)
	} else {
		if settings.Timezone != "" {
			snap.Timezone = settings.Timezone
		}
		snap.TrainingGoals = settings.TrainingGoals
		snap.TargetRace = settings.TargetRace
		snap.TargetRaceDate = settings.TargetRaceDate
		snap.WeeklyVolume = settings.WeeklyVolumeTargetHours
		snap.PreferredTime = settings.PreferredWorkoutTime
		snap.InjuryNotes = settings.InjuryNotes
		snap.CoachNotes = settings.CoachNotes
		snap.StravaConnected = settings.StravaAthleteID != ""
	}

	loc, err := time.LoadLocation(snap.Timezone)
	if err != nil {
		a.logger.Warn("bad timezone, using UTC", "tz", snap.Timezone, "error", err)
		loc = time.UTC
	}
	now := a.now().In(loc)
	snap.LocalTime = now

	if workouts, err := a.store.ListWorkouts(ctx, userID, now.UTC(), now.UTC().AddDate(0, 0, 7)); err != nil {
		a.logger.Warn("upcoming workouts fetch failed", "user_id", userID, "error", err)
	} else {
		snap.Upcoming = workouts
	}

	logStart := now.AddDate(0, 0, -7).Format("2006-01-02")
	logEnd := now.Format("2006-01-02")
	if logs, err := a.store.ListDailyLogs(ctx, userID, logStart, logEnd); err != nil {
		a.logger.Warn("daily logs fetch failed", "user_id", userID, "error", err)
	} else {
		snap.RecentLogs = logs
	}

	if acts, err := a.store.ListActivities(ctx, userID, now.UTC().AddDate(0, 0, -7), now.UTC()); err != nil {
		a.logger.Warn("activities fetch failed", "user_id", userID, "error", err)
	} else {
		snap.RecentActivity = acts
	}

	return snap
}

// Render produces the labeled text block injected into the system
// prompt. Section order is fixed; the model depends on it being
// predictable.
func (s *Snapshot) Render() string {
	loc := s.LocalTime.Location()
	var lines []string

	lines = append(lines,
		fmt.Sprintf("CURRENT TIME: %s (%s)", s.LocalTime.Format("2006-01-02 15:04:05"), s.LocalTime.Weekday()),
		fmt.Sprintf("TIMEZONE: %s (UTC offset: %s)", s.Timezone, s.LocalTime.Format("-0700")),
		"")

	if s.Name != "" {
		lines = append(lines, "ATHLETE: "+s.Name)
	}
	if s.TrainingGoals != "" {
		lines = append(lines, "TRAINING GOALS: "+s.TrainingGoals)
	}
	if s.TargetRace != "" {
		race := s.TargetRace
		if s.TargetRaceDate != "" {
			race += fmt.Sprintf(" (Date: %s)", s.TargetRaceDate)
		}
		lines = append(lines, "TARGET RACE: "+race)
	}
	if s.WeeklyVolume != nil {
		lines = append(lines, fmt.Sprintf("WEEKLY VOLUME TARGET: %g hours", *s.WeeklyVolume))
	}
	if s.PreferredTime != "" {
		lines = append(lines, "PREFERRED WORKOUT TIME: "+s.PreferredTime)
	}
	if s.InjuryNotes != "" {
		lines = append(lines, "INJURY NOTES: "+s.InjuryNotes)
	}
	if s.StravaConnected {
		lines = append(lines, "STRAVA: Connected")
	} else {
		lines = append(lines, "STRAVA: Not connected")
	}
	lines = append(lines, "")

	if len(s.Upcoming) > 0 {
		lines = append(lines, "UPCOMING WORKOUTS (next 7 days):")
		for _, w := range s.Upcoming {
			lines = append(lines, fmt.Sprintf("  - %s: %s (%s) [%s]",
				w.StartTime.In(loc).Format("2006-01-02 15:04"), w.Title, w.ActivityType, w.Status))
		}
	} else {
		lines = append(lines, "UPCOMING WORKOUTS: None scheduled in next 7 days")
	}
	lines = append(lines, "")

	if len(s.RecentLogs) > 0 {
		lines = append(lines, "RECENT DAILY LOGS (last 7 days):")
		for _, l := range s.RecentLogs {
			parts := []string{"Date: " + l.Date}
			if l.SleepTotal != nil {
				parts = append(parts, fmt.Sprintf("Sleep: %gh", *l.SleepTotal))
			}
			if l.HRVScore != nil {
				parts = append(parts, fmt.Sprintf("HRV: %g", *l.HRVScore))
			}
			if l.Soreness != nil {
				parts = append(parts, fmt.Sprintf("Soreness: %d/10", *l.Soreness))
			}
			if l.Motivation != nil {
				parts = append(parts, fmt.Sprintf("Motivation: %d/10", *l.Motivation))
			}
			if l.Stress != nil {
				parts = append(parts, fmt.Sprintf("Stress: %d/10", *l.Stress))
			}
			lines = append(lines, "  - "+strings.Join(parts, " | "))
		}
		lines = append(lines, "")
	}

	if len(s.RecentActivity) > 0 {
		lines = append(lines, "RECENT COMPLETED ACTIVITIES (last 7 days):")
		for _, a := range s.RecentActivity {
			parts := []string{a.StartTime.In(loc).Format("2006-01-02 15:04")}
			if a.DistanceMeters != nil {
				parts = append(parts, fmt.Sprintf("%.2fkm", *a.DistanceMeters/1000))
			}
			if a.MovingTimeSeconds != nil {
				parts = append(parts, fmt.Sprintf("%.1fmin", float64(*a.MovingTimeSeconds)/60))
			}
			if a.AvgHeartrate != nil {
				parts = append(parts, fmt.Sprintf("HR:%d", *a.AvgHeartrate))
			}
			if a.ElevationGain != nil {
				parts = append(parts, fmt.Sprintf("%gm elev", *a.ElevationGain))
			}
			lines = append(lines, "  - "+strings.Join(parts, " | "))
		}
		lines = append(lines, "")
	}

	if s.CoachNotes != "" {
		lines = append(lines, "COACH NOTES (your previous observations):", s.CoachNotes)
	}

	return strings.Join(lines, "\n")
}
