package tools

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/andrew-thompson-55/trainer-2.0/internal/store"
)

func (r *Registry) registerQueryTools() {
	r.Register(&Tool{
		Name:        "get_upcoming_workouts",
		Description: "List the athlete's planned workouts in a date range. Defaults to the next 7 days.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"start_date": map[string]any{
					"type":        "string",
					"description": "Range start, YYYY-MM-DD (default today)",
				},
				"end_date": map[string]any{
					"type":        "string",
					"description": "Range end, YYYY-MM-DD (default start + 7 days)",
				},
			},
		},
		Handler: r.handleGetUpcomingWorkouts,
	})

	r.Register(&Tool{
		Name:        "get_daily_logs",
		Description: "Fetch the athlete's wellness logs (sleep, HRV, soreness, motivation, stress) for a date range.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"start_date": map[string]any{
					"type":        "string",
					"description": "Range start, YYYY-MM-DD",
				},
				"end_date": map[string]any{
					"type":        "string",
					"description": "Range end, YYYY-MM-DD (default today)",
				},
			},
			"required": []string{"start_date"},
		},
		Handler: r.handleGetDailyLogs,
	})

	r.Register(&Tool{
		Name:        "get_completed_activities",
		Description: "Fetch the athlete's completed activities for a date range, with distance, time, heart rate, and whether each was part of the plan.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"start_date": map[string]any{
					"type":        "string",
					"description": "Range start, YYYY-MM-DD",
				},
				"end_date": map[string]any{
					"type":        "string",
					"description": "Range end, YYYY-MM-DD (default today)",
				},
				"activity_type": activityTypeSchema,
			},
			"required": []string{"start_date"},
		},
		Handler: r.handleGetCompletedActivities,
	})

	r.Register(&Tool{
		Name:        "get_training_summary",
		Description: "Summarize recent training: planned vs completed vs missed counts, completion rate, and activity counts by type.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"days": map[string]any{
					"type":        "integer",
					"description": "Lookback window in days (default 7)",
				},
			},
		},
		Handler: r.handleGetTrainingSummary,
	})
}

type dateRangeArgs struct {
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	ActivityType string `json:"activity_type"`
}

func (r *Registry) handleGetUpcomingWorkouts(ctx context.Context, userID string, args map[string]any) (map[string]any, error) {
	var a dateRangeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	loc := r.userLocation(ctx, userID)
	now := time.Now().In(loc)
	if a.StartDate == "" {
		a.StartDate = now.Format("2006-01-02")
	}
	start, _, err := dayBounds(a.StartDate, loc)
	if err != nil {
		return nil, err
	}
	if a.EndDate == "" {
		a.EndDate = start.In(loc).AddDate(0, 0, 7).Format("2006-01-02")
	}
	_, end, err := dayBounds(a.EndDate, loc)
	if err != nil {
		return nil, err
	}

	workouts, err := r.store.ListWorkouts(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}

	list := make([]map[string]any, 0, len(workouts))
	for _, w := range workouts {
		list = append(list, workoutSummary(w, loc))
	}
	return successResult(map[string]any{
		"count":    len(list),
		"workouts": list,
	}), nil
}

func (r *Registry) handleGetDailyLogs(ctx context.Context, userID string, args map[string]any) (map[string]any, error) {
	var a dateRangeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.StartDate == "" {
		return nil, fmt.Errorf("start_date is required")
	}
	if _, err := parseDate(a.StartDate); err != nil {
		return nil, err
	}
	loc := r.userLocation(ctx, userID)
	if a.EndDate == "" {
		a.EndDate = time.Now().In(loc).Format("2006-01-02")
	} else if _, err := parseDate(a.EndDate); err != nil {
		return nil, err
	}

	logs, err := r.store.ListDailyLogs(ctx, userID, a.StartDate, a.EndDate)
	if err != nil {
		return nil, fmt.Errorf("list daily logs: %w", err)
	}

	list := make([]map[string]any, 0, len(logs))
	for _, l := range logs {
		entry := map[string]any{"date": l.Date}
		if l.SleepTotal != nil {
			entry["sleep_total_hours"] = *l.SleepTotal
		}
		if l.HRVScore != nil {
			entry["hrv_score"] = *l.HRVScore
		}
		if l.Soreness != nil {
			entry["soreness"] = *l.Soreness
		}
		if l.Motivation != nil {
			entry["motivation"] = *l.Motivation
		}
		if l.Stress != nil {
			entry["stress"] = *l.Stress
		}
		if l.BodyWeightKg != nil {
			entry["body_weight_kg"] = *l.BodyWeightKg
		}
		list = append(list, entry)
	}
	return successResult(map[string]any{
		"count": len(list),
		"logs":  list,
	}), nil
}

func (r *Registry) handleGetCompletedActivities(ctx context.Context, userID string, args map[string]any) (map[string]any, error) {
	var a dateRangeArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.StartDate == "" {
		return nil, fmt.Errorf("start_date is required")
	}
	if a.ActivityType != "" && !store.ValidActivityType(a.ActivityType) {
		return nil, fmt.Errorf("invalid activity_type %q", a.ActivityType)
	}

	loc := r.userLocation(ctx, userID)
	start, _, err := dayBounds(a.StartDate, loc)
	if err != nil {
		return nil, err
	}
	if a.EndDate == "" {
		a.EndDate = time.Now().In(loc).Format("2006-01-02")
	}
	_, end, err := dayBounds(a.EndDate, loc)
	if err != nil {
		return nil, err
	}

	activities, err := r.store.ListActivities(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	list := make([]map[string]any, 0, len(activities))
	for _, act := range activities {
		if a.ActivityType != "" && act.ActivityType != a.ActivityType {
			continue
		}
		list = append(list, activitySummary(act, loc))
	}
	return successResult(map[string]any{
		"count":      len(list),
		"activities": list,
	}), nil
}

type trainingSummaryArgs struct {
	Days int `json:"days"`
}

func (r *Registry) handleGetTrainingSummary(ctx context.Context, userID string, args map[string]any) (map[string]any, error) {
	var a trainingSummaryArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Days <= 0 {
		a.Days = 7
	}

	now := time.Now().UTC()
	start := now.AddDate(0, 0, -a.Days)

	workouts, err := r.store.ListWorkouts(ctx, userID, start, now)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	activities, err := r.store.ListActivities(ctx, userID, start, now)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}

	var completed, missed int
	for _, w := range workouts {
		switch w.Status {
		case store.StatusCompleted:
			completed++
		case store.StatusMissed:
			missed++
		}
	}
	total := len(workouts)
	rate := 0
	if total > 0 {
		rate = int(math.Round(float64(completed) / float64(total) * 100))
	}

	byType := map[string]int{}
	for _, act := range activities {
		byType[act.ActivityType]++
	}

	return successResult(map[string]any{
		"days":                    a.Days,
		"planned_total":           total,
		"completed":               completed,
		"missed":                  missed,
		"completion_rate_percent": rate,
		"activities_logged":       len(activities),
		"activities_by_type":      byType,
	}), nil
}

// activitySummary renders an activity for the model: distance in km
// (2 decimals), moving time in minutes (1 decimal).
func activitySummary(a *store.Activity, loc *time.Location) map[string]any {
	out := map[string]any{
		"activity_type":  a.ActivityType,
		"start_time":     a.StartTime.In(loc).Format(time.RFC3339),
		"linked_to_plan": a.PlannedWorkoutID != "",
	}
	if a.DistanceMeters != nil {
		out["distance_km"] = math.Round(*a.DistanceMeters/1000*100) / 100
	}
	if a.MovingTimeSeconds != nil {
		out["moving_time_minutes"] = math.Round(float64(*a.MovingTimeSeconds)/60*10) / 10
	}
	if a.AvgHeartrate != nil {
		out["average_heartrate"] = *a.AvgHeartrate
	}
	if a.ElevationGain != nil {
		out["elevation_gain_meters"] = *a.ElevationGain
	}
	return out
}
