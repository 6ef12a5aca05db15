package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/andrew-thompson-55/trainer-2.0/internal/store"
)

var activityTypeSchema = map[string]any{
	"type":        "string",
	"description": "One of: run, bike, swim, strength, other",
	"enum":        []string{"run", "bike", "swim", "strength", "other"},
}

func (r *Registry) registerWorkoutTools() {
	r.Register(&Tool{
		Name:        "create_workout",
		Description: "Add a workout to the athlete's training plan. Use when the athlete asks to schedule a session.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Short workout title, e.g. 'Tempo Run 8km'",
				},
				"activity_type": activityTypeSchema,
				"start_time": map[string]any{
					"type":        "string",
					"description": "Start time, ISO 8601 (e.g. 2026-03-10T07:00:00)",
				},
				"duration_minutes": map[string]any{
					"type":        "integer",
					"description": "Planned duration in minutes (default 60)",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "Session details: intervals, paces, zones",
				},
			},
			"required": []string{"title", "activity_type", "start_time"},
		},
		Handler: r.handleCreateWorkout,
	})

	r.Register(&Tool{
		Name:        "update_workout",
		Description: "Modify a planned workout found by its calendar date. Use to retitle, reschedule, or change status.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"target_date": map[string]any{
					"type":        "string",
					"description": "Date of the workout to change, YYYY-MM-DD",
				},
				"new_title":       map[string]any{"type": "string"},
				"new_start_time":  map[string]any{"type": "string", "description": "New start time, ISO 8601. Duration is preserved."},
				"new_description": map[string]any{"type": "string"},
				"new_status": map[string]any{
					"type": "string",
					"enum": []string{"planned", "completed", "missed"},
				},
			},
			"required": []string{"target_date"},
		},
		Handler: r.handleUpdateWorkout,
	})

	r.Register(&Tool{
		Name:        "delete_workout",
		Description: "Remove a planned workout found by its calendar date. Pass activity_type to disambiguate a day with multiple workouts.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"target_date": map[string]any{
					"type":        "string",
					"description": "Date of the workout to remove, YYYY-MM-DD",
				},
				"activity_type": activityTypeSchema,
			},
			"required": []string{"target_date"},
		},
		Handler: r.handleDeleteWorkout,
	})
}

type createWorkoutArgs struct {
	Title           string `json:"title"`
	ActivityType    string `json:"activity_type"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Description     string `json:"description"`
}

func (r *Registry) handleCreateWorkout(ctx context.Context, userID string, args map[string]any) (map[string]any, error) {
	var a createWorkoutArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if !store.ValidActivityType(a.ActivityType) {
		return nil, fmt.Errorf("invalid activity_type %q", a.ActivityType)
	}
	if a.DurationMinutes <= 0 {
		a.DurationMinutes = 60
	}

	loc := r.userLocation(ctx, userID)
	start, err := parseTimestamp(a.StartTime, loc)
	if err != nil {
		return nil, err
	}

	w, err := r.store.CreateWorkout(ctx, &store.Workout{
		UserID:       userID,
		Title:        a.Title,
		Description:  a.Description,
		ActivityType: a.ActivityType,
		StartTime:    start,
		EndTime:      start.Add(time.Duration(a.DurationMinutes) * time.Minute),
	})
	if err != nil {
		return nil, fmt.Errorf("create workout: %w", err)
	}
	r.syncCalendar(w)

	return successResult(map[string]any{
		"workout": workoutSummary(w, loc),
	}), nil
}

type updateWorkoutArgs struct {
	TargetDate     string `json:"target_date"`
	NewTitle       string `json:"new_title"`
	NewStartTime   string `json:"new_start_time"`
	NewDescription string `json:"new_description"`
	NewStatus      string `json:"new_status"`
}

func (r *Registry) handleUpdateWorkout(ctx context.Context, userID string, args map[string]any) (map[string]any, error) {
	var a updateWorkoutArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.TargetDate == "" {
		return nil, fmt.Errorf("target_date is required")
	}

	w, err := r.findWorkoutOnDate(ctx, userID, a.TargetDate, "")
	if err != nil {
		return nil, err
	}

	loc := r.userLocation(ctx, userID)
	var upd store.WorkoutUpdate
	if a.NewTitle != "" {
		upd.Title = &a.NewTitle
	}
	if a.NewDescription != "" {
		upd.Description = &a.NewDescription
	}
	if a.NewStatus != "" {
		if !store.ValidStatus(a.NewStatus) {
			return nil, fmt.Errorf("invalid status %q", a.NewStatus)
		}
		upd.Status = &a.NewStatus
	}
	if a.NewStartTime != "" {
		start, err := parseTimestamp(a.NewStartTime, loc)
		if err != nil {
			return nil, err
		}
		// reschedule keeps the original duration
		end := start.Add(w.EndTime.Sub(w.StartTime))
		upd.StartTime = &start
		upd.EndTime = &end
	}
	if upd == (store.WorkoutUpdate{}) {
		return nil, fmt.Errorf("no changes requested")
	}

	updated, err := r.store.UpdateWorkout(ctx, userID, w.ID, upd)
	if err != nil {
		return nil, fmt.Errorf("update workout: %w", err)
	}
	r.syncCalendar(updated)

	return successResult(map[string]any{
		"workout": workoutSummary(updated, loc),
	}), nil
}

type deleteWorkoutArgs struct {
	TargetDate   string `json:"target_date"`
	ActivityType string `json:"activity_type"`
}

func (r *Registry) handleDeleteWorkout(ctx context.Context, userID string, args map[string]any) (map[string]any, error) {
	var a deleteWorkoutArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.TargetDate == "" {
		return nil, fmt.Errorf("target_date is required")
	}
	if a.ActivityType != "" && !store.ValidActivityType(a.ActivityType) {
		return nil, fmt.Errorf("invalid activity_type %q", a.ActivityType)
	}

	w, err := r.findWorkoutOnDate(ctx, userID, a.TargetDate, a.ActivityType)
	if err != nil {
		return nil, err
	}
	if err := r.store.DeleteWorkout(ctx, userID, w.ID); err != nil {
		return nil, fmt.Errorf("delete workout: %w", err)
	}
	r.deleteCalendarEvent(w.GoogleEventID)

	return successResult(map[string]any{
		"deleted": w.Title,
		"date":    a.TargetDate,
	}), nil
}

// workoutSummary renders a workout for the model in local time.
func workoutSummary(w *store.Workout, loc *time.Location) map[string]any {
	out := map[string]any{
		"id":            w.ID,
		"title":         w.Title,
		"activity_type": w.ActivityType,
		"start_time":    w.StartTime.In(loc).Format(time.RFC3339),
		"end_time":      w.EndTime.In(loc).Format(time.RFC3339),
		"status":        w.Status,
	}
	if w.Description != "" {
		out["description"] = w.Description
	}
	return out
}
