package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/andrew-thompson-55/trainer-2.0/internal/auth"
	"github.com/andrew-thompson-55/trainer-2.0/internal/store"
)

type workoutRequest struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ActivityType string    `json:"activity_type"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Status       string    `json:"status"`
}

func (s *Server) handleCreateWorkout(w http.ResponseWriter, r *http.Request) {
	var req workoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.StartTime.IsZero() {
		s.errorResponse(w, http.StatusBadRequest, "title and start_time are required")
		return
	}
	if req.EndTime.IsZero() {
		req.EndTime = req.StartTime.Add(time.Hour)
	}

	workout, err := s.store.CreateWorkout(r.Context(), &store.Workout{
		UserID:       auth.UserID(r.Context()),
		Title:        req.Title,
		Description:  req.Description,
		ActivityType: req.ActivityType,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Status:       req.Status,
	})
	if err != nil {
		s.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, workout, s.logger)
}

// handleListWorkouts returns workouts in [start, end). Defaults to the
// next seven days when the range is not given.
func (s *Server) handleListWorkouts(w http.ResponseWriter, r *http.Request) {
	start, end, err := rangeParams(r, time.Now().UTC(), 7*24*time.Hour)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	workouts, err := s.store.ListWorkouts(r.Context(), auth.UserID(r.Context()), start, end)
	if err != nil {
		s.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"workouts": workouts}, s.logger)
}

func (s *Server) handleGetWorkout(w http.ResponseWriter, r *http.Request) {
	workout, err := s.store.GetWorkout(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, workout, s.logger)
}

type workoutPatch struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Status      *string    `json:"status"`
}

func (s *Server) handleUpdateWorkout(w http.ResponseWriter, r *http.Request) {
	var patch workoutPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	workout, err := s.store.UpdateWorkout(r.Context(), auth.UserID(r.Context()), r.PathValue("id"), store.WorkoutUpdate{
		Title:       patch.Title,
		Description: patch.Description,
		StartTime:   patch.StartTime,
		EndTime:     patch.EndTime,
		Status:      patch.Status,
	})
	if err != nil {
		s.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, workout, s.logger)
}

func (s *Server) handleDeleteWorkout(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteWorkout(r.Context(), auth.UserID(r.Context()), r.PathValue("id")); err != nil {
		s.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "deleted"}, s.logger)
}

// handleWorkoutActivity returns the completed activity linked to a
// planned workout, if any.
func (s *Server) handleWorkoutActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := s.store.GetActivityByWorkout(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, activity, s.logger)
}

func (s *Server) handleUpsertDailyLog(w http.ResponseWriter, r *http.Request) {
	var entry store.DailyLog
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	entry.UserID = auth.UserID(r.Context())
	entry.Date = r.PathValue("date")

	saved, err := s.store.UpsertDailyLog(r.Context(), &entry)
	if err != nil {
		s.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, saved, s.logger)
}

func (s *Server) handleGetDailyLog(w http.ResponseWriter, r *http.Request) {
	entry, err := s.store.GetDailyLog(r.Context(), auth.UserID(r.Context()), r.PathValue("date"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, entry, s.logger)
}

// handleListDailyLogs returns logs for a date range, defaulting to the
// trailing seven days.
func (s *Server) handleListDailyLogs(w http.ResponseWriter, r *http.Request) {
	end := r.URL.Query().Get("end")
	if end == "" {
		end = time.Now().UTC().Format("2006-01-02")
	}
	start := r.URL.Query().Get("start")
	if start == "" {
		start = time.Now().UTC().AddDate(0, 0, -7).Format("2006-01-02")
	}

	logs, err := s.store.ListDailyLogs(r.Context(), auth.UserID(r.Context()), start, end)
	if err != nil {
		s.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"daily_logs": logs}, s.logger)
}

// handleListActivities returns completed activities in [start, end).
// Defaults to the trailing 30 days.
func (s *Server) handleListActivities(w http.ResponseWriter, r *http.Request) {
	start, end, err := rangeParams(r, time.Now().UTC().AddDate(0, 0, -30), 30*24*time.Hour)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	activities, err := s.store.ListActivities(r.Context(), auth.UserID(r.Context()), start, end)
	if err != nil {
		s.storeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]any{"activities": activities}, s.logger)
}

// rangeParams parses optional start/end RFC3339 query parameters,
// defaulting to [defStart, defStart+defSpan).
func rangeParams(r *http.Request, defStart time.Time, defSpan time.Duration) (time.Time, time.Time, error) {
	start := defStart
	end := defStart.Add(defSpan)

	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
		end = t.Add(defSpan)
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t
	}
	return start, end, nil
}
