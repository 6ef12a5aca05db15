package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, err := New(filepath.Join(t.TempDir(), "test.db"), logger)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func strp(s string) *string     { return &s }
func intp(i int) *int           { return &i }
func floatp(f float64) *float64 { return &f }

func TestWorkouts_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)
	w, err := s.CreateWorkout(ctx, &Workout{
		UserID:       "u1",
		Title:        "Tempo run",
		ActivityType: ActivityRun,
		StartTime:    start,
		EndTime:      start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if w.ID == "" {
		t.Error("expected generated id")
	}
	if w.Status != StatusPlanned {
		t.Errorf("status = %q, want %q", w.Status, StatusPlanned)
	}

	got, err := s.GetWorkout(ctx, "u1", w.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Tempo run" {
		t.Errorf("title = %q, want %q", got.Title, "Tempo run")
	}
	if !got.StartTime.Equal(start) {
		t.Errorf("start = %v, want %v", got.StartTime, start)
	}
}

func TestWorkouts_CreateRejectsInvalid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Now().UTC()

	if _, err := s.CreateWorkout(ctx, &Workout{
		UserID: "u1", Title: "x", ActivityType: "rowing",
		StartTime: start, EndTime: start.Add(time.Hour),
	}); err == nil {
		t.Error("expected error for unknown activity type")
	}

	if _, err := s.CreateWorkout(ctx, &Workout{
		UserID: "u1", Title: "x", ActivityType: ActivityRun,
		StartTime: start, EndTime: start.Add(-time.Minute),
	}); err == nil {
		t.Error("expected error for end before start")
	}
}

func TestWorkouts_ListRangeAndScoping(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	for i, user := range []string{"u1", "u1", "u2"} {
		start := base.AddDate(0, 0, i)
		if _, err := s.CreateWorkout(ctx, &Workout{
			UserID: user, Title: "w", ActivityType: ActivityBike,
			StartTime: start, EndTime: start.Add(time.Hour),
		}); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	got, err := s.ListWorkouts(ctx, "u1", base, base.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d workouts, want 2", len(got))
	}
	if got[0].StartTime.After(got[1].StartTime) {
		t.Error("expected ascending order")
	}

	// narrow window excludes the second day
	got, err = s.ListWorkouts(ctx, "u1", base, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("list narrow: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d workouts in narrow window, want 1", len(got))
	}
}

func TestWorkouts_Update(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC)

	w, err := s.CreateWorkout(ctx, &Workout{
		UserID: "u1", Title: "Easy run", ActivityType: ActivityRun,
		StartTime: start, EndTime: start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.UpdateWorkout(ctx, "u1", w.ID, WorkoutUpdate{
		Title:  strp("Long run"),
		Status: strp(StatusCompleted),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != "Long run" || got.Status != StatusCompleted {
		t.Errorf("got title=%q status=%q", got.Title, got.Status)
	}
	if !got.StartTime.Equal(start) {
		t.Errorf("start changed to %v", got.StartTime)
	}

	if _, err := s.UpdateWorkout(ctx, "u1", "missing", WorkoutUpdate{Title: strp("x")}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing: got %v, want ErrNotFound", err)
	}
	if _, err := s.UpdateWorkout(ctx, "u2", w.ID, WorkoutUpdate{Title: strp("x")}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update other user's workout: got %v, want ErrNotFound", err)
	}
}

func TestWorkouts_Delete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Now().UTC()

	w, err := s.CreateWorkout(ctx, &Workout{
		UserID: "u1", Title: "w", ActivityType: ActivitySwim,
		StartTime: start, EndTime: start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.DeleteWorkout(ctx, "u1", w.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetWorkout(ctx, "u1", w.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete: got %v, want ErrNotFound", err)
	}
	if err := s.DeleteWorkout(ctx, "u1", w.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: got %v, want ErrNotFound", err)
	}
}

func TestDailyLogs_UpsertIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.UpsertDailyLog(ctx, &DailyLog{
		UserID: "u1", Date: "2026-03-10",
		SleepTotal: floatp(7.5), Soreness: intp(3),
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second, err := s.UpsertDailyLog(ctx, &DailyLog{
		UserID: "u1", Date: "2026-03-10",
		SleepTotal: floatp(8.0), Motivation: intp(9),
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("upsert created new row: %q vs %q", second.ID, first.ID)
	}
	if second.SleepTotal == nil || *second.SleepTotal != 8.0 {
		t.Errorf("sleep = %v, want 8.0", second.SleepTotal)
	}
	if second.Motivation == nil || *second.Motivation != 9 {
		t.Errorf("motivation = %v, want 9", second.Motivation)
	}
}

func TestDailyLogs_ListRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, d := range []string{"2026-03-12", "2026-03-10", "2026-03-11"} {
		if _, err := s.UpsertDailyLog(ctx, &DailyLog{UserID: "u1", Date: d}); err != nil {
			t.Fatalf("upsert %s: %v", d, err)
		}
	}

	got, err := s.ListDailyLogs(ctx, "u1", "2026-03-10", "2026-03-11")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d logs, want 2", len(got))
	}
	if got[0].Date != "2026-03-10" || got[1].Date != "2026-03-11" {
		t.Errorf("order = %s, %s", got[0].Date, got[1].Date)
	}
}

func TestActivities_UpsertBySource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 10, 6, 30, 0, 0, time.UTC)

	first, err := s.UpsertActivity(ctx, &Activity{
		UserID: "u1", SourceType: SourceStrava, SourceID: "12345",
		ActivityType: ActivityRun, StartTime: start,
		DistanceMeters: floatp(10000),
	})
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	second, err := s.UpsertActivity(ctx, &Activity{
		UserID: "u1", SourceType: SourceStrava, SourceID: "12345",
		ActivityType: ActivityRun, StartTime: start,
		DistanceMeters: floatp(10200), AvgHeartrate: intp(152),
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("upsert created new row: %q vs %q", second.ID, first.ID)
	}
	if second.DistanceMeters == nil || *second.DistanceMeters != 10200 {
		t.Errorf("distance = %v, want 10200", second.DistanceMeters)
	}
}

func TestActivities_UpsertPreservesLink(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 10, 6, 30, 0, 0, time.UTC)

	w, err := s.CreateWorkout(ctx, &Workout{
		UserID: "u1", Title: "Morning run", ActivityType: ActivityRun,
		StartTime: start, EndTime: start.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create workout: %v", err)
	}
	a, err := s.UpsertActivity(ctx, &Activity{
		UserID: "u1", SourceType: SourceStrava, SourceID: "777",
		ActivityType: ActivityRun, StartTime: start,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.LinkActivity(ctx, "u1", a.ID, w.ID); err != nil {
		t.Fatalf("link: %v", err)
	}

	again, err := s.UpsertActivity(ctx, &Activity{
		UserID: "u1", SourceType: SourceStrava, SourceID: "777",
		ActivityType: ActivityRun, StartTime: start,
		DistanceMeters: floatp(5000),
	})
	if err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if again.PlannedWorkoutID != w.ID {
		t.Errorf("link lost on re-upsert: got %q, want %q", again.PlannedWorkoutID, w.ID)
	}
}

func TestActivities_DeleteBySourceReturnsRow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a, err := s.UpsertActivity(ctx, &Activity{
		UserID: "u1", SourceType: SourceStrava, SourceID: "9",
		ActivityType: ActivityBike, StartTime: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	deleted, err := s.DeleteActivityBySource(ctx, "u1", SourceStrava, "9")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.ID != a.ID {
		t.Errorf("deleted id = %q, want %q", deleted.ID, a.ID)
	}
	if _, err := s.GetActivityBySource(ctx, "u1", SourceStrava, "9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete: got %v, want ErrNotFound", err)
	}
}

func TestSettings_LazyRowAndUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	st, err := s.GetSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("get fresh: %v", err)
	}
	if st.Timezone != "" || st.StravaConnected() {
		t.Errorf("expected empty settings, got %+v", st)
	}

	st, err = s.UpdateSettings(ctx, "u1", &SettingsUpdate{
		Timezone:                strp("America/Denver"),
		TrainingGoals:           strp("Sub-3 marathon"),
		WeeklyVolumeTargetHours: floatp(9.5),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if st.Timezone != "America/Denver" {
		t.Errorf("timezone = %q", st.Timezone)
	}
	if st.WeeklyVolumeTargetHours == nil || *st.WeeklyVolumeTargetHours != 9.5 {
		t.Errorf("volume = %v", st.WeeklyVolumeTargetHours)
	}

	// patch is partial: untouched fields survive
	st, err = s.UpdateSettings(ctx, "u1", &SettingsUpdate{InjuryNotes: strp("left achilles")})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if st.TrainingGoals != "Sub-3 marathon" {
		t.Errorf("goals lost: %q", st.TrainingGoals)
	}
}

func TestSettings_StravaTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SetStravaTokens(ctx, "u1", "ath42", "acc", "ref", 1800000000); err != nil {
		t.Fatalf("set tokens: %v", err)
	}
	st, err := s.GetSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !st.StravaConnected() {
		t.Error("expected connected")
	}
	if st.StravaExpiresAt != 1800000000 {
		t.Errorf("expires = %d", st.StravaExpiresAt)
	}

	userID, err := s.FindUserByStravaAthleteID(ctx, "ath42")
	if err != nil {
		t.Fatalf("find by athlete: %v", err)
	}
	if userID != "u1" {
		t.Errorf("user = %q, want u1", userID)
	}
	if _, err := s.FindUserByStravaAthleteID(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown athlete: got %v, want ErrNotFound", err)
	}

	if err := s.ClearStravaTokens(ctx, "u1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	st, err = s.GetSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("get after clear: %v", err)
	}
	if st.StravaConnected() {
		t.Error("expected disconnected")
	}
}

func TestSettings_AppendCoachNote(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.AppendCoachNote(ctx, "u1", "prefers morning sessions"); err != nil {
		t.Fatalf("first note: %v", err)
	}
	if err := s.AppendCoachNote(ctx, "u1", "watch achilles load"); err != nil {
		t.Fatalf("second note: %v", err)
	}
	st, err := s.GetSettings(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	today := time.Now().UTC().Format("2006-01-02")
	want := "[" + today + "] prefers morning sessions\n[" + today + "] watch achilles load"
	if st.CoachNotes != want {
		t.Errorf("notes = %q, want %q", st.CoachNotes, want)
	}
}

func TestUsers_GetOrCreate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.GetOrCreateUser(ctx, "sam@example.com", "Sam", "g-123")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if u.ID == "" {
		t.Error("expected generated id")
	}

	again, err := s.GetOrCreateUser(ctx, "sam@example.com", "Samantha", "g-123")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if again.ID != u.ID {
		t.Errorf("second call created new user: %q vs %q", again.ID, u.ID)
	}
	if again.Name != "Samantha" {
		t.Errorf("name not refreshed: %q", again.Name)
	}
}

func TestUsers_DeleteCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.GetOrCreateUser(ctx, "sam@example.com", "Sam", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	start := time.Now().UTC()
	if _, err := s.CreateWorkout(ctx, &Workout{
		UserID: u.ID, Title: "w", ActivityType: ActivityRun,
		StartTime: start, EndTime: start.Add(time.Hour),
	}); err != nil {
		t.Fatalf("workout: %v", err)
	}
	if err := s.AppendChatTurn(ctx, u.ID, "hello", "hi there"); err != nil {
		t.Fatalf("chat: %v", err)
	}

	if err := s.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ws, err := s.ListWorkouts(ctx, u.ID, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("list workouts: %v", err)
	}
	if len(ws) != 0 {
		t.Errorf("workouts survived delete: %d", len(ws))
	}
	turns, err := s.RecentChatTurns(ctx, u.ID, 10)
	if err != nil {
		t.Fatalf("recent chat: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("chat survived delete: %d", len(turns))
	}
}

func TestChat_RecentOrderAndLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		msg := string(rune('a' + i))
		if err := s.AppendChatTurn(ctx, "u1", msg, "reply to "+msg); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := s.RecentChatTurns(ctx, "u1", 3)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d turns, want 3", len(got))
	}
	// most recent 3, oldest first
	if got[0].UserMessage != "c" || got[2].UserMessage != "e" {
		t.Errorf("order = %q..%q, want c..e", got[0].UserMessage, got[2].UserMessage)
	}
}
