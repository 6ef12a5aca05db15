package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/andrew-thompson-55/trainer-2.0/internal/store"
)

// Webhook aspect types.
const (
	AspectCreate = "create"
	AspectUpdate = "update"
	AspectDelete = "delete"
)

// Event is one webhook delivery from the tracker.
type Event struct {
	ObjectType string `json:"object_type"`
	ObjectID   int64  `json:"object_id"`
	AspectType string `json:"aspect_type"`
	OwnerID    int64  `json:"owner_id"`
}

// MapActivityType folds the tracker's free-text sport names into the
// plan taxonomy. Total: every input maps to something, defaulting to
// other.
func MapActivityType(sport string) string {
	s := strings.ToLower(sport)
	switch {
	case strings.Contains(s, "run"):
		return store.ActivityRun
	case strings.Contains(s, "ride"), strings.Contains(s, "cycling"):
		return store.ActivityBike
	case strings.Contains(s, "swim"):
		return store.ActivitySwim
	case strings.Contains(s, "weight"), strings.Contains(s, "strength"):
		return store.ActivityStrength
	default:
		return store.ActivityOther
	}
}

// Reconciler ingests reported activities and links them to planned
// workouts.
type Reconciler struct {
	st        *store.Store
	client    *Client
	defaultTZ string
	logger    *slog.Logger
}

// NewReconciler builds a reconciler. defaultTZ is used when the user
// has no stored timezone.
func NewReconciler(st *store.Store, client *Client, defaultTZ string, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultTZ == "" {
		defaultTZ = "America/New_York"
	}
	return &Reconciler{
		st:        st,
		client:    client,
		defaultTZ: defaultTZ,
		logger:    logger.With("component", "reconcile"),
	}
}

// ProcessActivity upserts a reported activity and attempts to link it
// to a planned workout. Re-delivery of the same source id updates the
// stored row rather than duplicating it.
func (r *Reconciler) ProcessActivity(ctx context.Context, userID string, act *Activity) (*store.Activity, error) {
	start, err := time.Parse(time.RFC3339, act.StartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid start_date %q: %w", act.StartDate, err)
	}

	raw, err := json.Marshal(act)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	rec := &store.Activity{
		UserID:       userID,
		SourceType:   store.SourceStrava,
		SourceID:     strconv.FormatInt(act.ID, 10),
		ActivityType: MapActivityType(act.Type),
		StartTime:    start,
		RawPayload:   string(raw),
	}
	if act.Distance > 0 {
		rec.DistanceMeters = &act.Distance
	}
	if act.MovingTime > 0 {
		rec.MovingTimeSeconds = &act.MovingTime
	}
	if act.ElapsedTime > 0 {
		rec.ElapsedTimeSeconds = &act.ElapsedTime
	}
	if act.TotalElevationGain > 0 {
		rec.ElevationGain = &act.TotalElevationGain
	}
	if act.AverageHeartrate > 0 {
		hr := int(act.AverageHeartrate)
		rec.AvgHeartrate = &hr
	}

	stored, err := r.st.UpsertActivity(ctx, rec)
	if err != nil {
		return nil, err
	}

	if stored.PlannedWorkoutID == "" {
		if err := r.autoLink(ctx, userID, stored, act.StartDateLocal); err != nil {
			// linking is best-effort; the activity itself is saved
			r.logger.Warn("auto-link failed", "activity_id", stored.ID, "error", err)
		}
	}
	return stored, nil
}

// autoLink matches the activity to a planned workout on the same local
// calendar day. The day comes from the source's local start time so
// the athlete's day boundary wins over the server's.
func (r *Reconciler) autoLink(ctx context.Context, userID string, act *store.Activity, startDateLocal string) error {
	if startDateLocal == "" {
		return nil
	}
	targetDate, _, _ := strings.Cut(startDateLocal, "T")
	day, err := time.Parse("2006-01-02", targetDate)
	if err != nil {
		return fmt.Errorf("invalid start_date_local %q: %w", startDateLocal, err)
	}

	// generous UTC window to absorb timezone skew against storage
	searchStart := day.AddDate(0, 0, -1)
	searchEnd := day.AddDate(0, 0, 2)
	candidates, err := r.st.ListWorkoutsByStatus(ctx, userID, searchStart, searchEnd, store.StatusPlanned)
	if err != nil {
		return fmt.Errorf("list candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil
	}

	loc := r.userLocation(ctx, userID)

	// pass 1: same local day and same activity type; pass 2: same
	// local day only, so mistyped or "other" activities still link.
	match := findMatch(candidates, targetDate, act.ActivityType, loc)
	if match == nil {
		match = findMatch(candidates, targetDate, "", loc)
	}
	if match == nil {
		r.logger.Debug("no plan match", "user_id", userID, "date", targetDate)
		return nil
	}

	if err := r.st.LinkActivity(ctx, userID, act.ID, match.ID); err != nil {
		return err
	}
	completed := store.StatusCompleted
	if _, err := r.st.UpdateWorkout(ctx, userID, match.ID, store.WorkoutUpdate{Status: &completed}); err != nil {
		return err
	}
	act.PlannedWorkoutID = match.ID
	r.logger.Info("activity linked", "user_id", userID, "workout", match.Title, "date", targetDate)
	return nil
}

// findMatch scans candidates in chronological order and returns the
// first whose local calendar day equals targetDate, and whose type
// matches when activityType is non-empty.
func findMatch(candidates []*store.Workout, targetDate, activityType string, loc *time.Location) *store.Workout {
	for _, w := range candidates {
		if activityType != "" && w.ActivityType != activityType {
			continue
		}
		if w.StartTime.In(loc).Format("2006-01-02") == targetDate {
			return w
		}
	}
	return nil
}

func (r *Reconciler) userLocation(ctx context.Context, userID string) *time.Location {
	tz := r.defaultTZ
	if settings, err := r.st.GetSettings(ctx, userID); err == nil && settings.Timezone != "" {
		tz = settings.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		r.logger.Warn("bad timezone, using UTC", "tz", tz, "error", err)
		return time.UTC
	}
	return loc
}

// HandleEvent processes one webhook delivery. Unknown users and
// non-activity objects are ignored.
func (r *Reconciler) HandleEvent(ctx context.Context, ev *Event) error {
	if ev.ObjectType != "activity" {
		return nil
	}
	userID, err := r.st.FindUserByStravaAthleteID(ctx, strconv.FormatInt(ev.OwnerID, 10))
	if err != nil {
		return fmt.Errorf("resolve athlete %d: %w", ev.OwnerID, err)
	}

	switch ev.AspectType {
	case AspectCreate, AspectUpdate:
		token, err := r.client.AccessToken(ctx, userID)
		if err != nil {
			return err
		}
		act, err := r.client.FetchActivity(ctx, token, ev.ObjectID)
		if err != nil {
			return err
		}
		_, err = r.ProcessActivity(ctx, userID, act)
		return err

	case AspectDelete:
		return r.handleDelete(ctx, userID, ev.ObjectID)
	}
	return nil
}

// handleDelete removes the activity row and, when it was linked,
// reverts the workout to planned.
func (r *Reconciler) handleDelete(ctx context.Context, userID string, objectID int64) error {
	deleted, err := r.st.DeleteActivityBySource(ctx, userID, store.SourceStrava, strconv.FormatInt(objectID, 10))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	if deleted.PlannedWorkoutID != "" {
		planned := store.StatusPlanned
		if _, err := r.st.UpdateWorkout(ctx, userID, deleted.PlannedWorkoutID, store.WorkoutUpdate{Status: &planned}); err != nil {
			return fmt.Errorf("revert workout status: %w", err)
		}
	}
	r.logger.Info("activity deleted upstream", "user_id", userID, "object_id", objectID)
	return nil
}

// BackfillResult summarizes one backfill run.
type BackfillResult struct {
	Synced int `json:"synced"`
	Errors int `json:"errors"`
	Total  int `json:"total"`
}

const backfillPageSize = 50

// Backfill pages through the user's tracker history for the lookback
// window and ingests every activity the way the webhook path does. A
// single activity's failure is counted, not fatal.
func (r *Reconciler) Backfill(ctx context.Context, userID string, days int) (*BackfillResult, error) {
	if days <= 0 {
		days = 30
	}
	token, err := r.client.AccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	after := time.Now().AddDate(0, 0, -days)
	result := &BackfillResult{}

	for page := 1; ; page++ {
		summaries, err := r.client.ListActivities(ctx, token, after, page, backfillPageSize)
		if err != nil {
			return result, fmt.Errorf("backfill page %d: %w", page, err)
		}
		if len(summaries) == 0 {
			break
		}
		for _, summary := range summaries {
			result.Total++
			detail, err := r.client.FetchActivity(ctx, token, summary.ID)
			if err != nil {
				r.logger.Warn("backfill fetch failed", "activity_id", summary.ID, "error", err)
				result.Errors++
				continue
			}
			if _, err := r.ProcessActivity(ctx, userID, detail); err != nil {
				r.logger.Warn("backfill process failed", "activity_id", summary.ID, "error", err)
				result.Errors++
				continue
			}
			result.Synced++
		}
		if len(summaries) < backfillPageSize {
			break
		}
	}

	r.logger.Info("backfill complete", "user_id", userID,
		"synced", result.Synced, "errors", result.Errors, "total", result.Total)
	return result, nil
}
