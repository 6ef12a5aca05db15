// Package tools defines the operations the coaching agent can call.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/andrew-thompson-55/trainer-2.0/internal/gcal"
	"github.com/andrew-thompson-55/trainer-2.0/internal/llm"
	"github.com/andrew-thompson-55/trainer-2.0/internal/store"
)

// Tool represents one callable operation.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     func(ctx context.Context, userID string, args map[string]any) (map[string]any, error)
}

// Registry holds the tool catalog and its backing services.
type Registry struct {
	tools     map[string]*Tool
	order     []string
	store     *store.Store
	calendar  gcal.Calendar
	defaultTZ string
	logger    *slog.Logger
}

// NewRegistry creates the catalog. calendar may be nil.
func NewRegistry(st *store.Store, calendar gcal.Calendar, defaultTZ string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultTZ == "" {
		defaultTZ = "America/New_York"
	}
	r := &Registry{
		tools:     make(map[string]*Tool),
		store:     st,
		calendar:  calendar,
		defaultTZ: defaultTZ,
		logger:    logger.With("component", "tools"),
	}
	r.registerWorkoutTools()
	r.registerQueryTools()
	r.registerNoteTools()
	return r
}

// Register adds a tool to the catalog.
func (r *Registry) Register(t *Tool) {
	if _, exists := r.tools[t.Name]; !exists {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Declarations returns the catalog in the shape the model expects,
// in registration order.
func (r *Registry) Declarations() []llm.FunctionDeclaration {
	var result []llm.FunctionDeclaration
	for _, name := range r.order {
		t := r.tools[name]
		result = append(result, llm.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return result
}

// Execute runs a tool by name. Failures of any kind come back as a
// {status: "error", message} result so the caller can always hand the
// model something to react to.
func (r *Registry) Execute(ctx context.Context, userID, name string, args map[string]any) map[string]any {
	tool := r.tools[name]
	if tool == nil {
		r.logger.Warn("unknown tool requested", "tool", name)
		return errorResult(fmt.Sprintf("unsupported operation: %s", name))
	}

	result, err := tool.Handler(ctx, userID, args)
	if err != nil {
		r.logger.Warn("tool failed", "tool", name, "error", err)
		return errorResult(err.Error())
	}
	return result
}

func errorResult(msg string) map[string]any {
	return map[string]any{"status": "error", "message": msg}
}

func successResult(extra map[string]any) map[string]any {
	out := map[string]any{"status": "success"}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// decodeArgs maps the model's loose argument map onto a typed struct.
// Unknown keys are ignored; type mismatches are validation errors.
func decodeArgs(args map[string]any, dst any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// userLocation resolves the user's IANA timezone, falling back to the
// configured default.
func (r *Registry) userLocation(ctx context.Context, userID string) *time.Location {
	tz := r.defaultTZ
	if settings, err := r.store.GetSettings(ctx, userID); err == nil && settings.Timezone != "" {
		tz = settings.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		r.logger.Warn("bad timezone, using UTC", "tz", tz, "error", err)
		return time.UTC
	}
	return loc
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseTimestamp accepts the formats models actually produce. Layouts
// without an offset are interpreted in loc.
func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range timeLayouts[1:] {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q, expected ISO 8601", s)
}

// parseDate parses a YYYY-MM-DD calendar day.
func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// dayBounds returns the UTC instants bracketing a local calendar day.
func dayBounds(date string, loc *time.Location) (time.Time, time.Time, error) {
	d, err := parseDate(date)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
	end := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, loc)
	return start.UTC(), end.UTC(), nil
}

// findWorkoutOnDate returns the user's first chronological workout on
// the named local day, optionally filtered by activity type.
func (r *Registry) findWorkoutOnDate(ctx context.Context, userID, date, activityType string) (*store.Workout, error) {
	loc := r.userLocation(ctx, userID)
	start, end, err := dayBounds(date, loc)
	if err != nil {
		return nil, err
	}
	workouts, err := r.store.ListWorkouts(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("look up workouts: %w", err)
	}
	for _, w := range workouts {
		if activityType == "" || w.ActivityType == activityType {
			return w, nil
		}
	}
	return nil, fmt.Errorf("no workout found on that date")
}

// syncCalendar mirrors a workout mutation to the external calendar
// without blocking or failing the caller.
func (r *Registry) syncCalendar(w *store.Workout) {
	if r.calendar == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := r.calendar.SyncWorkout(ctx, w); err != nil {
			r.logger.Debug("calendar sync failed", "workout_id", w.ID, "error", err)
		}
	}()
}

func (r *Registry) deleteCalendarEvent(eventID string) {
	if r.calendar == nil || eventID == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := r.calendar.DeleteEvent(ctx, eventID); err != nil {
			r.logger.Debug("calendar delete failed", "event_id", eventID, "error", err)
		}
	}()
}
