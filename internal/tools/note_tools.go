package tools

import (
	"context"
	"fmt"
)

func (r *Registry) registerNoteTools() {
	r.Register(&Tool{
		Name:        "save_coach_note",
		Description: "Save an observation about the athlete for future sessions (preferences, constraints, recurring issues). Notes accumulate; they are never overwritten.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"note": map[string]any{
					"type":        "string",
					"description": "The observation to remember",
				},
			},
			"required": []string{"note"},
		},
		Handler: r.handleSaveCoachNote,
	})
}

type saveCoachNoteArgs struct {
	Note string `json:"note"`
}

func (r *Registry) handleSaveCoachNote(ctx context.Context, userID string, args map[string]any) (map[string]any, error) {
	var a saveCoachNoteArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Note == "" {
		return nil, fmt.Errorf("note is required")
	}
	if err := r.store.AppendCoachNote(ctx, userID, a.Note); err != nil {
		return nil, fmt.Errorf("save note: %w", err)
	}
	return successResult(map[string]any{"saved": true}), nil
}
