package store

import (
	"context"
	"fmt"
	"time"
)

// ChatTurn is one exchange of the coaching conversation: the user's
// message and the coach's reply.
type ChatTurn struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"user_id"`
	UserMessage string    `json:"user_message"`
	AIResponse  string    `json:"ai_response"`
	CreatedAt   time.Time `json:"created_at"`
}

// AppendChatTurn records one completed exchange.
func (s *Store) AppendChatTurn(ctx context.Context, userID, userMessage, aiResponse string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO chat_logs (user_id, user_message, ai_response, created_at) VALUES (?, ?, ?, ?)",
		userID, userMessage, aiResponse, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("append chat turn: %w", err)
	}
	return nil
}

// RecentChatTurns returns up to limit of the user's most recent
// exchanges, oldest first.
func (s *Store) RecentChatTurns(ctx context.Context, userID string, limit int) ([]*ChatTurn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, user_message, ai_response, created_at FROM (
			SELECT id, user_id, user_message, ai_response, created_at
			FROM chat_logs WHERE user_id = ?
			ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent chat turns: %w", err)
	}
	defer rows.Close()

	var result []*ChatTurn
	for rows.Next() {
		var t ChatTurn
		var createdStr string
		if err := rows.Scan(&t.ID, &t.UserID, &t.UserMessage, &t.AIResponse, &createdStr); err != nil {
			return nil, fmt.Errorf("scan chat turn: %w", err)
		}
		t.CreatedAt = parseTime(createdStr)
		result = append(result, &t)
	}
	return result, rows.Err()
}
