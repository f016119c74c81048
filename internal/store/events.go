package store

import (
	"context"
	"fmt"
	"time"
)

// Event is one entry in the append-only conversation log.
type Event struct {
	ID             int64
	UserID         string
	ConversationID string
	Kind           string
	Utterance      string
	DetailJSON     string
	CreatedAt      time.Time
}

// LogEvent appends e to the conversation log and fills its ID and CreatedAt.
func (s *SQLiteStore) LogEvent(ctx context.Context, e *Event) error {
	now := s.now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_events (user_id, conversation_id, kind, utterance, detail_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.UserID, e.ConversationID, e.Kind, e.Utterance, e.DetailJSON, now.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("logging event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting event id: %w", err)
	}
	e.ID = id
	e.CreatedAt = now
	return nil
}

// ListEvents returns the most recent events for userID, newest first.
func (s *SQLiteStore) ListEvents(ctx context.Context, userID string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, conversation_id, kind, utterance, detail_json, created_at
		 FROM conversation_events WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		e := &Event{}
		var created int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.ConversationID, &e.Kind, &e.Utterance, &e.DetailJSON, &created); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
