package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hurttlocker/craving/internal/conversation"
	"github.com/hurttlocker/craving/internal/extract"
)

var (
	_ conversation.Store   = (*SQLiteStore)(nil)
	_ conversation.Sweeper = (*SQLiteStore)(nil)
)

// Get loads the pending extraction for userID.
func (s *SQLiteStore) Get(ctx context.Context, userID string) (conversation.Pending, bool, error) {
	var (
		p       conversation.Pending
		raw     string
		missing string
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT conversation_id, record_json, missing, created_at
		 FROM pending_extractions WHERE user_id = ?`, userID,
	).Scan(&p.ConversationID, &raw, &missing, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return conversation.Pending{}, false, nil
	}
	if err != nil {
		return conversation.Pending{}, false, fmt.Errorf("getting pending extraction: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &p.Record); err != nil {
		return conversation.Pending{}, false, fmt.Errorf("decoding pending record for %s: %w", userID, err)
	}
	p.UserID = userID
	p.Missing = extract.Missing(missing)
	p.CreatedAt = time.Unix(0, created).UTC()
	return p, true, nil
}

// Put inserts or replaces the pending extraction for p.UserID.
func (s *SQLiteStore) Put(ctx context.Context, p conversation.Pending) error {
	raw, err := json.Marshal(p.Record)
	if err != nil {
		return fmt.Errorf("encoding pending record: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pending_extractions (user_id, conversation_id, record_json, missing, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
		   conversation_id = excluded.conversation_id,
		   record_json     = excluded.record_json,
		   missing         = excluded.missing,
		   created_at      = excluded.created_at`,
		p.UserID, p.ConversationID, string(raw), string(p.Missing), p.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("saving pending extraction: %w", err)
	}
	return nil
}

// Delete removes the pending extraction for userID, if any.
func (s *SQLiteStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_extractions WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("deleting pending extraction: %w", err)
	}
	return nil
}

// DeleteExpired removes pending extractions created before the cutoff.
func (s *SQLiteStore) DeleteExpired(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_extractions WHERE created_at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("deleting expired extractions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting expired extractions: %w", err)
	}
	return int(n), nil
}
