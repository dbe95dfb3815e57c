// ABOUTME: CallRecord entity and append/list/count operations for call history
// ABOUTME: Records who called which operation on which session, and how it ended

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CallRecord is one dispatched operation: a tool call or a resource read.
type CallRecord struct {
	ID         string
	SessionID  string
	UserID     string
	Operation  string
	RequestID  string
	Transport  string
	DurationMs int64
	IsError    bool
	CreatedAt  time.Time
}

// AppendCall appends a record to the call history. Generates ID and
// CreatedAt if not set.
func (s *SQLiteStore) AppendCall(ctx context.Context, rec *CallRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO tool_calls (
			id, session_id, user_id, operation, request_id,
			transport, duration_ms, is_error, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.SessionID,
		rec.UserID,
		rec.Operation,
		rec.RequestID,
		rec.Transport,
		rec.DurationMs,
		boolToInt(rec.IsError),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting call record: %w", err)
	}

	s.logger.Debug("recorded call",
		"operation", rec.Operation,
		"user_id", rec.UserID,
		"session_id", rec.SessionID,
		"is_error", rec.IsError,
	)
	return nil
}

// ListCallsForUser returns the user's most recent calls, newest first.
// A limit of 0 defaults to 100.
func (s *SQLiteStore) ListCallsForUser(ctx context.Context, userID string, limit int) ([]*CallRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, session_id, user_id, operation, request_id,
		       transport, duration_ms, is_error, created_at
		FROM tool_calls
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying call records: %w", err)
	}
	defer rows.Close()

	var records []*CallRecord
	for rows.Next() {
		var rec CallRecord
		var isError int
		var createdAt string
		if err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.UserID,
			&rec.Operation,
			&rec.RequestID,
			&rec.Transport,
			&rec.DurationMs,
			&isError,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning call record: %w", err)
		}
		rec.IsError = isError != 0
		rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// CountCalls returns the total number of recorded calls.
func (s *SQLiteStore) CountCalls(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tool_calls`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting call records: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
