package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "calls.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndListCalls(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &CallRecord{
		SessionID:  "sess-1",
		UserID:     "alice",
		Operation:  "register_agent",
		RequestID:  "req-1",
		Transport:  "http",
		DurationMs: 12,
	}
	require.NoError(t, s.AppendCall(ctx, rec))
	assert.NotEmpty(t, rec.ID, "append fills in the id")
	assert.False(t, rec.CreatedAt.IsZero(), "append fills in the timestamp")

	records, err := s.ListCallsForUser(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, "register_agent", got.Operation)
	assert.Equal(t, "http", got.Transport)
	assert.Equal(t, int64(12), got.DurationMs)
	assert.False(t, got.IsError)
}

func TestListCallsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendCall(ctx, &CallRecord{
			SessionID: "sess-1",
			UserID:    "alice",
			Operation: fmt.Sprintf("op-%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	records, err := s.ListCallsForUser(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "op-2", records[0].Operation)
	assert.Equal(t, "op-0", records[2].Operation)
}

func TestListCallsLimitAndIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.AppendCall(ctx, &CallRecord{UserID: "alice", Operation: "op"}))
	}
	require.NoError(t, s.AppendCall(ctx, &CallRecord{UserID: "bob", Operation: "op", IsError: true}))

	records, err := s.ListCallsForUser(ctx, "alice", 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	bobRecords, err := s.ListCallsForUser(ctx, "bob", 0)
	require.NoError(t, err)
	require.Len(t, bobRecords, 1)
	assert.True(t, bobRecords[0].IsError)

	count, err := s.CountCalls(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, count)
}

func TestListCallsUnknownUser(t *testing.T) {
	s := newTestStore(t)

	records, err := s.ListCallsForUser(context.Background(), "nobody", 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestStoreCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "calls.db")
	s, err := NewSQLiteStore(path, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.AppendCall(context.Background(), &CallRecord{UserID: "alice", Operation: "op"}))
}
