package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionContextRoundTrip(t *testing.T) {
	sess := &Session{ID: "sess-1", UserID: "alice"}

	ctx := WithSession(context.Background(), sess)
	got := FromContext(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "sess-1", got.ID)
	assert.Equal(t, "alice", got.UserID)
}

func TestFromContextMissing(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
}

func TestMustFromContextPanics(t *testing.T) {
	assert.Panics(t, func() {
		MustFromContext(context.Background())
	})

	sess := &Session{ID: "sess-1"}
	assert.NotPanics(t, func() {
		got := MustFromContext(WithSession(context.Background(), sess))
		assert.Equal(t, "sess-1", got.ID)
	})
}
