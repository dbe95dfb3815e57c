// ABOUTME: Tests for the colorized slog handler used in text log mode
// ABOUTME: Covers group qualification and shared locking across derived handlers

package main

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColorHandlerGroupsQualifyKeys(t *testing.T) {
	color.NoColor = true

	var out bytes.Buffer
	logger := slog.New(newColorHandler(&out, slog.LevelDebug))

	logger.WithGroup("http").With("method", "POST").WithGroup("peer").
		Info("request", "addr", "127.0.0.1")

	line := out.String()
	assert.Contains(t, line, "http.method=POST")
	assert.Contains(t, line, "http.peer.addr=127.0.0.1")
}

func TestColorHandlerEmptyGroupIsNoop(t *testing.T) {
	color.NoColor = true

	var out bytes.Buffer
	logger := slog.New(newColorHandler(&out, slog.LevelDebug))

	logger.WithGroup("").Info("hello", "key", "value")

	assert.Contains(t, out.String(), "key=value")
}

func TestColorHandlerDerivedHandlersShareLock(t *testing.T) {
	var out bytes.Buffer
	base := newColorHandler(&out, slog.LevelInfo)

	withAttrs, ok := base.WithAttrs([]slog.Attr{slog.String("a", "b")}).(*colorHandler)
	require.True(t, ok)
	withGroup, ok := base.WithGroup("g").(*colorHandler)
	require.True(t, ok)

	assert.Same(t, base.mu, withAttrs.mu)
	assert.Same(t, base.mu, withGroup.mu)
}

func TestColorHandlerLevelFilter(t *testing.T) {
	color.NoColor = true

	var out bytes.Buffer
	logger := slog.New(newColorHandler(&out, slog.LevelWarn))

	logger.Info("quiet")
	logger.Warn("loud")

	line := out.String()
	assert.NotContains(t, line, "quiet")
	assert.Contains(t, line, "loud")
}
