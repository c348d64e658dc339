package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	return entry
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	saved := log.Logger
	t.Cleanup(func() { log.Logger = saved })
	Install(zerolog.New(&buf))

	logger := Component("engine")
	logger.Info().Msg("test message")

	entry := decodeLine(t, buf.Bytes())
	assert.Equal(t, "engine", entry["cmp"])
	assert.Equal(t, "test message", entry["message"])
}

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	l, closer, err := New(Options{Level: "warn", Out: &buf})
	require.NoError(t, err)
	defer closer()

	l.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	l.Warn().Msg("kept")
	entry := decodeLine(t, buf.Bytes())
	assert.Equal(t, "kept", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "dayline.log")
	l, closer, err := New(Options{File: path})
	require.NoError(t, err)

	l.Info().Msg("to file")
	closer()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "to file", decodeLine(t, data)["message"])
}

func TestContextHook(t *testing.T) {
	var buf bytes.Buffer
	l, _, err := New(Options{Out: &buf})
	require.NoError(t, err)

	ctx := WithUserID(context.Background(), "alice")
	l.Info().Ctx(ctx).Msg("signed in")

	assert.Equal(t, "alice", decodeLine(t, buf.Bytes())["user_id"])
	assert.Equal(t, "", GetUserID(context.Background()))
}
