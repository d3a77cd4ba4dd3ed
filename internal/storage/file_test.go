package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "discordmessenger/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	for _, d := range []string{"", "none", " OFF "} {
		st, err := Open(Config{Driver: d}, logx.Nop())
		require.NoError(t, err)
		assert.Nil(t, st)
	}
	_, err := Open(Config{Driver: "redis"}, logx.Nop())
	assert.Error(t, err)
}

func TestFileStoreAppendAndTail(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "audit.db")}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, msg := range []string{"a", "b", "c", "d"} {
		require.NoError(t, st.AppendEvent(ctx, EventEntry{At: base.Add(time.Duration(i) * time.Second), Status: "Success", Message: msg}))
	}

	got, err := st.RecentEvents(ctx, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "b", got[0].Message)
	assert.Equal(t, "d", got[2].Message)
	assert.True(t, got[2].At.Equal(base.Add(3*time.Second)))

	all, err := st.RecentEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = os.Stat(filepath.Join(dir, "audit.events.jsonl"))
	assert.NoError(t, err)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history")
	ctx := context.Background()

	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, st.AppendEvent(ctx, EventEntry{Status: "Failed", Message: "Screenshot Sent"}))
	require.NoError(t, st.Close())
	assert.ErrorIs(t, st.AppendEvent(ctx, EventEntry{}), ErrDisabled)

	st, err = Open(Config{Driver: "file", Path: path}, logx.Nop())
	require.NoError(t, err)
	defer st.Close()
	got, err := st.RecentEvents(ctx, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Screenshot Sent", got[0].Message)
	assert.False(t, got[0].At.IsZero())
}

func TestFileStoreRequiresPath(t *testing.T) {
	_, err := Open(Config{Driver: "file"}, logx.Nop())
	assert.Error(t, err)
}
