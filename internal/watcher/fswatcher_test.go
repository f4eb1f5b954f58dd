package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSWatcher_DetectsFileWrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("a"), 0o644))

	w := New(Options{DebounceWindow: 20 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, w.Start(ctx, dir))
	defer func() { _ = w.Stop() }()

	target := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(target, []byte("hello"), 0o644))

	select {
	case ev := <-w.Events():
		assert.Equal(t, "new.txt", ev.Path)
	case <-time.After(4 * time.Second):
		t.Fatal("timed out waiting for file event")
	}
}

func TestFSWatcher_StartIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := New(DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, w.Start(ctx, dir))
	require.NoError(t, w.Start(ctx, dir))
	require.NoError(t, w.Stop())
}

func TestFSWatcher_StopIsIdempotentAndClosesChannels(t *testing.T) {
	dir := t.TempDir()
	w := New(DefaultOptions())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, w.Start(ctx, dir))
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
	_, ok = <-w.Errors()
	assert.False(t, ok)
}

func TestFSWatcher_StopWithoutStart(t *testing.T) {
	w := New(DefaultOptions())
	require.NoError(t, w.Stop())
}

func TestFSWatcher_GitignoreChangeOperation(t *testing.T) {
	dir := t.TempDir()

	w := New(Options{DebounceWindow: 20 * time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, w.Start(ctx, dir))
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("*.log\n"), 0o644))

	select {
	case ev := <-w.Events():
		assert.Equal(t, OpGitignoreChange, ev.Operation)
	case <-time.After(4 * time.Second):
		t.Fatal("timed out waiting for gitignore change event")
	}
}
