package infra

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
)

func TestReplayWatcher_Matches(t *testing.T) {
	w := NewReplayWatcher(DefaultWatcherConfig("/raw"), zap.NewNop())

	assert.True(t, w.matches("/raw/Replay 2024-01-02 13-04-05.mkv"))
	assert.True(t, w.matches("/raw/Replay.MP4"))
	assert.False(t, w.matches("/raw/Recording.mkv"))
	assert.False(t, w.matches("/raw/Replay.txt"))

	w = NewReplayWatcher(WatcherConfig{Dir: "/raw", Prefix: ""}, zap.NewNop())
	assert.True(t, w.matches("/raw/anything.bin"))
}

func TestReplayWatcher_SettleAndRemove(t *testing.T) {
	w := NewReplayWatcher(WatcherConfig{Dir: "/raw", Prefix: "Replay", Settle: time.Second}, zap.NewNop())

	w.handle(fsnotify.Event{Name: "/raw/Replay a.mkv", Op: fsnotify.Create})
	w.handle(fsnotify.Event{Name: "/raw/Replay b.mkv", Op: fsnotify.Create})
	w.handle(fsnotify.Event{Name: "/raw/Replay b.mkv", Op: fsnotify.Rename})
	w.handle(fsnotify.Event{Name: "/raw/other.mkv", Op: fsnotify.Create})

	assert.Empty(t, w.settled(time.Now()))
	assert.Equal(t, []string{"/raw/Replay a.mkv"}, w.settled(time.Now().Add(2*time.Second)))
	assert.Empty(t, w.pending)
}

func TestReplayWatcher_EmitsSavedEvent(t *testing.T) {
	dir := t.TempDir()
	w := NewReplayWatcher(WatcherConfig{Dir: dir, Prefix: "Replay", Settle: 100 * time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan domain.CaptureEvent, 4)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, out) }()

	// Give the watcher time to register the folder
	time.Sleep(100 * time.Millisecond)

	path := filepath.Join(dir, "Replay 1.mkv")
	require.NoError(t, os.WriteFile(path, []byte("frames"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	select {
	case ev := <-out:
		assert.Equal(t, domain.CaptureSaved, ev.Type)
		assert.Equal(t, path, ev.Path)
	case <-time.After(5 * time.Second):
		t.Fatal("no capture event")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestReplayWatcher_MissingDir(t *testing.T) {
	w := NewReplayWatcher(DefaultWatcherConfig(filepath.Join(t.TempDir(), "missing")), zap.NewNop())
	assert.Error(t, w.Run(context.Background(), make(chan domain.CaptureEvent)))
}
