package infra

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
)

// WatcherConfig holds replay folder watcher configuration.
type WatcherConfig struct {
	Dir        string        // Folder the host writes raw clips to
	Prefix     string        // Only files whose name starts with this are clips
	Extensions []string      // Accepted extensions without the dot; empty accepts all
	Settle     time.Duration // Quiet time after the last write before a file counts as complete
}

// DefaultWatcherConfig returns default watcher configuration for dir.
func DefaultWatcherConfig(dir string) WatcherConfig {
	return WatcherConfig{
		Dir:        dir,
		Prefix:     "Replay",
		Extensions: []string{"mkv", "mp4", "mov", "flv", "ts"},
		Settle:     2 * time.Second,
	}
}

// ReplayWatcher turns new files in the host's output folder into
// CaptureSaved events. The folder is watched non-recursively.
type ReplayWatcher struct {
	config  WatcherConfig
	logger  *zap.Logger
	pending map[string]time.Time // path -> last write
}

// NewReplayWatcher creates a watcher.
func NewReplayWatcher(config WatcherConfig, logger *zap.Logger) *ReplayWatcher {
	if config.Settle <= 0 {
		config.Settle = DefaultWatcherConfig(config.Dir).Settle
	}
	return &ReplayWatcher{
		config:  config,
		logger:  logger,
		pending: make(map[string]time.Time),
	}
}

// Run watches until ctx is cancelled, sending one event per settled clip.
func (w *ReplayWatcher) Run(ctx context.Context, out chan<- domain.CaptureEvent) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fw.Close()

	dir := w.config.Dir
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.logger.Info("watching replay folder",
		zap.String("dir", dir),
		zap.String("prefix", w.config.Prefix))

	tick := time.NewTicker(w.config.Settle / 4)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("replay watcher error", zap.Error(err))

		case now := <-tick.C:
			for _, path := range w.settled(now) {
				select {
				case out <- domain.CaptureEvent{Type: domain.CaptureSaved, Path: path, At: now}:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	}
}

func (w *ReplayWatcher) handle(ev fsnotify.Event) {
	if !w.matches(ev.Name) {
		return
	}
	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		delete(w.pending, ev.Name)
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.pending[ev.Name] = time.Now()
	}
}

// settled removes and returns files that have been quiet for the settle time.
func (w *ReplayWatcher) settled(now time.Time) []string {
	var ready []string
	for path, last := range w.pending {
		if now.Sub(last) >= w.config.Settle {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	return ready
}

func (w *ReplayWatcher) matches(path string) bool {
	name := filepath.Base(path)
	if !strings.HasPrefix(name, w.config.Prefix) {
		return false
	}
	if len(w.config.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	for _, want := range w.config.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}
