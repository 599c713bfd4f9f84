// Package daemon runs the capture session loop and the buffer restart schedule.
package daemon

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/replay_mon/internal/clock"
	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
	"github.com/eliteGoblin/focusd/replay_mon/internal/history"
	"github.com/eliteGoblin/focusd/replay_mon/internal/metrics"
	"github.com/eliteGoblin/focusd/replay_mon/internal/usecase"
)

// StatusVersion is the schema version of the status snapshot.
const StatusVersion = 1

var (
	// ErrBufferInactive is returned when a forced save is requested with no replay buffer running.
	ErrBufferInactive = errors.New("replay buffer is not active")

	// ErrSaveInFlight is returned when a forced save is already pending.
	ErrSaveInFlight = errors.New("a forced save is already in progress")
)

// SessionConfig holds session loop configuration.
type SessionConfig struct {
	Kind              domain.CaptureKind
	SampleInterval    time.Duration // Foreground sampling period
	HeartbeatInterval time.Duration // How often the status snapshot is refreshed
	RestartInterval   time.Duration // Zero disables scheduled restarts
	RestartAfterSave  bool
	AppVersion        string
}

// DefaultSessionConfig returns default session configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Kind:              domain.CaptureReplayBuffer,
		SampleInterval:    time.Second,
		HeartbeatInterval: 30 * time.Second,
		RestartInterval:   time.Hour,
		RestartAfterSave:  true,
	}
}

// Session follows one host output. It samples the foreground program while
// the output runs, saves clips as the host writes them, and keeps the
// restart schedule.
type Session struct {
	config     SessionConfig
	events     <-chan domain.CaptureEvent
	foreground domain.ForegroundProbe
	retention  domain.RetentionProbe
	control    domain.BufferControl
	saver      *usecase.ClipSaver
	gate       *usecase.ForceModeGate
	scheduler  *RestartScheduler
	exec       Executor
	status     domain.StatusStore // Optional
	clock      clock.Clock
	logger     *zap.Logger

	active atomic.Bool

	// Owned by the Run goroutine.
	hist       history.Tracker
	sampleC    <-chan time.Time
	startedAt  time.Time
	clipsSaved int
	lastClip   string
}

// NewSession creates a session. status may be nil.
func NewSession(
	config SessionConfig,
	events <-chan domain.CaptureEvent,
	fg domain.ForegroundProbe,
	retention domain.RetentionProbe,
	control domain.BufferControl,
	saver *usecase.ClipSaver,
	gate *usecase.ForceModeGate,
	scheduler *RestartScheduler,
	exec Executor,
	status domain.StatusStore,
	clk clock.Clock,
	logger *zap.Logger,
) *Session {
	return &Session{
		config:     config,
		events:     events,
		foreground: fg,
		retention:  retention,
		control:    control,
		saver:      saver,
		gate:       gate,
		scheduler:  scheduler,
		exec:       exec,
		status:     status,
		clock:      clk,
		logger:     logger,
	}
}

// Run dispatches host events, samples and restart checks until ctx is canceled.
func (s *Session) Run(ctx context.Context) error {
	s.startedAt = s.clock.Now()
	s.logger.Info("session loop started",
		zap.String("capture_kind", string(s.config.Kind)),
		zap.Int("pid", os.Getpid()))
	s.writeStatus()

	var heartbeat <-chan time.Time
	if s.config.HeartbeatInterval > 0 {
		heartbeat = s.clock.After(s.config.HeartbeatInterval)
	}

	for {
		select {
		case <-ctx.Done():
			s.stop()
			s.clearStatus()
			s.logger.Info("session loop stopping")
			return ctx.Err()

		case ev, ok := <-s.events:
			if !ok {
				s.stop()
				s.clearStatus()
				s.logger.Info("host event stream closed")
				return nil
			}
			s.HandleEvent(ctx, ev)
			s.writeStatus()

		case <-s.sampleC:
			s.Sample()

		case <-s.scheduler.C():
			s.scheduler.Fire(ctx)
			s.writeStatus()

		case <-heartbeat:
			s.writeStatus()
			heartbeat = s.clock.After(s.config.HeartbeatInterval)
		}
	}
}

// HandleEvent applies one host event.
func (s *Session) HandleEvent(ctx context.Context, ev domain.CaptureEvent) {
	switch ev.Type {
	case domain.CaptureStarted:
		s.start()
	case domain.CaptureStopped:
		s.stop()
	case domain.CaptureSaved:
		s.save(ctx, ev.Path)
	default:
		s.logger.Debug("ignoring host event", zap.String("type", string(ev.Type)))
	}
}

// Sample records the current foreground program. Probe failures are skipped.
func (s *Session) Sample() {
	if s.hist == nil {
		return
	}
	s.sampleC = s.clock.After(s.config.SampleInterval)

	id, err := s.foreground.ForegroundProgram()
	if err != nil {
		metrics.IncProbeFailure("foreground")
		s.logger.Debug("foreground probe failed", zap.Error(err))
		return
	}
	s.hist.Record(id)
	metrics.IncHistorySample()
}

// RequestForcedSave asks the host to save the buffer and names the resulting
// clip with mode. Safe to call from any goroutine.
func (s *Session) RequestForcedSave(ctx context.Context, mode domain.NamingMode) error {
	if !s.active.Load() || s.config.Kind != domain.CaptureReplayBuffer {
		return ErrBufferInactive
	}
	if !s.gate.TryAcquire(mode) {
		return ErrSaveInFlight
	}
	if err := s.control.Save(ctx); err != nil {
		s.gate.Release()
		return err
	}
	s.logger.Info("forced save requested", zap.String("mode", mode.String()))
	return nil
}

// Active reports whether the followed output is running.
func (s *Session) Active() bool {
	return s.active.Load()
}

// History returns the current activity history, or nil outside a session.
func (s *Session) History() history.Tracker {
	return s.hist
}

// Snapshot builds the status record. Call only from the Run goroutine.
func (s *Session) Snapshot() domain.DaemonStatus {
	state := s.scheduler.State()
	st := domain.DaemonStatus{
		Version:       StatusVersion,
		PID:           os.Getpid(),
		AppVersion:    s.config.AppVersion,
		StartedAt:     s.startedAt,
		SessionActive: s.active.Load(),
		CaptureKind:   string(s.config.Kind),
		SchedulePhase: state.Phase.String(),
		NextCheckAt:   state.NextAt,
		LastClipPath:  s.lastClip,
		ClipsSaved:    s.clipsSaved,
		LastHeartbeat: s.clock.Now().Unix(),
	}
	if s.hist != nil {
		st.HistorySamples = s.hist.Len()
	}
	return st
}

func (s *Session) start() {
	s.hist = s.newHistory()
	s.active.Store(true)
	s.sampleC = s.clock.After(s.config.SampleInterval)

	if s.config.Kind == domain.CaptureReplayBuffer {
		s.scheduler.Arm()
	}
	s.logger.Info("capture started", zap.String("capture_kind", string(s.config.Kind)))
}

func (s *Session) stop() {
	if s.hist != nil {
		s.hist.Reset()
	}
	s.hist = nil
	s.sampleC = nil
	s.scheduler.Disarm()
	if s.active.Swap(false) {
		s.logger.Info("capture stopped", zap.String("capture_kind", string(s.config.Kind)))
	}
}

func (s *Session) newHistory() history.Tracker {
	if s.config.Kind == domain.CaptureRecording {
		return history.NewFrequency()
	}
	seconds, err := s.retention.BufferRetentionSeconds()
	if err != nil {
		metrics.IncProbeFailure("retention")
		s.logger.Warn("failed to read buffer length, history disabled", zap.Error(err))
		seconds = 0
	}
	return history.NewBounded(seconds)
}

func (s *Session) save(ctx context.Context, path string) {
	clip, err := s.saver.Save(path, s.hist)
	if err != nil {
		return
	}
	s.clipsSaved++
	s.lastClip = clip.TargetPath

	if s.config.RestartAfterSave && s.config.Kind == domain.CaptureReplayBuffer && s.active.Load() {
		metrics.IncBufferRestart(metrics.TriggerAfterSave)
		s.exec.Go(func() {
			if err := s.control.Restart(ctx); err != nil {
				s.logger.Warn("buffer restart after save failed", zap.Error(err))
			}
		})
	}
}

func (s *Session) writeStatus() {
	if s.status == nil {
		return
	}
	if err := s.status.Write(s.Snapshot()); err != nil {
		s.logger.Warn("failed to write status", zap.Error(err))
	}
}

func (s *Session) clearStatus() {
	if s.status == nil {
		return
	}
	if err := s.status.Clear(); err != nil {
		s.logger.Warn("failed to clear status", zap.Error(err))
	}
}
