package daemon

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/replay_mon/internal/clock"
	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
	"github.com/eliteGoblin/focusd/replay_mon/internal/metrics"
)

// MinDeferral is the shortest wait before re-checking a deferred restart.
const MinDeferral = 2 * time.Second

// Phase is the restart scheduler state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseArmed
	PhaseDeferred
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseArmed:
		return "armed"
	case PhaseDeferred:
		return "deferred"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// ScheduleState is a snapshot of the scheduler.
type ScheduleState struct {
	Phase  Phase
	NextAt time.Time // Zero when idle
	Reason string
}

// Decision is the outcome of one restart check.
type Decision struct {
	Restart bool
	Delay   time.Duration // Set when Restart is false
	Reason  string
}

// Evaluate decides whether a due restart may run now.
// A restart would discard the buffered footage, so while the user was active
// within the last maxBufferSeconds the restart waits until that activity has
// aged out of the buffer. An unknown buffer length (<= 0) restarts at once.
func Evaluate(maxBufferSeconds, idleSeconds int) Decision {
	if maxBufferSeconds <= 0 {
		return Decision{Restart: true, Reason: "buffer length unknown"}
	}
	if idleSeconds < maxBufferSeconds {
		delay := time.Duration(maxBufferSeconds-idleSeconds) * time.Second
		if delay < MinDeferral {
			delay = MinDeferral
		}
		return Decision{Delay: delay, Reason: "user active within buffer window"}
	}
	return Decision{Restart: true, Reason: "user idle for whole buffer"}
}

// Executor runs fire-and-forget work off the dispatch loop.
type Executor interface {
	Go(fn func())
}

// DetachedExecutor runs each function on its own goroutine.
type DetachedExecutor struct{}

func (DetachedExecutor) Go(fn func()) { go fn() }

// RestartScheduler periodically restarts the replay buffer, deferring while
// the user is active. It is owned by the session loop; only SetInterval may
// be called from other goroutines.
type RestartScheduler struct {
	interval  atomic.Int64 // time.Duration
	retention domain.RetentionProbe
	idle      domain.IdleProbe
	control   domain.BufferControl
	exec      Executor
	clock     clock.Clock
	logger    *zap.Logger

	state ScheduleState
	timer <-chan time.Time
}

// NewRestartScheduler creates a scheduler. An interval of zero disables restarts.
func NewRestartScheduler(
	interval time.Duration,
	retention domain.RetentionProbe,
	idle domain.IdleProbe,
	control domain.BufferControl,
	exec Executor,
	clk clock.Clock,
	logger *zap.Logger,
) *RestartScheduler {
	s := &RestartScheduler{
		retention: retention,
		idle:      idle,
		control:   control,
		exec:      exec,
		clock:     clk,
		logger:    logger,
	}
	s.interval.Store(int64(interval))
	return s
}

// SetInterval changes the interval used by the next Arm.
func (s *RestartScheduler) SetInterval(interval time.Duration) {
	s.interval.Store(int64(interval))
}

// Arm starts a new schedule. With a zero interval the scheduler stays idle.
func (s *RestartScheduler) Arm() {
	interval := time.Duration(s.interval.Load())
	if interval <= 0 {
		s.reset("restarts disabled")
		return
	}
	s.schedule(PhaseArmed, interval, "scheduled")
	s.logger.Debug("buffer restart armed",
		zap.Duration("interval", interval),
		zap.Time("next_at", s.state.NextAt))
}

// Disarm drops any pending check.
func (s *RestartScheduler) Disarm() {
	s.reset("session stopped")
}

// C fires when a check is due. It is nil while idle.
func (s *RestartScheduler) C() <-chan time.Time {
	return s.timer
}

// State returns the current schedule.
func (s *RestartScheduler) State() ScheduleState {
	return s.state
}

// Fire runs a due check. Probe failures restart the buffer.
func (s *RestartScheduler) Fire(ctx context.Context) {
	if s.state.Phase == PhaseIdle {
		return
	}
	s.timer = nil

	maxBuffer, err := s.retention.BufferRetentionSeconds()
	if err != nil {
		metrics.IncProbeFailure("retention")
		s.logger.Warn("failed to read buffer length", zap.Error(err))
		maxBuffer = 0
	}

	var decision Decision
	if maxBuffer <= 0 {
		decision = Evaluate(maxBuffer, 0)
	} else if idle, err := s.idle.IdleSeconds(); err != nil {
		metrics.IncProbeFailure("idle")
		s.logger.Warn("failed to read idle time", zap.Error(err))
		decision = Decision{Restart: true, Reason: "idle time unknown"}
	} else {
		decision = Evaluate(maxBuffer, idle)
	}

	if !decision.Restart {
		metrics.IncRestartDeferral()
		s.schedule(PhaseDeferred, decision.Delay, decision.Reason)
		s.logger.Info("buffer restart deferred",
			zap.Duration("delay", decision.Delay),
			zap.String("reason", decision.Reason))
		return
	}

	s.logger.Info("restarting replay buffer", zap.String("reason", decision.Reason))
	metrics.IncBufferRestart(metrics.TriggerScheduled)
	s.exec.Go(func() {
		if err := s.control.Restart(ctx); err != nil {
			s.logger.Warn("buffer restart failed", zap.Error(err))
		}
	})
	s.reset(decision.Reason)
}

func (s *RestartScheduler) schedule(phase Phase, after time.Duration, reason string) {
	s.state = ScheduleState{
		Phase:  phase,
		NextAt: s.clock.Now().Add(after),
		Reason: reason,
	}
	s.timer = s.clock.After(after)
}

func (s *RestartScheduler) reset(reason string) {
	s.state = ScheduleState{Phase: PhaseIdle, Reason: reason}
	s.timer = nil
}
