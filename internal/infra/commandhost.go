package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/replay_mon/internal/clock"
	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
)

// ErrNoCommand is returned when a host action has no command configured.
var ErrNoCommand = errors.New("no command configured")

// HostConfig describes how to drive a capture host from the command line.
// Each command is an argv; the first element is the program.
type HostConfig struct {
	SaveCommand      []string // Writes the current buffer to disk
	StartCommand     []string // Starts buffering
	StopCommand      []string // Stops buffering
	SceneCommand     []string // Prints the active scene name (optional)
	SceneName        string   // Used when SceneCommand is empty or fails
	RetentionSeconds int      // Max replay length configured in the host
}

// CommandHost drives a capture host through shell commands.
// After Start, Stop and Restart it reports the matching capture events to the
// listener, as a host would after its own state change.
type CommandHost struct {
	config   HostConfig
	runner   CommandRunner
	clock    clock.Clock
	logger   *zap.Logger
	mu       sync.Mutex
	listener func(domain.CaptureEvent)
}

// NewCommandHost creates a host adapter with the real command runner.
func NewCommandHost(config HostConfig, clk clock.Clock, logger *zap.Logger) *CommandHost {
	return NewCommandHostWithRunner(config, &RealCommandRunner{}, clk, logger)
}

// NewCommandHostWithRunner creates a host adapter with an injectable runner (for testing).
func NewCommandHostWithRunner(config HostConfig, runner CommandRunner, clk clock.Clock, logger *zap.Logger) *CommandHost {
	return &CommandHost{config: config, runner: runner, clock: clk, logger: logger}
}

// SetListener registers the receiver of capture state events.
func (h *CommandHost) SetListener(fn func(domain.CaptureEvent)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listener = fn
}

// Save implements domain.BufferControl.
func (h *CommandHost) Save(ctx context.Context) error {
	return h.run(ctx, "save", h.config.SaveCommand)
}

// Start starts buffering and emits CaptureStarted.
func (h *CommandHost) Start(ctx context.Context) error {
	if err := h.run(ctx, "start", h.config.StartCommand); err != nil {
		return err
	}
	h.emit(domain.CaptureStarted)
	return nil
}

// Stop stops buffering and emits CaptureStopped.
func (h *CommandHost) Stop(ctx context.Context) error {
	if err := h.run(ctx, "stop", h.config.StopCommand); err != nil {
		return err
	}
	h.emit(domain.CaptureStopped)
	return nil
}

// Restart implements domain.BufferControl as Stop followed by Start.
func (h *CommandHost) Restart(ctx context.Context) error {
	if err := h.Stop(ctx); err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	if err := h.Start(ctx); err != nil {
		return fmt.Errorf("restart: %w", err)
	}
	return nil
}

// CurrentSceneName implements domain.SceneProbe.
func (h *CommandHost) CurrentSceneName() string {
	if len(h.config.SceneCommand) == 0 {
		return h.config.SceneName
	}

	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	out, err := h.runner.Output(ctx, h.config.SceneCommand[0], h.config.SceneCommand[1:]...)
	if err != nil {
		h.logger.Debug("scene command failed", zap.Error(err))
		return h.config.SceneName
	}
	return strings.TrimSpace(string(out))
}

// BufferRetentionSeconds implements domain.RetentionProbe.
func (h *CommandHost) BufferRetentionSeconds() (int, error) {
	return h.config.RetentionSeconds, nil
}

func (h *CommandHost) run(ctx context.Context, action string, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("%s: %w", action, ErrNoCommand)
	}
	if err := h.runner.Run(ctx, argv[0], argv[1:]...); err != nil {
		h.logger.Warn("host command failed",
			zap.String("action", action),
			zap.String("command", argv[0]),
			zap.Error(err))
		return fmt.Errorf("%s: %w", action, err)
	}
	h.logger.Debug("host command ran", zap.String("action", action))
	return nil
}

func (h *CommandHost) emit(typ domain.CaptureEventType) {
	h.mu.Lock()
	fn := h.listener
	h.mu.Unlock()

	if fn != nil {
		fn(domain.CaptureEvent{Type: typ, At: h.clock.Now()})
	}
}

var (
	_ domain.BufferControl  = (*CommandHost)(nil)
	_ domain.SceneProbe     = (*CommandHost)(nil)
	_ domain.RetentionProbe = (*CommandHost)(nil)
)
