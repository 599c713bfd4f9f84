package infra

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
)

const notifyTimeout = 5 * time.Second

// LogNotifier reports saves in the daemon log.
type LogNotifier struct {
	display domain.PathDisplayMode
	logger  *zap.Logger
}

// NewLogNotifier creates a notifier that only logs.
func NewLogNotifier(display domain.PathDisplayMode, logger *zap.Logger) *LogNotifier {
	return &LogNotifier{display: display, logger: logger}
}

func (n *LogNotifier) ClipSaved(clip domain.SavedClip) {
	n.logger.Info("clip ready", zap.String("path", n.display.Format(clip.TargetPath)))
}

func (n *LogNotifier) ClipFailed(err error) {
	n.logger.Warn("clip not saved", zap.Error(err))
}

// CommandNotifier runs a desktop notification command, such as
// ["notify-send"] or ["terminal-notifier", "-message"], with the title and
// message appended as arguments.
type CommandNotifier struct {
	command []string
	display domain.PathDisplayMode
	runner  CommandRunner
	logger  *zap.Logger
}

// NewCommandNotifier creates a notifier for command. An empty command yields nil.
func NewCommandNotifier(command []string, display domain.PathDisplayMode, logger *zap.Logger) *CommandNotifier {
	return NewCommandNotifierWithRunner(command, display, &RealCommandRunner{}, logger)
}

// NewCommandNotifierWithRunner creates a notifier with an injectable runner (for testing).
func NewCommandNotifierWithRunner(command []string, display domain.PathDisplayMode, runner CommandRunner, logger *zap.Logger) *CommandNotifier {
	if len(command) == 0 {
		return nil
	}
	return &CommandNotifier{command: command, display: display, runner: runner, logger: logger}
}

func (n *CommandNotifier) ClipSaved(clip domain.SavedClip) {
	n.send("Clip saved", n.display.Format(clip.TargetPath))
}

func (n *CommandNotifier) ClipFailed(err error) {
	n.send("Clip not saved", err.Error())
}

func (n *CommandNotifier) send(title, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	args := append(append([]string{}, n.command[1:]...), title, message)
	if err := n.runner.Run(ctx, n.command[0], args...); err != nil {
		n.logger.Warn("notification command failed",
			zap.String("command", n.command[0]),
			zap.Error(err))
	}
}

// MultiNotifier fans a notification out to several notifiers.
type MultiNotifier []domain.Notifier

func (m MultiNotifier) ClipSaved(clip domain.SavedClip) {
	for _, n := range m {
		n.ClipSaved(clip)
	}
}

func (m MultiNotifier) ClipFailed(err error) {
	for _, n := range m {
		n.ClipFailed(err)
	}
}

var (
	_ domain.Notifier = (*LogNotifier)(nil)
	_ domain.Notifier = (*CommandNotifier)(nil)
	_ domain.Notifier = MultiNotifier(nil)
)
