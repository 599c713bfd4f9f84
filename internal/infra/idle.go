package infra

import (
	"bufio"
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
)

// IdleProbeImpl implements domain.IdleProbe.
// macOS reads HIDIdleTime from ioreg; Linux/X11 uses xprintidle.
type IdleProbeImpl struct {
	runner CommandRunner
	goos   string
}

// NewIdleProbe creates an idle probe for the current platform.
func NewIdleProbe() domain.IdleProbe {
	return &IdleProbeImpl{runner: &RealCommandRunner{}, goos: runtime.GOOS}
}

// NewIdleProbeWithDeps creates a probe with injectable dependencies (for testing).
func NewIdleProbeWithDeps(runner CommandRunner, goos string) *IdleProbeImpl {
	return &IdleProbeImpl{runner: runner, goos: goos}
}

// IdleSeconds returns seconds since the last keyboard or mouse input.
func (p *IdleProbeImpl) IdleSeconds() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	switch p.goos {
	case "darwin":
		out, err := p.runner.Output(ctx, "ioreg", "-c", "IOHIDSystem")
		if err != nil {
			return 0, fmt.Errorf("ioreg: %w", err)
		}
		return parseHIDIdleTime(string(out))
	case "linux":
		out, err := p.runner.Output(ctx, "xprintidle")
		if err != nil {
			return 0, fmt.Errorf("xprintidle: %w", err)
		}
		return parseXPrintIdle(string(out))
	default:
		return 0, fmt.Errorf("idle time not supported on %s", p.goos)
	}
}

// parseHIDIdleTime extracts the first HIDIdleTime value (nanoseconds) from ioreg output.
func parseHIDIdleTime(out string) (int, error) {
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.Contains(line, `"HIDIdleTime"`) {
			continue
		}
		_, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		ns, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("bad HIDIdleTime %q: %w", strings.TrimSpace(value), err)
		}
		return int(time.Duration(ns) / time.Second), nil
	}
	return 0, fmt.Errorf("HIDIdleTime not found in ioreg output")
}

// parseXPrintIdle converts xprintidle output (milliseconds) to seconds.
func parseXPrintIdle(out string) (int, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad xprintidle output %q: %w", strings.TrimSpace(out), err)
	}
	return int(ms / 1000), nil
}

// Ensure IdleProbeImpl implements domain.IdleProbe.
var _ domain.IdleProbe = (*IdleProbeImpl)(nil)
