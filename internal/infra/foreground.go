package infra

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
)

// probeTimeout bounds a probe command. Probes run on the session loop once
// a second, so a hung desktop helper must not stall it.
const probeTimeout = 250 * time.Millisecond

const frontmostScript = `tell application "System Events" to get unix id of first process whose frontmost is true`

// ForegroundProbeImpl implements domain.ForegroundProbe.
// The focused window's pid comes from a platform command; the executable
// path comes from gopsutil.
type ForegroundProbeImpl struct {
	runner     CommandRunner
	executable func(pid int) (string, error)
	goos       string
}

// NewForegroundProbe creates a probe for the current platform.
func NewForegroundProbe(inspector *ProcessInspector) domain.ForegroundProbe {
	return &ForegroundProbeImpl{
		runner:     &RealCommandRunner{},
		executable: inspector.Executable,
		goos:       runtime.GOOS,
	}
}

// NewForegroundProbeWithDeps creates a probe with injectable dependencies (for testing).
func NewForegroundProbeWithDeps(runner CommandRunner, executable func(pid int) (string, error), goos string) *ForegroundProbeImpl {
	return &ForegroundProbeImpl{runner: runner, executable: executable, goos: goos}
}

// ForegroundProgram returns the executable owning the focused window.
func (p *ForegroundProbeImpl) ForegroundProgram() (domain.ProgramIdentity, error) {
	pid, err := p.focusedPID()
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrProbe, err)
	}

	path, err := p.executable(pid)
	if err != nil {
		return "", fmt.Errorf("%w: executable of pid %d: %v", domain.ErrProbe, pid, err)
	}
	if path == "" {
		return "", fmt.Errorf("%w: pid %d has no executable path", domain.ErrProbe, pid)
	}
	return domain.ProgramIdentity(path), nil
}

func (p *ForegroundProbeImpl) focusedPID() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	var out []byte
	var err error
	switch p.goos {
	case "darwin":
		out, err = p.runner.Output(ctx, "osascript", "-e", frontmostScript)
	case "linux":
		out, err = p.runner.Output(ctx, "xdotool", "getactivewindow", "getwindowpid")
	default:
		return 0, fmt.Errorf("foreground window lookup not supported on %s", p.goos)
	}
	if err != nil {
		return 0, err
	}
	return parsePID(string(out))
}

func parsePID(out string) (int, error) {
	pid, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("unexpected pid output %q", strings.TrimSpace(out))
	}
	if pid <= 0 {
		return 0, fmt.Errorf("no focused window")
	}
	return pid, nil
}

// Ensure ForegroundProbeImpl implements domain.ForegroundProbe.
var _ domain.ForegroundProbe = (*ForegroundProbeImpl)(nil)
