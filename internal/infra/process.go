// Package infra implements infrastructure concerns (probes, filesystem, storage, host commands).
package infra

import (
	"os"
	"syscall"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessInspector reads process details using gopsutil.
type ProcessInspector struct{}

// NewProcessInspector creates a new process inspector.
func NewProcessInspector() *ProcessInspector {
	return &ProcessInspector{}
}

// Executable returns the absolute path of the executable running as pid.
func (pi *ProcessInspector) Executable(pid int) (string, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", err
	}
	return p.Exe()
}

// IsRunning checks if a PID exists and is running.
func (pi *ProcessInspector) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	// On Unix, FindProcess always succeeds
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Send signal 0 to check if process exists
	err = proc.Signal(syscall.Signal(0))
	return err == nil
}
