package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
)

const statusFileName = ".replaymon_status.json"

// StatusFile implements domain.StatusStore using a hidden JSON file.
type StatusFile struct {
	path string
}

// NewStatusFile creates a status store inside dataDir.
func NewStatusFile(dataDir string) domain.StatusStore {
	return &StatusFile{path: filepath.Join(dataDir, statusFileName)}
}

// NewStatusFileWithPath creates a status store at a specific path (for testing).
func NewStatusFileWithPath(path string) domain.StatusStore {
	return &StatusFile{path: path}
}

// Path returns the status file location.
func (s *StatusFile) Path() string {
	return s.path
}

// Write replaces the snapshot atomically.
func (s *StatusFile) Write(status domain.DaemonStatus) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}

	// Serialize writers from concurrent daemons
	lockFile, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	return s.atomicWrite(status)
}

// Read returns the snapshot, or nil if none has been written.
func (s *StatusFile) Read() (*domain.DaemonStatus, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var status domain.DaemonStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to parse status file: %w", err)
	}
	return &status, nil
}

// Clear removes the status file. A missing file is not an error.
func (s *StatusFile) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// atomicWrite writes the snapshot to file atomically (write + rename).
func (s *StatusFile) atomicWrite(status domain.DaemonStatus) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}

	// Write to temp file first (unique per process to avoid race)
	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	// Atomic rename
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Ensure StatusFile implements domain.StatusStore.
var _ domain.StatusStore = (*StatusFile)(nil)
