// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ProgramIdentity is the absolute path of an executable.
type ProgramIdentity string

// Path returns the identity as a cleaned filesystem path.
func (p ProgramIdentity) Path() string {
	return filepath.Clean(string(p))
}

// Stem returns the executable file name without its extension.
// Example: "/Applications/Game.app/Contents/MacOS/game.bin" -> "game"
func (p ProgramIdentity) Stem() string {
	base := filepath.Base(p.Path())
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Ancestors returns the parent directories of the identity, nearest first.
func (p ProgramIdentity) Ancestors() []string {
	var parents []string
	current := p.Path()
	for {
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		parents = append(parents, parent)
		current = parent
	}
	return parents
}

// NamingMode selects where a clip's base name comes from.
type NamingMode int

const (
	NamingCurrentProcess NamingMode = iota
	NamingMostRecordedProcess
	NamingCurrentScene
)

// String returns the configuration spelling of the mode.
func (m NamingMode) String() string {
	switch m {
	case NamingCurrentProcess:
		return "current_process"
	case NamingMostRecordedProcess:
		return "most_recorded_process"
	case NamingCurrentScene:
		return "current_scene"
	default:
		return fmt.Sprintf("naming_mode(%d)", int(m))
	}
}

// ParseNamingMode accepts the configuration spelling or the numeric value
// used by the host's settings panel (0, 1, 2).
func ParseNamingMode(s string) (NamingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "current_process", "0":
		return NamingCurrentProcess, nil
	case "most_recorded_process", "1":
		return NamingMostRecordedProcess, nil
	case "current_scene", "2":
		return NamingCurrentScene, nil
	default:
		return 0, fmt.Errorf("unknown naming mode %q", s)
	}
}

// CaptureKind identifies which host output a session follows.
type CaptureKind string

const (
	CaptureReplayBuffer CaptureKind = "replay_buffer"
	CaptureRecording    CaptureKind = "recording"
)

// CaptureEventType is the kind of lifecycle event the host reports.
type CaptureEventType string

const (
	CaptureStarted CaptureEventType = "started"
	CaptureStopped CaptureEventType = "stopped"
	CaptureSaved   CaptureEventType = "saved"
)

// CaptureEvent is a host notification delivered to a session.
// Path is set only for CaptureSaved and points at the host's raw output file.
type CaptureEvent struct {
	Type CaptureEventType
	Path string
	At   time.Time
}

// PathDisplayMode controls how a saved clip path is shown in notifications.
type PathDisplayMode int

const (
	DisplayFullPath PathDisplayMode = iota
	DisplayFolderAndFile
	DisplayJustFolder
	DisplayJustFile
)

// ParsePathDisplayMode accepts the configuration spelling or its numeric value.
func ParsePathDisplayMode(s string) (PathDisplayMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full_path", "0", "":
		return DisplayFullPath, nil
	case "folder_and_file", "1":
		return DisplayFolderAndFile, nil
	case "just_folder", "2":
		return DisplayJustFolder, nil
	case "just_file", "3":
		return DisplayJustFile, nil
	default:
		return 0, fmt.Errorf("unknown path display mode %q", s)
	}
}

// Format renders path according to the display mode.
func (m PathDisplayMode) Format(path string) string {
	switch m {
	case DisplayJustFile:
		return filepath.Base(path)
	case DisplayJustFolder:
		return filepath.Base(filepath.Dir(path))
	case DisplayFolderAndFile:
		return filepath.Join(filepath.Base(filepath.Dir(path)), filepath.Base(path))
	default:
		return path
	}
}

// SavedClip records one clip after it has been moved to its final location.
type SavedClip struct {
	ID         int64
	SourcePath string
	TargetPath string
	LinkPath   string // Empty when no hard link was created
	BaseName   string
	Mode       NamingMode
	Forced     bool
	SavedAt    time.Time
}

// DaemonStatus is the snapshot written by the running daemon for `replaymon status`.
type DaemonStatus struct {
	Version        int       `json:"version"`
	PID            int       `json:"pid"`
	AppVersion     string    `json:"app_version,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	SessionActive  bool      `json:"session_active"`
	CaptureKind    string    `json:"capture_kind"`
	SchedulePhase  string    `json:"schedule_phase"`
	NextCheckAt    time.Time `json:"next_check_at"`
	LastClipPath   string    `json:"last_clip_path,omitempty"`
	ClipsSaved     int       `json:"clips_saved"`
	LastHeartbeat  int64     `json:"last_heartbeat"`
	HistorySamples int       `json:"history_samples"`
}
