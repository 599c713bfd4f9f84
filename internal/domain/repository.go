package domain

import "context"

// ForegroundProbe reports the program that owns the focused window.
// Implementation: platform command for the pid + gopsutil for the executable path.
type ForegroundProbe interface {
	// ForegroundProgram returns the executable of the focused window.
	// Errors wrap ErrProbe.
	ForegroundProgram() (ProgramIdentity, error)
}

// SceneProbe reports the host's active scene.
type SceneProbe interface {
	// CurrentSceneName returns the scene name verbatim.
	CurrentSceneName() string
}

// RetentionProbe reports the host's replay buffer length.
type RetentionProbe interface {
	// BufferRetentionSeconds returns the configured max clip length in seconds.
	BufferRetentionSeconds() (int, error)
}

// IdleProbe reports user inactivity.
type IdleProbe interface {
	// IdleSeconds returns the time since the last keyboard or mouse input.
	IdleSeconds() (int, error)
}

// BufferControl drives the host's buffering engine.
// Both calls may block for seconds and must not run on the dispatch loop.
type BufferControl interface {
	// Save asks the host to write the current buffer to disk.
	Save(ctx context.Context) error

	// Restart stops buffering and starts it again.
	Restart(ctx context.Context) error
}

// FileSystemManager handles filesystem operations.
type FileSystemManager interface {
	// Exists checks if a path exists.
	Exists(path string) bool

	// MakeDirs creates a directory and any missing parents.
	MakeDirs(path string) error

	// Move relocates src to dst, renaming atomically when possible.
	Move(src, dst string) error

	// HardLink creates a hard link to target inside linkFolder and returns the link path.
	HardLink(target, linkFolder string) (string, error)

	// Touch sets the modification time of path to now.
	Touch(path string) error

	// ExpandHome expands ~ to the user's home directory.
	ExpandHome(path string) string
}

// Notifier tells the user how a save went.
type Notifier interface {
	// ClipSaved is called after a clip reached its final location.
	ClipSaved(clip SavedClip)

	// ClipFailed is called when a save was aborted.
	ClipFailed(err error)
}

// ClipLedger keeps a record of saved clips.
// Implementation: SQLCipher encrypted SQLite database.
type ClipLedger interface {
	// Record stores a saved clip and returns its row id.
	Record(clip SavedClip) (int64, error)

	// Recent returns the newest clips first, at most limit entries.
	Recent(limit int) ([]SavedClip, error)

	// Close releases resources (e.g., database connection).
	Close() error
}

// StatusStore persists the daemon snapshot for the status command.
// Implementation: hidden JSON file written atomically.
type StatusStore interface {
	// Write replaces the stored snapshot.
	Write(status DaemonStatus) error

	// Read returns the stored snapshot, or nil when none exists.
	Read() (*DaemonStatus, error)

	// Clear removes the snapshot.
	Clear() error

	// Path returns the file location (for tests and the status command).
	Path() string
}
