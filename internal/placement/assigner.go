// Package placement picks a collision-free path for a clip and moves it there.
package placement

import (
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
)

// LinkOptions configures the optional hard link made after a move.
type LinkOptions struct {
	Enabled bool
	Folder  string
}

// CommitResult describes where a clip ended up.
type CommitResult struct {
	Target   string
	LinkPath string // Empty when no link was made
	LinkErr  error  // Set when linking was enabled but failed
}

// Assigner assigns target paths and commits moves through the filesystem manager.
type Assigner struct {
	fs     domain.FileSystemManager
	logger *zap.Logger
}

// NewAssigner creates an assigner.
func NewAssigner(fs domain.FileSystemManager, logger *zap.Logger) *Assigner {
	return &Assigner{fs: fs, logger: logger}
}

// Assign returns the first free path "stem.ext", "stem (1).ext", ... inside the
// destination folder, creating the folder if needed. When foldered is set the
// clip goes to dest/subfolder.
func (a *Assigner) Assign(stem, ext, dest string, foldered bool, subfolder string) (string, error) {
	folder := a.fs.ExpandHome(dest)
	if foldered {
		if strings.ContainsAny(subfolder, domain.FilenameProhibitedChars) {
			return "", fmt.Errorf("%w: subfolder %q", domain.ErrIllegalCharacters, subfolder)
		}
		folder = filepath.Join(folder, subfolder)
	}

	if err := a.fs.MakeDirs(folder); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", folder, err)
	}

	ext = strings.TrimPrefix(ext, ".")
	candidate := filepath.Join(folder, joinExt(stem, ext))
	for n := 1; a.fs.Exists(candidate); n++ {
		candidate = filepath.Join(folder, joinExt(fmt.Sprintf("%s (%d)", stem, n), ext))
	}
	return candidate, nil
}

// Commit moves src to target. The folder mtime is then bumped and, when links
// are enabled, the clip is hard-linked into the links folder. Only a failed move
// is returned as an error.
func (a *Assigner) Commit(src, target string, links LinkOptions) (CommitResult, error) {
	result := CommitResult{Target: target}

	if err := a.fs.Move(src, target); err != nil {
		return result, fmt.Errorf("failed to move clip to %s: %w", target, err)
	}

	if err := a.fs.Touch(filepath.Dir(target)); err != nil {
		a.logger.Debug("failed to touch clip folder",
			zap.String("folder", filepath.Dir(target)),
			zap.Error(err))
	}

	if !links.Enabled {
		return result, nil
	}

	folder := a.fs.ExpandHome(links.Folder)
	if err := a.fs.MakeDirs(folder); err != nil {
		result.LinkErr = err
	} else if link, err := a.fs.HardLink(target, folder); err != nil {
		result.LinkErr = err
	} else {
		result.LinkPath = link
	}

	if result.LinkErr != nil {
		a.logger.Warn("failed to link clip",
			zap.String("target", target),
			zap.String("links_folder", folder),
			zap.Error(result.LinkErr))
	}
	return result, nil
}

func joinExt(stem, ext string) string {
	if ext == "" {
		return stem
	}
	return stem + "." + ext
}
