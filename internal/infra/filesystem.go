package infra

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
)

// FileSystemManagerImpl implements domain.FileSystemManager.
type FileSystemManagerImpl struct {
	homeDir string
}

// NewFileSystemManager creates a new filesystem manager.
func NewFileSystemManager() domain.FileSystemManager {
	home, _ := os.UserHomeDir()
	return &FileSystemManagerImpl{homeDir: home}
}

// NewFileSystemManagerWithHome creates a filesystem manager with custom home (for testing).
func NewFileSystemManagerWithHome(home string) domain.FileSystemManager {
	return &FileSystemManagerImpl{homeDir: home}
}

// Exists checks if a path exists.
func (fm *FileSystemManagerImpl) Exists(path string) bool {
	_, err := os.Lstat(fm.ExpandHome(path))
	return err == nil
}

// MakeDirs creates a directory and any missing parents.
func (fm *FileSystemManagerImpl) MakeDirs(path string) error {
	return os.MkdirAll(fm.ExpandHome(path), 0755)
}

// Move renames src to dst. Across filesystems it copies to a temp file next
// to dst, renames that into place and removes src.
func (fm *FileSystemManagerImpl) Move(src, dst string) error {
	src, dst = fm.ExpandHome(src), fm.ExpandHome(dst)

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}

	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("copy across devices: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

// HardLink links target into linkFolder under the same base name.
func (fm *FileSystemManagerImpl) HardLink(target, linkFolder string) (string, error) {
	target = fm.ExpandHome(target)
	link := filepath.Join(fm.ExpandHome(linkFolder), filepath.Base(target))
	if err := os.Link(target, link); err != nil {
		return "", err
	}
	return link, nil
}

// Touch sets the access and modification time of path to now.
func (fm *FileSystemManagerImpl) Touch(path string) error {
	now := time.Now()
	return os.Chtimes(fm.ExpandHome(path), now, now)
}

// ExpandHome expands ~ to the user's home directory.
func (fm *FileSystemManagerImpl) ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(fm.homeDir, path[2:])
	}
	if path == "~" {
		return fm.homeDir
	}
	return path
}

// copyFile copies src to dst atomically (temp file + rename) and keeps the mode.
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	info, err := sourceFile.Stat()
	if err != nil {
		return err
	}

	// Create temp file in same directory for atomic rename
	tmpFile, err := os.CreateTemp(filepath.Dir(dst), ".replaymon-tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	// Clean up temp file on any error
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err = io.Copy(tmpFile, sourceFile); err != nil {
		tmpFile.Close()
		return err
	}

	// Sync to disk before rename
	if err = tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return err
	}
	tmpFile.Close()

	if err = os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		return err
	}
	if err = os.Rename(tmpPath, dst); err != nil {
		return err
	}

	success = true
	return nil
}

// Ensure FileSystemManagerImpl implements domain.FileSystemManager.
var _ domain.FileSystemManager = (*FileSystemManagerImpl)(nil)
