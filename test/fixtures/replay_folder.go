// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"os"
	"path/filepath"
	"sort"
)

// ReplayFolder lays out a capture host's raw output folder next to a clip library.
type ReplayFolder struct {
	Root string
}

// NewReplayFolder creates a fixture rooted at root.
func NewReplayFolder(root string) *ReplayFolder {
	return &ReplayFolder{Root: root}
}

// RawDir is where the fake host writes clips.
func (f *ReplayFolder) RawDir() string {
	return filepath.Join(f.Root, "raw")
}

// LibraryDir is the configured base path for named clips.
func (f *ReplayFolder) LibraryDir() string {
	return filepath.Join(f.Root, "Videos")
}

// Create makes the raw folder. The library is left for the daemon to create.
func (f *ReplayFolder) Create() error {
	return os.MkdirAll(f.RawDir(), 0755)
}

// WriteClip writes a fake clip into the raw folder, the way a host finishes a save.
func (f *ReplayFolder) WriteClip(name string) (string, error) {
	path := filepath.Join(f.RawDir(), name)
	return path, os.WriteFile(path, []byte("fake video frames"), 0644)
}

// Files lists file names in dir relative to the library, sorted.
func (f *ReplayFolder) Files(dir string) []string {
	entries, err := os.ReadDir(filepath.Join(f.LibraryDir(), dir))
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// RawFiles lists files still in the raw folder.
func (f *ReplayFolder) RawFiles() []string {
	entries, err := os.ReadDir(f.RawDir())
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// Cleanup removes the fixture.
func (f *ReplayFolder) Cleanup() error {
	return os.RemoveAll(f.Root)
}
