package alias

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ExportFileName is the file written by Export inside the chosen folder.
const ExportFileName = "replaymon_aliases.json"

// Record is one alias in the settings-panel JSON layout.
type Record struct {
	Value    string `json:"value"`
	Selected bool   `json:"selected"`
	Hidden   bool   `json:"hidden"`
}

// DefaultEntries returns the aliases a fresh install starts with.
func DefaultEntries() []string {
	var entries []string
	switch runtime.GOOS {
	case "darwin":
		entries = append(entries, FormatEntry("/System/Library/CoreServices/Finder.app", "Desktop"))
	case "windows":
		entries = append(entries, FormatEntry(`C:\Windows\explorer.exe`, "Desktop"))
	}
	return entries
}

// Export writes entries as a JSON array of records to dir/ExportFileName.
func Export(dir string, entries []string) (string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("export folder: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("export folder %s is not a directory", dir)
	}

	records := make([]Record, len(entries))
	for i, e := range entries {
		records[i] = Record{Value: e}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, ExportFileName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write aliases: %w", err)
	}
	return path, nil
}

// Import reads entries from a JSON file. Both an array of records and an
// array of plain strings are accepted. Entries are not validated here.
func Import(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read aliases: %w", err)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse aliases: %w", err)
	}

	entries := make([]string, 0, len(raw))
	for i, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			entries = append(entries, s)
			continue
		}
		var rec Record
		if err := json.Unmarshal(item, &rec); err != nil {
			return nil, fmt.Errorf("alias #%d: %w", i, err)
		}
		entries = append(entries, rec.Value)
	}
	return entries, nil
}
