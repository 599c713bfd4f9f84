// Package alias maps executables and install directories to display names.
package alias

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
)

// Separator splits an entry into path and name.
const Separator = ">"

// Table is an ordered, immutable alias mapping.
// Keys are cleaned absolute paths; lookups walk from the exact path up its ancestors.
type Table struct {
	keys  []string
	names map[string]string
}

// Parse builds a table from "<path> > <name>" entries.
// It is all-or-nothing: the first bad entry aborts with *domain.AliasFormatError.
func Parse(entries []string) (*Table, error) {
	t := &Table{names: make(map[string]string, len(entries))}
	for i, raw := range entries {
		path, name, err := parseEntry(raw)
		if err != nil {
			return nil, &domain.AliasFormatError{Index: i, Entry: raw, Err: err}
		}
		if _, exists := t.names[path]; exists {
			return nil, &domain.AliasFormatError{Index: i, Entry: raw, Err: domain.ErrAliasDuplicatePath}
		}
		t.keys = append(t.keys, path)
		t.names[path] = name
	}
	return t, nil
}

// Check validates every entry and returns one error per bad entry, in order.
// Unlike Parse it keeps going after a failure.
func Check(entries []string) []*domain.AliasFormatError {
	var errs []*domain.AliasFormatError
	seen := make(map[string]bool, len(entries))
	for i, raw := range entries {
		path, _, err := parseEntry(raw)
		if err == nil && seen[path] {
			err = domain.ErrAliasDuplicatePath
		}
		if err != nil {
			errs = append(errs, &domain.AliasFormatError{Index: i, Entry: raw, Err: err})
			continue
		}
		seen[path] = true
	}
	return errs
}

// Sanitize drops every entry Check rejects and returns the rest in order.
func Sanitize(entries []string) ([]string, []*domain.AliasFormatError) {
	errs := Check(entries)
	if len(errs) == 0 {
		return entries, nil
	}
	bad := make(map[int]bool, len(errs))
	for _, e := range errs {
		bad[e.Index] = true
	}
	kept := make([]string, 0, len(entries)-len(errs))
	for i, e := range entries {
		if !bad[i] {
			kept = append(kept, e)
		}
	}
	return kept, errs
}

func parseEntry(raw string) (string, string, error) {
	pathPart, namePart, ok := strings.Cut(raw, Separator)
	if !ok {
		return "", "", domain.ErrAliasInvalidFormat
	}
	path := expandVars(strings.TrimSpace(pathPart))
	name := strings.TrimSpace(namePart)
	if path == "" || name == "" {
		return "", "", domain.ErrAliasInvalidFormat
	}
	if strings.ContainsAny(path, domain.PathProhibitedChars) ||
		strings.ContainsAny(name, domain.FilenameProhibitedChars) {
		return "", "", domain.ErrAliasInvalidCharacters
	}
	if !filepath.IsAbs(path) {
		return "", "", fmt.Errorf("%w: path %q is not absolute", domain.ErrAliasInvalidFormat, path)
	}
	return filepath.Clean(path), name, nil
}

var varPattern = regexp.MustCompile(`\$(\w+|\{[^}]*\})`)

// expandVars substitutes $VAR and ${VAR}. Unknown variables are left exactly
// as written.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(ref string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(ref[1:], "{"), "}")
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return ref
	})
}

// Resolve returns the alias for id, or for its nearest aliased ancestor directory.
func (t *Table) Resolve(id domain.ProgramIdentity) (string, bool) {
	if t == nil || len(t.names) == 0 {
		return "", false
	}
	if name, ok := t.names[id.Path()]; ok {
		return name, true
	}
	for _, parent := range id.Ancestors() {
		if name, ok := t.names[parent]; ok {
			return name, true
		}
	}
	return "", false
}

// Len returns the number of aliases.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.keys)
}

// Entries returns the table in its persisted "<path> > <name>" form, in order.
func (t *Table) Entries() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.keys))
	for i, k := range t.keys {
		out[i] = FormatEntry(k, t.names[k])
	}
	return out
}

// FormatEntry renders one alias in its persisted form.
func FormatEntry(path, name string) string {
	return path + " " + Separator + " " + name
}

// Store holds the live table. Rebuilds swap it atomically.
type Store struct {
	current atomic.Pointer[Table]
}

// NewStore creates a store holding an empty table.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(&Table{names: map[string]string{}})
	return s
}

// Rebuild replaces the table with one parsed from entries.
// On error the previous table stays in place and the error carries the bad index.
func (s *Store) Rebuild(entries []string) error {
	t, err := Parse(entries)
	if err != nil {
		return err
	}
	s.current.Store(t)
	return nil
}

// Table returns the current table.
func (s *Store) Table() *Table {
	return s.current.Load()
}

// Resolve looks id up in the current table.
func (s *Store) Resolve(id domain.ProgramIdentity) (string, bool) {
	return s.Table().Resolve(id)
}
