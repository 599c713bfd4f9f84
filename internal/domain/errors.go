package domain

import (
	"errors"
	"fmt"
)

// FilenameProhibitedChars may not appear in a rendered file name or an alias name.
const FilenameProhibitedChars = `/\:"<>*?|%`

// PathProhibitedChars may not appear in an alias path.
const PathProhibitedChars = `"<>*?|%`

var (
	// ErrProbe is returned when the foreground program cannot be determined.
	ErrProbe = errors.New("foreground program probe failed")

	ErrTemplateEmpty     = errors.New("filename template is empty")
	ErrTemplateFormat    = errors.New("filename template cannot be formatted")
	ErrIllegalCharacters = errors.New("name contains prohibited characters")

	ErrAliasInvalidFormat     = errors.New("alias must look like \"<path> > <name>\"")
	ErrAliasInvalidCharacters = errors.New("alias contains prohibited characters")
	ErrAliasDuplicatePath     = errors.New("alias path already exists")
)

// AliasFormatError reports a malformed alias entry and its position in the list.
type AliasFormatError struct {
	Index int
	Entry string
	Err   error
}

func (e *AliasFormatError) Error() string {
	return fmt.Sprintf("alias #%d %q: %v", e.Index, e.Entry, e.Err)
}

func (e *AliasFormatError) Unwrap() error { return e.Err }

// ResolutionError is returned when a clip base name cannot be produced.
type ResolutionError struct {
	Mode NamingMode
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve base name (%s): %v", e.Mode, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// TemplateError is returned when a filename template cannot be rendered.
type TemplateError struct {
	Template string
	Err      error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %q: %v", e.Template, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }
