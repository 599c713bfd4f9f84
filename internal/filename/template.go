// Package filename renders user templates into file names.
//
// A template is free text with strftime-style directives and a %NAME
// placeholder for the clip base name, e.g. "%NAME_%d.%m.%Y_%H-%M-%S".
package filename

import (
	"fmt"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
)

// NamePlaceholder is replaced with the clip base name before any directive.
const NamePlaceholder = "%NAME"

// DefaultTemplate is used when no template is configured.
const DefaultTemplate = "%NAME_%d.%m.%Y_%H-%M-%S"

// directives are the single-letter specifiers a template may use.
// %% is handled separately.
const directives = "aAwdbBmyYHIpMSfzZjUWcxX"

// Render substitutes name and ts into template.
// The result contains no character from domain.FilenameProhibitedChars,
// except a '%' produced by the %% escape.
func Render(name, template string, ts time.Time) (string, error) {
	if template == "" {
		return "", &domain.TemplateError{Template: template, Err: domain.ErrTemplateEmpty}
	}

	expanded := strings.ReplaceAll(template, NamePlaceholder, name)

	var out strings.Builder
	out.Grow(len(expanded) + 16)

	for i := 0; i < len(expanded); i++ {
		c := expanded[i]
		if c != '%' {
			if strings.IndexByte(domain.FilenameProhibitedChars, c) >= 0 {
				return "", illegal(template, string(c))
			}
			out.WriteByte(c)
			continue
		}

		if i+1 >= len(expanded) {
			return "", &domain.TemplateError{
				Template: template,
				Err:      fmt.Errorf("%w: dangling %%", domain.ErrTemplateFormat),
			}
		}
		i++
		spec := expanded[i]

		if spec == '%' {
			out.WriteByte('%')
			continue
		}
		if strings.IndexByte(directives, spec) < 0 {
			return "", &domain.TemplateError{
				Template: template,
				Err:      fmt.Errorf("%w: unknown directive %%%c", domain.ErrTemplateFormat, spec),
			}
		}

		value := strftime.Format("%"+string(spec), ts)
		if strings.ContainsAny(value, domain.FilenameProhibitedChars) {
			return "", illegal(template, value)
		}
		out.WriteString(value)
	}

	return out.String(), nil
}

// Validate reports whether template renders for a sample name at the current time.
func Validate(template string) error {
	_, err := Render("clipname", template, time.Now())
	return err
}

func illegal(template, fragment string) error {
	return &domain.TemplateError{
		Template: template,
		Err:      fmt.Errorf("%w: %q", domain.ErrIllegalCharacters, fragment),
	}
}
