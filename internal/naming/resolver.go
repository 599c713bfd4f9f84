// Package naming decides which label a clip is saved under.
package naming

import (
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
	"github.com/eliteGoblin/focusd/replay_mon/internal/history"
)

// AliasLookup maps a program to its display name.
// alias.Store and *alias.Table both satisfy it.
type AliasLookup interface {
	Resolve(id domain.ProgramIdentity) (string, bool)
}

// Resolver produces clip base names.
type Resolver struct {
	foreground domain.ForegroundProbe
	scene      domain.SceneProbe
	aliases    AliasLookup
	logger     *zap.Logger
}

// NewResolver creates a resolver.
func NewResolver(fg domain.ForegroundProbe, scene domain.SceneProbe, aliases AliasLookup, logger *zap.Logger) *Resolver {
	return &Resolver{
		foreground: fg,
		scene:      scene,
		aliases:    aliases,
		logger:     logger,
	}
}

// Label returns the alias of id, or its file stem when no alias matches.
func (r *Resolver) Label(id domain.ProgramIdentity) string {
	if name, ok := r.aliases.Resolve(id); ok {
		return name
	}
	return id.Stem()
}

// BaseName returns the label for a clip saved now.
// forced, when non-nil, overrides mode for this one save.
// A probe failure is returned as *domain.ResolutionError.
func (r *Resolver) BaseName(mode domain.NamingMode, forced *domain.NamingMode, hist history.Tracker) (string, error) {
	if forced != nil {
		mode = *forced
	}

	switch mode {
	case domain.NamingCurrentScene:
		return r.scene.CurrentSceneName(), nil

	case domain.NamingMostRecordedProcess:
		if hist != nil {
			if id, ok := hist.MostFrequent(); ok {
				return r.Label(id), nil
			}
		}
		r.logger.Debug("activity history empty, sampling foreground program")
		return r.current(mode)

	case domain.NamingCurrentProcess:
		return r.current(mode)

	default:
		return "", &domain.ResolutionError{Mode: mode, Err: domain.ErrProbe}
	}
}

func (r *Resolver) current(mode domain.NamingMode) (string, error) {
	id, err := r.foreground.ForegroundProgram()
	if err != nil {
		return "", &domain.ResolutionError{Mode: mode, Err: err}
	}
	return r.Label(id), nil
}
