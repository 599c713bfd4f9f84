// Package usecase contains application business logic.
package usecase

import (
	"fmt"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/replay_mon/internal/clock"
	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
	"github.com/eliteGoblin/focusd/replay_mon/internal/filename"
	"github.com/eliteGoblin/focusd/replay_mon/internal/history"
	"github.com/eliteGoblin/focusd/replay_mon/internal/metrics"
	"github.com/eliteGoblin/focusd/replay_mon/internal/naming"
	"github.com/eliteGoblin/focusd/replay_mon/internal/placement"
)

// SaverConfig holds the settings a save reads. It can be swapped at runtime.
type SaverConfig struct {
	Mode         domain.NamingMode
	Template     string
	BasePath     string
	SaveToFolder bool
	Links        placement.LinkOptions
}

// ClipSaver names, places and records a clip the host just wrote.
type ClipSaver struct {
	resolver *naming.Resolver
	assigner *placement.Assigner
	gate     *ForceModeGate
	ledger   domain.ClipLedger // Optional
	notifier domain.Notifier
	clock    clock.Clock
	logger   *zap.Logger

	mu  sync.RWMutex
	cfg SaverConfig
}

// NewClipSaver creates a saver. ledger may be nil.
func NewClipSaver(
	resolver *naming.Resolver,
	assigner *placement.Assigner,
	gate *ForceModeGate,
	ledger domain.ClipLedger,
	notifier domain.Notifier,
	clk clock.Clock,
	cfg SaverConfig,
	logger *zap.Logger,
) *ClipSaver {
	return &ClipSaver{
		resolver: resolver,
		assigner: assigner,
		gate:     gate,
		ledger:   ledger,
		notifier: notifier,
		clock:    clk,
		logger:   logger,
		cfg:      cfg,
	}
}

// Config returns the active settings.
func (s *ClipSaver) Config() SaverConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// UpdateConfig replaces the settings used by later saves.
func (s *ClipSaver) UpdateConfig(cfg SaverConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// Save moves the clip at src to its final location.
// The force-mode gate is released on every path out of Save.
func (s *ClipSaver) Save(src string, hist history.Tracker) (*domain.SavedClip, error) {
	defer s.gate.Release()

	cfg := s.Config()
	mode := cfg.Mode
	var forced *domain.NamingMode
	if m, ok := s.gate.Pending(); ok {
		forced = &m
		mode = m
	}

	base, err := s.resolver.BaseName(cfg.Mode, forced, hist)
	if err != nil {
		return nil, s.fail("resolve", src, err)
	}

	now := s.clock.Now()
	name, err := filename.Render(base, cfg.Template, now)
	if err != nil {
		return nil, s.fail("template", src, err)
	}

	target, err := s.assigner.Assign(name, filepath.Ext(src), cfg.BasePath, cfg.SaveToFolder, base)
	if err != nil {
		return nil, s.fail("assign", src, err)
	}

	result, err := s.assigner.Commit(src, target, cfg.Links)
	if err != nil {
		return nil, s.fail("move", src, err)
	}

	clip := domain.SavedClip{
		SourcePath: src,
		TargetPath: result.Target,
		LinkPath:   result.LinkPath,
		BaseName:   base,
		Mode:       mode,
		Forced:     forced != nil,
		SavedAt:    now,
	}

	if s.ledger != nil {
		id, err := s.ledger.Record(clip)
		if err != nil {
			s.logger.Warn("failed to record clip in ledger",
				zap.String("target", clip.TargetPath),
				zap.Error(err))
		} else {
			clip.ID = id
		}
	}

	metrics.IncClipSaved(mode.String())
	s.logger.Info("clip saved",
		zap.String("source", src),
		zap.String("target", clip.TargetPath),
		zap.String("base_name", base),
		zap.String("mode", mode.String()),
		zap.Bool("forced", clip.Forced))
	s.notifier.ClipSaved(clip)

	return &clip, nil
}

func (s *ClipSaver) fail(stage, src string, err error) error {
	metrics.IncSaveFailure(stage)
	s.logger.Error("clip save aborted",
		zap.String("stage", stage),
		zap.String("source", src),
		zap.Error(err))
	err = fmt.Errorf("save %s: %w", filepath.Base(src), err)
	s.notifier.ClipFailed(err)
	return err
}
