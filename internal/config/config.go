// Package config loads replaymon settings with viper.
//
// Settings come from an optional YAML, TOML or JSON file (picked by
// extension) and from REPLAYMON_* environment variables. Nested keys use an
// underscore in the variable name, e.g. REPLAYMON_HOST_WATCH_DIR.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/replay_mon/internal/alias"
	"github.com/eliteGoblin/focusd/replay_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/replay_mon/internal/domain"
	"github.com/eliteGoblin/focusd/replay_mon/internal/filename"
	"github.com/eliteGoblin/focusd/replay_mon/internal/infra"
	"github.com/eliteGoblin/focusd/replay_mon/internal/placement"
	"github.com/eliteGoblin/focusd/replay_mon/internal/usecase"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "REPLAYMON"

// Settings is the full user configuration.
type Settings struct {
	BasePath         string         `mapstructure:"base_path"`
	NamingMode       string         `mapstructure:"naming_mode"`
	Template         string         `mapstructure:"template"`
	SaveToFolder     bool           `mapstructure:"save_to_folder"`
	Links            LinkSettings   `mapstructure:"links"`
	RestartInterval  time.Duration  `mapstructure:"restart_interval"`
	RestartAfterSave bool           `mapstructure:"restart_after_save"`
	PathDisplay      string         `mapstructure:"path_display"`
	Aliases          []string       `mapstructure:"aliases"`
	CaptureKind      string         `mapstructure:"capture_kind"`
	SampleInterval   time.Duration  `mapstructure:"sample_interval"`
	DataDir          string         `mapstructure:"data_dir"`
	Ledger           bool           `mapstructure:"ledger"`
	Host             HostSettings   `mapstructure:"host"`
	Notify           NotifySettings `mapstructure:"notify"`
	Log              LogSettings    `mapstructure:"log"`
}

// LinkSettings configures hard links to every saved clip.
type LinkSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Folder  string `mapstructure:"folder"` // Defaults to <base_path>/_links
}

// HostSettings describes the capture host commands and its output folder.
type HostSettings struct {
	SaveCommand      []string      `mapstructure:"save_command"`
	StartCommand     []string      `mapstructure:"start_command"`
	StopCommand      []string      `mapstructure:"stop_command"`
	SceneCommand     []string      `mapstructure:"scene_command"`
	SceneName        string        `mapstructure:"scene_name"`
	RetentionSeconds int           `mapstructure:"retention_seconds"`
	WatchDir         string        `mapstructure:"watch_dir"`
	FilePrefix       string        `mapstructure:"file_prefix"`
	Extensions       []string      `mapstructure:"extensions"`
	Settle           time.Duration `mapstructure:"settle"`
}

// NotifySettings configures the desktop notification command.
type NotifySettings struct {
	Command []string `mapstructure:"command"`
}

// LogSettings mirrors infra.LogConfig.
type LogSettings struct {
	Path       string `mapstructure:"path"`
	Level      string `mapstructure:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
	Console    bool   `mapstructure:"console"`
}

// DefaultDataDir returns ~/.replaymon.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".replaymon")
}

func setDefaults(v *viper.Viper) {
	watcher := infra.DefaultWatcherConfig("")

	v.SetDefault("base_path", "~/Videos/Replays")
	v.SetDefault("naming_mode", domain.NamingCurrentProcess.String())
	v.SetDefault("template", filename.DefaultTemplate)
	v.SetDefault("save_to_folder", true)
	v.SetDefault("links.enabled", false)
	v.SetDefault("links.folder", "")
	v.SetDefault("restart_interval", time.Hour)
	v.SetDefault("restart_after_save", true)
	v.SetDefault("path_display", "full_path")
	v.SetDefault("aliases", alias.DefaultEntries())
	v.SetDefault("capture_kind", string(domain.CaptureReplayBuffer))
	v.SetDefault("sample_interval", time.Second)
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("ledger", true)

	v.SetDefault("host.save_command", []string{})
	v.SetDefault("host.start_command", []string{})
	v.SetDefault("host.stop_command", []string{})
	v.SetDefault("host.scene_command", []string{})
	v.SetDefault("host.scene_name", "Scene")
	v.SetDefault("host.retention_seconds", 300)
	v.SetDefault("host.watch_dir", "")
	v.SetDefault("host.file_prefix", watcher.Prefix)
	v.SetDefault("host.extensions", watcher.Extensions)
	v.SetDefault("host.settle", watcher.Settle)

	v.SetDefault("notify.command", []string{})

	v.SetDefault("log.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", infra.DefaultLogMaxSizeMB)
	v.SetDefault("log.max_backups", infra.DefaultLogMaxBackups)
	v.SetDefault("log.max_age_days", infra.DefaultLogMaxAgeDays)
	v.SetDefault("log.compress", false)
	v.SetDefault("log.console", false)
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	}
	return v
}

// Load reads settings from path (optional) and the environment.
// The result is validated.
func Load(path string) (*Settings, error) {
	v, err := read(path)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// LoadUnvalidated is Load without Validate, for commands that report
// problems instead of failing on them.
func LoadUnvalidated(path string) (*Settings, error) {
	v, err := read(path)
	if err != nil {
		return nil, err
	}
	return unmarshal(v)
}

func read(path string) (*viper.Viper, error) {
	v := newViper(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	return v, nil
}

func decode(v *viper.Viper) (*Settings, error) {
	s, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func unmarshal(v *viper.Viper) (*Settings, error) {
	var s Settings
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		secondsToDurationHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&s, hook); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &s, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// secondsToDurationHook reads a bare number as seconds, so
// "restart_interval: 3600" means one hour. Strings with a unit ("1h")
// are left to StringToTimeDurationHookFunc.
func secondsToDurationHook() mapstructure.DecodeHookFuncType {
	return func(_ reflect.Type, t reflect.Type, data any) (any, error) {
		if t != durationType {
			return data, nil
		}
		switch n := data.(type) {
		case int:
			return time.Duration(n) * time.Second, nil
		case int32:
			return time.Duration(n) * time.Second, nil
		case int64:
			return time.Duration(n) * time.Second, nil
		case uint:
			return time.Duration(n) * time.Second, nil
		case uint64:
			return time.Duration(n) * time.Second, nil
		case float64:
			return time.Duration(n * float64(time.Second)), nil
		case string:
			if secs, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return time.Duration(secs * float64(time.Second)), nil
			}
		}
		return data, nil
	}
}

// Watch re-reads path whenever it changes and passes valid settings to
// onChange. Invalid edits are logged and skipped, leaving the previous
// settings in force.
func Watch(path string, logger *zap.Logger, onChange func(*Settings)) error {
	if path == "" {
		return nil
	}
	v, err := read(path)
	if err != nil {
		return err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		s, err := decode(v)
		if err != nil {
			fields := []zap.Field{zap.String("file", e.Name), zap.Error(err)}
			var afe *domain.AliasFormatError
			if errors.As(err, &afe) {
				fields = append(fields, zap.Int("index", afe.Index))
			}
			logger.Warn("ignoring invalid config change", fields...)
			return
		}
		logger.Info("config reloaded", zap.String("file", e.Name))
		onChange(s)
	})
	v.WatchConfig()
	return nil
}

// Validate checks every field that can be wrong.
func (s *Settings) Validate() error {
	if _, err := domain.ParseNamingMode(s.NamingMode); err != nil {
		return err
	}
	if _, err := domain.ParsePathDisplayMode(s.PathDisplay); err != nil {
		return err
	}
	switch domain.CaptureKind(s.CaptureKind) {
	case domain.CaptureReplayBuffer, domain.CaptureRecording:
	default:
		return fmt.Errorf("unknown capture kind %q", s.CaptureKind)
	}
	if err := filename.Validate(s.Template); err != nil {
		return err
	}
	if s.BasePath == "" {
		return errors.New("base_path must be set")
	}
	if strings.ContainsAny(s.BasePath, domain.PathProhibitedChars) {
		return fmt.Errorf("%w: base_path %q", domain.ErrIllegalCharacters, s.BasePath)
	}
	if s.RestartInterval < 0 || (s.RestartInterval > 0 && s.RestartInterval < time.Second) {
		return fmt.Errorf("restart_interval %s must be 0 (disabled) or at least 1s", s.RestartInterval)
	}
	if s.SampleInterval < 0 || (s.SampleInterval > 0 && s.SampleInterval < 10*time.Millisecond) {
		return fmt.Errorf("sample_interval %s is too short", s.SampleInterval)
	}
	if errs := alias.Check(s.Aliases); len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// Mode returns the parsed naming mode. Settings must be valid.
func (s *Settings) Mode() domain.NamingMode {
	m, _ := domain.ParseNamingMode(s.NamingMode)
	return m
}

// DisplayMode returns the parsed notification path display mode.
func (s *Settings) DisplayMode() domain.PathDisplayMode {
	m, _ := domain.ParsePathDisplayMode(s.PathDisplay)
	return m
}

// SaverConfig converts the save-related settings.
func (s *Settings) SaverConfig() usecase.SaverConfig {
	links := s.Links.Folder
	if links == "" {
		links = filepath.Join(s.BasePath, "_links")
	}
	return usecase.SaverConfig{
		Mode:         s.Mode(),
		Template:     s.Template,
		BasePath:     s.BasePath,
		SaveToFolder: s.SaveToFolder,
		Links:        placement.LinkOptions{Enabled: s.Links.Enabled, Folder: links},
	}
}

// SessionConfig converts the session settings.
func (s *Settings) SessionConfig(appVersion string) daemon.SessionConfig {
	cfg := daemon.DefaultSessionConfig()
	cfg.Kind = domain.CaptureKind(s.CaptureKind)
	if s.SampleInterval > 0 {
		cfg.SampleInterval = s.SampleInterval
	}
	cfg.RestartInterval = s.EffectiveRestartInterval()
	cfg.RestartAfterSave = s.RestartAfterSave && s.CanRestartBuffer()
	cfg.AppVersion = appVersion
	return cfg
}

// CanRestartBuffer reports whether host commands for a restart are configured.
func (s *Settings) CanRestartBuffer() bool {
	return len(s.Host.StopCommand) > 0 && len(s.Host.StartCommand) > 0
}

// EffectiveRestartInterval is RestartInterval, or zero when the host
// cannot be restarted.
func (s *Settings) EffectiveRestartInterval() time.Duration {
	if !s.CanRestartBuffer() {
		return 0
	}
	return s.RestartInterval
}

// HostConfig converts the host command settings.
func (s *Settings) HostConfig() infra.HostConfig {
	return infra.HostConfig{
		SaveCommand:      s.Host.SaveCommand,
		StartCommand:     s.Host.StartCommand,
		StopCommand:      s.Host.StopCommand,
		SceneCommand:     s.Host.SceneCommand,
		SceneName:        s.Host.SceneName,
		RetentionSeconds: s.Host.RetentionSeconds,
	}
}

// WatcherConfig converts the replay folder settings.
func (s *Settings) WatcherConfig() infra.WatcherConfig {
	return infra.WatcherConfig{
		Dir:        s.Host.WatchDir,
		Prefix:     s.Host.FilePrefix,
		Extensions: s.Host.Extensions,
		Settle:     s.Host.Settle,
	}
}

// LogConfig converts the log settings.
func (s *Settings) LogConfig() infra.LogConfig {
	return infra.LogConfig{
		Path:       s.Log.Path,
		Level:      s.Log.Level,
		MaxSizeMB:  s.Log.MaxSizeMB,
		MaxBackups: s.Log.MaxBackups,
		MaxAgeDays: s.Log.MaxAgeDays,
		Compress:   s.Log.Compress,
		Console:    s.Log.Console,
	}
}
