package infra

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default log rotation settings
const (
	DefaultLogMaxSizeMB  = 10
	DefaultLogMaxBackups = 3
	DefaultLogMaxAgeDays = 7
)

// LogConfig describes the daemon log file.
// Rotation parameters follow lumberjack semantics.
type LogConfig struct {
	Path       string // Empty logs to stderr only
	Level      string // debug, info, warn, error
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Console    bool // Also write to stderr
}

// NewLogger builds a JSON production logger writing to a rotating file.
// It falls back to zap.NewProduction if the level cannot be parsed.
func NewLogger(cfg LogConfig) *zap.Logger {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if cfg.Level != "" {
		parsed, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			logger, _ := zap.NewProduction()
			logger.Warn("invalid log level, using info", zap.String("level", cfg.Level))
			return logger
		}
		level = parsed
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderConfig)

	var cores []zapcore.Core
	if cfg.Path != "" {
		writer := &lj.Logger{
			Filename:   cfg.Path,
			MaxSize:    valOr(cfg.MaxSizeMB, DefaultLogMaxSizeMB),
			MaxBackups: valOr(cfg.MaxBackups, DefaultLogMaxBackups),
			MaxAge:     valOr(cfg.MaxAgeDays, DefaultLogMaxAgeDays),
			Compress:   cfg.Compress,
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(writer), level))
	}
	if cfg.Console || cfg.Path == "" {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
