package config

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
)

// LogConfig 描述日志输出配置。
type LogConfig struct {
	Level string
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// SlogLevel maps the configured level name, defaulting to info.
func (c LogConfig) SlogLevel() slog.Level {
	if level, ok := logLevels[c.Level]; ok {
		return level
	}
	return slog.LevelInfo
}

// NewLogger builds the console logger used by every binary.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      c.SlogLevel(),
		TimeFormat: time.TimeOnly,
	}))
}
