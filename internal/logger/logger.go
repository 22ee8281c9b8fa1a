package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation settings.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config controls the launcher's own log and the per-session game output files.
// Game output goes to Dir/<session>.stdout.log and Dir/<session>.stderr.log.
// Rotation parameters follow lumberjack semantics.
type Config struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // text, json, color
	File       string `mapstructure:"file"`   // launcher log file (optional)
	Dir        string `mapstructure:"dir"`    // game output directory
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SessionWriters returns rotating writers for a game session's stdout and stderr.
// Both are nil when Dir is empty.
func (c Config) SessionWriters(name string) (io.WriteCloser, io.WriteCloser, error) {
	if c.Dir == "" {
		return nil, nil, nil
	}
	if err := os.MkdirAll(c.Dir, 0o750); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	outW := c.rotating(filepath.Join(c.Dir, fmt.Sprintf("%s.stdout.log", name)))
	errW := c.rotating(filepath.Join(c.Dir, fmt.Sprintf("%s.stderr.log", name)))
	return outW, errW, nil
}

func (c Config) rotating(path string) *lj.Logger {
	return &lj.Logger{
		Filename:   path,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

// New builds the launcher logger. When File is set, records are written to both
// w and the rotating file. The returned closer releases the file.
func New(c Config, w io.Writer) (*slog.Logger, io.Closer) {
	if w == nil {
		w = os.Stderr
	}
	var closer io.Closer = nopCloser{}
	if c.File != "" {
		_ = os.MkdirAll(filepath.Dir(c.File), 0o750)
		f := c.rotating(c.File)
		w = io.MultiWriter(w, f)
		closer = f
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(c.Level)}
	var h slog.Handler
	switch strings.ToLower(c.Format) {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	case "color":
		h = NewColorTextHandler(w, opts, true)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), closer
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
