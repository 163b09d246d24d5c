// Package logging configures the process-wide zerolog logger: a console
// writer for interactive use plus an optional timestamped log file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// LOG LEVELS
// ═══════════════════════════════════════════════════════════════════════════════

// ParseLevel maps a config level name to a zerolog level. Unknown names fall
// back to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// LOGGER
// ═══════════════════════════════════════════════════════════════════════════════

// Config configures Setup.
type Config struct {
	Level   string    // debug, info, warn, error
	Verbose bool      // forces debug and adds caller info
	FileDir string    // directory for the log file; empty disables file output
	Console io.Writer // console destination; nil means os.Stderr
	Quiet   bool      // drop console output, e.g. while a chat prompt owns the terminal
	NoColor bool
}

// Logger owns the writers behind the global zerolog logger.
type Logger struct {
	zerolog.Logger
	file *os.File
	path string
}

// Setup builds the logger described by cfg and installs it as the zerolog
// global. A file that cannot be opened is reported on the console and
// skipped.
func Setup(cfg Config) *Logger {
	level := ParseLevel(cfg.Level)
	if cfg.Verbose {
		level = zerolog.DebugLevel
	}

	var writers []io.Writer
	if !cfg.Quiet {
		out := cfg.Console
		if out == nil {
			out = os.Stderr
		}
		writers = append(writers, zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05", NoColor: cfg.NoColor})
	}

	l := &Logger{}
	var fileErr error
	if cfg.FileDir != "" {
		if err := l.openFile(cfg.FileDir); err != nil {
			fileErr = err
		} else {
			writers = append(writers, zerolog.ConsoleWriter{Out: l.file, NoColor: true})
		}
	}

	var w io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		w = writers[0]
	default:
		w = zerolog.MultiLevelWriter(writers...)
	}

	ctx := zerolog.New(w).Level(level).With().Timestamp()
	if cfg.Verbose {
		ctx = ctx.Caller()
	}
	l.Logger = ctx.Logger()

	zerolog.SetGlobalLevel(level)
	zerolog.DefaultContextLogger = &l.Logger
	log.Logger = l.Logger

	if fileErr != nil {
		log.Warn().Err(fileErr).Msg("file logging disabled")
	} else if l.path != "" {
		log.Debug().Str("path", l.path).Msg("logging to file")
	}
	return l
}

func (l *Logger) openFile(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	name := fmt.Sprintf("buddy_%s.log", time.Now().Format("2006-01-02_15-04-05"))
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	l.file = f
	l.path = path
	return nil
}

// Path returns the log file path, or "" when file output is off.
func (l *Logger) Path() string { return l.path }

// Close closes the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
