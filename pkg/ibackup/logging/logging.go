// Package logging provides component loggers with file rotation for
// ibackup. Library packages log through it; the CLI initializes it.
//
// Basic usage:
//
//	if err := logging.Init(logging.Config{Level: "info"}); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logger := logging.Get("device")
//	logger.Warn("Manifest.plist not found", "udid", udid)
//
// Loggers obtained before Init are silent; they are rebuilt in place when
// Init runs, so package-level loggers are safe.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level is a charmbracelet/log level.
type Level = log.Level

// Levels understood by ParseLevel.
const (
	LevelDebug = log.DebugLevel
	LevelInfo  = log.InfoLevel
	LevelWarn  = log.WarnLevel
	LevelError = log.ErrorLevel
)

// ErrInvalidLevel is returned when an invalid log level string is provided.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel accepts debug, info, warn (or warning) and error in any case.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(s)
	if name == "warning" {
		name = "warn"
	}
	switch name {
	case "debug", "info", "warn", "error":
		return log.ParseLevel(name)
	}
	return LevelInfo, fmt.Errorf("%w: %q", ErrInvalidLevel, s)
}

// Config configures the logging system.
type Config struct {
	// Level is the default log level (debug, info, warn, error).
	Level string

	// Path is the log file path. Empty uses DefaultLogPath().
	Path string

	Rotation RotationConfig

	// Components maps component names to their log levels.
	Components map[string]string

	// ConsoleLevel enables stderr output at the given level.
	// Empty disables console output.
	ConsoleLevel string
}

// LogEntry is a single log record delivered to subscribers.
type LogEntry struct {
	Time      time.Time
	Level     Level
	Component string
	Message   string
	Args      []interface{}
}

// Logger is a component logger writing to the log file, the console when
// enabled, and every subscriber.
type Logger struct {
	file      *log.Logger
	console   *log.Logger
	component string
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log(LevelDebug, msg, args) }
func (l *Logger) Info(msg string, args ...interface{})  { l.log(LevelInfo, msg, args) }
func (l *Logger) Warn(msg string, args ...interface{})  { l.log(LevelWarn, msg, args) }
func (l *Logger) Error(msg string, args ...interface{}) { l.log(LevelError, msg, args) }

func (l *Logger) log(level Level, msg string, args []interface{}) {
	l.file.Log(level, msg, args...)
	if l.console != nil {
		l.console.Log(level, msg, args...)
	}

	globalState.broadcast(LogEntry{
		Time:      time.Now(),
		Level:     level,
		Component: l.component,
		Message:   msg,
		Args:      args,
	})
}

// settings is a parsed Config with its open writer.
type settings struct {
	level        Level
	components   map[string]Level
	console      bool
	consoleLevel Level
	writer       *RotatingWriter
}

func (s *settings) levelFor(component string) Level {
	if lvl, ok := s.components[component]; ok {
		return lvl
	}
	return s.level
}

// parse validates cfg and opens the log file. Nothing is opened when a
// level is invalid.
func (cfg Config) parse() (*settings, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	s := &settings{level: level, components: make(map[string]Level, len(cfg.Components))}
	for comp, lvl := range cfg.Components {
		if s.components[comp], err = ParseLevel(lvl); err != nil {
			return nil, fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
	}

	if cfg.ConsoleLevel != "" {
		if s.consoleLevel, err = ParseLevel(cfg.ConsoleLevel); err != nil {
			return nil, fmt.Errorf("parsing console level: %w", err)
		}
		s.console = true
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}
	if s.writer, err = NewRotatingWriter(path, cfg.Rotation); err != nil {
		return nil, fmt.Errorf("creating log writer: %w", err)
	}
	return s, nil
}

type state struct {
	mu          sync.RWMutex
	active      *settings // nil until Init; loggers discard
	loggers     map[string]*Logger
	subscribers map[chan LogEntry]struct{}
}

var globalState = &state{
	loggers:     make(map[string]*Logger),
	subscribers: make(map[chan LogEntry]struct{}),
}

// Init initializes the logging system with the given configuration.
// Calling Init again replaces the previous configuration; a failed Init
// leaves it in place.
func Init(cfg Config) error {
	next, err := cfg.parse()
	if err != nil {
		return err
	}

	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	prev := globalState.active
	globalState.replace(next)

	if prev != nil {
		if err := prev.writer.Close(); err != nil {
			return fmt.Errorf("closing previous writer: %w", err)
		}
	}
	return nil
}

// replace swaps the active settings and rebuilds every logger in place so
// pointers held by package-level vars pick up the new outputs. Callers hold
// s.mu.
func (s *state) replace(active *settings) {
	s.active = active
	for component, logger := range s.loggers {
		*logger = *s.newLogger(component)
	}
}

// Get returns the logger for the given component, creating it on first use.
func Get(component string) *Logger {
	globalState.mu.RLock()
	logger, ok := globalState.loggers[component]
	globalState.mu.RUnlock()
	if ok {
		return logger
	}

	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	if logger, ok := globalState.loggers[component]; ok {
		return logger
	}
	logger = globalState.newLogger(component)
	globalState.loggers[component] = logger
	return logger
}

// newLogger must be called with s.mu held.
func (s *state) newLogger(component string) *Logger {
	if s.active == nil {
		return &Logger{
			file:      log.NewWithOptions(io.Discard, log.Options{Prefix: component}),
			component: component,
		}
	}

	logger := &Logger{
		file: log.NewWithOptions(s.active.writer, log.Options{
			Level:           s.active.levelFor(component),
			ReportTimestamp: true,
			TimeFormat:      time.RFC3339,
			Prefix:          component,
		}),
		component: component,
	}
	if s.active.console {
		logger.console = log.NewWithOptions(os.Stderr, log.Options{
			Level:           s.active.consoleLevel,
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
			Prefix:          component,
		})
	}
	return logger
}

// Close flushes and closes the log file and returns loggers to silent mode.
func Close() error {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	prev := globalState.active
	if prev == nil {
		return nil
	}
	globalState.replace(nil)

	if err := prev.writer.Close(); err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}

// Subscribe returns a buffered channel receiving every log entry regardless
// of level. Entries are dropped when the channel is full.
func Subscribe() <-chan LogEntry {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	ch := make(chan LogEntry, 100)
	globalState.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription channel. The channel is not closed.
func Unsubscribe(ch <-chan LogEntry) {
	globalState.mu.Lock()
	defer globalState.mu.Unlock()

	for sub := range globalState.subscribers {
		if sub == ch {
			delete(globalState.subscribers, sub)
			return
		}
	}
}

func (s *state) broadcast(entry LogEntry) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for ch := range s.subscribers {
		select {
		case ch <- entry:
		default:
		}
	}
}

// DefaultLogPath returns $XDG_STATE_HOME/ibackup/ibackup.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "ibackup", "ibackup.log")
}
