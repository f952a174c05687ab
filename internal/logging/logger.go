// Package logging provides the file-backed debug log used by codegate components.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Level is the severity of a log line.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger writes timestamped, component-tagged lines to a debug log.
// A nil *Logger, or one without a writer, discards everything.
type Logger struct {
	mu        *sync.Mutex
	out       io.Writer
	closer    io.Closer
	component string
	debug     bool
}

// New creates a logger writing to the file at logPath.
// If logPath is empty, returns a no-op logger.
// Creates parent directories if they don't exist.
func New(logPath string, debug bool) (*Logger, error) {
	if logPath == "" {
		return &Logger{}, nil
	}

	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &Logger{mu: new(sync.Mutex), out: f, closer: f, debug: debug}
	l.Infof("=== codegate debug log started at %s ===", time.Now().Format(time.RFC3339))
	return l, nil
}

// NewWriter creates a logger writing to w. Used by tests and for stderr logging.
func NewWriter(w io.Writer, debug bool) *Logger {
	return &Logger{mu: new(sync.Mutex), out: w, debug: debug}
}

// ForRepo creates a logger in the directory's .codegate/logs folder.
// Returns a no-op logger if the directory cannot be created.
func ForRepo(dir string, debug bool) *Logger {
	l, err := New(filepath.Join(dir, ".codegate", "logs", "codegate-debug.log"), debug)
	if err != nil {
		return &Logger{}
	}
	return l
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{}
}

// With returns a logger sharing the same output, tagged with component.
func (l *Logger) With(component string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{mu: l.mu, out: l.out, component: component, debug: l.debug}
}

// Debugf logs a debug-level message. Dropped unless debug logging is enabled.
func (l *Logger) Debugf(format string, args ...any) {
	if l == nil || !l.debug {
		return
	}
	l.write(LevelDebug, format, args...)
}

// Infof logs an info-level message.
func (l *Logger) Infof(format string, args ...any) {
	l.write(LevelInfo, format, args...)
}

// Warnf logs a warning.
func (l *Logger) Warnf(format string, args ...any) {
	l.write(LevelWarn, format, args...)
}

// Errorf logs an error.
func (l *Logger) Errorf(format string, args ...any) {
	l.write(LevelError, format, args...)
}

func (l *Logger) write(level Level, format string, args ...any) {
	if l == nil || l.out == nil || l.mu == nil {
		return
	}

	msg := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.component != "" {
		fmt.Fprintf(l.out, "[%s] [%s] [%s] %s\n", timestamp, level, l.component, msg)
		return
	}
	fmt.Fprintf(l.out, "[%s] [%s] %s\n", timestamp, level, msg)
}

// Close closes the underlying log file.
// Safe to call on a nil logger or one created by With.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil || l.mu == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closer.Close()
}
