// Package logging provides structured logging for planner components.
// It wraps log/slog and keeps an append-only record of warnings and errors
// so callers can surface them after an operation completes.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// Output formats
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Config controls how a Logger is built.
type Config struct {
	Level  string    // DEBUG, INFO, WARN or ERROR (default INFO)
	Format string    // json or text (default json)
	Output io.Writer // default os.Stderr
}

// Entry is one warning or error recorded by a Collector.
type Entry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
	Time    time.Time
}

// String renders the entry as "message (key=value, ...)" with keys sorted.
func (e Entry) String() string {
	if len(e.Attrs) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, e.Attrs[k])
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, ", "))
}

// Collector records every warning and error logged through the Loggers that
// share it. Append-only; safe for concurrent use.
type Collector struct {
	mu      sync.Mutex
	entries []Entry
}

func (c *Collector) add(e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
}

// Entries returns a copy of everything recorded so far.
func (c *Collector) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.entries...)
}

// Since returns the entries recorded after the first n. A negative n
// returns everything.
func (c *Collector) Since(n int) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	n = max(n, 0)
	if n >= len(c.entries) {
		return nil
	}
	return append([]Entry(nil), c.entries[n:]...)
}

// Len returns the number of recorded entries.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Logger provides structured logging. Child loggers created with With share
// the parent's handler and collector.
type Logger struct {
	logger    *slog.Logger
	collector *Collector
	attrs     []any
}

// New creates a Logger from cfg.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case FormatText:
		handler = slog.NewTextHandler(out, opts)
	default:
		handler = slog.NewJSONHandler(out, opts)
	}

	return &Logger{
		logger:    slog.New(handler),
		collector: &Collector{},
	}
}

// Nop returns a Logger that discards output but still collects warnings.
func Nop() *Logger {
	return New(Config{Output: io.Discard})
}

// parseLevel converts a string log level to slog.Level.
// Defaults to INFO if the level string is not recognized.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidLevels returns the list of valid log level strings.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}

// With returns a child Logger with extra key-value attributes.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}
	attrs := make([]any, 0, len(l.attrs)+len(args))
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, args...)
	return &Logger{
		logger:    l.logger,
		collector: l.collector,
		attrs:     attrs,
	}
}

// Collector returns the shared warning/error collector.
func (l *Logger) Collector() *Collector {
	return l.collector
}

// Debug logs a message at DEBUG level.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, msg, args...)
}

// Info logs a message at INFO level.
func (l *Logger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, msg, args...)
}

// Warn logs a message at WARN level and records it.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, msg, args...)
}

// Error logs a message at ERROR level and records it.
func (l *Logger) Error(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	all := make([]any, 0, len(l.attrs)+len(args))
	all = append(all, l.attrs...)
	all = append(all, args...)

	if level >= slog.LevelWarn {
		l.collector.add(Entry{
			Level:   level,
			Message: msg,
			Attrs:   attrMap(all),
			Time:    time.Now(),
		})
	}

	l.logger.Log(context.Background(), level, msg, all...)
}

// attrMap turns alternating key-value arguments into a map.
func attrMap(args []any) map[string]any {
	m := make(map[string]any, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			m[key] = args[i+1]
		}
	}
	return m
}
