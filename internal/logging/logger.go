package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// LogFileName is the file created inside the log directory.
const LogFileName = "swarmtree.log"

// Logger provides structured logging with persistent context attributes.
// It is safe for concurrent use.
type Logger struct {
	logger *slog.Logger
	file   *rotatingFile
	attrs  []slog.Attr
}

// NewLogger creates a Logger that writes JSON lines to {dir}/swarmtree.log.
// If dir is empty, logs go to stderr.
func NewLogger(dir string, level string) (*Logger, error) {
	return NewRotatingLogger(dir, level, Rotation{})
}

// NewRotatingLogger is NewLogger with size-based rotation of the log file.
func NewRotatingLogger(dir, level string, rot Rotation) (*Logger, error) {
	if dir == "" {
		return NewWithWriter(os.Stderr, level), nil
	}

	file, err := openRotatingFile(filepath.Join(dir, LogFileName), rot)
	if err != nil {
		return nil, err
	}

	l := NewWithWriter(file, level)
	l.file = file
	return l, nil
}

// NewWithWriter creates a Logger that writes JSON lines to w.
func NewWithWriter(w io.Writer, level string) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return &Logger{logger: slog.New(handler)}
}

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

// WithRun returns a child Logger tagging every entry with run_id.
func (l *Logger) WithRun(runID string) *Logger {
	return l.withAttr(slog.String("run_id", runID))
}

// WithTeam returns a child Logger tagging every entry with team_id.
func (l *Logger) WithTeam(teamID string) *Logger {
	return l.withAttr(slog.String("team_id", teamID))
}

// With returns a child Logger with arbitrary key-value attributes.
// Non-string keys are skipped.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}

	attrs := make([]slog.Attr, 0, len(l.attrs)+len(args)/2)
	attrs = append(attrs, l.attrs...)
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, slog.Any(key, args[i+1]))
	}
	return l.child(attrs)
}

func (l *Logger) withAttr(attr slog.Attr) *Logger {
	attrs := make([]slog.Attr, len(l.attrs)+1)
	copy(attrs, l.attrs)
	attrs[len(l.attrs)] = attr
	return l.child(attrs)
}

func (l *Logger) child(attrs []slog.Attr) *Logger {
	return &Logger{
		logger: l.logger,
		file:   l.file,
		attrs:  attrs,
	}
}

// Debug logs at DEBUG level. Keys and values alternate.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, msg, args...)
}

// Info logs at INFO level. Keys and values alternate.
func (l *Logger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, msg, args...)
}

// Warn logs at WARN level. Keys and values alternate.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, msg, args...)
}

// Error logs at ERROR level. Keys and values alternate.
func (l *Logger) Error(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	all := make([]any, 0, len(l.attrs)+len(args))
	for _, attr := range l.attrs {
		all = append(all, attr)
	}
	all = append(all, args...)
	l.logger.Log(context.Background(), level, msg, all...)
}

// Close syncs and closes the log file. It is a no-op for writer-backed
// loggers and safe to call more than once. Children share the file, so
// closing any of them closes it for all.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// NopLogger returns a Logger that discards all output.
func NopLogger() *Logger {
	return NewWithWriter(io.Discard, LevelError)
}

// ParseLevel normalizes a level string, defaulting to LevelInfo.
func ParseLevel(level string) string {
	switch strings.ToUpper(level) {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return strings.ToUpper(level)
	default:
		return LevelInfo
	}
}

// ValidLevels returns the list of valid log level strings.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}
