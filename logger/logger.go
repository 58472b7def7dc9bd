package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/lmittmann/tint"
)

const timeFormat = "2006-01-02 15:04:05.000"

// Logger writes leveled records to the console and, optionally, a rotating file
type Logger struct {
	handler slog.Handler
	level   *slog.LevelVar
	file    *rotatingFile
}

// LoggerConfig represents the configuration for the logger
type LoggerConfig struct {
	Level slog.Level
	// Log file path, empty disables file output
	FilePath string
	// Maximum log file size in MB
	MaxSize int
	// Maximum number of rotated files kept
	MaxBackups int
	// Whether to log to console
	Console bool
}

// DefaultConfig returns default logger configuration
func DefaultConfig() LoggerConfig {
	return LoggerConfig{
		Level:      slog.LevelInfo,
		MaxSize:    10,
		MaxBackups: 5,
		Console:    true,
	}
}

// New creates a new logger
func New(config LoggerConfig) (*Logger, error) {
	level := new(slog.LevelVar)
	level.Set(config.Level)

	var handlers []slog.Handler
	if config.Console {
		handlers = append(handlers, tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: timeFormat,
			AddSource:  true,
		}))
	}

	var file *rotatingFile
	if config.FilePath != "" {
		var err error
		file, err = openRotatingFile(config.FilePath, config.MaxSize, config.MaxBackups)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(file, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		}))
	}

	if len(handlers) == 0 {
		return nil, errors.New("logger needs console or file output")
	}

	return &Logger{
		handler: fanout(handlers),
		level:   level,
		file:    file,
	}, nil
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level slog.Level) {
	l.level.Set(level)
}

// output builds a record whose source is the caller skip frames above it.
func (l *Logger) output(skip int, level slog.Level, msg string, attrs ...any) {
	ctx := context.Background()
	if !l.handler.Enabled(ctx, level) {
		return
	}

	var pcs [1]uintptr
	runtime.Callers(skip, pcs[:])

	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(attrs...)
	if err := l.handler.Handle(ctx, r); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write log: %v\n", err)
	}
}

// Debug logs debug level messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.output(3, slog.LevelDebug, fmt.Sprintf(format, args...))
}

// Info logs info level messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.output(3, slog.LevelInfo, fmt.Sprintf(format, args...))
}

// Warn logs warning level messages
func (l *Logger) Warn(format string, args ...interface{}) {
	l.output(3, slog.LevelWarn, fmt.Sprintf(format, args...))
}

// Error logs error level messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.output(3, slog.LevelError, fmt.Sprintf(format, args...))
}

// Close closes the log file, if any
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// fanoutHandler sends each record to every handler that accepts its level
type fanoutHandler []slog.Handler

func fanout(handlers []slog.Handler) slog.Handler {
	if len(handlers) == 1 {
		return handlers[0]
	}
	return fanoutHandler(handlers)
}

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	out := make(fanoutHandler, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// rotatingFile is an io.Writer that renames the file to a timestamped backup
// once it grows past maxSize, keeping at most maxBackups backups.
type rotatingFile struct {
	mu          sync.Mutex
	path        string
	file        *os.File
	maxSize     int64
	maxBackups  int
	currentSize int64
}

func openRotatingFile(path string, maxSizeMB, maxBackups int) (*rotatingFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	rf := &rotatingFile{
		path:       path,
		maxSize:    int64(maxSizeMB) * 1024 * 1024,
		maxBackups: maxBackups,
	}
	if err := rf.open(); err != nil {
		return nil, err
	}
	return rf, nil
}

func (rf *rotatingFile) open() error {
	file, err := os.OpenFile(rf.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to get log file info: %w", err)
	}

	rf.file = file
	rf.currentSize = info.Size()
	return nil
}

func (rf *rotatingFile) Write(p []byte) (int, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return 0, io.ErrClosedPipe
	}

	n, err := rf.file.Write(p)
	rf.currentSize += int64(n)
	if err != nil {
		return n, err
	}

	if rf.maxSize > 0 && rf.currentSize >= rf.maxSize {
		if err := rf.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to rotate log file: %v\n", err)
		}
	}
	return n, nil
}

func (rf *rotatingFile) rotate() error {
	if err := rf.file.Close(); err != nil {
		return err
	}
	rf.file = nil

	ext := filepath.Ext(rf.path)
	name := rf.path[:len(rf.path)-len(ext)]
	backup := fmt.Sprintf("%s.%s%s", name, time.Now().Format("20060102-150405.000"), ext)
	if err := os.Rename(rf.path, backup); err != nil {
		return err
	}

	rf.cleanOldLogs()
	return rf.open()
}

// cleanOldLogs removes the oldest backups beyond maxBackups
func (rf *rotatingFile) cleanOldLogs() {
	ext := filepath.Ext(rf.path)
	name := rf.path[:len(rf.path)-len(ext)]

	matches, err := filepath.Glob(name + ".*" + ext)
	if err != nil || len(matches) <= rf.maxBackups {
		return
	}

	type backup struct {
		path    string
		modTime time.Time
	}
	backups := make([]backup, 0, len(matches))
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		backups = append(backups, backup{match, info.ModTime()})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].modTime.Before(backups[j].modTime)
	})

	for i := 0; i < len(backups)-rf.maxBackups; i++ {
		os.Remove(backups[i].path)
	}
}

func (rf *rotatingFile) Close() error {
	rf.mu.Lock()
	defer rf.mu.Unlock()

	if rf.file == nil {
		return nil
	}
	err := rf.file.Close()
	rf.file = nil
	return err
}
