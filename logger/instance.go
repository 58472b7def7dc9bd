package logger

import (
	"fmt"
	"log"
	"log/slog"
	"strings"
	"sync/atomic"
)

// Global logger instance
var defaultLogger atomic.Pointer[Logger]

func init() {
	l, err := New(DefaultConfig())
	if err != nil {
		log.Printf("Failed to initialize default logger: %v, using standard log", err)
		return
	}
	defaultLogger.Store(l)
}

// InitFromConfig replaces the default logger with one built from configuration
func InitFromConfig(level, filePath string, maxSize, maxBackups int, console bool) error {
	logLevel, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	l, err := New(LoggerConfig{
		Level:      logLevel,
		FilePath:   filePath,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		Console:    console,
	})
	if err != nil {
		return err
	}

	if old := defaultLogger.Swap(l); old != nil {
		old.Close()
	}
	return nil
}

// ParseLogLevel parses log level string
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", level)
	}
}

// SetLevel changes the level of the default logger at runtime
func SetLevel(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}
	if l := defaultLogger.Load(); l != nil {
		l.SetLevel(lvl)
	}
	return nil
}

func logf(level slog.Level, format string, args ...interface{}) {
	if l := defaultLogger.Load(); l != nil {
		l.output(4, level, fmt.Sprintf(format, args...))
		return
	}
	log.Printf("["+level.String()+"] "+format, args...)
}

func logw(level slog.Level, msg string, kv ...any) {
	if l := defaultLogger.Load(); l != nil {
		l.output(4, level, msg, kv...)
		return
	}
	log.Println(append([]any{"[" + level.String() + "]", msg}, kv...)...)
}

// Debug logs debug level messages
func Debug(format string, args ...interface{}) { logf(slog.LevelDebug, format, args...) }

// Info logs info level messages
func Info(format string, args ...interface{}) { logf(slog.LevelInfo, format, args...) }

// Warn logs warning level messages
func Warn(format string, args ...interface{}) { logf(slog.LevelWarn, format, args...) }

// Error logs error level messages
func Error(format string, args ...interface{}) { logf(slog.LevelError, format, args...) }

// Debugw logs a debug message with key-value pairs
func Debugw(msg string, kv ...any) { logw(slog.LevelDebug, msg, kv...) }

// Infow logs an info message with key-value pairs
func Infow(msg string, kv ...any) { logw(slog.LevelInfo, msg, kv...) }

// Warnw logs a warning message with key-value pairs
func Warnw(msg string, kv ...any) { logw(slog.LevelWarn, msg, kv...) }

// Errorw logs an error message with key-value pairs
func Errorw(msg string, kv ...any) { logw(slog.LevelError, msg, kv...) }

// Close closes the logger
func Close() error {
	if l := defaultLogger.Load(); l != nil {
		return l.Close()
	}
	return nil
}
