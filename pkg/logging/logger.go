// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for askdesk components.
//
// The logger is a thin layer over log/slog with two destinations:
//
//   - stderr (default, text or JSON)
//   - a rotating JSON file under LogDir, managed by lumberjack
//
// # Basic Usage
//
//	logger := logging.Default()
//	logger.Info("search started", "request_id", reqID)
//
// # File Logging
//
// The interactive client owns the terminal, so it logs to file only:
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  "~/.askdesk/logs",
//	    Service: "askdesk",
//	    Quiet:   true,
//	})
//	defer logger.Close()
//
// # Security Considerations
//
// Nothing is redacted automatically. Never log the auth token itself:
//
//	logger.Info("login", "token_present", token != "")
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// =============================================================================
// Log Levels
// =============================================================================

// Level represents log severity levels, ordered Debug < Info < Warn < Error.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	LevelDebug Level = iota

	// LevelInfo is for normal operational messages.
	LevelInfo

	// LevelWarn is for recoverable problems (failed vote, dropped event).
	LevelWarn

	// LevelError is for failed operations the process survives.
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR", or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
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

// ParseLevel converts a config string to a Level. Unknown values map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Rotation controls the size-based rotation of the log file.
//
// Zero values fall back to lumberjack's own defaults except MaxSizeMB,
// which defaults to 10.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Config configures the Logger.
//
// A zero-value Config writes Info+ text records to stderr.
type Config struct {
	// Level sets the minimum log level. Default: LevelInfo.
	Level Level

	// LogDir enables file logging to "{LogDir}/{Service}.log".
	// Supports ~ expansion. File records are always JSON.
	LogDir string

	// Service is attached to every record as the "service" attribute.
	Service string

	// JSON switches stderr output from text to JSON.
	JSON bool

	// Quiet disables stderr output.
	Quiet bool

	// Rotation configures the log file rotation.
	Rotation Rotation

	// Output replaces stderr as the console destination. Used by tests.
	Output io.Writer
}

// =============================================================================
// Logger
// =============================================================================

// Logger provides structured logging with console and file output.
//
// # Thread Safety
//
// Logger is safe for concurrent use. Close is idempotent.
type Logger struct {
	slog   *slog.Logger
	config Config
	file   *lumberjack.Logger
	mu     sync.Mutex
}

// New creates a Logger with the given configuration.
//
// # Description
//
// Builds a console handler (unless Quiet) and a rotating file handler
// (when LogDir is set) and fans records out to both. When neither is
// configured the logger still writes to stderr so records are never lost.
//
// # Inputs
//
//   - config: Logger configuration.
//
// # Outputs
//
//   - *Logger: Ready-to-use logger. Call Close to release the file.
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}

	console := config.Output
	if console == nil {
		console = os.Stderr
	}

	var handlers []slog.Handler
	if !config.Quiet {
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(console, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(console, opts))
		}
	}

	logger := &Logger{config: config}

	if config.LogDir != "" {
		logDir := expandPath(config.LogDir)
		if err := os.MkdirAll(logDir, 0750); err == nil {
			name := config.Service
			if name == "" {
				name = "askdesk"
			}
			maxSize := config.Rotation.MaxSizeMB
			if maxSize == 0 {
				maxSize = 10
			}
			logger.file = &lumberjack.Logger{
				Filename:   filepath.Join(logDir, name+".log"),
				MaxSize:    maxSize,
				MaxBackups: config.Rotation.MaxBackups,
				MaxAge:     config.Rotation.MaxAgeDays,
				Compress:   config.Rotation.Compress,
				LocalTime:  true,
			}
			handlers = append(handlers, slog.NewJSONHandler(logger.file, opts))
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(os.Stderr, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	logger.slog = slog.New(handler)
	return logger
}

// Default returns an Info-level stderr logger for the "askdesk" service.
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "askdesk"})
}

// Debug logs at Debug level.
func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }

// Info logs at Info level.
func (l *Logger) Info(msg string, args ...any) { l.slog.Info(msg, args...) }

// Warn logs at Warn level.
func (l *Logger) Warn(msg string, args ...any) { l.slog.Warn(msg, args...) }

// Error logs at Error level.
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// With returns a child logger that adds args to every record.
// The child shares the parent's file; close only the parent.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		slog:   l.slog.With(args...),
		config: l.config,
	}
}

// Slog exposes the underlying *slog.Logger for libraries that take one.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// SetDefault installs this logger as the process-wide slog default so that
// package-level slog calls land in the same destinations.
func (l *Logger) SetDefault() {
	slog.SetDefault(l.slog)
}

// Close closes the log file, if any. Safe to call more than once.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// =============================================================================
// Multi-Handler
// =============================================================================

// multiHandler fans out records to several slog handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
