// Copyright (C) 2026 OpenMobility contributors (dev@openmobility.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for dcatlens components.
//
// The package wraps Go's standard slog with a small configuration surface:
// stderr text output by default (Unix CLI convention), optional JSON output
// for machine consumption, and a service attribute stamped on every entry.
//
// # Basic Usage
//
//	logger := logging.Default()
//	logger.Info("audit started", "endpoint", endpointURL)
//	logger.Warn("query failed", "catalog", id, "error", err)
//
// # Thread Safety
//
// Logger is safe for concurrent use; it is a thin wrapper over slog.Logger.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Level represents log severity levels, ordered Debug < Info < Warn < Error.
type Level int

const (
	// LevelDebug is for development troubleshooting.
	LevelDebug Level = iota

	// LevelInfo is for normal operational messages.
	LevelInfo

	// LevelWarn is for recoverable issues the run survives
	// (failed per-catalog queries, degraded endpoint).
	LevelWarn

	// LevelError is for operation failures.
	LevelError
)

// String returns the human-readable name of the level.
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

// toSlogLevel bridges Level to the standard library.
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

// ParseLevel converts a level name ("debug", "info", "warn", "error") to a
// Level. Unknown names fall back to LevelInfo.
func ParseLevel(name string) Level {
	switch name {
	case "debug", "DEBUG":
		return LevelDebug
	case "warn", "WARN", "warning":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Config configures Logger behavior. A zero-value Config creates a logger
// that writes Info+ messages to stderr in text format.
type Config struct {
	// Level sets the minimum log level. Default: LevelInfo.
	Level Level

	// JSON enables JSON output format instead of human-readable text.
	JSON bool

	// Service identifies the component generating logs. When set it is
	// included in every entry as the "service" attribute.
	Service string

	// Writer overrides the output destination. Default: os.Stderr.
	// Primarily useful in tests.
	Writer io.Writer
}

// Logger provides structured logging for dcatlens.
type Logger struct {
	slog *slog.Logger
}

// New creates a Logger with the given configuration.
func New(config Config) *Logger {
	w := config.Writer
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: config.Level.toSlogLevel()}

	var handler slog.Handler
	if config.JSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{
			slog.String("service", config.Service),
		})
	}

	return &Logger{slog: slog.New(handler)}
}

// Default returns a logger with Info level, text format, stderr output.
func Default() *Logger {
	return New(Config{Service: "dcatlens"})
}

// Debug logs a message at Debug level.
func (l *Logger) Debug(msg string, args ...any) { l.slog.Debug(msg, args...) }

// Info logs a message at Info level.
func (l *Logger) Info(msg string, args ...any) { l.slog.Info(msg, args...) }

// Warn logs a message at Warn level.
func (l *Logger) Warn(msg string, args ...any) { l.slog.Warn(msg, args...) }

// Error logs a message at Error level.
func (l *Logger) Error(msg string, args ...any) { l.slog.Error(msg, args...) }

// With returns a new Logger carrying additional attributes. The parent
// logger is not modified.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

// Slog returns the underlying slog.Logger for callers that need direct
// access, such as handing a *slog.Logger to client configuration.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}
