// Copyright (C) 2025 Candor Labs (dev@candorlabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging builds the slog.Logger used by Northstar entry points.
//
// A single call wires every sink the process needs:
//
//	logger, err := logging.New("advisor",
//	    logging.WithDir("~/.northstar/logs"), // supports ~ expansion
//	    logging.WithJSON(),
//	)
//	if err != nil { ... }
//	defer logger.Close()
//	logger.Info("session created", "session_id", sessionID)
//
// Stderr gets text by default (JSON with WithJSON); the daily file under
// WithDir is always JSON, named {service}_{date}.log. Every record carries
// the service name as a "service" attribute.
//
// Nothing here redacts sensitive data. Callers must not log tokens,
// credentials, or raw user evidence; log presence flags and metadata
// instead.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Logger is an slog.Logger bound to the sinks New opened. Close releases
// the daily log file; the embedded methods are safe for concurrent use.
type Logger struct {
	*slog.Logger
	file *os.File
}

type options struct {
	level slog.Level
	dir   string
	json  bool
	quiet bool
	sinks []slog.Handler
}

// Option adjusts how New assembles the logger.
type Option func(*options)

// WithLevel sets the minimum level for all sinks. Default slog.LevelInfo.
func WithLevel(level slog.Level) Option {
	return func(o *options) { o.level = level }
}

// WithDir enables a daily JSON log file in dir, named
// {service}_{YYYY-MM-DD}.log. The directory is created with 0750
// permissions if missing; a leading ~ expands to the home directory.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithJSON switches stderr output from text to JSON. The daily file is
// JSON regardless.
func WithJSON() Option {
	return func(o *options) { o.json = true }
}

// WithQuiet drops the stderr sink. Records still reach the daily file
// and any WithSink handlers.
func WithQuiet() Option {
	return func(o *options) { o.quiet = true }
}

// WithSink adds an extra handler to the fanout, for shipping records to
// an aggregator or capturing them in tests. The handler sees the same
// level-filtered stream as the built-in sinks.
func WithSink(h slog.Handler) Option {
	return func(o *options) { o.sinks = append(o.sinks, h) }
}

// New builds a Logger for the named service. Without options it writes
// Info+ text to stderr. Errors opening the daily log file are returned
// rather than silently dropping the sink.
func New(service string, opts ...Option) (*Logger, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	hopts := &slog.HandlerOptions{Level: o.level}
	logger := &Logger{}

	var handlers []slog.Handler
	if !o.quiet {
		if o.json {
			handlers = append(handlers, slog.NewJSONHandler(os.Stderr, hopts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(os.Stderr, hopts))
		}
	}

	if o.dir != "" {
		dir := expandPath(o.dir)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
		file, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		logger.file = file
		handlers = append(handlers, slog.NewJSONHandler(file, hopts))
	}

	handlers = append(handlers, o.sinks...)

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		// quiet with no file and no sinks: everything is discarded
		handler = slog.NewTextHandler(nopWriter{}, hopts)
	case 1:
		handler = handlers[0]
	default:
		handler = fanoutHandler(handlers)
	}

	handler = handler.WithAttrs([]slog.Attr{slog.String("service", service)})
	logger.Logger = slog.New(handler)
	return logger, nil
}

// Close syncs and closes the daily log file, if one was opened.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		l.file.Close()
		return fmt.Errorf("sync log file: %w", err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

// expandPath expands a leading ~ to the user's home directory. Absolute
// and relative paths pass through unchanged.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
