// Copyright (c) 2025 The StakeMesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package log is a thin structured-logging layer over log/slog with a
// runtime-switchable level and per-package context.
package log

import (
	"io"
	"log/slog"
	"os"
)

// Logger is the leveled, contextual logger used across the engine.
type Logger interface {
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	With(ctx ...any) Logger
}

var (
	level slog.LevelVar
	root  = &logger{slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))}
)

// Init replaces the root logger output. Color output is used when
// the writer is a terminal.
func Init(w io.Writer, useColor bool) {
	var handler slog.Handler
	if useColor {
		handler = newTerminalHandler(w, &level)
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: &level})
	}
	root.inner = slog.New(handler)
}

// WithContext derives a logger carrying the given context pairs,
// conventionally ("pkg", <package name>).
func WithContext(ctx ...any) Logger {
	return root.With(ctx...)
}

// LevelVar exposes the shared level for runtime adjustment.
func LevelVar() *slog.LevelVar {
	return &level
}

// SetLevel adjusts the global logging level.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// ParseLevel maps a verbosity name to a slog level.
func ParseLevel(name string) (slog.Level, bool) {
	switch name {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return 0, false
}

type logger struct {
	inner *slog.Logger
}

func (l *logger) Debug(msg string, ctx ...any) { l.inner.Debug(msg, ctx...) }
func (l *logger) Info(msg string, ctx ...any)  { l.inner.Info(msg, ctx...) }
func (l *logger) Warn(msg string, ctx ...any)  { l.inner.Warn(msg, ctx...) }
func (l *logger) Error(msg string, ctx ...any) { l.inner.Error(msg, ctx...) }

func (l *logger) With(ctx ...any) Logger {
	return &logger{l.inner.With(ctx...)}
}
