// Package logger builds the service's slog logger: text on the console, JSON lines
// in info.log, and errors duplicated into error.log.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// New creates the logger for level, writing its files under dir ("logs" when empty).
func New(level, dir string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	infoFile, err := openLog(dir, "info.log")
	if err != nil {
		return nil, err
	}
	errorFile, err := openLog(dir, "error.log")
	if err != nil {
		return nil, err
	}

	return slog.New(NewMultiLevelHandler(lvl, os.Stdout, infoFile, errorFile)), nil
}

func openLog(dir, name string) (*os.File, error) {
	return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type ctxAttrsKey struct{}

// WithAttrs returns a context whose *Context log calls also carry attrs.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	existing, _ := ctx.Value(ctxAttrsKey{}).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(existing)+len(attrs))
	merged = append(merged, existing...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, ctxAttrsKey{}, merged)
}

type sink struct {
	handler slog.Handler
	min     slog.Level
}

// MultiLevelHandler fans each record out to every sink whose minimum level it meets.
type MultiLevelHandler struct {
	sinks []sink
	level slog.Leveler
}

// NewMultiLevelHandler writes records at level and above to console and infoFile,
// and errors to errorFile as well.
func NewMultiLevelHandler(level slog.Leveler, console, infoFile, errorFile io.Writer) *MultiLevelHandler {
	opts := &slog.HandlerOptions{Level: level}
	return &MultiLevelHandler{
		level: level,
		sinks: []sink{
			{handler: slog.NewTextHandler(console, opts), min: level.Level()},
			{handler: slog.NewJSONHandler(infoFile, opts), min: level.Level()},
			{handler: slog.NewJSONHandler(errorFile, &slog.HandlerOptions{Level: slog.LevelError}), min: slog.LevelError},
		},
	}
}

func (h *MultiLevelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *MultiLevelHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs, ok := ctx.Value(ctxAttrsKey{}).([]slog.Attr); ok && len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}

	for _, s := range h.sinks {
		if r.Level < s.min {
			continue
		}
		if err := s.handler.Handle(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (h *MultiLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(s slog.Handler) slog.Handler { return s.WithAttrs(attrs) })
}

func (h *MultiLevelHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(s slog.Handler) slog.Handler { return s.WithGroup(name) })
}

func (h *MultiLevelHandler) derive(fn func(slog.Handler) slog.Handler) *MultiLevelHandler {
	next := &MultiLevelHandler{level: h.level, sinks: make([]sink, len(h.sinks))}
	for i, s := range h.sinks {
		next.sinks[i] = sink{handler: fn(s.handler), min: s.min}
	}
	return next
}

// ParseLevel maps a config string onto a slog level. Empty means info.
func ParseLevel(level string) (slog.Leveler, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return nil, fmt.Errorf("invalid log level %q", level)
}
