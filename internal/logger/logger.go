// Package logger provides the process-wide structured logger: a slog.Handler
// that colorizes level and message the way an interactive terminal expects.
// Trimmed from the teacher's AsyncHandler (which additionally rotated to a
// per-day file on disk) since a push server has no durable log requirement
// of its own - stdout is enough, and the operator's process supervisor owns
// capture and retention.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
)

// LevelFatal sits above slog.LevelError so Fatal lines are never filtered by
// an Error-level handler.
const LevelFatal slog.Level = 12

type colorHandler struct {
	out      *os.File
	attrs    []slog.Attr
	group    string
	logLevel slog.Level
}

// NewColorHandler returns a slog.Handler that writes level-colored lines to
// out, filtering anything below level.
func NewColorHandler(out *os.File, level slog.Level) slog.Handler {
	return &colorHandler{out: out, logLevel: level}
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.logLevel
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	level := r.Level.String()
	switch r.Level {
	case slog.LevelDebug:
		level = color.MagentaString(level)
	case slog.LevelInfo:
		level = color.BlueString(level)
	case slog.LevelWarn:
		level = color.YellowString(level)
	case slog.LevelError:
		level = color.RedString(level)
	case LevelFatal:
		level = color.HiRedString("FATAL")
	}

	line := fmt.Sprintf(
		"%s | %-5s | %s",
		color.GreenString(r.Time.Format("2006-01-02T15:04:05")),
		level,
		color.CyanString(r.Message),
	)

	for _, attr := range h.attrs {
		line += color.CyanString(fmt.Sprintf(" %s=%v", attr.Key, attr.Value))
	}
	r.Attrs(func(attr slog.Attr) bool {
		line += color.CyanString(fmt.Sprintf(" %s=%v", attr.Key, attr.Value))
		return true
	})

	_, err := fmt.Fprintln(h.out, line)
	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	newAttrs = append(newAttrs, h.attrs...)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{out: h.out, attrs: newAttrs, group: h.group, logLevel: h.logLevel}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	return &colorHandler{out: h.out, attrs: h.attrs, group: name, logLevel: h.logLevel}
}

// Init installs a colorHandler at levelName ("debug", "info", "warn",
// "error") as the process-wide slog default. Unknown level names fall back
// to info.
func Init(levelName string) {
	slog.SetDefault(slog.New(NewColorHandler(os.Stdout, parseLevel(levelName))))
}

func parseLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Debug(msg string, args ...interface{}) { slog.Debug(msg, args...) }
func Info(msg string, args ...interface{})  { slog.Info(msg, args...) }
func Warn(msg string, args ...interface{})  { slog.Warn(msg, args...) }
func Error(msg string, args ...interface{}) { slog.Error(msg, args...) }

func Fatal(msg string, args ...interface{}) {
	slog.Log(context.Background(), LevelFatal, msg, args...)
	os.Exit(1)
}
