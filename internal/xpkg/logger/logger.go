package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is the structured logger passed through every component.
// Action tags the following records with the step being performed.
type Logger interface {
	Action(action string) Logger
	With(args ...any) Logger
	WithGroup(name string) Logger
	// SetLevel changes the minimum level of this logger and every logger derived
	// from the same root.
	SetLevel(level string)

	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, err error, args ...any)
}

type mylogger struct {
	l     *slog.Logger
	level *slog.LevelVar
}

// New returns a JSON logger writing to stdout.
func New(service, level string) Logger {
	return NewWithWriter(os.Stdout, service, level)
}

func NewWithWriter(w io.Writer, service, level string) Logger {
	hostname, _ := os.Hostname()
	lv := &slog.LevelVar{}
	lv.Set(parseLevel(level))
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lv,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				a.Key = "timestamp"
			}
			return a
		},
	})
	return &mylogger{
		l:     slog.New(h).With("service", service, "hostname", hostname),
		level: lv,
	}
}

// Discard drops everything; used by tests.
func Discard() Logger {
	return &mylogger{l: slog.New(slog.NewTextHandler(io.Discard, nil)), level: &slog.LevelVar{}}
}

func (m *mylogger) Action(action string) Logger {
	return &mylogger{l: m.l.With("action", action), level: m.level}
}

func (m *mylogger) With(args ...any) Logger {
	return &mylogger{l: m.l.With(args...), level: m.level}
}

func (m *mylogger) WithGroup(name string) Logger {
	return &mylogger{l: m.l.WithGroup(name), level: m.level}
}

func (m *mylogger) SetLevel(level string) {
	m.level.Set(parseLevel(level))
}

func (m *mylogger) Debug(msg string, args ...any) {
	m.l.Debug(msg, args...)
}

func (m *mylogger) Info(msg string, args ...any) {
	m.l.Info(msg, args...)
}

func (m *mylogger) Warn(msg string, args ...any) {
	m.l.Warn(msg, args...)
}

func (m *mylogger) Error(msg string, err error, args ...any) {
	if err != nil {
		args = append(args, slog.Group("error", slog.String("msg", err.Error())))
	}
	m.l.Error(msg, args...)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
