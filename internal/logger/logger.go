package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// Logger writes categorized log lines. JSON output carries service and
// hostname on every record; console output is colored by level.
type Logger struct {
	service  string
	hostname string
	format   Format
	handler  *slog.Logger
	out      io.Writer
	mu       sync.Mutex
	closer   io.Closer
}

type Option func(*Logger)

func WithFormat(f Format) Option {
	return func(l *Logger) { l.format = f }
}

func WithOutput(w io.Writer) Option {
	return func(l *Logger) { l.out = w }
}

// WithFile mirrors output into a log file next to stdout.
func WithFile(path string) Option {
	return func(l *Logger) {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "logger: cannot open %s: %v\n", path, err)
			return
		}
		l.out = io.MultiWriter(l.out, f)
		l.closer = f
	}
}

func NewLogger(service string, opts ...Option) *Logger {
	hostname, _ := os.Hostname()
	l := &Logger{
		service:  service,
		hostname: hostname,
		format:   FormatJSON,
		out:      os.Stdout,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.handler = slog.New(slog.NewJSONHandler(l.out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return l
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewLogger("discard", WithOutput(io.Discard))
}

func ParseFormat(s string) Format {
	if strings.EqualFold(s, string(FormatConsole)) {
		return FormatConsole
	}
	return FormatJSON
}

func (l *Logger) Debug(category, msg string, attrs ...any) {
	l.log(slog.LevelDebug, category, msg, attrs...)
}

func (l *Logger) Info(category, msg string, attrs ...any) {
	l.log(slog.LevelInfo, category, msg, attrs...)
}

func (l *Logger) Warn(category, msg string, attrs ...any) {
	l.log(slog.LevelWarn, category, msg, attrs...)
}

func (l *Logger) Error(category, msg string, attrs ...any) {
	l.log(slog.LevelError, category, msg, attrs...)
}

// LogEvent records an outbound notification on a channel or topic.
func (l *Logger) LogEvent(action, channel, msg string) {
	l.Info("EVENT", msg, "action", action, "channel", channel)
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.Info("API", fmt.Sprintf("%s %s %s", method, path, status), "duration", duration)
}

func (l *Logger) LogSecurity(action, msg string) {
	l.Warn("SECURITY", msg, "action", action)
}

func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func (l *Logger) log(level slog.Level, category, msg string, attrs ...any) {
	if l == nil {
		return
	}
	if l.format == FormatConsole {
		l.console(level, category, msg, attrs...)
		return
	}
	args := append([]any{
		slog.String("service", l.service),
		slog.String("hostname", l.hostname),
		slog.String("category", category),
	}, attrs...)
	l.handler.Log(context.Background(), level, msg, args...)
}

func (l *Logger) console(level slog.Level, category, msg string, attrs ...any) {
	var paint *color.Color
	switch {
	case level >= slog.LevelError:
		paint = color.New(color.FgRed, color.Bold)
	case level >= slog.LevelWarn:
		paint = color.New(color.FgYellow)
	case level >= slog.LevelInfo:
		paint = color.New(color.FgGreen)
	default:
		paint = color.New(color.FgHiBlack)
	}

	var b strings.Builder
	for i := 0; i+1 < len(attrs); i += 2 {
		fmt.Fprintf(&b, " %v=%v", attrs[i], attrs[i+1])
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s %s %s %s%s\n",
		time.Now().Format("15:04:05.000"),
		paint.Sprintf("%-5s", level.String()),
		color.CyanString("[%s]", category),
		msg,
		b.String(),
	)
}
