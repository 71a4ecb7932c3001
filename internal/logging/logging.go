// Package logging is the structured logger shared by the game loop, the
// command surface and the servers. It is a thin layer over log/slog with
// helpers for the values the game logs most: teams, locations and components.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/signalsfoundry/siege-simulator/model"
)

// Field is a structured logging attribute.
type Field = slog.Attr

func String(key, value string) Field {
	return slog.String(key, value)
}

func Int(key string, value int) Field {
	return slog.Int(key, value)
}

func Bool(key string, value bool) Field {
	return slog.Bool(key, value)
}

func Float64(key string, value float64) Field {
	return slog.Float64(key, value)
}

func Duration(key string, value time.Duration) Field {
	return slog.Duration(key, value)
}

func Any(key string, value any) Field {
	return slog.Any(key, value)
}

// Err records an error under the "error" key. A nil error yields an empty string.
func Err(err error) Field {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.String("error", err.Error())
}

// Team records a team under the "team" key.
func Team(t model.Team) Field {
	return slog.String("team", t.String())
}

// Location groups a position's world and coordinates under key.
func Location(key string, l model.Location) Field {
	return slog.Group(key,
		slog.String("world", l.World),
		slog.Float64("x", l.X),
		slog.Float64("y", l.Y),
		slog.Float64("z", l.Z),
	)
}

// Component names the subsystem a derived logger belongs to.
func Component(name string) Field {
	return slog.String("component", name)
}

// Logger is the logging interface taken by every long-lived component.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Config controls basic logger behaviour.
type Config struct {
	Level     string // debug, info, warn, error, or a slog level such as "debug+2"
	Format    string // json or text
	AddSource bool
}

// New returns a logger writing to stderr, leaving stdout to command output.
func New(cfg Config) Logger {
	return NewWithWriter(os.Stderr, cfg)
}

// NewWithWriter returns a logger writing to w.
func NewWithWriter(w io.Writer, cfg Config) Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level), AddSource: cfg.AddSource}
	if strings.EqualFold(cfg.Format, "json") {
		return &slogger{l: slog.New(slog.NewJSONHandler(w, opts))}
	}
	return &slogger{l: slog.New(slog.NewTextHandler(w, opts))}
}

// NewFromEnv builds a logger from LOG_LEVEL, LOG_FORMAT and LOG_SOURCE.
func NewFromEnv() Logger {
	return New(ConfigFromEnv(os.Getenv))
}

// ConfigFromEnv reads the logging variables through getenv. Unset values
// give text output at info level without source locations.
func ConfigFromEnv(getenv func(string) string) Config {
	source, _ := strconv.ParseBool(getenv("LOG_SOURCE"))
	return Config{
		Level:     getenv("LOG_LEVEL"),
		Format:    getenv("LOG_FORMAT"),
		AddSource: source,
	}
}

// Noop returns a logger that drops everything.
func Noop() Logger {
	return &slogger{l: slog.New(slog.DiscardHandler)}
}

type slogger struct {
	l *slog.Logger
}

func (s *slogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return s
	}
	return &slogger{l: slog.New(s.l.Handler().WithAttrs(fields))}
}

func (s *slogger) Debug(ctx context.Context, msg string, fields ...Field) {
	s.l.LogAttrs(ctx, slog.LevelDebug, msg, fields...)
}

func (s *slogger) Info(ctx context.Context, msg string, fields ...Field) {
	s.l.LogAttrs(ctx, slog.LevelInfo, msg, fields...)
}

func (s *slogger) Warn(ctx context.Context, msg string, fields ...Field) {
	s.l.LogAttrs(ctx, slog.LevelWarn, msg, fields...)
}

func (s *slogger) Error(ctx context.Context, msg string, fields ...Field) {
	s.l.LogAttrs(ctx, slog.LevelError, msg, fields...)
}

func parseLevel(level string) slog.Level {
	level = strings.TrimSpace(level)
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// ---- Request-scoped helpers ----

type ctxKey int

const (
	requestIDKey ctxKey = iota
	loggerKey
)

// EnsureRequestID attaches a request_id to the context if absent and returns
// the updated context plus the ID.
func EnsureRequestID(ctx context.Context) (context.Context, string) {
	if ctx == nil {
		ctx = context.Background()
	}
	if id := RequestIDFromContext(ctx); id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return ContextWithRequestID(ctx, id), id
}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithRequestLogger returns ctx with a request_id and base annotated with it.
func WithRequestLogger(ctx context.Context, base Logger) (context.Context, Logger) {
	if base == nil {
		base = Noop()
	}
	ctx, id := EnsureRequestID(ctx)
	return ctx, base.With(String("request_id", id))
}

// ContextWithLogger stores l on ctx. A nil l stores Noop.
func ContextWithLogger(ctx context.Context, l Logger) context.Context {
	if l == nil {
		l = Noop()
	}
	return context.WithValue(ctx, loggerKey, l)
}

// LoggerFromContext returns the logger stored by ContextWithLogger, or nil.
func LoggerFromContext(ctx context.Context) Logger {
	if ctx == nil {
		return nil
	}
	l, _ := ctx.Value(loggerKey).(Logger)
	return l
}
