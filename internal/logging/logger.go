package logging

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogLevel is the minimum severity a logger emits
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel maps config values (debug, info, warn, error, and the
// quiet/normal/verbose aliases) to a LogLevel. Unknown values map to INFO.
func ParseLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "verbose":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error", "quiet":
		return ERROR
	default:
		return INFO
	}
}

// Field is a structured key/value attached to a log message
type Field struct {
	Key   string
	Value interface{}
}

// F creates a Field
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Logger is the logging abstraction used across the tool
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	WithTraceID(traceID string) Logger
	WithContext(ctx context.Context) Logger
	SetLevel(level LogLevel)
	Close() error
}

// LogEntry is the JSON shape of one line written by FileLogger
type LogEntry struct {
	Time    string `json:"time"`
	Level   string `json:"level"`
	Message string `json:"message"`
	TraceID string `json:"traceId,omitempty"`
}

type traceIDKey struct{}

// ContextWithTraceID stores a trace ID in ctx
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFromContext returns the trace ID stored in ctx, or ""
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(traceIDKey{}).(string); ok {
		return v
	}
	return ""
}

// NoOpLogger discards everything
type NoOpLogger struct{}

// NewNoOpLogger creates a logger that discards all output
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Debug(msg string, fields ...Field)      {}
func (l *NoOpLogger) Info(msg string, fields ...Field)       {}
func (l *NoOpLogger) Warn(msg string, fields ...Field)       {}
func (l *NoOpLogger) Error(msg string, fields ...Field)      {}
func (l *NoOpLogger) WithTraceID(traceID string) Logger      { return l }
func (l *NoOpLogger) WithContext(ctx context.Context) Logger { return l }
func (l *NoOpLogger) SetLevel(level LogLevel)                {}
func (l *NoOpLogger) Close() error                           { return nil }

// base carries what console and file loggers share. Loggers derived with
// WithTraceID share the mutex but take a copy of the level.
type base struct {
	mu      *sync.Mutex
	level   LogLevel
	traceID string
	redact  bool
	event   func(LogLevel) *zerolog.Event
}

func (b *base) log(level LogLevel, msg string, fields []Field) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if level < b.level {
		return
	}
	emit(b.event(level), b.traceID, b.redact, msg, fields)
}

func (b *base) derive(traceID string) base {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := *b
	d.traceID = traceID
	return d
}

func (b *base) Debug(msg string, fields ...Field) { b.log(DEBUG, msg, fields) }
func (b *base) Info(msg string, fields ...Field)  { b.log(INFO, msg, fields) }
func (b *base) Warn(msg string, fields ...Field)  { b.log(WARN, msg, fields) }
func (b *base) Error(msg string, fields ...Field) { b.log(ERROR, msg, fields) }

// SetLevel sets the minimum level of this logger
func (b *base) SetLevel(level LogLevel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.level = level
}

// emit finishes ev, applying redaction to the message and to string-like
// field values.
func emit(ev *zerolog.Event, traceID string, redact bool, msg string, fields []Field) {
	if ev == nil {
		return
	}
	if traceID != "" {
		ev = ev.Str("traceId", traceID)
	}
	for _, field := range fields {
		switch v := field.Value.(type) {
		case string:
			if redact {
				v = redactSensitiveData(v)
			}
			ev = ev.Str(field.Key, v)
		case error:
			s := v.Error()
			if redact {
				s = redactSensitiveData(s)
			}
			ev = ev.Str(field.Key, s)
		default:
			ev = ev.Interface(field.Key, v)
		}
	}
	if redact {
		msg = redactSensitiveData(msg)
	}
	ev.Msg(msg)
}
