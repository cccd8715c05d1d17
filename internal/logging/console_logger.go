package logging

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ConsoleLogger writes human-readable lines, normally to stderr
type ConsoleLogger struct {
	base
}

// ConsoleLoggerConfig contains configuration for console logger
type ConsoleLoggerConfig struct {
	Writer           io.Writer
	Level            LogLevel
	ColorEnabled     bool
	TimestampEnabled bool
	RedactSensitive  bool
}

// NewConsoleLogger creates a console logger. A nil Writer means stderr.
func NewConsoleLogger(config ConsoleLoggerConfig) *ConsoleLogger {
	if config.Writer == nil {
		config.Writer = os.Stderr
	}

	out := zerolog.ConsoleWriter{
		Out:        config.Writer,
		NoColor:    !config.ColorEnabled,
		TimeFormat: time.DateTime,
	}
	if !config.TimestampEnabled {
		out.PartsExclude = []string{zerolog.TimestampFieldName}
	}
	zctx := zerolog.New(out).With()
	if config.TimestampEnabled {
		zctx = zctx.Timestamp()
	}
	zl := zctx.Logger()

	return &ConsoleLogger{base: base{
		mu:     &sync.Mutex{},
		level:  config.Level,
		redact: config.RedactSensitive,
		event:  func(level LogLevel) *zerolog.Event { return zl.WithLevel(level.zerolog()) },
	}}
}

// WithTraceID returns a logger tagging lines with the first 8 characters
// of traceID
func (l *ConsoleLogger) WithTraceID(traceID string) Logger {
	if len(traceID) > 8 {
		traceID = traceID[:8]
	}
	return &ConsoleLogger{base: l.derive(traceID)}
}

// WithContext returns a logger carrying the trace ID stored in ctx
func (l *ConsoleLogger) WithContext(ctx context.Context) Logger {
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		return l.WithTraceID(traceID)
	}
	return l
}

// Close is a no-op; the writer belongs to the caller
func (l *ConsoleLogger) Close() error {
	return nil
}
