package logging

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// rotatingFile is the io.Writer behind FileLogger. It is shared by every
// logger derived through WithTraceID so size accounting stays correct.
type rotatingFile struct {
	mu            sync.Mutex
	file          *os.File
	filePath      string
	maxFileSize   int64
	currentSize   int64
	rotateEnabled bool
}

func (r *rotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return 0, os.ErrClosed
	}

	if r.rotateEnabled && r.currentSize >= r.maxFileSize {
		if err := r.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to rotate log file: %v\n", err)
		}
	}

	n, err := r.file.Write(p)
	r.currentSize += int64(n)
	return n, err
}

// rotate renames the current file with a timestamp suffix and reopens
func (r *rotatingFile) rotate() error {
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}

	rotatedPath := fmt.Sprintf("%s.%s", r.filePath, time.Now().UTC().Format("20060102-150405.000000000"))
	if err := os.Rename(r.filePath, rotatedPath); err != nil {
		file, openErr := os.OpenFile(r.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if openErr == nil {
			r.file = file
		}
		return fmt.Errorf("failed to rename log file: %w", err)
	}

	file, err := os.OpenFile(r.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		r.file = nil
		return fmt.Errorf("failed to create new log file: %w", err)
	}

	r.file = file
	r.currentSize = 0
	return nil
}

func (r *rotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// FileLogger writes one JSON object per line. Levels are written in upper
// case (see LogEntry).
type FileLogger struct {
	base
	sink *rotatingFile
}

// FileLoggerConfig contains configuration for file logger
type FileLoggerConfig struct {
	FilePath      string
	Level         LogLevel
	MaxFileSize   int64 // in bytes, 0 means no rotation
	RotateEnabled bool
	Redact        bool
}

// NewFileLogger opens (or creates) the log file for appending
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	sink := &rotatingFile{
		file:          file,
		filePath:      config.FilePath,
		maxFileSize:   config.MaxFileSize,
		currentSize:   info.Size(),
		rotateEnabled: config.RotateEnabled && config.MaxFileSize > 0,
	}
	zl := zerolog.New(sink).With().Timestamp().Logger()

	return &FileLogger{
		sink: sink,
		base: base{
			mu:     &sync.Mutex{},
			level:  config.Level,
			redact: config.Redact,
			// Log() has no zerolog level, so the level field is ours
			event: func(level LogLevel) *zerolog.Event { return zl.Log().Str("level", level.String()) },
		},
	}, nil
}

// WithTraceID returns a logger that adds traceId to every entry
func (l *FileLogger) WithTraceID(traceID string) Logger {
	return &FileLogger{base: l.derive(traceID), sink: l.sink}
}

// WithContext returns a logger carrying the trace ID stored in ctx
func (l *FileLogger) WithContext(ctx context.Context) Logger {
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		return l.WithTraceID(traceID)
	}
	return l
}

// Close closes the log file for this logger and every derived one
func (l *FileLogger) Close() error {
	return l.sink.Close()
}
