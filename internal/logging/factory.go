package logging

import (
	"io"
	"net/http"
	"os"
)

// LogConfig selects and configures the logging backends
type LogConfig struct {
	Level           LogLevel
	OutputFile      string
	EnableConsole   bool
	EnableDebug     bool
	RedactSensitive bool
	EnableColor     bool
	EnableTimestamp bool
	MaxFileSize     int64
	// ConsoleWriter defaults to stderr so stdout stays reserved for results.
	ConsoleWriter io.Writer
}

// DefaultLogConfig returns the configuration used when nothing is set
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:           INFO,
		EnableConsole:   true,
		RedactSensitive: true,
		EnableColor:     true,
		EnableTimestamp: false,
		MaxFileSize:     100 * 1024 * 1024,
	}
}

// NewLogger builds a console, file, multi or no-op logger from config
func NewLogger(config LogConfig) (Logger, error) {
	var loggers []Logger

	if config.EnableConsole {
		writer := config.ConsoleWriter
		if writer == nil {
			writer = os.Stderr
		}
		loggers = append(loggers, NewConsoleLogger(ConsoleLoggerConfig{
			Writer:           writer,
			Level:            config.Level,
			ColorEnabled:     config.EnableColor,
			TimestampEnabled: config.EnableTimestamp,
			RedactSensitive:  config.RedactSensitive,
		}))
	}

	if config.OutputFile != "" {
		fileLogger, err := NewFileLogger(FileLoggerConfig{
			FilePath:      config.OutputFile,
			Level:         config.Level,
			MaxFileSize:   config.MaxFileSize,
			RotateEnabled: config.MaxFileSize > 0,
			Redact:        config.RedactSensitive,
		})
		if err != nil {
			return nil, err
		}
		loggers = append(loggers, fileLogger)
	}

	switch len(loggers) {
	case 0:
		return NewNoOpLogger(), nil
	case 1:
		return loggers[0], nil
	default:
		return NewMultiLogger(loggers...), nil
	}
}

// NewDebugLoggerWithTransport builds a logger and, when debug is enabled,
// an http.RoundTripper that logs every remote request through it.
func NewDebugLoggerWithTransport(config LogConfig) (Logger, *DebugTransport, error) {
	if config.EnableDebug {
		config.Level = DEBUG
	}

	logger, err := NewLogger(config)
	if err != nil {
		return nil, nil, err
	}

	if !config.EnableDebug {
		return logger, nil, nil
	}

	return logger, NewDebugTransport(http.DefaultTransport, logger), nil
}
