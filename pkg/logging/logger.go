package logging

import (
	"io"
	"os"
	"time"

	"github.com/natefinch/lumberjack"
	"github.com/niels/nixie/pkg/config"
	"github.com/rs/zerolog"
)

var (
	// Global logger instance, replaced by InitGlobalLogger
	globalLogger = NewLogger(false, os.Stderr)
)

// InitGlobalLogger configures the global logger. Logs always go to stderr;
// when file logging is enabled they are also written to a rotating file.
func InitGlobalLogger(debug bool, cfg *config.Config) {
	var output io.Writer = os.Stderr

	if cfg != nil && cfg.Logging.LogToFile {
		fileLogger := &lumberjack.Logger{
			Filename:   cfg.Logging.LogFilePath,
			MaxSize:    cfg.Logging.MaxSize,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAge:     cfg.Logging.MaxAge,
			Compress:   cfg.Logging.Compress,
		}
		output = io.MultiWriter(fileLogger, os.Stderr)
	}

	globalLogger = NewLogger(debug, output)

	if cfg != nil && cfg.Logging.LogToFile {
		globalLogger.Info().Str("path", cfg.Logging.LogFilePath).Msg("Logging to file and stderr")
	}
}

// NewLogger creates a new zerolog logger writing JSON lines to output
func NewLogger(debug bool, output io.Writer) zerolog.Logger {
	if output == nil {
		output = os.Stderr
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Debug logs a message at debug level
func Debug(msg string) {
	globalLogger.Debug().Msg(msg)
}

// Info logs a message at info level
func Info(msg string) {
	globalLogger.Info().Msg(msg)
}

// Error logs a message at error level
func Error(msg string) {
	globalLogger.Error().Msg(msg)
}

// InfoWith logs a message at info level with additional context
func InfoWith(msg string, fields map[string]interface{}) {
	event := globalLogger.Info()
	for k, v := range fields {
		event = addField(event, k, v)
	}
	event.Msg(msg)
}

// ErrorWith logs a message at error level with additional context
func ErrorWith(msg string, fields map[string]interface{}) {
	event := globalLogger.Error()
	for k, v := range fields {
		event = addField(event, k, v)
	}
	event.Msg(msg)
}

// GetLogger returns the global logger instance
func GetLogger() zerolog.Logger {
	return globalLogger
}

// WithComponent returns a logger with the component field set
func WithComponent(component string) zerolog.Logger {
	return globalLogger.With().Str("component", component).Logger()
}

func addField(event *zerolog.Event, key string, value interface{}) *zerolog.Event {
	switch v := value.(type) {
	case string:
		return event.Str(key, v)
	case int:
		return event.Int(key, v)
	case int64:
		return event.Int64(key, v)
	case bool:
		return event.Bool(key, v)
	case time.Duration:
		return event.Dur(key, v)
	case error:
		return event.AnErr(key, v)
	default:
		return event.Interface(key, v)
	}
}
