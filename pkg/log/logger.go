// Package log provides structured logging for forester training and
// inference, built on log/slog with stack-trace extraction for errors
// created by pkg/errors.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Standard attribute keys used across the library. Keeping these
// consistent makes training runs easy to filter in log aggregation.
const (
	ModelNameKey  = "model.name"
	OperationKey  = "ml.operation"
	SamplesKey    = "data.samples"
	FeaturesKey   = "data.features"
	TreesKey      = "ensemble.trees"
	SeedKey       = "config.random_seed"
	DurationMsKey = "perf.duration_ms"
)

// Logger is a minimal slog-compatible structured logging interface.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
	Enabled(ctx context.Context, level slog.Level) bool
}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = &slogLogger{l: slog.Default()}
)

// SetupLogger installs a JSON slog handler at the given level as the
// library default. The handler is wrapped so that errors carrying
// cockroachdb stack traces emit them under a "stacktrace" attribute.
func SetupLogger(loglevel string) {
	ops := slog.HandlerOptions{
		Level: ToLogLevel(loglevel),
	}
	handler := WrapByErrFmtHandler(slog.NewJSONHandler(os.Stderr, &ops))

	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = &slogLogger{l: slog.New(handler)}
}

// GetLogger returns the library default logger.
func GetLogger() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// GetLoggerWithName returns the default logger scoped to a component name.
func GetLoggerWithName(name string) Logger {
	return GetLogger().With("component", name)
}

// ToLogLevel converts a level name to a slog.Level.
func ToLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		panic(fmt.Sprintf("invalid log level: %s", level))
	}
}

const (
	// ErrAttrKey is the attribute key for error values.
	ErrAttrKey = "error"
	// StacktraceAttrKey is the attribute key for extracted stack traces.
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr wraps an error for structured logging.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// slogLogger adapts *slog.Logger to the Logger interface.
type slogLogger struct {
	l *slog.Logger
}

func (s *slogLogger) Debug(msg string, fields ...any) { s.l.Debug(msg, fields...) }
func (s *slogLogger) Info(msg string, fields ...any)  { s.l.Info(msg, fields...) }
func (s *slogLogger) Warn(msg string, fields ...any)  { s.l.Warn(msg, fields...) }
func (s *slogLogger) Error(msg string, fields ...any) { s.l.Error(msg, fields...) }

func (s *slogLogger) With(fields ...any) Logger {
	return &slogLogger{l: s.l.With(fields...)}
}

func (s *slogLogger) Enabled(ctx context.Context, level slog.Level) bool {
	return s.l.Enabled(ctx, level)
}
