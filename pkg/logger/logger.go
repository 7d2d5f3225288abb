// Package logger provides a structured logging facility using zap logger.
// It offers context-aware logging, environment-specific encoding and a
// verbosity switch mirroring the CLI's -v flag.
package logger

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// DevelopmentEnvironment represents the development environment setting.
	// Log lines are human-readable console output.
	DevelopmentEnvironment = "development"

	// ProductionEnvironment represents the production environment setting.
	// Log lines are JSON encoded.
	ProductionEnvironment = "production"
)

// Options control how the default logger is built.
type Options struct {
	// Environment selects the encoder ("development" or "production").
	Environment string
	// Verbose enables informational messages. Without it only warnings and
	// errors are printed.
	Verbose bool
	// Debug lowers the level to debug, overriding Verbose.
	Debug bool
}

// defaultLogger is the package-level logger instance used when no logger is found in context.
var defaultLogger = zap.NewNop() //nolint: gochecknoglobals

// Setup initializes the default logger from opts. Output goes to stdout so
// informational and error messages share one stream, like the rest of the CLI.
func Setup(opts Options) {
	level := zapcore.WarnLevel
	switch {
	case opts.Debug:
		level = zapcore.DebugLevel
	case opts.Verbose:
		level = zapcore.InfoLevel
	}

	var encoder zapcore.Encoder
	if opts.Environment == ProductionEnvironment {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.TimeKey = ""
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	defaultLogger = zap.New(zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level))
}

// key is a custom type used as a context key for storing and retrieving logger instances.
type key struct{}

// Get retrieves a logger from the provided context.
// If no logger is found in the context, it returns the default logger.
func Get(ctx context.Context) *zap.Logger {
	if logger, _ := ctx.Value(key{}).(*zap.Logger); logger != nil {
		return logger
	}

	return defaultLogger
}

// WithLogger creates a new context with the provided logger attached.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, key{}, logger)
}

// WithFields creates a new context with a logger that includes the specified fields.
func WithFields(ctx context.Context, fields ...zapcore.Field) context.Context {
	return WithLogger(ctx, Get(ctx).With(fields...))
}

// Debug logs a message at debug level with the given fields.
func Debug(ctx context.Context, msg string, fields ...zapcore.Field) {
	Get(ctx).Debug(msg, fields...)
}

// Info logs a message at info level with the given fields.
func Info(ctx context.Context, msg string, fields ...zapcore.Field) {
	Get(ctx).Info(msg, fields...)
}

// Warn logs a message at warn level with the given fields.
func Warn(ctx context.Context, msg string, fields ...zapcore.Field) {
	Get(ctx).Warn(msg, fields...)
}

// Error logs a message at error level with the given fields.
func Error(ctx context.Context, msg string, fields ...zapcore.Field) {
	Get(ctx).Error(msg, fields...)
}
