// Package logging provides structured logging setup for the bot.
package logging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"echo_bot/internal/config"
)

const serviceName = "echo-bot"

var baseLogger *logrus.Entry

// Fields is a shorthand alias for structured log fields.
type Fields = logrus.Fields

// Setup replaces the base logger with one built from cfg. The previous logger
// is kept when LOG_LEVEL does not parse.
func Setup(cfg config.Config) (*logrus.Entry, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	baseLogger = newBase(cfg.AppEnv, level)
	return baseLogger, nil
}

// Logger returns the base logger. Before Setup it is an info-level logger in
// the default environment.
func Logger() *logrus.Entry {
	return ensureLogger()
}

type traceKey struct{}

// WithTrace stores the per-update trace id on ctx.
func WithTrace(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

// TraceID returns the trace id stored by WithTrace, or "".
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	traceID, _ := ctx.Value(traceKey{}).(string)
	return traceID
}

// FromContext tags entry with the trace id carried by ctx. A nil entry
// falls back to the base logger.
func FromContext(ctx context.Context, entry *logrus.Entry) *logrus.Entry {
	if entry == nil {
		entry = ensureLogger()
	}
	if traceID := TraceID(ctx); traceID != "" {
		return entry.WithField("trace_id", traceID)
	}
	return entry
}

// Info logs an informational message with optional structured fields.
func Info(msg string, fields logrus.Fields) {
	logWithFields(fields).Info(msg)
}

// Error logs an error message with optional structured fields.
func Error(msg string, fields logrus.Fields) {
	logWithFields(fields).Error(msg)
}

func logWithFields(fields logrus.Fields) *logrus.Entry {
	entry := ensureLogger()
	if len(fields) == 0 {
		return entry
	}

	return entry.WithFields(fields)
}

func ensureLogger() *logrus.Entry {
	if baseLogger == nil {
		baseLogger = newBase(config.DefaultAppEnv, logrus.InfoLevel)
	}
	return baseLogger
}

func newBase(appEnv string, level logrus.Level) *logrus.Entry {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(formatterForEnv(appEnv))

	return logger.WithFields(logrus.Fields{"service": serviceName, "env": appEnv})
}

var fieldMap = logrus.FieldMap{
	logrus.FieldKeyTime:  "ts",
	logrus.FieldKeyMsg:   "msg",
	logrus.FieldKeyLevel: "level",
}

// formatterForEnv prints readable text in development and JSON lines elsewhere.
func formatterForEnv(appEnv string) logrus.Formatter {
	if appEnv == config.EnvDevelopment {
		return &logrus.TextFormatter{
			FullTimestamp:          true,
			TimestampFormat:        time.RFC3339Nano,
			FieldMap:               fieldMap,
			DisableLevelTruncation: true,
		}
	}
	return &logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano, FieldMap: fieldMap}
}

func parseLevel(value string) (logrus.Level, error) {
	level, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(value)))
	if err != nil {
		return logrus.InfoLevel, fmt.Errorf("LOG_LEVEL %q: %w", value, err)
	}
	return level, nil
}

// resetLogger clears the cached logger; used in tests.
func resetLogger() {
	baseLogger = nil
}
