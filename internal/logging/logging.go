// Package logging provides the process logger:
// - TTY detection for human-readable vs JSON output
// - LOG_FORMAT env var override (text/json)
// - LOG_LEVEL env var (debug/info/warn/error)
// - runtime filters (slog-logfilter) matched on request and customer IDs
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	logfilter "github.com/jmylchreest/slog-logfilter"
)

// ContextKey is a type for context keys used in logging.
type ContextKey string

const (
	// RequestIDKey is the context key for the request ID.
	RequestIDKey ContextKey = "log_request_id"
	// CustomerIDKey is the context key for the billing customer ID.
	CustomerIDKey ContextKey = "log_customer_id"
)

// WithRequestID adds a request ID to the context for logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithCustomerID adds a customer ID to the context so filters can match it.
func WithCustomerID(ctx context.Context, customerID string) context.Context {
	return context.WithValue(ctx, CustomerIDKey, customerID)
}

// GetRequestID extracts the request ID from context.
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// GetCustomerID extracts the customer ID from context.
func GetCustomerID(ctx context.Context) string {
	return stringValue(ctx, CustomerIDKey)
}

// FromContext returns a logger carrying the request and customer IDs found
// in ctx.
func FromContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if ctx == nil {
		return logger
	}
	if id := GetRequestID(ctx); id != "" {
		logger = logger.With("request_id", id)
	}
	if id := GetCustomerID(ctx); id != "" {
		logger = logger.With("customer_id", id)
	}
	return logger
}

func stringValue(ctx context.Context, key ContextKey) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

func registerContextExtractors() {
	for name, key := range map[string]ContextKey{
		"request_id":  RequestIDKey,
		"customer_id": CustomerIDKey,
	} {
		logfilter.RegisterContextExtractor(name, func(ctx context.Context) (string, bool) {
			s := stringValue(ctx, key)
			return s, s != ""
		})
	}
}

// New creates a new configured logger.
// Format is determined by:
// 1. LOG_FORMAT env var (text/json)
// 2. TTY detection (text for TTY, JSON otherwise)
// Level is determined by LOG_LEVEL env var (default: info)
func New() *slog.Logger {
	registerContextExtractors()

	return logfilter.New(
		logfilter.WithLevel(ParseLevel(os.Getenv("LOG_LEVEL"))),
		logfilter.WithFormat(resolveFormat(os.Getenv("LOG_FORMAT"), isatty(os.Stdout))),
		logfilter.WithOutput(os.Stdout),
		logfilter.WithSource(true),
	)
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func resolveFormat(logFormat string, tty bool) string {
	switch strings.ToLower(strings.TrimSpace(logFormat)) {
	case "text":
		return "text"
	case "json":
		return "json"
	}
	if tty {
		return "text"
	}
	return "json"
}

// SetDefault creates a new logger and sets it as the default slog logger.
func SetDefault() *slog.Logger {
	logger := New()
	slog.SetDefault(logger)
	return logger
}

// SetLevel changes the global log level at runtime.
func SetLevel(level slog.Level) {
	logfilter.SetLevel(level)
}

// SetFilters replaces all log filters.
func SetFilters(filters []logfilter.LogFilter) {
	logfilter.SetFilters(filters)
}

// GetFilters returns a copy of the current filters.
func GetFilters() []logfilter.LogFilter {
	return logfilter.GetFilters()
}

func isatty(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
