// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Logger is the structured logger shared by the client packages.
var Logger *slog.Logger

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// Context keys for logging
const (
	RequestIDKey LogContextKey = "request_id"
	TraceIDKey   LogContextKey = "trace_id"
	UsernameKey  LogContextKey = "username"
)

// LoggingConfig defines which types of automated logging are enabled.
type LoggingConfig struct {
	EnableAPILogging   bool
	EnableStoreLogging bool
}

// Config holds the current logging configuration.
var Config = LoggingConfig{
	EnableAPILogging:   true,
	EnableStoreLogging: false,
}

// ctxHandler is a slog.Handler that adds context values to the log record.
type ctxHandler struct {
	slog.Handler
}

// Handle adds context values to the record before passing it to the underlying handler.
func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	if rid, ok := ctx.Value(RequestIDKey).(string); ok {
		r.AddAttrs(slog.String("request_id", rid))
	}
	if tid, ok := ctx.Value(TraceIDKey).(string); ok {
		r.AddAttrs(slog.String("trace_id", tid))
	}
	if user, ok := ctx.Value(UsernameKey).(string); ok {
		r.AddAttrs(slog.String("username", user))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{h.Handler.WithGroup(name)}
}

func init() {
	Logger = NewLogger(os.Stderr, os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))
}

// NewLogger builds a context-aware logger: JSON in production, text otherwise.
func NewLogger(w io.Writer, env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if env == "production" || env == "prod" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(&ctxHandler{handler})
}

// Init replaces the package logger once configuration is loaded.
func Init(env, level string) {
	Logger = NewLogger(os.Stderr, env, level)
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
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

// WithRequestID returns a new context carrying the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// ExtractRequestID retrieves the request ID from the context.
func ExtractRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithUsername tags log records produced under ctx with the acting user.
func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, UsernameKey, username)
}

// APILogger provides structured logging for remote API calls of one resource.
type APILogger struct {
	resource string
}

// NewAPILogger creates a new APILogger for the given resource ("posts", "auth", ...).
func NewAPILogger(resource string) *APILogger {
	return &APILogger{resource: resource}
}

// LogRequest logs a completed API round trip.
func (l *APILogger) LogRequest(ctx context.Context, method, path string, status int, elapsed time.Duration) {
	if !Config.EnableAPILogging {
		return
	}
	Logger.DebugContext(ctx, "api request",
		slog.String("resource", l.resource),
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Duration("elapsed", elapsed),
	)
}

// LogRetry logs the single refresh-and-retry of a request rejected with 401.
func (l *APILogger) LogRetry(ctx context.Context, method, path string) {
	if !Config.EnableAPILogging {
		return
	}
	Logger.InfoContext(ctx, "api request unauthorized, retrying after refresh",
		slog.String("resource", l.resource),
		slog.String("method", method),
		slog.String("path", path),
	)
}

// LogFallback logs a degraded-mode answer served instead of remote data.
func (l *APILogger) LogFallback(ctx context.Context, operation string, err error) {
	if !Config.EnableAPILogging {
		return
	}
	attrs := []any{
		slog.String("resource", l.resource),
		slog.String("operation", operation),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	Logger.WarnContext(ctx, "serving fallback data", attrs...)
}

// LogError logs a failed API operation.
func (l *APILogger) LogError(ctx context.Context, operation string, err error) {
	if !Config.EnableAPILogging {
		return
	}
	Logger.ErrorContext(ctx, "api error",
		slog.String("resource", l.resource),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// StoreLogger provides structured logging for key-value store operations.
type StoreLogger struct {
	backend string
}

// NewStoreLogger creates a new StoreLogger for the given backend.
func NewStoreLogger(backend string) *StoreLogger {
	return &StoreLogger{backend: backend}
}

// LogWrite logs a key write or delete.
func (l *StoreLogger) LogWrite(ctx context.Context, operation, key string) {
	if !Config.EnableStoreLogging {
		return
	}
	Logger.DebugContext(ctx, "store write",
		slog.String("backend", l.backend),
		slog.String("operation", operation),
		slog.String("key", key),
	)
}

// LogError logs a store failure.
func (l *StoreLogger) LogError(ctx context.Context, operation, key string, err error) {
	StoreErrors.WithLabelValues(l.backend, operation).Inc()
	Logger.ErrorContext(ctx, "store error",
		slog.String("backend", l.backend),
		slog.String("operation", operation),
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
}
