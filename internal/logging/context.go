package logging

import (
	"context"

	"go.uber.org/zap"
)

// Context key types
type databaseCtxKey struct{}
type requestCtxKey struct{}
type loggerCtxKey struct{}

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 2)

	if db := DatabaseFromContext(ctx); db != "" {
		fields = append(fields, zap.String("db.name", db))
	}
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

// WithDatabase tags the context with the database the operation targets.
func WithDatabase(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, databaseCtxKey{}, name)
}

// DatabaseFromContext extracts the database name from context.
func DatabaseFromContext(ctx context.Context) string {
	if name, ok := ctx.Value(databaseCtxKey{}).(string); ok {
		return name
	}
	return ""
}

// WithRequestID tags the context with a request ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return id
	}
	return ""
}

// WithLogger stores the logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves the logger from context, or a nop logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return Nop()
}
