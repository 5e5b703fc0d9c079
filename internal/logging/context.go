package logging

import (
	"context"

	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context: the orchestration
// run ID, the category being applied, and the plugin currently executing.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 4)

	if runID := RunIDFromContext(ctx); runID != "" {
		fields = append(fields, zap.String("run.id", runID))
	}
	if category := CategoryFromContext(ctx); category != "" {
		fields = append(fields, zap.String("run.category", category))
	}
	if name := PluginFromContext(ctx); name != "" {
		fields = append(fields, zap.String("plugin.name", name))
	}

	return fields
}

// Context key types
type runIDCtxKey struct{}
type categoryCtxKey struct{}
type pluginCtxKey struct{}
type loggerCtxKey struct{}

// WithRunID stamps an orchestration run ID onto the context.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDCtxKey{}, runID)
}

// RunIDFromContext extracts the run ID, or "" if absent.
func RunIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(runIDCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithCategory stamps the category under orchestration onto the context.
func WithCategory(ctx context.Context, category string) context.Context {
	return context.WithValue(ctx, categoryCtxKey{}, category)
}

// CategoryFromContext extracts the category, or "" if absent.
func CategoryFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(categoryCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithPlugin stamps the currently executing plugin name onto the context.
func WithPlugin(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, pluginCtxKey{}, name)
}

// PluginFromContext extracts the plugin name, or "" if absent.
func PluginFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(pluginCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
