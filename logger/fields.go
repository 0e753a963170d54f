package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across opgen.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldPassID    = "pass_id"
	FieldVersion   = "snapshot_version"
	FieldComponent = "component"

	// Type graph
	FieldType       = "type"
	FieldEntity     = "entity"
	FieldInterface  = "interface"
	FieldBase       = "base"
	FieldPackage    = "package"
	FieldDepth      = "depth"
	FieldController = "controller"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"

	// Counts and sizes
	FieldCount = "count"
	FieldSize  = "size"

	// Files and paths
	FieldFile = "file"
	FieldDir  = "dir"
)

// Context keys for propagating logging context
type contextKey string

const (
	passIDKey    contextKey = "logger_pass_id"
	componentKey contextKey = "logger_component"
)

// WithPassID adds an analysis pass ID to the context for logging
func WithPassID(ctx context.Context, passID string) context.Context {
	return context.WithValue(ctx, passIDKey, passID)
}

// WithComponent adds a component name to the context for logging
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, componentKey, component)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if passID, ok := ctx.Value(passIDKey).(string); ok && passID != "" {
		fields = append(fields, FieldPassID, passID)
	}
	if component, ok := ctx.Value(componentKey).(string); ok && component != "" {
		fields = append(fields, FieldComponent, component)
	}

	return fields
}

// LoggerFromContext returns a logger with fields extracted from context.
func LoggerFromContext(ctx context.Context) *zap.SugaredLogger {
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return Logger
	}
	return Logger.With(fields...)
}

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	type Generator struct {
//	    logger *zap.SugaredLogger
//	}
//
//	func New() *Generator {
//	    return &Generator{
//	        logger: logger.ComponentLogger("generator"),
//	    }
//	}
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}
