// Package logging defines the structured-logging interface used across the
// station and the reference coordination service. Implementations wrap slog.
package logging

import "context"

// Logger is a context-aware, structured logger.
//
// The variadic args are interpreted as key–value pairs, e.g.:
//
//	log.Info(ctx, "poll finished", "added", n, "status", status)
type Logger interface {
	// Debug logs chatty diagnostics (poll cycles, skipped merges).
	Debug(ctx context.Context, msg string, args ...any)

	// Info logs an informational message.
	Info(ctx context.Context, msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions,
	// e.g. a dropped broadcast message or an invalid persisted slice.
	Warn(ctx context.Context, msg string, args ...any)

	// Error logs an error message for failures that were swallowed at a boundary.
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key–value pairs.
	With(args ...any) Logger
}
