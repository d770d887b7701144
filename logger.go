package bouncer

import (
	"context"
)

// Logger records events emitted by the engine: security warnings on the
// trusted-forwarder path, challenge lifecycle events, and resolution debug
// traces.
//
// Implementations should be safe for concurrent use, as engine components
// are typically shared across many goroutines.
//
// The provided context comes from the inbound HTTP request and can carry
// tracing metadata (for example, trace or span IDs).
//
// The interface intentionally mirrors slog's *Context signatures, so
// *slog.Logger can be used directly without an adapter. A charmbracelet/log
// adapter lives in the charmlog subpackage.
type Logger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
}

// noopLogger is the default Logger implementation when logging is not
// explicitly configured.
type noopLogger struct{}

func (noopLogger) DebugContext(context.Context, string, ...any) {}

func (noopLogger) InfoContext(context.Context, string, ...any) {}

func (noopLogger) WarnContext(context.Context, string, ...any) {}
