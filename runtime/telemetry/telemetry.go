// Package telemetry defines the logging, metrics, and tracing seams used
// throughout the runtime. Implementations delegate to Clue and OpenTelemetry;
// the interfaces are intentionally small so tests can provide stubs.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Logger captures structured logging used throughout the runtime.
type Logger interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
}

// Metrics exposes counter and histogram helpers for runtime instrumentation.
type Metrics interface {
	IncCounter(name string, value float64, tags ...string)
	RecordTimer(name string, duration time.Duration, tags ...string)
}

// Tracer abstracts span creation so runtime code can remain agnostic of the
// underlying OpenTelemetry provider.
type Tracer interface {
	Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, Span)
	Span(ctx context.Context) Span
}

// Span represents an in-flight tracing span.
type Span interface {
	End(opts ...trace.SpanEndOption)
	AddEvent(name string, attrs ...any)
	SetStatus(code codes.Code, description string)
	RecordError(err error, opts ...trace.EventOption)
}

// CallRecord is the structured record of one integration call, handed to the
// CallTracer after every capability invocation regardless of outcome.
type CallRecord struct {
	// IntegrationID identifies the provider that was called.
	IntegrationID string
	// CapabilityID identifies the capability that was invoked.
	CapabilityID string
	// Params is the input the adapter received.
	Params map[string]any
	// Status is "ok" or "error".
	Status string
	// Latency is the wall-clock duration of the call.
	Latency time.Duration
	// Meta holds provider-specific metadata (response headers, request ids).
	Meta map[string]any
}

// CallTracer receives one record per integration call for observability.
// Implementations must not fail the call: Record has no error return.
type CallTracer interface {
	Record(ctx context.Context, rec CallRecord)
}
