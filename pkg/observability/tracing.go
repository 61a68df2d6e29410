package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name of the tracer for vidtwin operations.
	TracerName = "vidtwin"
)

// Span attribute keys
const (
	AttrOperation  = "operation"
	AttrVideoID    = "video_id"
	AttrSessionID  = "session_id"
	AttrRequestID  = "request_id"
	AttrStatusCode = "http.status_code"
	AttrErrorCode  = "error_code"
	AttrResults    = "results"
	AttrGeneration = "generation"
)

// Span names
const (
	SpanGatewayPrefix = "vidtwin.gateway."
	SpanSubmit        = "vidtwin.session.submit"
	SpanSearch        = "vidtwin.session.search"
	SpanChat          = "vidtwin.session.chat"
)

// Tracer provides tracing for gateway requests and session pipelines.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer() *Tracer {
	return &Tracer{
		tracer: otel.Tracer(TracerName),
	}
}

// StartGatewaySpan starts a span for one request to the transcript service.
func (t *Tracer) StartGatewaySpan(ctx context.Context, operation, requestID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanGatewayPrefix+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(AttrOperation, operation),
			attribute.String(AttrRequestID, requestID),
		),
	)
}

// StartSessionSpan starts a span for a session pipeline (submit, search, chat).
func (t *Tracer) StartSessionSpan(ctx context.Context, name, sessionID string, generation uint64) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, name,
		trace.WithAttributes(attribute.Int64(AttrGeneration, int64(generation))),
	)
	if sessionID != "" {
		span.SetAttributes(attribute.String(AttrSessionID, sessionID))
	}
	return ctx, span
}

// SpanHelper provides convenient methods for working with the current span.
type SpanHelper struct {
	span trace.Span
}

// NewSpanHelper creates a new span helper for the given span.
func NewSpanHelper(span trace.Span) *SpanHelper {
	return &SpanHelper{span: span}
}

// SetVideo sets the video attribute.
func (h *SpanHelper) SetVideo(videoID string) {
	h.span.SetAttributes(attribute.String(AttrVideoID, videoID))
}

// SetStatusCode sets the HTTP status attribute.
func (h *SpanHelper) SetStatusCode(status int) {
	h.span.SetAttributes(attribute.Int(AttrStatusCode, status))
}

// SetResults records how many items a call returned.
func (h *SpanHelper) SetResults(n int) {
	h.span.SetAttributes(attribute.Int(AttrResults, n))
}

// SetError records an error on the span.
func (h *SpanHelper) SetError(err error, errorCode string) {
	h.span.SetStatus(codes.Error, err.Error())
	h.span.SetAttributes(attribute.String(AttrErrorCode, errorCode))
	h.span.RecordError(err)
}

// SetSuccess marks the span as successful.
func (h *SpanHelper) SetSuccess() {
	h.span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span.
func (h *SpanHelper) AddEvent(name string, attrs ...attribute.KeyValue) {
	h.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
