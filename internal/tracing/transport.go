// Package tracing wraps outgoing gateway calls in OpenTelemetry client spans.
package tracing

import (
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "cardpointe-client/internal/tracing"

type transport struct {
	base   http.RoundTripper
	tracer trace.Tracer
}

// NewTransport returns a RoundTripper that starts one client span per
// request on tp (the global provider when nil) before delegating to base
// (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, tp trace.TracerProvider) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &transport{base: base, tracer: tp.Tracer(instrumentationName)}
}

func (t *transport) RoundTrip(r *http.Request) (*http.Response, error) {
	ctx, span := t.tracer.Start(r.Context(), SpanName(r.Method, r.URL.EscapedPath()),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("server.address", r.URL.Hostname()),
		),
	)
	defer span.End()

	resp, err := t.base.RoundTrip(r.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", resp.StatusCode))
	}
	return resp, nil
}

var operations = []string{"/auth", "/capture", "/void"}

// SpanName names a span after the gateway operation. Inquire's path
// parameters are replaced by placeholders to keep span names low-cardinality.
func SpanName(method, path string) string {
	if strings.Contains(path, "/inquire/") {
		return "cardpointe " + method + " /inquire/{retref}/{merchid}"
	}
	for _, op := range operations {
		if strings.HasSuffix(path, op) {
			return "cardpointe " + method + " " + op
		}
	}
	return "cardpointe " + method
}
